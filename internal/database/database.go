// Package database provides the database abstraction layer for Marquee.
//
// The Database interface abstracts SurrealDB operations so that repositories
// can be exercised against a live instance or a test double.
//
// # Interface Design
//
// The Database interface provides three query methods:
//   - Query: Returns one response per statement ({status, result} maps)
//   - QueryOne: Returns the first record of the first statement
//   - Execute: No return value (for CREATE/UPDATE/DELETE mutations)
//
// # Atomic Writes
//
// Multi-statement writes go through AtomicBatch or TxBuilder (transaction.go).
// Both build a single BEGIN TRANSACTION / COMMIT TRANSACTION request, so every
// statement succeeds or the whole batch is cancelled server-side. A THROW
// inside the batch cancels it and surfaces as ErrQuery with the thrown message.
//
// # Error Handling
//
// Use errors.Is() to check error types:
//
//	if errors.Is(err, database.ErrNotFound) {
//	    // Handle missing record
//	}
package database

import (
	"context"
	"errors"
)

// Standard errors for database operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation (e.g., duplicate email).
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure (syntax error, THROW, invalid reference).
	ErrQuery = errors.New("query error")

	// ErrCapacityExceeded indicates a guarded increment would pass its limit
	// (a purchase larger than the remaining tier capacity).
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrStateChanged indicates a conditional write matched no record because
	// the record changed since it was read.
	ErrStateChanged = errors.New("record state changed")
)

// Database defines the interface for database operations
type Database interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns one response per statement
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns a single result
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results (for mutations)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}
