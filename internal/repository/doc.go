// Package repository implements the SurrealDB data access layer for the
// Marquee API.
//
// Each repository takes a database.Database and maps records to model
// structs with the getX helpers in helpers.go. Conventions:
//
//   - Get methods return nil, nil when the record does not exist
//   - ids are accepted bare ("abc") or qualified ("event:abc") and always
//     passed through type::record() inside parameterized queries
//   - writes spanning several records (purchases, cascading deletes) run as a
//     single SurrealDB transaction via database.AtomicBatch or TxBuilder
//   - guarded writes THROW inside the transaction; mapThrown turns the
//     message back into database.ErrCapacityExceeded or
//     database.ErrStateChanged
package repository
