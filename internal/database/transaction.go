package database

// Atomic write helpers.
//
// # AtomicBatch
//
// Fluent API for a handful of statements that must succeed together:
//
//	err := NewAtomicBatch().
//	    Add("DELETE ticket WHERE event = type::record($event)", vars).
//	    Add("DELETE type::record($event)", vars).
//	    Execute(ctx, db)
//
// # TxBuilder
//
// Use when the result of individual statements is needed, or when statements
// come from different places and may reuse variable names. Variables are
// namespaced per statement ($email -> $v1_email):
//
//	tb := NewTxBuilder()
//	tb.Add("UPDATE type::record($event) SET ...", vars1)
//	tb.Add("CREATE ticket CONTENT {...}", vars2)
//	results, err := ExecuteTransaction(ctx, db, tb)

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// TxBuilder builds atomic transaction queries with automatic variable namespacing.
type TxBuilder struct {
	statements []string
	vars       map[string]interface{}
	counter    int
}

// NewTxBuilder creates a new transaction builder
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{
		statements: make([]string, 0),
		vars:       make(map[string]interface{}),
	}
}

// Add appends a statement, renaming each $var to a statement-unique name.
// Returns the mapping from original to namespaced names.
func (tb *TxBuilder) Add(query string, vars map[string]interface{}) map[string]string {
	tb.counter++
	mapping := make(map[string]string, len(vars))

	// Longest names first so $event never rewrites the prefix of $event_id.
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	newQuery := query
	for _, name := range names {
		renamed := fmt.Sprintf("v%d_%s", tb.counter, name)
		pattern := regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `\b`)
		newQuery = pattern.ReplaceAllLiteralString(newQuery, "$"+renamed)
		tb.vars[renamed] = vars[name]
		mapping[name] = renamed
	}

	tb.statements = append(tb.statements, newQuery)
	return mapping
}

// AddRaw adds a raw statement without variable substitution
func (tb *TxBuilder) AddRaw(query string) {
	tb.statements = append(tb.statements, query)
}

// Len returns the number of statements added so far
func (tb *TxBuilder) Len() int {
	return len(tb.statements)
}

// Build returns the complete transaction query and merged variables
func (tb *TxBuilder) Build() (string, map[string]interface{}) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		sb.WriteString(stmt)
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// ExecuteTransaction executes a transaction built with TxBuilder.
// The returned slice holds one response per statement.
func ExecuteTransaction(ctx context.Context, db Database, tb *TxBuilder) ([]interface{}, error) {
	query, vars := tb.Build()
	if query == "" {
		return nil, nil
	}

	return db.Query(ctx, query, vars)
}

// AtomicBatch provides a simpler API for batch operations that should be atomic
type AtomicBatch struct {
	queries []batchQuery
}

type batchQuery struct {
	query string
	vars  map[string]interface{}
}

// NewAtomicBatch creates a new atomic batch
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{
		queries: make([]batchQuery, 0),
	}
}

// Add adds a query to the batch
func (ab *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	ab.queries = append(ab.queries, batchQuery{query: query, vars: vars})
	return ab
}

// Execute runs all queries as a single transaction
func (ab *AtomicBatch) Execute(ctx context.Context, db Database) error {
	if len(ab.queries) == 0 {
		return nil
	}

	tb := NewTxBuilder()
	for _, q := range ab.queries {
		tb.Add(q.query, q.vars)
	}

	_, err := ExecuteTransaction(ctx, db, tb)
	return err
}

// Len returns the number of queries in the batch
func (ab *AtomicBatch) Len() int {
	return len(ab.queries)
}
