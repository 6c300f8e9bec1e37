// Package migrations embeds the SurrealDB schema scripts. Every statement is
// written with IF NOT EXISTS, so Apply is safe to run on each start.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed *.surql
var scripts embed.FS

// Script is one named schema file
type Script struct {
	Name string
	Body string
}

// Scripts returns the embedded scripts in name order
func Scripts() ([]Script, error) {
	names, err := fs.Glob(scripts, "*.surql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]Script, 0, len(names))
	for _, name := range names {
		body, err := scripts.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out = append(out, Script{Name: name, Body: string(body)})
	}
	return out, nil
}

// Executor runs a statement without results; database.Database satisfies it
type Executor interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Apply runs every script against db in order
func Apply(ctx context.Context, db Executor) error {
	all, err := Scripts()
	if err != nil {
		return err
	}
	for _, s := range all {
		if err := db.Execute(ctx, s.Body, nil); err != nil {
			return fmt.Errorf("migration %s: %w", s.Name, err)
		}
	}
	return nil
}
