package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed migrations/001_runs.sql
var runsSchemaSQL string

// schemaStep is a versioned change to the archive schema. Steps are applied
// in order, each inside its own transaction, and recorded in schema_version,
// so Migrate is safe to call on every startup.
type schemaStep struct {
	version int
	name    string
	sql     string
}

var schemaSteps = []schemaStep{
	{version: 1, name: "runs", sql: runsSchemaSQL},
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, step := range schemaSteps {
		if step.version <= current {
			continue
		}
		if err := applySchemaStep(ctx, db, step); err != nil {
			return err
		}
	}
	return nil
}

func applySchemaStep(ctx context.Context, db *sql.DB, step schemaStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d (%s): begin: %w", step.version, step.name, err)
	}
	defer tx.Rollback()

	for _, stmt := range sqlStatements(step.sql) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", step.version, step.name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name) VALUES (?, ?)`,
		step.version, step.name); err != nil {
		return fmt.Errorf("migration %d (%s): record version: %w", step.version, step.name, err)
	}
	return tx.Commit()
}

// sqlStatements splits a migration script into individual statements. The
// driver executes one statement at a time, so scripts stick to ";"
// terminators and "--" line comments.
func sqlStatements(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		var code []string
		for _, line := range strings.Split(chunk, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			code = append(code, trimmed)
		}
		if len(code) > 0 {
			out = append(out, strings.Join(code, "\n"))
		}
	}
	return out
}
