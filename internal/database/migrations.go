package database

import (
	"context"
	"fmt"
	"strings"
)

type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in version order after InitSchema. Each statement
// must tolerate running against a schema that already has the change.
var migrations = []migration{
	{1, "checkpoint_rows.model", `ALTER TABLE checkpoint_rows ADD COLUMN IF NOT EXISTS model text NOT NULL DEFAULT ''`},
	{2, "checkpoint_rows created_at index", `CREATE INDEX IF NOT EXISTS idx_checkpoint_rows_created ON checkpoint_rows (created_at DESC)`},
}

// Migrate applies every migration newer than the highest version recorded in
// schema_migrations. Each one runs in its own transaction together with its
// version row.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    int PRIMARY KEY,
			name       text NOT NULL,
			applied_at timestamptz NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	var pending []migration
	for _, m := range migrations {
		if m.version > current {
			pending = append(pending, m)
		}
	}

	for i, m := range pending {
		if err := db.apply(ctx, m); err != nil {
			return &MigrationError{failed: m, pending: pending[i:], err: err}
		}
		db.log.Info().Int("version", m.version).Str("migration", m.name).Msg("schema migration applied")
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MigrationError names the migration that failed and the SQL still
// outstanding, so an operator can apply it by hand.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %d (%s) failed: %v\n\nOutstanding SQL:\n", e.failed.version, e.failed.name, e.err)
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	return b.String()
}

func (e *MigrationError) Unwrap() error { return e.err }
