package database

import (
	"context"
	"fmt"
)

// InitSchema applies schemaSQL in one transaction when checkpoint_rows is
// missing. It is a no-op on an initialized database.
func (db *DB) InitSchema(ctx context.Context, schemaSQL []byte) error {
	var table *string
	if err := db.Pool.QueryRow(ctx, `SELECT to_regclass('public.checkpoint_rows')::text`).Scan(&table); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if table != nil {
		return nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	db.log.Info().Msg("checkpoint schema created")
	return nil
}
