package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CheckpointRow is one persisted transcription window.
type CheckpointRow struct {
	Identity  string
	RowIndex  int
	Model     string
	Language  string
	Text      string
	Segments  json.RawMessage
	CreatedAt time.Time
}

// CheckpointSummary describes one stored log.
type CheckpointSummary struct {
	Identity  string
	Rows      int
	UpdatedAt time.Time
}

// CountCheckpointRows returns the number of rows stored for identity.
func (db *DB) CountCheckpointRows(ctx context.Context, identity string) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM checkpoint_rows WHERE identity = $1`, identity,
	).Scan(&n)
	return n, err
}

// InsertCheckpointRow appends a row after the current last row for the
// identity and returns its index. A single writer per identity is assumed;
// the primary key rejects a concurrent duplicate index.
func (db *DB) InsertCheckpointRow(ctx context.Context, row *CheckpointRow) (int, error) {
	segments := row.Segments
	if len(segments) == 0 {
		segments = json.RawMessage("null")
	}

	var idx int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO checkpoint_rows (identity, row_index, model, language, text, segments)
		SELECT $1, COALESCE(MAX(row_index) + 1, 0), $2, $3, $4, $5
		FROM checkpoint_rows WHERE identity = $1
		RETURNING row_index`,
		row.Identity, row.Model, row.Language, row.Text, segments,
	).Scan(&idx)
	if err != nil {
		return 0, fmt.Errorf("insert checkpoint row: %w", err)
	}
	return idx, nil
}

// ListCheckpointRows returns all rows for identity ordered by row index.
func (db *DB) ListCheckpointRows(ctx context.Context, identity string) ([]CheckpointRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT identity, row_index, model, language, text, segments, created_at
		FROM checkpoint_rows
		WHERE identity = $1
		ORDER BY row_index`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckpointRow
	for rows.Next() {
		var r CheckpointRow
		var segments []byte
		if err := rows.Scan(&r.Identity, &r.RowIndex, &r.Model, &r.Language, &r.Text, &segments, &r.CreatedAt); err != nil {
			return nil, err
		}
		if len(segments) > 0 && string(segments) != "null" {
			r.Segments = json.RawMessage(segments)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListCheckpoints summarizes every stored log, most recently updated first.
func (db *DB) ListCheckpoints(ctx context.Context) ([]CheckpointSummary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT identity, count(*), max(created_at)
		FROM checkpoint_rows
		GROUP BY identity
		ORDER BY max(created_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckpointSummary
	for rows.Next() {
		var s CheckpointSummary
		if err := rows.Scan(&s.Identity, &s.Rows, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteCheckpoint removes every row for identity and returns the count removed.
func (db *DB) DeleteCheckpoint(ctx context.Context, identity string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM checkpoint_rows WHERE identity = $1`, identity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// StaleCheckpoints lists logs whose newest row is older than retention.
func (db *DB) StaleCheckpoints(ctx context.Context, retention time.Duration) ([]CheckpointSummary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT identity, count(*), max(created_at)
		FROM checkpoint_rows
		GROUP BY identity
		HAVING max(created_at) < now() - make_interval(secs => $1)
		ORDER BY max(created_at)`, retention.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CheckpointSummary
	for rows.Next() {
		var s CheckpointSummary
		if err := rows.Scan(&s.Identity, &s.Rows, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PurgeCheckpointsOlderThan deletes every log whose newest row is older than
// retention. Logs still being appended to are never split.
func (db *DB) PurgeCheckpointsOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM checkpoint_rows
		WHERE identity IN (
			SELECT identity FROM checkpoint_rows
			GROUP BY identity
			HAVING max(created_at) < now() - make_interval(secs => $1)
		)`, retention.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
