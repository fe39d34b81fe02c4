// Package checkpoint persists one record per transcribed window so an
// interrupted run can resume where it stopped.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/config"
	"github.com/snarg/voice2txt/internal/database"
)

// Header is the first row of a CSV checkpoint log.
var Header = []string{"language", "text", "segments"}

var (
	// ErrBadHeader means an existing log does not start with Header.
	ErrBadHeader = errors.New("checkpoint log has unexpected header")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown checkpoint backend")
)

// Record is one transcribed window. Segments is opaque JSON from the model.
type Record struct {
	Language string
	Text     string
	Segments json.RawMessage
}

// Store is an append-only, durable sequence of records for one identity.
// Row i always belongs to chunk i; the row count is the resume index.
type Store interface {
	// ResumeIndex returns the number of stored records, 0 if the store does not exist yet.
	ResumeIndex(ctx context.Context) (int, error)
	// Append persists r. The backing store is created on the first call.
	// The record is durable when Append returns nil.
	Append(ctx context.Context, r Record) error
	// ReadAll returns every record in append order. A store that does not
	// exist yet yields an empty slice and a nil error.
	ReadAll(ctx context.Context) ([]Record, error)
	// Identity returns the {stem}_{model} key the store is bound to.
	Identity() string
}

// Identity builds the {source-file-stem}_{model-name} key shared by the
// checkpoint log and the output transcript.
func Identity(sourcePath, model string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + model
}

// Open returns the store selected by cfg.CheckpointBackend. db is only used
// (and must be non-nil) for the postgres backend.
func Open(cfg *config.Config, identity string, db *database.DB, log zerolog.Logger) (Store, error) {
	switch cfg.CheckpointBackend {
	case config.BackendCSV:
		s := NewCSVStore(cfg.LogDir, identity)
		log.Info().Str("path", s.Path()).Msg("checkpoint log")
		return s, nil
	case config.BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres checkpoint backend requires a database connection")
		}
		log.Info().Str("identity", identity).Msg("checkpoint log in postgres")
		return NewPGStore(db, identity, cfg.IdentityModel()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.CheckpointBackend)
	}
}
