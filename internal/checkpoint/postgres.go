package checkpoint

import (
	"context"

	"github.com/snarg/voice2txt/internal/database"
)

// PGStore keeps a checkpoint log as rows of the checkpoint_rows table.
// Each Append is a single committed INSERT, so it is durable on return.
type PGStore struct {
	db       *database.DB
	identity string
	model    string
}

func NewPGStore(db *database.DB, identity, model string) *PGStore {
	return &PGStore{db: db, identity: identity, model: model}
}

func (s *PGStore) Identity() string { return s.identity }

func (s *PGStore) ResumeIndex(ctx context.Context) (int, error) {
	return s.db.CountCheckpointRows(ctx, s.identity)
}

func (s *PGStore) Append(ctx context.Context, r Record) error {
	_, err := s.db.InsertCheckpointRow(ctx, &database.CheckpointRow{
		Identity: s.identity,
		Model:    s.model,
		Language: r.Language,
		Text:     r.Text,
		Segments: r.Segments,
	})
	return err
}

func (s *PGStore) ReadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.ListCheckpointRows(ctx, s.identity)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, Record{Language: row.Language, Text: row.Text, Segments: row.Segments})
	}
	return out, nil
}

// Remove deletes every row for the identity.
func (s *PGStore) Remove(ctx context.Context) error {
	_, err := s.db.DeleteCheckpoint(ctx, s.identity)
	return err
}
