package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/config"
)

// TranscriptContentType is stored with every transcript object.
const TranscriptContentType = "text/plain; charset=utf-8"

// TranscriptStore abstracts where finished transcripts are written.
type TranscriptStore interface {
	// Save stores a transcript. key format: {identity}.txt
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned URL for the transcript.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Exists checks if a transcript exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// TranscriptKey returns the storage key for identity.
func TranscriptKey(identity string) string {
	return identity + ".txt"
}

// New creates a TranscriptStore based on config. Transcripts always land in
// outputDir; when a bucket is configured they are mirrored to S3 and a
// reconciler is returned that uploads earlier transcripts the bucket lacks.
// Returns an error if S3 is configured but unreachable.
func New(ctx context.Context, cfg config.S3Config, outputDir string, log zerolog.Logger) (TranscriptStore, []BackgroundService, error) {
	local := NewLocalStore(outputDir)
	if !cfg.Enabled() {
		return local, nil, nil
	}

	s3store, err := NewS3Store(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(checkCtx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	tiered := NewTieredStore(s3store, local, log)
	reconciler := NewUploadReconciler(outputDir, s3store, log)
	return tiered, []BackgroundService{reconciler}, nil
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}
