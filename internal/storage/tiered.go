package storage

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/metrics"
)

// TieredStore writes every transcript to the output directory and mirrors it
// to S3. The local file is authoritative: a mirror failure is logged and left
// for the reconciler on the next start.
type TieredStore struct {
	primary *LocalStore
	mirror  *S3Store
	log     zerolog.Logger
}

func NewTieredStore(mirror *S3Store, primary *LocalStore, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		primary: primary,
		mirror:  mirror,
		log:     log.With().Str("component", "tiered-store").Logger(),
	}
}

func (s *TieredStore) Save(ctx context.Context, key string, data []byte, ct string) error {
	if err := s.primary.Save(ctx, key, data, ct); err != nil {
		return err
	}
	if err := s.mirror.Save(ctx, key, data, ct); err != nil {
		metrics.MirrorUploadsTotal.WithLabelValues("save", "failed").Inc()
		s.log.Warn().Err(err).Str("key", key).Msg("transcript saved locally, mirror upload deferred")
		return nil
	}
	metrics.MirrorUploadsTotal.WithLabelValues("save", "ok").Inc()
	return nil
}

func (s *TieredStore) LocalPath(key string) string { return s.primary.LocalPath(key) }

// URL presigns the mirrored object. It does not check that the upload
// succeeded; a deferred upload yields a URL that 404s until reconciled.
func (s *TieredStore) URL(ctx context.Context, key string) (string, error) {
	return s.mirror.URL(ctx, key)
}

func (s *TieredStore) Exists(ctx context.Context, key string) bool {
	return s.primary.Exists(ctx, key) || s.mirror.Exists(ctx, key)
}

func (s *TieredStore) Type() string { return "tiered" }
