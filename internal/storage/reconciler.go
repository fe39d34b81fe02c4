package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/metrics"
)

// UploadReconciler scans the output directory for transcripts missing from
// S3 and uploads them. It covers mirror writes that failed on earlier runs.
type UploadReconciler struct {
	dir    string
	s3     *S3Store
	log    zerolog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUploadReconciler creates a reconciler for transcripts in dir.
func NewUploadReconciler(dir string, s3 *S3Store, log zerolog.Logger) *UploadReconciler {
	return &UploadReconciler{
		dir: dir,
		s3:  s3,
		log: log.With().Str("component", "upload-reconciler").Logger(),
	}
}

// Start runs one reconcile pass in the background.
func (r *UploadReconciler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Reconcile(ctx)
	}()
}

// Stop cancels a pass in progress and waits for it to return.
func (r *UploadReconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Reconcile uploads every transcript in the output directory that the
// bucket lacks and returns the number uploaded. Files whose bucket state
// cannot be determined are left alone.
func (r *UploadReconciler) Reconcile(ctx context.Context) int {
	files, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.Warn().Err(err).Str("dir", r.dir).Msg("cannot scan output directory")
		return 0
	}

	var uploaded, failed, checked int
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		key := f.Name()
		if f.IsDir() || filepath.Ext(key) != ".txt" {
			continue
		}
		checked++

		switch err := r.reconcileOne(ctx, key); {
		case err == errAlreadyMirrored:
		case err != nil:
			failed++
			metrics.MirrorUploadsTotal.WithLabelValues("reconcile", "failed").Inc()
			r.log.Warn().Err(err).Str("key", key).Msg("reconcile upload failed")
		default:
			uploaded++
			metrics.MirrorUploadsTotal.WithLabelValues("reconcile", "ok").Inc()
		}
	}

	if uploaded > 0 || failed > 0 {
		r.log.Info().
			Int("uploaded", uploaded).
			Int("failed", failed).
			Int("checked", checked).
			Msg("mirror reconcile complete")
	}
	return uploaded
}

var errAlreadyMirrored = errors.New("already mirrored")

func (r *UploadReconciler) reconcileOne(ctx context.Context, key string) error {
	headCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	exists, err := r.s3.Stat(headCtx, key)
	cancel()
	if err != nil {
		return err
	}
	if exists {
		return errAlreadyMirrored
	}

	data, err := os.ReadFile(filepath.Join(r.dir, key))
	if err != nil {
		return err
	}

	putCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return r.s3.Save(putCtx, key, data, TranscriptContentType)
}
