package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/config"
)

func TestTranscriptKey(t *testing.T) {
	if got := TranscriptKey("meeting_small"); got != "meeting_small.txt" {
		t.Errorf("TranscriptKey = %q", got)
	}
}

func TestLocalStore_Save(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)
	ctx := context.Background()

	if s.Exists(ctx, "a_small.txt") {
		t.Fatal("Exists before Save")
	}
	if err := s.Save(ctx, "a_small.txt", []byte("first"), TranscriptContentType); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "a_small.txt", []byte("second"), TranscriptContentType); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}

	path := s.LocalPath("a_small.txt")
	if path != filepath.Join(dir, "a_small.txt") {
		t.Errorf("LocalPath = %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want second", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}

	if url, err := s.URL(ctx, "a_small.txt"); err != nil || url != "" {
		t.Errorf("URL = %q, %v; want empty", url, err)
	}
}

func TestLocalStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output", "nested")
	s := NewLocalStore(dir)
	if err := s.Save(context.Background(), "x.txt", []byte("x"), TranscriptContentType); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.LocalPath("x.txt") == "" {
		t.Error("file not written")
	}
}

// fakeS3 is a path-style bucket that keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newFakeS3(t *testing.T, bucket string) (*fakeS3, *httptest.Server) {
	f := &fakeS3{bucket: bucket, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if f.failPut {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return b, ok
}

func testS3Config(endpoint string) config.S3Config {
	return config.S3Config{
		Bucket:        "transcripts",
		Endpoint:      endpoint,
		Region:        "us-east-1",
		AccessKey:     "test",
		SecretKey:     "test",
		Prefix:        "voice2txt",
		PresignExpiry: 15 * time.Minute,
	}
}

func TestNew_LocalOnly(t *testing.T) {
	store, services, err := New(context.Background(), config.S3Config{}, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Type() != "local" {
		t.Errorf("Type = %q, want local", store.Type())
	}
	if len(services) != 0 {
		t.Errorf("services = %d, want 0", len(services))
	}
}

func TestTieredStore_MirrorsToS3(t *testing.T) {
	fake, srv := newFakeS3(t, "transcripts")
	dir := t.TempDir()
	ctx := context.Background()

	store, services, err := New(ctx, testS3Config(srv.URL), dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Type() != "tiered" {
		t.Fatalf("Type = %q, want tiered", store.Type())
	}
	if len(services) != 1 {
		t.Fatalf("services = %d, want 1 reconciler", len(services))
	}

	if err := store.Save(ctx, "talk_small.txt", []byte("hello"), TranscriptContentType); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok := fake.get("voice2txt/transcripts/talk_small.txt")
	if !ok || string(got) != "hello" {
		t.Errorf("S3 object = %q, %v", got, ok)
	}
	if store.LocalPath("talk_small.txt") == "" {
		t.Error("local copy missing")
	}

	url, err := store.URL(ctx, "talk_small.txt")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if !strings.Contains(url, "voice2txt/transcripts/talk_small.txt") || !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("URL = %q", url)
	}
}

func TestTieredStore_S3FailureIsNotFatal(t *testing.T) {
	fake, srv := newFakeS3(t, "transcripts")
	fake.failPut = true
	ctx := context.Background()

	store, _, err := New(ctx, testS3Config(srv.URL), t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Save(ctx, "talk_small.txt", []byte("hello"), TranscriptContentType); err != nil {
		t.Fatalf("Save should succeed when only S3 fails: %v", err)
	}
	if store.LocalPath("talk_small.txt") == "" {
		t.Error("local copy missing")
	}
}

func TestNew_UnknownBucket(t *testing.T) {
	_, srv := newFakeS3(t, "other")
	_, _, err := New(context.Background(), testS3Config(srv.URL), t.TempDir(), zerolog.Nop())
	if err == nil {
		t.Fatal("expected startup check to fail")
	}
}

func TestUploadReconciler(t *testing.T) {
	fake, srv := newFakeS3(t, "transcripts")
	dir := t.TempDir()
	ctx := context.Background()

	for name, body := range map[string]string{
		"a_small.txt":          "a",
		"b_large.txt":          "b",
		".transcript-1234.tmp": "partial",
		"notes.md":             "ignored",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s3store, err := NewS3Store(ctx, testS3Config(srv.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	if err := s3store.Save(ctx, "a_small.txt", []byte("a"), TranscriptContentType); err != nil {
		t.Fatal(err)
	}

	r := NewUploadReconciler(dir, s3store, zerolog.Nop())
	if n := r.Reconcile(ctx); n != 1 {
		t.Errorf("uploaded = %d, want 1", n)
	}
	if got, ok := fake.get("voice2txt/transcripts/b_large.txt"); !ok || string(got) != "b" {
		t.Errorf("b_large.txt not uploaded: %q %v", got, ok)
	}
	if _, ok := fake.get("voice2txt/transcripts/notes.md"); ok {
		t.Error("non-transcript uploaded")
	}

	if n := r.Reconcile(ctx); n != 0 {
		t.Errorf("second pass uploaded = %d, want 0", n)
	}

	r.Start()
	r.Stop()
}

func TestS3Store_Stat(t *testing.T) {
	_, srv := newFakeS3(t, "transcripts")
	ctx := context.Background()

	s3store, err := NewS3Store(ctx, testS3Config(srv.URL), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	if ok, err := s3store.Stat(ctx, "missing_small.txt"); err != nil || ok {
		t.Errorf("Stat(missing) = %v, %v; want false, nil", ok, err)
	}
	if err := s3store.Save(ctx, "here_small.txt", []byte("x"), TranscriptContentType); err != nil {
		t.Fatal(err)
	}
	if ok, err := s3store.Stat(ctx, "here_small.txt"); err != nil || !ok {
		t.Errorf("Stat(present) = %v, %v; want true, nil", ok, err)
	}
}

func TestUploadReconciler_MissingDir(t *testing.T) {
	_, srv := newFakeS3(t, "transcripts")
	s3store, err := NewS3Store(context.Background(), testS3Config(srv.URL), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	r := NewUploadReconciler(filepath.Join(t.TempDir(), "absent"), s3store, zerolog.Nop())
	if n := r.Reconcile(context.Background()); n != 0 {
		t.Errorf("uploaded = %d, want 0", n)
	}
}
