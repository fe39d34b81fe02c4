package main

import (
	"bytes"
	"context"
	"strings"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snarg/voice2txt/internal/checkpoint"
	"github.com/snarg/voice2txt/internal/config"
)

func seedLog(t *testing.T, dir, identity string, texts ...string) {
	t.Helper()
	s := checkpoint.NewCSVStore(dir, identity)
	for _, text := range texts {
		if err := s.Append(context.Background(), checkpoint.Record{Language: "en", Text: text}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListShowReset(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{LogDir: t.TempDir(), CheckpointBackend: config.BackendCSV}
	seedLog(t, cfg.LogDir, "a_small", "one", "two\nlines")
	seedLog(t, cfg.LogDir, "b_large", "x")

	var out bytes.Buffer
	if err := list(ctx, &out, cfg, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "a_small") || !strings.Contains(out.String(), "b_large") {
		t.Errorf("list output:\n%s", out.String())
	}

	out.Reset()
	if err := show(ctx, &out, cfg, nil, "a_small"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "resume index: 2") || !strings.Contains(out.String(), "two lines") {
		t.Errorf("show output:\n%s", out.String())
	}

	out.Reset()
	if err := reset(ctx, &out, cfg, nil, "a_small", true); err != nil {
		t.Fatal(err)
	}
	if !checkpoint.NewCSVStore(cfg.LogDir, "a_small").Exists() {
		t.Error("dry run removed the log")
	}

	out.Reset()
	if err := reset(ctx, &out, cfg, nil, "a_small", false); err != nil {
		t.Fatal(err)
	}
	if checkpoint.NewCSVStore(cfg.LogDir, "a_small").Exists() {
		t.Error("reset apply left the log behind")
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("あ", previewRunes+5)
	got := preview(long)
	if !strings.HasSuffix(got, "…") || len([]rune(got)) != previewRunes+1 {
		t.Errorf("preview = %q", got)
	}
	if preview("a\nb") != "a b" {
		t.Errorf("newlines not flattened")
	}
}

func TestPrune_CSV(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{LogDir: t.TempDir(), CheckpointBackend: config.BackendCSV}
	seedLog(t, cfg.LogDir, "old_small", "x")
	seedLog(t, cfg.LogDir, "new_small", "y")

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(cfg.LogDir, "old_small.csv"), old, old); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := prune(ctx, &out, cfg, nil, 24*time.Hour, true); err != nil {
		t.Fatal(err)
	}
	if !checkpoint.NewCSVStore(cfg.LogDir, "old_small").Exists() {
		t.Error("dry run removed a log")
	}

	out.Reset()
	if err := prune(ctx, &out, cfg, nil, 24*time.Hour, false); err != nil {
		t.Fatal(err)
	}
	if checkpoint.NewCSVStore(cfg.LogDir, "old_small").Exists() {
		t.Error("stale log not removed")
	}
	if !checkpoint.NewCSVStore(cfg.LogDir, "new_small").Exists() {
		t.Error("fresh log removed")
	}
}
