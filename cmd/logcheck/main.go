// Command logcheck inspects and resets voice2txt checkpoint logs.
//
//	logcheck list                  every log in LOG_DIR or postgres
//	logcheck show <identity>       resume index and rows of one log
//	logcheck reset <identity> [apply]
//	logcheck prune <age> [apply]   logs untouched for longer than age, e.g. 720h
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/snarg/voice2txt/internal/checkpoint"
	"github.com/snarg/voice2txt/internal/config"
	"github.com/snarg/voice2txt/internal/database"
)

const previewRunes = 60

func main() {
	cfg, err := config.Load(config.Overrides{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var db *database.DB
	if cfg.CheckpointBackend == config.BackendPostgres {
		db, err = database.Connect(ctx, cfg.DatabaseURL, zerolog.Nop())
		if err != nil {
			fmt.Fprintln(os.Stderr, "database:", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	args := os.Args[1:]
	cmd := "list"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch {
	case cmd == "list":
		err = list(ctx, os.Stdout, cfg, db)
	case cmd == "show" && len(args) > 1:
		err = show(ctx, os.Stdout, cfg, db, args[1])
	case cmd == "reset" && len(args) > 1:
		dryRun := !(len(args) > 2 && args[2] == "apply")
		err = reset(ctx, os.Stdout, cfg, db, args[1], dryRun)
	case cmd == "prune" && len(args) > 1:
		var age time.Duration
		age, err = time.ParseDuration(args[1])
		if err == nil {
			dryRun := !(len(args) > 2 && args[2] == "apply")
			err = prune(ctx, os.Stdout, cfg, db, age, dryRun)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: logcheck [list | show <identity> | reset <identity> [apply] | prune <age> [apply]]")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func list(ctx context.Context, w io.Writer, cfg *config.Config, db *database.DB) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "Identity\tRows")

	if db != nil {
		summaries, err := db.ListCheckpoints(ctx)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%d\n", s.Identity, s.Rows)
		}
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(cfg.LogDir, "*.csv"))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, m := range matches {
		identity := strings.TrimSuffix(filepath.Base(m), ".csv")
		n, err := checkpoint.NewCSVStore(cfg.LogDir, identity).ResumeIndex(ctx)
		if err != nil {
			fmt.Fprintf(tw, "%s\tunreadable: %v\n", identity, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\n", identity, n)
	}
	return nil
}

func show(ctx context.Context, w io.Writer, cfg *config.Config, db *database.DB, identity string) error {
	store, err := checkpoint.Open(cfg, identity, db, zerolog.Nop())
	if err != nil {
		return err
	}
	records, err := store.ReadAll(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "identity:     %s\n", identity)
	fmt.Fprintf(w, "resume index: %d\n", len(records))
	fmt.Fprintln(w, "── Rows ──")
	for i, r := range records {
		fmt.Fprintf(w, "%4d  %-3s %s\n", i, r.Language, preview(r.Text))
	}
	return nil
}

func reset(ctx context.Context, w io.Writer, cfg *config.Config, db *database.DB, identity string, dryRun bool) error {
	store, err := checkpoint.Open(cfg, identity, db, zerolog.Nop())
	if err != nil {
		return err
	}
	n, err := store.ResumeIndex(ctx)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Fprintf(w, "would remove %d rows for %s (rerun with 'apply')\n", n, identity)
		return nil
	}

	switch s := store.(type) {
	case *checkpoint.CSVStore:
		err = s.Remove()
	case *checkpoint.PGStore:
		err = s.Remove(ctx)
	default:
		err = fmt.Errorf("reset not supported for %T", store)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "removed %d rows for %s\n", n, identity)
	return nil
}

func prune(ctx context.Context, w io.Writer, cfg *config.Config, db *database.DB, age time.Duration, dryRun bool) error {
	if db != nil {
		stale, err := db.StaleCheckpoints(ctx, age)
		if err != nil {
			return err
		}
		for _, s := range stale {
			fmt.Fprintf(w, "%s\t%d rows\tlast %s\n", s.Identity, s.Rows, s.UpdatedAt.Format(time.RFC3339))
		}
		if dryRun {
			fmt.Fprintf(w, "would remove %d logs (rerun with 'apply')\n", len(stale))
			return nil
		}
		n, err := db.PurgeCheckpointsOlderThan(ctx, age)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "removed %d rows\n", n)
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(cfg.LogDir, "*.csv"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.ModTime().Before(cutoff) {
			continue
		}
		fmt.Fprintf(w, "%s\tlast %s\n", filepath.Base(m), fi.ModTime().Format(time.RFC3339))
		if dryRun {
			continue
		}
		if err := os.Remove(m); err != nil {
			return err
		}
		removed++
	}
	if dryRun {
		fmt.Fprintln(w, "dry run, rerun with 'apply' to remove")
		return nil
	}
	fmt.Fprintf(w, "removed %d logs\n", removed)
	return nil
}

// preview flattens newlines and truncates to previewRunes.
func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes]) + "…"
}
