package checkpoint

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
)

// CSVStore keeps the log in {dir}/{identity}.csv with a language,text,segments
// header. Fields are quoted per RFC 4180, so text may hold commas, quotes and
// line breaks; CRLF inside text survives a round trip unchanged.
type CSVStore struct {
	dir      string
	identity string
}

var _ Store = (*CSVStore)(nil)

// NewCSVStore binds a store to dir and identity. Nothing is created on disk.
func NewCSVStore(dir, identity string) *CSVStore {
	return &CSVStore{dir: dir, identity: identity}
}

// Path returns the log file location.
func (s *CSVStore) Path() string {
	return filepath.Join(s.dir, s.identity+".csv")
}

func (s *CSVStore) Identity() string { return s.identity }

// Exists reports whether the log file has been created.
func (s *CSVStore) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

func (s *CSVStore) ResumeIndex(ctx context.Context) (int, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Append writes r after the last complete row. A torn row left by a crash
// mid-write is cut off first, so its chunk is simply transcribed again.
func (s *CSVStore) Append(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	_, end, err := s.parse(data)
	if err != nil {
		return err
	}
	if end < len(data) {
		if err := f.Truncate(int64(end)); err != nil {
			return fmt.Errorf("truncate torn row in %s: %w", path, err)
		}
	}
	created := end == 0

	w := csv.NewWriter(f)
	if created {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write([]string{r.Language, r.Text, segmentsField(r)}); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if created {
		if err := syncDir(s.dir); err != nil {
			return fmt.Errorf("sync dir %s: %w", s.dir, err)
		}
	}
	return nil
}

// ReadAll returns the complete rows of the log. A torn final row is not
// returned and not counted.
func (s *CSVStore) ReadAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path(), err)
	}
	records, _, err := s.parse(data)
	return records, err
}

// parse decodes data and returns its records plus the offset just past the
// last complete row.
func (s *CSVStore) parse(data []byte) ([]Record, int, error) {
	rows, end, err := scanLog(data)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", s.Path(), err)
	}

	records := []Record{}
	if len(rows) == 0 {
		return records, end, nil
	}
	if !slices.Equal(rows[0], Header) {
		return nil, 0, fmt.Errorf("%w: %s: %q", ErrBadHeader, s.Path(), rows[0])
	}
	for i, row := range rows[1:] {
		if len(row) != len(Header) {
			return nil, 0, fmt.Errorf("%w: %s: row %d has %d fields, want %d", ErrMalformedRow, s.Path(), i, len(row), len(Header))
		}
		rec := Record{Language: row[0], Text: row[1]}
		if row[2] != "" {
			rec.Segments = []byte(row[2])
		}
		records = append(records, rec)
	}
	return records, end, nil
}

// Remove deletes the log file. A missing file is not an error.
func (s *CSVStore) Remove() error {
	err := os.Remove(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func segmentsField(r Record) string {
	if len(r.Segments) == 0 {
		return ""
	}
	return string(r.Segments)
}

// syncDir flushes a directory entry so a newly created file survives power loss.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
