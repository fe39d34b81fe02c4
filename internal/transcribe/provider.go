package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/snarg/voice2txt/internal/audio"
)

// maxResponseBytes caps how much of a backend reply is read.
const maxResponseBytes = 8 << 20

// Model is the speech-to-text capability the runner drives. Implementations
// receive one window of mono samples at the rate they were built with.
type Model interface {
	Transcribe(ctx context.Context, window []float32) (*Result, error)
	Name() string  // "whisper", "deepinfra", "openai", "elevenlabs"
	Model() string // model identifier for logs
}

// Result is the common transcription result from any provider.
type Result struct {
	Language string
	Text     string
	Duration float64 // audio duration in seconds, 0 if unknown
	Segments []Segment
}

// Segment is a timed span of text, relative to the start of the window.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Word is a timestamped word from providers that only report words.
type Word struct {
	Word  string
	Start float64 // seconds
	End   float64 // seconds
}

// fileTranscriber is implemented by the HTTP clients, which upload files.
type fileTranscriber interface {
	TranscribeFile(ctx context.Context, audioPath string) (*Result, error)
}

// transcribeWindow writes window to a temporary WAV, uploads it through ft
// and removes the file before returning.
func transcribeWindow(ctx context.Context, ft fileTranscriber, window []float32, sampleRate int) (*Result, error) {
	path, cleanup, err := audio.WriteTempWAV("", window, sampleRate)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return ft.TranscribeFile(ctx, path)
}

// TranscribeOpts are request options shared by the Whisper-style backends.
// Zero values are left out of the request.
type TranscribeOpts struct {
	Temperature float64
	Language    string // "" lets the model detect the language
	Prompt      string // initial prompt or domain vocabulary
}

// APIError is a non-200 reply from an HTTP transcription backend.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

type formField struct{ name, value string }

// upload describes one multipart POST of a WAV window.
type upload struct {
	provider  string
	url       string
	fileField string
	fields    []formField // empty values are skipped
	header    http.Header
}

// send posts the file at path and decodes a 200 JSON reply into out.
func (u upload) send(ctx context.Context, client *http.Client, path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(u.fileField, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy audio data: %w", err)
	}
	for _, fld := range u.fields {
		if fld.value == "" {
			continue
		}
		if err := mw.WriteField(fld.name, fld.value); err != nil {
			return fmt.Errorf("write field %s: %w", fld.name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range u.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", u.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", u.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Provider: u.provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", u.provider, err)
	}
	return nil
}
