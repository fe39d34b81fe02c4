package transcribe

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// WhisperClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// (speaches, faster-whisper-server, whisper.cpp server).
type WhisperClient struct {
	url        string
	model      string
	sampleRate int
	opts       TranscribeOpts
	client     *http.Client
}

var _ Model = (*WhisperClient)(nil)

// whisperResponse is the verbose_json reply.
type whisperResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// NewWhisperClient creates a Whisper HTTP client. Windows handed to
// Transcribe are encoded at sampleRate.
func NewWhisperClient(url, model string, sampleRate int, timeout time.Duration, opts TranscribeOpts) *WhisperClient {
	return &WhisperClient{
		url:        url,
		model:      model,
		sampleRate: sampleRate,
		opts:       opts,
		client:     &http.Client{Timeout: timeout},
	}
}

func (wc *WhisperClient) Name() string { return "whisper" }

func (wc *WhisperClient) Model() string { return wc.model }

func (wc *WhisperClient) Transcribe(ctx context.Context, window []float32) (*Result, error) {
	return transcribeWindow(ctx, wc, window, wc.sampleRate)
}

// TranscribeFile uploads an audio file. Temperature is always sent so the
// server cannot fall back to its own sampling schedule.
func (wc *WhisperClient) TranscribeFile(ctx context.Context, audioPath string) (*Result, error) {
	req := upload{
		provider:  wc.Name(),
		url:       wc.url,
		fileField: "file",
		fields: []formField{
			{"model", wc.model},
			{"language", wc.opts.Language},
			{"temperature", strconv.FormatFloat(wc.opts.Temperature, 'f', 2, 64)},
			{"prompt", wc.opts.Prompt},
			{"response_format", "verbose_json"},
			{"timestamp_granularities[]", "segment"},
		},
	}

	var resp whisperResponse
	if err := req.send(ctx, wc.client, audioPath, &resp); err != nil {
		return nil, err
	}
	return &Result{
		Language: resp.Language,
		Text:     resp.Text,
		Duration: resp.Duration,
		Segments: resp.Segments,
	}, nil
}
