package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient transcribes through the OpenAI audio API, or any server
// speaking the same protocol when a base URL is set.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	language    string
	temperature float64
	prompt      string
	sampleRate  int
}

var _ Model = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI transcription client. baseURL may be
// empty to use api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string, opts TranscribeOpts, sampleRate int, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		language:    opts.Language,
		temperature: opts.Temperature,
		prompt:      opts.Prompt,
		sampleRate:  sampleRate,
	}
}

func (oc *OpenAIClient) Name() string { return "openai" }

func (oc *OpenAIClient) Model() string { return oc.model }

func (oc *OpenAIClient) Transcribe(ctx context.Context, window []float32) (*Result, error) {
	return transcribeWindow(ctx, oc, window, oc.sampleRate)
}

// TranscribeFile uploads an audio file and requests verbose_json output.
func (oc *OpenAIClient) TranscribeFile(ctx context.Context, audioPath string) (*Result, error) {
	resp, err := oc.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       oc.model,
		FilePath:    audioPath,
		Prompt:      oc.prompt,
		Temperature: float32(oc.temperature),
		Language:    oc.language,
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	segments := make([]Segment, len(resp.Segments))
	for i, s := range resp.Segments {
		segments[i] = Segment{ID: s.ID, Start: s.Start, End: s.End, Text: s.Text}
	}

	return &Result{
		Language: resp.Language,
		Text:     resp.Text,
		Duration: resp.Duration,
		Segments: segments,
	}, nil
}
