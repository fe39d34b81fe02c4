package transcribe

import (
	"context"
	"net/http"
	"time"
)

const deepInfraBaseURL = "https://api.deepinfra.com/v1/inference/"

// DeepInfraClient calls DeepInfra's native inference API for Whisper models.
type DeepInfraClient struct {
	apiKey     string
	model      string // e.g. "openai/whisper-large-v3-turbo"
	baseURL    string
	sampleRate int
	language   string
	client     *http.Client
}

var _ Model = (*DeepInfraClient)(nil)

type deepInfraResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

func NewDeepInfraClient(apiKey, model, language string, sampleRate int, timeout time.Duration) *DeepInfraClient {
	return &DeepInfraClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    deepInfraBaseURL,
		sampleRate: sampleRate,
		language:   language,
		client:     &http.Client{Timeout: timeout},
	}
}

func (di *DeepInfraClient) Name() string { return "deepinfra" }

func (di *DeepInfraClient) Model() string { return di.model }

func (di *DeepInfraClient) Transcribe(ctx context.Context, window []float32) (*Result, error) {
	return transcribeWindow(ctx, di, window, di.sampleRate)
}

// TranscribeFile posts to {baseURL}{model} with the file in the "audio" part.
// DeepInfra numbers segments across its own batching, so IDs are reassigned
// from zero.
func (di *DeepInfraClient) TranscribeFile(ctx context.Context, audioPath string) (*Result, error) {
	req := upload{
		provider:  di.Name(),
		url:       di.baseURL + di.model,
		fileField: "audio",
		fields:    []formField{{"language", di.language}},
		header:    http.Header{"Authorization": {"Bearer " + di.apiKey}},
	}

	var resp deepInfraResponse
	if err := req.send(ctx, di.client, audioPath, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Segments {
		resp.Segments[i].ID = i
	}
	return &Result{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: resp.Segments,
	}, nil
}
