package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const elevenLabsSTTEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

// ElevenLabsClient calls the ElevenLabs Speech-to-Text API.
type ElevenLabsClient struct {
	apiKey     string
	model      string // "scribe_v1" or "scribe_v2"
	keyterms   string // comma-separated boost terms
	language   string
	endpoint   string
	sampleRate int
	client     *http.Client
}

var _ Model = (*ElevenLabsClient)(nil)

type elevenlabsResponse struct {
	LanguageCode string           `json:"language_code"`
	Text         string           `json:"text"`
	Words        []elevenlabsWord `json:"words"`
}

// elevenlabsWord is a word or spacing entry from ElevenLabs.
type elevenlabsWord struct {
	Text  string  `json:"text"`
	Type  string  `json:"type"` // "word" or "spacing"
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// NewElevenLabsClient creates a new ElevenLabs STT client.
func NewElevenLabsClient(apiKey, model, keyterms, language string, sampleRate int, timeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:     apiKey,
		model:      model,
		keyterms:   keyterms,
		language:   language,
		endpoint:   elevenLabsSTTEndpoint,
		sampleRate: sampleRate,
		client:     &http.Client{Timeout: timeout},
	}
}

func (el *ElevenLabsClient) Name() string { return "elevenlabs" }

func (el *ElevenLabsClient) Model() string { return el.model }

func (el *ElevenLabsClient) Transcribe(ctx context.Context, window []float32) (*Result, error) {
	return transcribeWindow(ctx, el, window, el.sampleRate)
}

// TranscribeFile sends an audio file to the ElevenLabs STT API. ElevenLabs
// only reports words, so segments are rebuilt from pauses between words.
func (el *ElevenLabsClient) TranscribeFile(ctx context.Context, audioPath string) (*Result, error) {
	req := upload{
		provider:  el.Name(),
		url:       el.endpoint,
		fileField: "file",
		fields: []formField{
			{"model_id", el.model},
			{"language_code", el.language},
			{"timestamps_granularity", "word"},
			{"keyterms", el.buildKeyterms()},
		},
		header: http.Header{"Xi-Api-Key": {el.apiKey}},
	}

	var resp elevenlabsResponse
	if err := req.send(ctx, el.client, audioPath, &resp); err != nil {
		return nil, err
	}

	var words []Word
	for _, ew := range resp.Words {
		if ew.Type == "word" {
			words = append(words, Word{Word: ew.Text, Start: ew.Start, End: ew.End})
		}
	}
	return &Result{
		Text:     resp.Text,
		Language: resp.LanguageCode,
		Segments: segmentsFromWords(words, defaultSegmentGap),
	}, nil
}

// buildKeyterms turns the comma-separated config string into the JSON array
// of {"text": "term"} objects the API expects.
func (el *ElevenLabsClient) buildKeyterms() string {
	var terms []string
	for _, t := range strings.Split(el.keyterms, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return ""
	}

	type keyterm struct {
		Text string `json:"text"`
	}
	arr := make([]keyterm, len(terms))
	for i, t := range terms {
		arr[i] = keyterm{Text: t}
	}
	b, _ := json.Marshal(arr)
	return string(b)
}
