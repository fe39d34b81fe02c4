package main

import (
	"fmt"

	"github.com/snarg/voice2txt/internal/config"
	"github.com/snarg/voice2txt/internal/transcribe"
)

// newModel builds the provider selected by cfg.Provider.
func newModel(cfg *config.Config) (transcribe.Model, error) {
	opts := transcribe.TranscribeOpts{
		Temperature: cfg.Temperature,
		Language:    cfg.Language,
		Prompt:      cfg.Prompt,
	}
	switch cfg.Provider {
	case config.ProviderWhisper:
		return transcribe.NewWhisperClient(cfg.WhisperURL, cfg.ServerModel(), cfg.SampleRate, cfg.ModelTimeout, opts), nil
	case config.ProviderDeepInfra:
		return transcribe.NewDeepInfraClient(cfg.DeepInfraAPIKey, cfg.DeepInfraModel, cfg.Language, cfg.SampleRate, cfg.ModelTimeout), nil
	case config.ProviderOpenAI:
		return transcribe.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, opts, cfg.SampleRate, cfg.ModelTimeout), nil
	case config.ProviderElevenLabs:
		return transcribe.NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel, cfg.ElevenLabsKeyterms, cfg.Language, cfg.SampleRate, cfg.ModelTimeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
