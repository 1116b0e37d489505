package stt

import (
	"context"

	"github.com/nikhilbhutani/doctorhouse/internal/config"
)

// LocalSTTConfig holds configuration for the local whisper.cpp STT backend.
type LocalSTTConfig struct {
	BaseURL string // default: "http://localhost:8178"
	Model   string
}

// LocalSTT wraps OpenAISTT pointing at a local whisper.cpp server.
// Start the server with:
//
//	./server -m models/ggml-small.bin --port 8178 --inference-path /audio/transcriptions
type LocalSTT struct {
	*OpenAISTT
}

// NewLocalSTT creates a LocalSTT backed by a local whisper.cpp HTTP server.
func NewLocalSTT(cfg LocalSTTConfig) *LocalSTT {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8178"
	}
	return &LocalSTT{
		OpenAISTT: NewOpenAISTT(OpenAISTTConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
			// No API key needed for local server
		}),
	}
}

func (l *LocalSTT) Name() string { return "local-whisper" }

func (l *LocalSTT) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	return l.OpenAISTT.transcribe(ctx, l.Name(), req)
}

// New returns the backend selected by cfg.Backend. It is built once at
// startup and shared by all requests.
func New(cfg config.STTConfig) STTProvider {
	if cfg.Backend == "openai" {
		return NewOpenAISTT(OpenAISTTConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.Model,
		})
	}
	return NewLocalSTT(LocalSTTConfig{BaseURL: cfg.LocalBaseURL, Model: cfg.Model})
}
