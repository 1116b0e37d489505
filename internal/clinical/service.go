package clinical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/doctorhouse/internal/llm"
	"github.com/nikhilbhutani/doctorhouse/internal/stt"
	"github.com/nikhilbhutani/doctorhouse/pkg/tokenizer"
)

// Source names where a transcript came from.
type Source string

const (
	SourceAudio Source = "audio"
	SourceText  Source = "text"
)

// Outcome values stored with each extraction event.
const (
	OutcomeOK       = "ok"
	OutcomeUpstream = "upstream_error"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

// ChatClient is the part of llm.Gateway the pipeline needs.
type ChatClient interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Event is the metadata kept for one extraction. It never contains
// transcript or record content.
type Event struct {
	Source       Source
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    int64
	Outcome      string
}

// EventRecorder persists extraction events.
type EventRecorder interface {
	RecordExtraction(ctx context.Context, ev Event) error
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Language    string
	Timestamps  bool
}

// Service runs normalize, prompt, model call, extract and BMI for one
// transcript. It holds no per-request state.
type Service struct {
	chat        ChatClient
	transcriber stt.STTProvider
	recorder    EventRecorder
	opts        Options
	logger      *slog.Logger
}

func NewService(chat ChatClient, transcriber stt.STTProvider, recorder EventRecorder, opts Options, logger *slog.Logger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		chat:        chat,
		transcriber: transcriber,
		recorder:    recorder,
		opts:        opts,
		logger:      logger,
	}
}

// ProcessAudio transcribes the file at path and extracts a record from the
// transcript.
func (s *Service) ProcessAudio(ctx context.Context, path string) (*Record, error) {
	if s.transcriber == nil {
		return nil, errors.New("no transcription backend configured")
	}

	start := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, stt.TranscriptionRequest{FilePath: path, Language: s.opts.Language})
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}
	s.logger.InfoContext(ctx, "transcription done",
		"backend", s.transcriber.Name(),
		"segments", len(tr.Segments),
		"audio_seconds", tr.Duration,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return s.Extract(ctx, SourceAudio, tr.Render(s.opts.Timestamps))
}

// Extract turns a transcript into a normalized record with its BMI section.
func (s *Service) Extract(ctx context.Context, source Source, transcript string) (*Record, error) {
	clean := CleanTranscript(transcript)
	if strings.TrimSpace(clean) == "" {
		return nil, ErrEmptyTranscript
	}

	req := BuildExtractionRequest(clean, PromptOptions{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	s.logger.DebugContext(ctx, "prompt built",
		"source", string(source),
		"estimated_tokens", tokenizer.Estimate(req.System)+tokenizer.Estimate(req.User),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.chat.Chat(callCtx, req.ChatRequest(s.opts.Model))
	ev := Event{Source: source, Model: s.opts.Model, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		ev.Outcome = outcomeOf(err)
		s.record(ctx, ev)
		return nil, fmt.Errorf("extraction call: %w", err)
	}
	ev.Provider = resp.Provider
	ev.Model = resp.Model
	ev.InputTokens = resp.InputTokens
	ev.OutputTokens = resp.OutputTokens
	ev.CostUSD = resp.CostUSD

	raw, err := ExtractObject(resp.Content)
	if err != nil {
		ev.Outcome = outcomeOf(err)
		s.record(ctx, ev)
		return nil, err
	}

	rec, err := DecodeRecord(raw)
	if err != nil {
		ev.Outcome = string(MalformedResponse)
		s.record(ctx, ev)
		return nil, &ExtractionError{Kind: MalformedResponse, Raw: resp.Content, Err: err}
	}
	s.logger.InfoContext(ctx, "extraction done",
		"provider", resp.Provider,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"latency_ms", ev.LatencyMs,
	)

	ApplyBMI(rec)
	s.logger.InfoContext(ctx, "bmi computed", "computed", rec.BMI.Value != nil)

	ev.Outcome = OutcomeOK
	s.record(ctx, ev)
	return rec, nil
}

func (s *Service) record(ctx context.Context, ev Event) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordExtraction(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "record extraction event", "error", err)
	}
}

func outcomeOf(err error) string {
	var ee *ExtractionError
	switch {
	case errors.As(err, &ee):
		return string(ee.Kind)
	case llm.IsUpstream(err):
		return OutcomeUpstream
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
