package stt

import (
	"context"
	"fmt"
	"strings"
)

// TranscriptionRequest holds the parameters for audio transcription.
type TranscriptionRequest struct {
	FilePath string `json:"file_path"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// Segment is a timed span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResponse holds the transcription result.
type TranscriptionResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments,omitempty"`
}

// Render joins the transcription into one text. With timestamps set, each
// segment becomes a "[1.00s → 2.50s] text" line.
func (r *TranscriptionResponse) Render(timestamps bool) string {
	if timestamps && len(r.Segments) > 0 {
		lines := make([]string, len(r.Segments))
		for i, s := range r.Segments {
			lines[i] = fmt.Sprintf("[%.2fs → %.2fs] %s", s.Start, s.End, strings.TrimSpace(s.Text))
		}
		return strings.Join(lines, "\n")
	}
	if text := strings.TrimSpace(r.Text); text != "" {
		return text
	}
	var sb strings.Builder
	for _, s := range r.Segments {
		sb.WriteString(s.Text)
	}
	return strings.TrimSpace(sb.String())
}

// STTProvider is the interface for speech-to-text backends. Implementations
// hold no per-call state and are shared across requests.
type STTProvider interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
	Name() string
}

// ServiceError is returned when the transcription backend answers with a
// non-success status.
type ServiceError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s transcription failed (status %d): %s", e.Backend, e.StatusCode, e.Body)
}
