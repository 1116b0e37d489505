package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/doctorhouse/internal/clinical"
	"github.com/nikhilbhutani/doctorhouse/internal/llm"
	"github.com/nikhilbhutani/doctorhouse/internal/stt"
	"github.com/nikhilbhutani/doctorhouse/internal/upload"
	"github.com/nikhilbhutani/doctorhouse/pkg/textextract"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps pipeline errors to a status and a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request failed", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, map[string]interface{}) {
	var (
		upstream *llm.UpstreamError
		sttErr   *stt.ServiceError
		extract  *clinical.ExtractionError
		maxBytes *http.MaxBytesError
	)

	switch {
	case errors.Is(err, clinical.ErrUnsupportedMediaType),
		errors.Is(err, clinical.ErrEmptyTranscript),
		errors.Is(err, errFileRequired),
		errors.Is(err, textextract.ErrNotUTF8),
		errors.Is(err, textextract.ErrUnsupported):
		return http.StatusBadRequest, map[string]interface{}{"error": err.Error()}

	case errors.Is(err, upload.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusBadRequest, map[string]interface{}{"error": "upload exceeds size limit"}

	case errors.As(err, &upstream):
		return http.StatusBadGateway, map[string]interface{}{
			"error":           "extraction service error",
			"provider":        upstream.Provider,
			"upstream_status": upstream.StatusCode,
			"upstream_body":   upstream.Body,
		}

	case errors.As(err, &sttErr):
		return http.StatusBadGateway, map[string]interface{}{
			"error":           "transcription service error",
			"backend":         sttErr.Backend,
			"upstream_status": sttErr.StatusCode,
			"upstream_body":   sttErr.Body,
		}

	case errors.As(err, &extract):
		body := map[string]interface{}{"error": extract.Error(), "kind": string(extract.Kind)}
		if extract.Kind == clinical.MalformedResponse {
			body["raw_response"] = extract.Raw
		}
		return http.StatusBadGateway, body

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, map[string]interface{}{"error": "extraction service timed out"}

	default:
		return http.StatusInternalServerError, map[string]interface{}{"error": err.Error()}
	}
}
