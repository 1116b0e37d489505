package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/doctorhouse/internal/clinical"
	"github.com/nikhilbhutani/doctorhouse/internal/upload"
	"github.com/nikhilbhutani/doctorhouse/pkg/textextract"
)

const multipartMemory = 32 << 20

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".ogg": true, ".m4a": true, ".webm": true,
}

// Extractor runs the clinical pipeline; *clinical.Service implements it.
type Extractor interface {
	ProcessAudio(ctx context.Context, path string) (*clinical.Record, error)
	Extract(ctx context.Context, source clinical.Source, transcript string) (*clinical.Record, error)
}

type ExtractionHandler struct {
	svc      Extractor
	uploads  *upload.Store
	maxBytes int64
}

// NewExtractionHandler limits request bodies to maxBytes (<= 0 means no limit).
func NewExtractionHandler(svc Extractor, uploads *upload.Store, maxBytes int64) *ExtractionHandler {
	return &ExtractionHandler{svc: svc, uploads: uploads, maxBytes: maxBytes}
}

// Transcribe accepts a multipart audio file, transcribes it and returns the
// extracted record.
func (h *ExtractionHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	file, header, err := h.formFile(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !isAudio(contentType, header.Filename) {
		writeError(w, r, fmt.Errorf("%w: %q, expected audio/*", clinical.ErrUnsupportedMediaType, contentType))
		return
	}

	saved, err := h.uploads.Save(file, header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() {
		if err := saved.Remove(); err != nil {
			slog.WarnContext(r.Context(), "remove upload", "error", err)
		}
	}()
	slog.InfoContext(r.Context(), "file saved", "bytes", saved.Size, "content_type", contentType)

	rec, err := h.svc.ProcessAudio(r.Context(), saved.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UploadText accepts a multipart transcript (plain text, PDF or DOCX) and
// returns the extracted record.
func (h *ExtractionHandler) UploadText(w http.ResponseWriter, r *http.Request) {
	file, header, err := h.formFile(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	kind, ok := textextract.DetectKind(contentType, header.Filename)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: %q, expected text/plain", clinical.ErrUnsupportedMediaType, contentType))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	text, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "file read", "bytes", len(data), "kind", string(kind))

	rec, err := h.svc.Extract(r.Context(), clinical.SourceText, text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type extractRequest struct {
	Text string `json:"text"`
}

// ExtractJSON takes {"text": "..."} for callers that already hold a
// transcript.
func (h *ExtractionHandler) ExtractJSON(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rec, err := h.svc.Extract(r.Context(), clinical.SourceText, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

var errFileRequired = errors.New(`multipart field "file" required`)

func (h *ExtractionHandler) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, nil, err
		}
		return nil, nil, errFileRequired
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errFileRequired
	}
	return file, header, nil
}

func isAudio(contentType, filename string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if strings.HasPrefix(mediaType, "audio/") {
		return true
	}
	switch mediaType {
	case "", "application/octet-stream", "video/webm":
		return audioExtensions[strings.ToLower(filepath.Ext(filename))]
	}
	return false
}
