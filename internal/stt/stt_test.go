package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/doctorhouse/internal/config"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consulta.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o600))
	return path
}

func TestLocalSTT_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "es", r.FormValue("language"))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "consulta.wav", header.Filename)
		assert.Equal(t, "RIFF....WAVEfmt ", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"task": "transcribe",
			"language": "spanish",
			"duration": 4.2,
			"text": " Buenos días. Me duele la cabeza.",
			"segments": [
				{"id": 0, "seek": 0, "start": 0.0, "end": 1.5, "text": " Buenos días."},
				{"id": 1, "seek": 0, "start": 1.5, "end": 4.2, "text": " Me duele la cabeza."}
			]
		}`))
	}))
	defer server.Close()

	p := NewLocalSTT(LocalSTTConfig{BaseURL: server.URL})
	assert.Equal(t, "local-whisper", p.Name())

	resp, err := p.Transcribe(context.Background(), TranscriptionRequest{FilePath: writeAudio(t), Language: "es"})
	require.NoError(t, err)

	assert.Equal(t, "spanish", resp.Language)
	assert.InDelta(t, 4.2, resp.Duration, 1e-9)
	require.Len(t, resp.Segments, 2)
	assert.Equal(t, Segment{Start: 1.5, End: 4.2, Text: " Me duele la cabeza."}, resp.Segments[1])
	assert.Equal(t, "Buenos días. Me duele la cabeza.", resp.Render(false))
	assert.Equal(t, "[0.00s → 1.50s] Buenos días.\n[1.50s → 4.20s] Me duele la cabeza.", resp.Render(true))
}

func TestSTT_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New(config.STTConfig{Backend: "local", LocalBaseURL: server.URL})
	_, err := p.Transcribe(context.Background(), TranscriptionRequest{FilePath: writeAudio(t)})

	var se *ServiceError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "local-whisper", se.Backend)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestSTT_MissingFile(t *testing.T) {
	p := NewOpenAISTT(OpenAISTTConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	_, err := p.Transcribe(context.Background(), TranscriptionRequest{FilePath: filepath.Join(t.TempDir(), "nope.wav")})
	assert.Error(t, err)
}

func TestRender_FallsBackToSegments(t *testing.T) {
	resp := &TranscriptionResponse{Segments: []Segment{{Text: " Hola"}, {Text: " doctor."}}}
	assert.Equal(t, "Hola doctor.", resp.Render(false))

	empty := &TranscriptionResponse{Text: "  sin segmentos "}
	assert.Equal(t, "sin segmentos", empty.Render(true))
}

func TestNew_SelectsBackend(t *testing.T) {
	assert.Equal(t, "openai-whisper", New(config.STTConfig{Backend: "openai", OpenAIKey: "k"}).Name())
	assert.Equal(t, "local-whisper", New(config.STTConfig{Backend: "local"}).Name())
}
