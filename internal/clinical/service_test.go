package clinical

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/doctorhouse/internal/llm"
	"github.com/nikhilbhutani/doctorhouse/internal/stt"
)

type fakeChat struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	calls   int
	lastReq llm.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{
		Provider:     "azure",
		Model:        req.Model,
		Content:      f.reply,
		InputTokens:  120,
		OutputTokens: 340,
	}, nil
}

type fakeTranscriber struct {
	resp *stt.TranscriptionResponse
	err  error
	req  stt.TranscriptionRequest
}

func (f *fakeTranscriber) Name() string { return "fake-stt" }

func (f *fakeTranscriber) Transcribe(_ context.Context, req stt.TranscriptionRequest) (*stt.TranscriptionResponse, error) {
	f.req = req
	return f.resp, f.err
}

type eventLog struct {
	events []Event
}

func (l *eventLog) RecordExtraction(_ context.Context, ev Event) error {
	l.events = append(l.events, ev)
	return nil
}

const modelReply = "```json\n" + `{
	"personal_data": {"first_name": "Marta", "last_name": "Gómez", "age": "52"},
	"physical_exam": {"weight_kg": "70", "height_cm": "175"},
	"current_illness": {"description": "Dolor torácico", "specialist_referral": "Cardiology"},
	"candidate_illnesses": {"candidate_illness_1": {"description": "Angina estable"}}
}` + "\n```\nLet me know if you need anything else."

func newTestService(chat ChatClient, tr stt.STTProvider, rec EventRecorder, opts Options) *Service {
	return NewService(chat, tr, rec, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestService_Extract(t *testing.T) {
	chat := &fakeChat{reply: modelReply}
	events := &eventLog{}
	svc := newTestService(chat, nil, events, Options{Model: "gpt-4o-mini", Temperature: 0.1, MaxTokens: 1024})

	rec, err := svc.Extract(context.Background(), SourceText, "[0.00s → 3.00s] Paciente con dolor torácico.")
	require.NoError(t, err)

	assert.Equal(t, Value("Marta"), rec.PersonalData.FirstName)
	assert.Equal(t, Value(NotAvailable), rec.PersonalData.NationalID)
	assert.Equal(t, Value("Cardiology"), rec.CurrentIllness.SpecialistReferral)
	require.Len(t, rec.CandidateIllnesses.Entries, 1)
	assert.Equal(t, Value(GeneralPractitioner), rec.CandidateIllnesses.Entries[0].SpecialistReferral)
	require.NotNil(t, rec.BMI.Value)
	assert.InDelta(t, 22.86, *rec.BMI.Value, 1e-9)
	assert.Equal(t, "Normal weight", rec.BMI.Classification)

	assert.Equal(t, "gpt-4o-mini", chat.lastReq.Model)
	require.Len(t, chat.lastReq.Messages, 2)
	assert.Equal(t, "Paciente con dolor torácico.", chat.lastReq.Messages[1].Content)

	require.Len(t, events.events, 1)
	ev := events.events[0]
	assert.Equal(t, OutcomeOK, ev.Outcome)
	assert.Equal(t, SourceText, ev.Source)
	assert.Equal(t, "azure", ev.Provider)
	assert.Equal(t, 120, ev.InputTokens)
	assert.Equal(t, 340, ev.OutputTokens)
}

func TestService_Extract_EmptyTranscript(t *testing.T) {
	chat := &fakeChat{reply: modelReply}
	svc := newTestService(chat, nil, nil, Options{})

	_, err := svc.Extract(context.Background(), SourceText, " [0.00s → 1.00s]  \n ")
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Zero(t, chat.calls)
}

func TestService_Extract_Failures(t *testing.T) {
	upstream := &llm.UpstreamError{Provider: "azure", StatusCode: 429, Body: "rate limited"}

	tests := []struct {
		name    string
		chat    *fakeChat
		outcome string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "upstream",
			chat:    &fakeChat{err: upstream},
			outcome: OutcomeUpstream,
			check: func(t *testing.T, err error) {
				var ue *llm.UpstreamError
				require.True(t, errors.As(err, &ue))
				assert.Equal(t, 429, ue.StatusCode)
			},
		},
		{
			name:    "empty reply",
			chat:    &fakeChat{reply: "   "},
			outcome: string(EmptyResponse),
			check: func(t *testing.T, err error) {
				assert.True(t, IsKind(err, EmptyResponse))
			},
		},
		{
			name:    "malformed reply",
			chat:    &fakeChat{reply: "I could not find clinical data."},
			outcome: string(MalformedResponse),
			check: func(t *testing.T, err error) {
				var ee *ExtractionError
				require.True(t, errors.As(err, &ee))
				assert.Equal(t, "I could not find clinical data.", ee.Raw)
			},
		},
		{
			name:    "timeout",
			chat:    &fakeChat{block: true},
			outcome: OutcomeTimeout,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &eventLog{}
			svc := newTestService(tt.chat, nil, events, Options{Model: "m", Timeout: 50 * time.Millisecond})

			rec, err := svc.Extract(context.Background(), SourceText, "texto clínico")
			require.Error(t, err)
			assert.Nil(t, rec)
			tt.check(t, err)

			require.Len(t, events.events, 1)
			assert.Equal(t, tt.outcome, events.events[0].Outcome)
		})
	}
}

func TestService_ProcessAudio(t *testing.T) {
	tr := &fakeTranscriber{resp: &stt.TranscriptionResponse{
		Text: "Buenos días. Peso setenta kilos.",
		Segments: []stt.Segment{
			{Start: 0, End: 1.2, Text: " Buenos días."},
			{Start: 1.2, End: 3.4, Text: " Peso setenta kilos."},
		},
	}}
	chat := &fakeChat{reply: `{"physical_exam": {"weight_kg": "70", "height_cm": "N/A"}}`}
	events := &eventLog{}
	svc := newTestService(chat, tr, events, Options{Model: "m", Language: "es", Timestamps: true})

	rec, err := svc.ProcessAudio(context.Background(), "/tmp/consulta.wav")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/consulta.wav", tr.req.FilePath)
	assert.Equal(t, "es", tr.req.Language)
	assert.Equal(t, "Buenos días.\nPeso setenta kilos.", chat.lastReq.Messages[1].Content)
	assert.Nil(t, rec.BMI.Value)
	assert.Equal(t, NotAvailable, rec.BMI.Classification)
	require.Len(t, events.events, 1)
	assert.Equal(t, SourceAudio, events.events[0].Source)
}

func TestService_ProcessAudio_TranscriptionError(t *testing.T) {
	tr := &fakeTranscriber{err: &stt.ServiceError{Backend: "fake-stt", StatusCode: 503, Body: "down"}}
	chat := &fakeChat{}
	svc := newTestService(chat, tr, nil, Options{})

	_, err := svc.ProcessAudio(context.Background(), "/tmp/a.wav")

	var se *stt.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, chat.calls)
}
