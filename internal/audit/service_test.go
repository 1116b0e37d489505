package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/doctorhouse/internal/clinical"
)

type fakeDB struct {
	sql  string
	args []any
	err  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestRecordExtraction(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	err := svc.RecordExtraction(ctx, clinical.Event{
		Source:       clinical.SourceAudio,
		Provider:     "azure",
		Model:        "gpt-4o-mini",
		InputTokens:  100,
		OutputTokens: 200,
		CostUSD:      0.0003,
		LatencyMs:    850,
		Outcome:      clinical.OutcomeOK,
	})
	require.NoError(t, err)

	assert.Contains(t, db.sql, "INSERT INTO extraction_logs")
	require.Len(t, db.args, 10)
	_, isUUID := db.args[0].(uuid.UUID)
	assert.True(t, isUUID)
	assert.Equal(t, []any{"req-42", "audio", "azure", "gpt-4o-mini", 100, 200, 0.0003, int64(850), "ok"}, db.args[1:])
}

func TestRecordExtraction_Error(t *testing.T) {
	svc := NewService(&fakeDB{err: errors.New("connection refused")})
	err := svc.RecordExtraction(context.Background(), clinical.Event{Outcome: clinical.OutcomeError})
	assert.ErrorContains(t, err, "insert extraction log")
}

func TestRecordExtraction_NoDB(t *testing.T) {
	assert.NoError(t, NewService(nil).RecordExtraction(context.Background(), clinical.Event{}))

	var svc *Service
	assert.NoError(t, svc.RecordExtraction(context.Background(), clinical.Event{}))
}
