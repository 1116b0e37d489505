package audit

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/doctorhouse/internal/clinical"
)

// DB is the part of *pgxpool.Pool the audit log writes through.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Service stores extraction metadata in extraction_logs. A Service with a
// nil DB discards events, so it can be wired when no database is configured.
type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

var _ clinical.EventRecorder = (*Service)(nil)

// RecordExtraction inserts one row per extraction. The request id comes from
// the chi request-id middleware when present.
func (s *Service) RecordExtraction(ctx context.Context, ev clinical.Event) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO extraction_logs (id, request_id, source, provider, model, input_tokens, output_tokens, cost_usd, latency_ms, outcome)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New(), middleware.GetReqID(ctx), string(ev.Source), ev.Provider, ev.Model,
		ev.InputTokens, ev.OutputTokens, ev.CostUSD, ev.LatencyMs, ev.Outcome,
	)
	if err != nil {
		return fmt.Errorf("insert extraction log: %w", err)
	}
	return nil
}
