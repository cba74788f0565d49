// Package pg provides a PostgreSQL implementation of triage.Recorder.
package pg

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sift/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/audit/pg")

//go:embed schema.sql
var schema string

// Recorder persists decision records and session summaries in PostgreSQL.
type Recorder struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Recorder. The pool is owned
// by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Recorder, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Recorder{pool: pool}, nil
}

// Append inserts one decision record.
func (r *Recorder) Append(ctx context.Context, rec *triage.Record) error {
	ctx, span := tracer.Start(ctx, "pg.Append", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	outcomeJSON, err := json.Marshal(rec.Outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	query := `INSERT INTO decision_records (
		id, session_id, created_at, alert_id, device_name, alert_type, severity,
		action, reason, confidence, outcome, duration_s
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.SessionID, rec.Timestamp, rec.AlertID, rec.DeviceName,
		rec.AlertType, rec.Severity, string(rec.Decision.Action),
		rec.Decision.Reason, string(rec.Decision.Confidence),
		outcomeJSON, rec.Duration.Seconds(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert decision record: %w", err)
	}
	return nil
}

// Finalize inserts the session summary.
func (r *Recorder) Finalize(ctx context.Context, sum *triage.Summary) error {
	ctx, span := tracer.Start(ctx, "pg.Finalize", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	breakdownJSON, err := json.Marshal(sum.ActionCounts)
	if err != nil {
		return fmt.Errorf("marshal actions breakdown: %w", err)
	}
	savingsJSON, err := json.Marshal(sum.TimeSavings)
	if err != nil {
		return fmt.Errorf("marshal time savings: %w", err)
	}

	query := `INSERT INTO session_summaries (
		session_id, started_at, ended_at, alerts_processed,
		actions_breakdown, failures, time_savings
	) VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (session_id) DO UPDATE SET
		ended_at          = EXCLUDED.ended_at,
		alerts_processed  = EXCLUDED.alerts_processed,
		actions_breakdown = EXCLUDED.actions_breakdown,
		failures          = EXCLUDED.failures,
		time_savings      = EXCLUDED.time_savings`

	_, err = r.pool.Exec(ctx, query,
		sum.SessionID, sum.StartedAt, sum.EndedAt, sum.AlertsProcessed,
		breakdownJSON, sum.Failures, savingsJSON,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert session summary: %w", err)
	}
	return nil
}
