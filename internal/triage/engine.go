package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage")

// Defaults for the engine's retry and savings knobs.
const (
	DefaultMaxAttempts     = 3
	DefaultBackoffBase     = 500 * time.Millisecond
	DefaultBackoffMax      = 8 * time.Second
	DefaultRetryBudget     = 30 * time.Second
	DefaultClassifyTimeout = 60 * time.Second

	DefaultManualSeconds    = 180
	DefaultAutomatedSeconds = 5
)

// Options bound the engine's classifier retries and parameterize the
// session time-savings estimate.
type Options struct {
	MaxAttempts     int           // classifier attempts per alert
	BackoffBase     time.Duration // first retry delay
	BackoffMax      time.Duration // cap on a single retry delay
	RetryBudget     time.Duration // total wait across retries per alert
	ClassifyTimeout time.Duration // per-call classifier timeout
	Savings         SavingsModel
}

// withDefaults fills zero fields so a partially built Options is usable.
func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = DefaultBackoffMax
	}
	if o.RetryBudget <= 0 {
		o.RetryBudget = DefaultRetryBudget
	}
	if o.ClassifyTimeout <= 0 {
		o.ClassifyTimeout = DefaultClassifyTimeout
	}
	if o.Savings.ManualSecondsPerAlert <= 0 {
		o.Savings.ManualSecondsPerAlert = DefaultManualSeconds
	}
	if o.Savings.AutomatedSecondsPerAlert <= 0 {
		o.Savings.AutomatedSecondsPerAlert = DefaultAutomatedSeconds
	}
	return o
}

// EngineHooks receives engine events, typically wired to Prometheus.
// Nil members are skipped.
type EngineHooks struct {
	OnClassify  func(outcome string, duration float64)
	OnExhausted func()
	OnDispatch  func(action, status string, duration float64)
	OnRecordErr func()
	OnComplete  func(sum *Summary, elapsed float64)
}

// Engine sequences one triage session: classify with bounded retries,
// validate, dispatch, record. Alerts are handled one at a time, in
// source order.
// Every alert that enters the pipeline yields exactly one Record.
type Engine struct {
	classifier Classifier
	dispatcher *Dispatcher
	recorder   Recorder
	opts       Options
	hooks      EngineHooks
	logger     log.Logger
}

// NewEngine creates a triage engine over the given collaborators.
func NewEngine(classifier Classifier, dispatcher *Dispatcher, recorder Recorder, opts Options, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		classifier: classifier,
		dispatcher: dispatcher,
		recorder:   recorder,
		opts:       opts.withDefaults(),
		hooks:      hooks,
		logger:     logger,
	}
}

// Run processes the alert batch and returns the session summary. It is the
// sole entry point and is deterministic given deterministic collaborators.
//
// Cancelling ctx requests early termination: the alert currently in flight
// still reaches its record, the summary covers everything processed so
// far, and the summary is always finalized exactly once.
func (e *Engine) Run(ctx context.Context, alerts []alert.Alert) *Summary {
	sessionID := ulid.Make().String()
	start := time.Now()

	L := e.logger.With("session_id", sessionID)
	L.Info(ctx, "session started", "alerts", len(alerts))

	records := make([]Record, 0, len(alerts))
	for i := range alerts {
		// Cooperative cancellation checkpoint between alerts.
		if ctx.Err() != nil {
			L.Warn(ctx, "early termination requested",
				"processed", len(records), "remaining", len(alerts)-i)
			break
		}

		rec := e.processAlert(ctx, L, sessionID, &alerts[i])
		records = append(records, rec)

		// The append must survive cancellation so no record is dropped.
		if err := e.recorder.Append(context.WithoutCancel(ctx), &rec); err != nil {
			L.Error(ctx, err, "audit append failed", "alert_id", rec.AlertID)
			if e.hooks.OnRecordErr != nil {
				e.hooks.OnRecordErr()
			}
		}
	}

	end := time.Now()
	sum := Summarize(sessionID, start, end, records, e.opts.Savings)

	if err := e.recorder.Finalize(context.WithoutCancel(ctx), sum); err != nil {
		L.Error(ctx, err, "summary finalize failed")
		if e.hooks.OnRecordErr != nil {
			e.hooks.OnRecordErr()
		}
	}

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(sum, end.Sub(start).Seconds())
	}

	L.Info(ctx, "session complete",
		"processed", sum.AlertsProcessed,
		"failures", sum.Failures,
		"duration", end.Sub(start).Seconds(),
		"saved_minutes", sum.TimeSavings.TotalSavedMinutes,
	)
	return sum
}

// processAlert walks one alert through classification, validation and
// dispatch, and always returns a record. A collaborator panic is caught at
// this boundary and folded into a failure record; a single alert's total
// failure never stops the batch.
func (e *Engine) processAlert(runCtx context.Context, L log.Logger, sessionID string, al *alert.Alert) (rec Record) {
	// In-flight work continues past cancellation; only the checkpoints in
	// classify observe runCtx.
	ctx, span := tracer.Start(context.WithoutCancel(runCtx), "triage.alert")
	span.SetAttributes(
		attribute.String("sift.alert.id", al.ID),
		attribute.String("sift.alert.device", al.DeviceName),
		attribute.String("sift.alert.type", al.AlertType),
	)
	defer span.End()

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			L.Error(ctx, fmt.Errorf("panic: %v", r), "alert processing panicked", "alert_id", al.ID)
			rec = e.buildRecord(sessionID, al, Fallback(fmt.Sprintf("processing panic: %v", r)), Outcome{
				Label:  "processing_failed",
				Status: OutcomeFailure,
				Detail: fmt.Sprintf("%v", r),
			}, start)
		}
		span.SetAttributes(
			attribute.String("sift.decision.action", string(rec.Decision.Action)),
			attribute.String("sift.outcome", rec.Outcome.Label),
		)
	}()

	raw := e.classify(ctx, runCtx, L, al)
	dec := Validate(raw)
	out := e.dispatcher.Dispatch(ctx, al, dec)

	if e.hooks.OnDispatch != nil {
		e.hooks.OnDispatch(string(dec.Action), string(out.Status), out.Duration.Seconds())
	}

	L.Info(ctx, "alert recorded",
		"alert_id", al.ID,
		"device", al.DeviceName,
		"action", dec.Action,
		"confidence", dec.Confidence,
		"outcome", out.Label,
		"status", out.Status,
	)

	return e.buildRecord(sessionID, al, dec, out, start)
}

func (e *Engine) buildRecord(sessionID string, al *alert.Alert, dec Decision, out Outcome, start time.Time) Record {
	return Record{
		ID:         ulid.Make().String(),
		SessionID:  sessionID,
		Timestamp:  time.Now(),
		AlertID:    al.ID,
		DeviceName: al.DeviceName,
		AlertType:  al.AlertType,
		Severity:   al.Severity,
		Decision:   dec,
		Outcome:    out,
		Duration:   time.Since(start),
	}
}

// classify invokes the classifier with bounded retries and exponential
// backoff. When every attempt fails, or termination is requested mid
// retry, it synthesizes a fallback payload so the validator degrades the
// alert to ignore instead of the session aborting.
func (e *Engine) classify(ctx, runCtx context.Context, L log.Logger, al *alert.Alert) []byte {
	req := &ClassifyRequest{
		System: buildSystemPrompt(),
		Prompt: buildClassifyPrompt(al),
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.BackoffBase
	bo.MaxInterval = e.opts.BackoffMax

	operation := func() ([]byte, error) {
		// Checkpoint before each attempt: stop retrying once termination
		// is requested, the fallback path still records the alert.
		if err := runCtx.Err(); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("termination requested: %w", err))
		}

		cctx, cancel := context.WithTimeout(ctx, e.opts.ClassifyTimeout)
		defer cancel()

		t0 := time.Now()
		raw, err := e.classifier.Classify(cctx, req)
		if e.hooks.OnClassify != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			e.hooks.OnClassify(outcome, time.Since(t0).Seconds())
		}
		if err != nil {
			L.Warn(cctx, "classifier call failed", "alert_id", al.ID, "error", err)
			return nil, err
		}
		return raw, nil
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(e.opts.MaxAttempts)), //nolint:gosec // G115: MaxAttempts is validated > 0
		backoff.WithMaxElapsedTime(e.opts.RetryBudget),
	)
	if err != nil {
		L.Warn(ctx, "classification exhausted, degrading to ignore", "alert_id", al.ID, "error", err)
		if e.hooks.OnExhausted != nil {
			e.hooks.OnExhausted()
		}
		return unavailablePayload(err)
	}
	return raw
}

// unavailablePayload is the raw payload synthesized when classification is
// exhausted. It is valid decision JSON so Validate passes it through and
// the audit trail keeps the distinct "classifier unavailable" reason.
func unavailablePayload(err error) []byte {
	reason := ReasonUnavailable
	if err != nil {
		reason = fmt.Sprintf("%s: %v", ReasonUnavailable, err)
	}
	raw, merr := json.Marshal(Fallback(reason))
	if merr != nil {
		return []byte(`{"action":"ignore","reason":"` + ReasonUnavailable + `","confidence":"Low"}`)
	}
	return raw
}
