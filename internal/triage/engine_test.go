package triage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/alert"
)

// mockClassifier returns preconfigured payloads and errors in sequence.
// onCall, when set, runs before each call with the 1-based call number.
type mockClassifier struct {
	mu       sync.Mutex
	payloads []string
	errs     []error
	calls    int
	onCall   func(n int)
}

func (m *mockClassifier) Classify(_ context.Context, _ *ClassifyRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.onCall != nil {
		m.onCall(m.calls)
	}

	idx := m.calls - 1
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx < len(m.payloads) {
		return []byte(m.payloads[idx]), nil
	}
	return []byte(`{"action":"ignore","reason":"default","confidence":"Low"}`), nil
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockRecorder captures appended records and the finalized summary.
type mockRecorder struct {
	mu          sync.Mutex
	records     []Record
	summaries   []Summary
	appendErr   error
	finalizeErr error
}

func (m *mockRecorder) Append(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return m.appendErr
}

func (m *mockRecorder) Finalize(_ context.Context, sum *Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, *sum)
	return m.finalizeErr
}

func testAlerts(n int) []alert.Alert {
	alerts := make([]alert.Alert, n)
	for i := range alerts {
		alerts[i] = alert.Alert{
			ID:          "al-" + string(rune('a'+i)),
			DeviceName:  "DEV-" + string(rune('A'+i)),
			AlertType:   "Pending Reboot",
			Description: "restart required",
			Severity:    alert.SeverityMedium,
		}
	}
	return alerts
}

func fastOpts() Options {
	return Options{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		RetryBudget: time.Second,
		Savings:     SavingsModel{ManualSecondsPerAlert: 180, AutomatedSecondsPerAlert: 5},
	}
}

func newTestEngine(c Classifier, rec Recorder, hooks EngineHooks) *Engine {
	d := NewDispatcher(&mockController{}, &mockNotifier{}, &mockFiler{}, time.Second, true, log.Nop())
	return NewEngine(c, d, rec, fastOpts(), log.Nop(), hooks)
}

func TestRun_OneRecordPerAlertInOrder(t *testing.T) {
	t.Parallel()

	classifier := &mockClassifier{payloads: []string{
		`{"action":"reboot","reason":"r","confidence":"High"}`,
		`{"action":"create_ticket","reason":"r","confidence":"Medium"}`,
		`{"action":"ignore","reason":"r","confidence":"Low"}`,
	}}
	rec := &mockRecorder{}
	engine := newTestEngine(classifier, rec, EngineHooks{})

	alerts := testAlerts(3)
	sum := engine.Run(context.Background(), alerts)

	if len(rec.records) != 3 {
		t.Fatalf("records = %d, want 3", len(rec.records))
	}
	for i := range alerts {
		if rec.records[i].AlertID != alerts[i].ID {
			t.Errorf("record %d alert = %q, want %q", i, rec.records[i].AlertID, alerts[i].ID)
		}
		if rec.records[i].SessionID != sum.SessionID {
			t.Errorf("record %d session = %q, want %q", i, rec.records[i].SessionID, sum.SessionID)
		}
	}
	if len(rec.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(rec.summaries))
	}
	if sum.AlertsProcessed != 3 {
		t.Errorf("AlertsProcessed = %d, want 3", sum.AlertsProcessed)
	}
	if sum.ActionCounts[ActionReboot] != 1 || sum.ActionCounts[ActionCreateTicket] != 1 || sum.ActionCounts[ActionIgnore] != 1 {
		t.Errorf("action counts = %v", sum.ActionCounts)
	}
	if sum.Failures != 0 {
		t.Errorf("Failures = %d, want 0", sum.Failures)
	}
}

func TestRun_RetryThenSuccess(t *testing.T) {
	t.Parallel()

	classifier := &mockClassifier{
		errs:     []error{errors.New("rate limited"), nil},
		payloads: []string{"", `{"action":"reboot","reason":"r","confidence":"High"}`},
	}
	rec := &mockRecorder{}
	engine := newTestEngine(classifier, rec, EngineHooks{})

	engine.Run(context.Background(), testAlerts(1))

	if got := classifier.callCount(); got != 2 {
		t.Errorf("classifier calls = %d, want 2", got)
	}
	if len(rec.records) != 1 {
		t.Fatalf("records = %d, want 1", len(rec.records))
	}
	if rec.records[0].Decision.Action != ActionReboot {
		t.Errorf("action = %q, want %q", rec.records[0].Decision.Action, ActionReboot)
	}
}

func TestRun_ExhaustionDegradesToIgnore(t *testing.T) {
	t.Parallel()

	failing := errors.New("upstream down")
	classifier := &mockClassifier{errs: []error{failing, failing, failing, failing}}
	rec := &mockRecorder{}

	var exhausted int
	engine := newTestEngine(classifier, rec, EngineHooks{
		OnExhausted: func() { exhausted++ },
	})

	sum := engine.Run(context.Background(), testAlerts(1))

	if got := classifier.callCount(); got != 3 {
		t.Errorf("classifier calls = %d, want bounded at 3", got)
	}
	if exhausted != 1 {
		t.Errorf("OnExhausted fired %d times, want 1", exhausted)
	}
	if len(rec.records) != 1 {
		t.Fatalf("records = %d, want 1", len(rec.records))
	}
	d := rec.records[0].Decision
	if d.Action != ActionIgnore {
		t.Errorf("action = %q, want %q", d.Action, ActionIgnore)
	}
	if !strings.Contains(d.Reason, ReasonUnavailable) {
		t.Errorf("reason = %q, want it to name %q", d.Reason, ReasonUnavailable)
	}
	if sum.AlertsProcessed != 1 {
		t.Errorf("AlertsProcessed = %d, want 1", sum.AlertsProcessed)
	}
}

func TestRun_AllAlertsFailStillOneRecordEach(t *testing.T) {
	t.Parallel()

	// Every attempt for every alert fails.
	classifier := &mockClassifier{}
	classifier.errs = make([]error, 100)
	for i := range classifier.errs {
		classifier.errs[i] = errors.New("down")
	}
	rec := &mockRecorder{}
	engine := newTestEngine(classifier, rec, EngineHooks{})

	sum := engine.Run(context.Background(), testAlerts(4))

	if len(rec.records) != 4 {
		t.Fatalf("records = %d, want 4", len(rec.records))
	}
	if len(rec.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(rec.summaries))
	}
	if sum.ActionCounts[ActionIgnore] != 4 {
		t.Errorf("ignore count = %d, want 4", sum.ActionCounts[ActionIgnore])
	}
}

func TestRun_CancellationFinishesInFlightAlert(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel while the 4th alert is being classified: it must still reach
	// its record, and alerts 5..10 must not start.
	classifier := &mockClassifier{onCall: func(n int) {
		if n == 4 {
			cancel()
		}
	}}
	rec := &mockRecorder{}
	engine := newTestEngine(classifier, rec, EngineHooks{})

	sum := engine.Run(ctx, testAlerts(10))

	if len(rec.records) != 4 {
		t.Fatalf("records = %d, want 4", len(rec.records))
	}
	if len(rec.summaries) != 1 {
		t.Fatalf("summaries = %d, want exactly 1", len(rec.summaries))
	}
	if sum.AlertsProcessed != 4 {
		t.Errorf("AlertsProcessed = %d, want 4", sum.AlertsProcessed)
	}
	if got := classifier.callCount(); got != 4 {
		t.Errorf("classifier calls = %d, want 4", got)
	}
}

func TestRun_CancellationStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First attempt fails and cancels; no further attempts may start, and
	// the in-flight alert still gets a fallback record.
	classifier := &mockClassifier{
		errs:   []error{errors.New("down")},
		onCall: func(int) { cancel() },
	}
	rec := &mockRecorder{}
	engine := newTestEngine(classifier, rec, EngineHooks{})

	engine.Run(ctx, testAlerts(3))

	if got := classifier.callCount(); got != 1 {
		t.Errorf("classifier calls = %d, want 1", got)
	}
	if len(rec.records) != 1 {
		t.Fatalf("records = %d, want 1", len(rec.records))
	}
	if rec.records[0].Decision.Action != ActionIgnore {
		t.Errorf("action = %q, want %q", rec.records[0].Decision.Action, ActionIgnore)
	}
}

func TestRun_RecorderFailureIsSoft(t *testing.T) {
	t.Parallel()

	classifier := &mockClassifier{}
	rec := &mockRecorder{appendErr: errors.New("disk full"), finalizeErr: errors.New("disk full")}

	var recordErrs int
	engine := newTestEngine(classifier, rec, EngineHooks{
		OnRecordErr: func() { recordErrs++ },
	})

	sum := engine.Run(context.Background(), testAlerts(2))

	if sum.AlertsProcessed != 2 {
		t.Errorf("AlertsProcessed = %d, want 2", sum.AlertsProcessed)
	}
	// 2 append failures + 1 finalize failure.
	if recordErrs != 3 {
		t.Errorf("OnRecordErr fired %d times, want 3", recordErrs)
	}
}

// panickingClassifier blows up on the second alert only.
type panickingClassifier struct {
	calls int
}

func (p *panickingClassifier) Classify(_ context.Context, _ *ClassifyRequest) ([]byte, error) {
	p.calls++
	if p.calls == 2 {
		panic("classifier bug")
	}
	return []byte(`{"action":"ignore","reason":"ok","confidence":"Low"}`), nil
}

func TestRun_ClassifierPanicBecomesFailureRecord(t *testing.T) {
	t.Parallel()

	rec := &mockRecorder{}
	engine := newTestEngine(&panickingClassifier{}, rec, EngineHooks{})

	sum := engine.Run(context.Background(), testAlerts(3))

	if len(rec.records) != 3 {
		t.Fatalf("records = %d, want 3", len(rec.records))
	}
	bad := rec.records[1]
	if bad.Outcome.Label != "processing_failed" || bad.Outcome.Status != OutcomeFailure {
		t.Errorf("outcome = %q/%q, want processing_failed/failure", bad.Outcome.Label, bad.Outcome.Status)
	}
	if sum.Failures != 1 {
		t.Errorf("Failures = %d, want 1", sum.Failures)
	}
}

func TestRun_Hooks(t *testing.T) {
	t.Parallel()

	var classifyCalls, dispatchCalls, completeCalls int
	classifier := &mockClassifier{payloads: []string{
		`{"action":"reboot","reason":"r","confidence":"High"}`,
	}}
	engine := newTestEngine(classifier, &mockRecorder{}, EngineHooks{
		OnClassify: func(outcome string, _ float64) {
			classifyCalls++
			if outcome != "ok" {
				t.Errorf("classify outcome = %q, want ok", outcome)
			}
		},
		OnDispatch: func(action, status string, _ float64) {
			dispatchCalls++
			if action != string(ActionReboot) || status != string(OutcomeSuccess) {
				t.Errorf("dispatch hook = %q/%q", action, status)
			}
		},
		OnComplete: func(sum *Summary, elapsed float64) {
			completeCalls++
			if sum.AlertsProcessed != 1 {
				t.Errorf("complete hook processed = %d, want 1", sum.AlertsProcessed)
			}
			if elapsed < 0 {
				t.Error("negative elapsed in complete hook")
			}
		},
	})

	engine.Run(context.Background(), testAlerts(1))

	if classifyCalls != 1 || dispatchCalls != 1 || completeCalls != 1 {
		t.Errorf("hook calls = %d/%d/%d, want 1/1/1", classifyCalls, dispatchCalls, completeCalls)
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	t.Parallel()

	rec := &mockRecorder{}
	engine := newTestEngine(&mockClassifier{}, rec, EngineHooks{})

	sum := engine.Run(context.Background(), nil)

	if sum.AlertsProcessed != 0 {
		t.Errorf("AlertsProcessed = %d, want 0", sum.AlertsProcessed)
	}
	if len(rec.records) != 0 {
		t.Errorf("records = %d, want 0", len(rec.records))
	}
	if len(rec.summaries) != 1 {
		t.Errorf("summaries = %d, want 1", len(rec.summaries))
	}
}

// Not parallel: swaps the global tracer provider.
func TestRun_EmitsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	classifier := &mockClassifier{payloads: []string{
		`{"action":"reboot","reason":"r","confidence":"High"}`,
	}}
	engine := newTestEngine(classifier, &mockRecorder{}, EngineHooks{})
	engine.Run(context.Background(), testAlerts(1))

	var sawAlert, sawAction bool
	for _, span := range sr.Ended() {
		switch span.Name() {
		case "triage.alert":
			sawAlert = true
		case "action.execute":
			sawAction = true
		}
	}
	if !sawAlert {
		t.Error("no triage.alert span recorded")
	}
	if !sawAction {
		t.Error("no action.execute span recorded")
	}
}
