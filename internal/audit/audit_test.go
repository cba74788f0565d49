package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/linnemanlabs/sift/internal/audit/mem"
	"github.com/linnemanlabs/sift/internal/triage"
)

// failingRecorder errors on every call.
type failingRecorder struct {
	appendCalls   int
	finalizeCalls int
}

func (f *failingRecorder) Append(_ context.Context, _ *triage.Record) error {
	f.appendCalls++
	return errors.New("sink down")
}

func (f *failingRecorder) Finalize(_ context.Context, _ *triage.Summary) error {
	f.finalizeCalls++
	return errors.New("sink down")
}

func TestTee_SingleSinkUnwrapped(t *testing.T) {
	t.Parallel()

	m := mem.New()
	if Tee(m) != triage.Recorder(m) {
		t.Error("single sink should be returned as-is")
	}
}

func TestTee_FanOut(t *testing.T) {
	t.Parallel()

	a, b := mem.New(), mem.New()
	r := Tee(a, b)
	ctx := context.Background()

	if err := r.Append(ctx, &triage.Record{ID: "rec-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := r.Finalize(ctx, &triage.Summary{SessionID: "sess-1"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	for name, sink := range map[string]*mem.Recorder{"a": a, "b": b} {
		if len(sink.Records()) != 1 {
			t.Errorf("sink %s records = %d, want 1", name, len(sink.Records()))
		}
		if sink.Summary() == nil {
			t.Errorf("sink %s missing summary", name)
		}
	}
}

func TestTee_FailingSinkDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	bad := &failingRecorder{}
	good := mem.New()
	r := Tee(bad, good)
	ctx := context.Background()

	if err := r.Append(ctx, &triage.Record{ID: "rec-1"}); err == nil {
		t.Error("expected joined error from failing sink")
	}
	if err := r.Finalize(ctx, &triage.Summary{}); err == nil {
		t.Error("expected joined error from failing sink")
	}

	if len(good.Records()) != 1 {
		t.Errorf("good sink records = %d, want 1", len(good.Records()))
	}
	if good.Summary() == nil {
		t.Error("good sink missing summary")
	}
	if bad.appendCalls != 1 || bad.finalizeCalls != 1 {
		t.Errorf("failing sink calls = %d/%d, want 1/1", bad.appendCalls, bad.finalizeCalls)
	}
}
