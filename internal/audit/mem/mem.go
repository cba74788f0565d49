// Package mem provides an in-memory triage.Recorder, used in tests and
// as a fallback when no audit sink is configured.
package mem

import (
	"context"
	"sync"

	"github.com/linnemanlabs/sift/internal/triage"
)

// Recorder keeps decision records and the session summary in memory.
// Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []triage.Record
	summary *triage.Summary
}

// New creates an empty in-memory recorder.
func New() *Recorder {
	return &Recorder{}
}

// Append stores a copy of the record.
func (r *Recorder) Append(_ context.Context, rec *triage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

// Finalize stores a copy of the session summary.
func (r *Recorder) Finalize(_ context.Context, sum *triage.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sum
	r.summary = &cp
	return nil
}

// Records returns a copy of all appended records in append order.
func (r *Recorder) Records() []triage.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]triage.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Summary returns the finalized summary, or nil if Finalize has not run.
func (r *Recorder) Summary() *triage.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		return nil
	}
	cp := *r.summary
	return &cp
}
