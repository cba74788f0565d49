// Package jsonl provides a triage.Recorder that appends decision records
// and the session summary to a JSON Lines file.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/linnemanlabs/sift/internal/triage"
)

// entry is one line in the audit log. Kind distinguishes per-alert
// decisions from the end-of-session summary.
type entry struct {
	Kind    string          `json:"kind"`
	Record  *triage.Record  `json:"record,omitempty"`
	Summary *triage.Summary `json:"summary,omitempty"`
}

// Recorder appends audit entries to a file, one JSON object per line.
// Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open opens (or creates) the audit log at path in append mode.
func Open(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Recorder{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one decision record line.
func (r *Recorder) Append(_ context.Context, rec *triage.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(entry{Kind: "decision", Record: rec}); err != nil {
		return fmt.Errorf("write decision record: %w", err)
	}
	return nil
}

// Finalize writes the session summary line and syncs the file.
func (r *Recorder) Finalize(_ context.Context, sum *triage.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(entry{Kind: "summary", Summary: sum}); err != nil {
		return fmt.Errorf("write session summary: %w", err)
	}
	if err := r.f.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
