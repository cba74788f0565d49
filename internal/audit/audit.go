// Package audit composes triage.Recorder implementations. The concrete
// sinks live in the subpackages jsonl, pg and mem.
package audit

import (
	"context"
	"errors"

	"github.com/linnemanlabs/sift/internal/triage"
)

// tee fans records out to every sink. Each sink is attempted even when an
// earlier one fails; the errors are joined.
type tee struct {
	sinks []triage.Recorder
}

// Tee returns a Recorder writing to every given sink. With one sink it is
// returned unwrapped.
func Tee(sinks ...triage.Recorder) triage.Recorder {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &tee{sinks: sinks}
}

func (t *tee) Append(ctx context.Context, rec *triage.Record) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *tee) Finalize(ctx context.Context, sum *triage.Summary) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Finalize(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
