package triage

import "context"

// ClassifyRequest carries the instruction and alert text for one
// classification call.
type ClassifyRequest struct {
	System string
	Prompt string
}

// Classifier is the interface for any classification backend. It returns
// the raw response payload; parsing and validation happen in Validate,
// never here. Transport and timeout failures surface as errors and are
// retried by the engine.
type Classifier interface {
	Classify(ctx context.Context, req *ClassifyRequest) ([]byte, error)
}

// Recorder is the audit sink for decision records and the session summary.
// Both operations are fail-soft from the engine's point of view: an error
// is reported and processing continues.
type Recorder interface {
	Append(ctx context.Context, rec *Record) error
	Finalize(ctx context.Context, sum *Summary) error
}
