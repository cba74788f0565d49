// Package triage implements the per-alert decision engine for sift.
// It defines the domain models (Decision, Outcome, Record, Summary), the
// response Validate boundary for untrusted classifier output, the action
// Dispatcher, and the Engine that sequences one session end to end.
package triage
