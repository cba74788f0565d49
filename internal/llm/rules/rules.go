// Package rules is a keyword classifier used in demo mode and as an
// offline stand-in for the LLM backend. It emits the same raw JSON
// payload shape the model is prompted for, so the triage validator treats
// both backends identically.
package rules

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/linnemanlabs/sift/internal/triage"
)

// rule maps keyword hits in the alert text to a canned decision.
// First match wins, so more specific buckets come first.
type rule struct {
	keywords   []string
	action     triage.Action
	reason     string
	confidence triage.Confidence
}

var rules = []rule{
	{
		keywords:   []string{"reboot", "restart", "pending reboot", "windows update", "security update"},
		action:     triage.ActionReboot,
		reason:     "System requires restart after update installation",
		confidence: triage.ConfidenceHigh,
	},
	{
		keywords:   []string{"service stopped", "sql server", "database", "critical error", "system down"},
		action:     triage.ActionCreateTicket,
		reason:     "Critical service failure requires immediate attention",
		confidence: triage.ConfidenceHigh,
	},
	{
		keywords:   []string{"disk space", "storage", "drive full", "documents folder"},
		action:     triage.ActionNotifyClient,
		reason:     "Storage consumption requires client cleanup",
		confidence: triage.ConfidenceHigh,
	},
	{
		keywords:   []string{"offline", "printer", "network", "connectivity", "unreachable"},
		action:     triage.ActionCreateTicket,
		reason:     "Connectivity issue requires technician investigation",
		confidence: triage.ConfidenceMedium,
	},
	{
		keywords:   []string{"security", "failed login", "firewall", "blocked"},
		action:     triage.ActionCreateTicket,
		reason:     "Security alert requires investigation",
		confidence: triage.ConfidenceHigh,
	},
	{
		keywords:   []string{"antivirus update", "temporary", "low battery", "retry"},
		action:     triage.ActionIgnore,
		reason:     "Transient condition, will resolve automatically",
		confidence: triage.ConfidenceMedium,
	},
}

// Classifier implements triage.Classifier with the keyword table.
type Classifier struct{}

// New creates a rule classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify matches the prompt text against the keyword table and returns
// a decision payload. Unmatched alerts default to create_ticket at Low
// confidence so nothing unknown is silently dropped.
func (c *Classifier) Classify(_ context.Context, req *triage.ClassifyRequest) ([]byte, error) {
	text := strings.ToLower(req.Prompt)

	decision := triage.Decision{
		Action:     triage.ActionCreateTicket,
		Reason:     "Unknown issue pattern requires technician review",
		Confidence: triage.ConfidenceLow,
	}

	for _, r := range rules {
		if matchAny(text, r.keywords) {
			decision = triage.Decision{Action: r.action, Reason: r.reason, Confidence: r.confidence}
			break
		}
	}

	return json.Marshal(decision)
}

func matchAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
