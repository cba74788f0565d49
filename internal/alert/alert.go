// Package alert defines the RMM console alert model consumed by the triage
// pipeline, plus a JSON file loader for demo/offline sessions.
package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Known severity labels as the console reports them.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
	SeverityInfo     = "Info"
)

// Alert is one monitored condition reported by the RMM console. It is
// immutable once produced by a source; the engine never mutates it.
type Alert struct {
	ID          string    `json:"id"`
	DeviceName  string    `json:"device_name"`
	AlertType   string    `json:"alert_type"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	ObservedAt  time.Time `json:"observed_at"`
	RawText     string    `json:"raw_text"`
}

// Normalize fills defaults for fields the console sometimes leaves blank.
// Unknown severities collapse to Medium; an empty raw_text falls back to
// type + description so the classifier always sees something.
func (a *Alert) Normalize() {
	switch a.Severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
	default:
		a.Severity = SeverityMedium
	}
	if a.RawText == "" {
		a.RawText = a.AlertType + ": " + a.Description
	}
}

// Valid reports whether the alert carries the identity fields the audit
// trail requires.
func (a *Alert) Valid() bool {
	return a.ID != "" && a.DeviceName != ""
}

// LoadFile reads a JSON array of alerts from path, normalizes each, and
// drops records without identity fields. Used by demo mode.
func LoadFile(path string) ([]Alert, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied config, not user input
	if err != nil {
		return nil, fmt.Errorf("read alerts file: %w", err)
	}

	var raw []Alert
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse alerts file: %w", err)
	}

	alerts := make([]Alert, 0, len(raw))
	for i := range raw {
		raw[i].Normalize()
		if !raw[i].Valid() {
			continue
		}
		alerts = append(alerts, raw[i])
	}
	return alerts, nil
}
