package triage

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/sift/internal/alert"
)

// buildSystemPrompt states the classification contract. The closed action
// set here must match the Action constants; Validate rejects anything else.
func buildSystemPrompt() string {
	return `You are an expert MSP technician triaging RMM console alerts.
Classify each alert and choose exactly one action.

Classification rules:
1. reboot: pending reboots, updates requiring restart, system restart alerts
2. notify_client: issues requiring client action (user behavior, cleanup, hardware replacement)
3. create_ticket: technical issues requiring technician investigation
4. ignore: false positives, informational alerts, or already-resolved issues

Respond with ONLY valid JSON in this exact format:
{"action": "reboot|notify_client|create_ticket|ignore", "reason": "brief explanation", "confidence": "High|Medium|Low"}`
}

// buildClassifyPrompt renders one alert for the classifier.
func buildClassifyPrompt(al *alert.Alert) string {
	observed := ""
	if !al.ObservedAt.IsZero() {
		observed = al.ObservedAt.Format(time.RFC3339)
	}

	return fmt.Sprintf(`Alert details:
Device: %s
Type: %s
Description: %s
Severity: %s
Observed: %s

Raw text:
%s`,
		al.DeviceName,
		al.AlertType,
		al.Description,
		al.Severity,
		observed,
		al.RawText,
	)
}
