// Package slack delivers client notifications for the notify_client
// action via a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/alert"
	"github.com/linnemanlabs/sift/internal/triage"
)

const (
	maxReasonLen = 3000
	httpTimeout  = 10 * time.Second
)

// Notifier sends client notifications to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a Slack notifier. If webhookURL is empty, Notify is a no-op
// (simulated delivery, used in demo mode).
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts the notification for one alert. Content is always
// derivable from alert+decision, so only transport failures error.
func (n *Notifier) Notify(ctx context.Context, al *alert.Alert, d triage.Decision) error {
	if n.webhookURL == "" {
		n.logger.Info(ctx, "simulated client notification",
			"device", al.DeviceName, "issue", al.AlertType)
		return nil
	}

	msg := buildMessage(al, d)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(al *alert.Alert, d triage.Decision) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(al),
			{"type": "divider"},
			fieldsBlock(al, d),
			{"type": "divider"},
			reasonBlock(d),
		},
	}
}

func headerBlock(al *alert.Alert) map[string]any {
	text := fmt.Sprintf("%s Action needed: %s", severityEmoji(al.Severity), al.AlertType)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(al *alert.Alert, d triage.Decision) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Device:* %s", al.DeviceName),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", al.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Issue:* %s", al.AlertType),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %s", d.Confidence),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func reasonBlock(d triage.Decision) map[string]any {
	text := truncate(d.Reason, maxReasonLen)
	if text == "" {
		text = "_No action details available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Action required*\n\n%s", text),
		},
	}
}

func severityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return "\U0001f534" // red circle
	case "medium":
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
