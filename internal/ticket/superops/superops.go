// Package superops files tickets for the create_ticket action via the
// SuperOps incoming webhook.
package superops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/alert"
	"github.com/linnemanlabs/sift/internal/triage"
)

const httpTimeout = 30 * time.Second

// Filer submits ticket payloads to a SuperOps webhook endpoint.
type Filer struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a ticket filer for the given webhook URL. If webhookURL is
// empty, File logs the ticket instead of submitting it (demo mode).
func New(webhookURL string, logger log.Logger) *Filer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Filer{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// payload is the ticket shape the webhook expects.
type payload struct {
	Title                string `json:"title"`
	Description          string `json:"description"`
	Priority             string `json:"priority"`
	Device               string `json:"device"`
	AlertID              string `json:"alert_id"`
	ClassificationReason string `json:"classification_reason"`
	Confidence           string `json:"confidence"`
	Timestamp            string `json:"timestamp"`
	Source               string `json:"source"`
}

// File submits one ticket. Any non-2xx response is an error carrying the
// HTTP status so the dispatcher can record it in the outcome detail.
func (f *Filer) File(ctx context.Context, al *alert.Alert, d triage.Decision) error {
	if f.webhookURL == "" {
		f.logger.Info(ctx, "simulated ticket",
			"title", al.AlertType+" - "+al.DeviceName,
			"priority", Priority(al.Severity),
		)
		return nil
	}

	p := payload{
		Title:                al.AlertType + " - " + al.DeviceName,
		Description:          al.Description,
		Priority:             Priority(al.Severity),
		Device:               al.DeviceName,
		AlertID:              al.ID,
		ClassificationReason: d.Reason,
		Confidence:           string(d.Confidence),
		Timestamp:            al.ObservedAt.Format(time.RFC3339),
		Source:               "sift",
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("superops: marshal ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("superops: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("superops: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("superops: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Priority maps alert severity to ticket priority.
func Priority(severity string) string {
	switch severity {
	case alert.SeverityCritical, alert.SeverityHigh:
		return "High"
	case alert.SeverityMedium:
		return "Medium"
	case alert.SeverityLow, alert.SeverityInfo:
		return "Low"
	default:
		return "Medium"
	}
}
