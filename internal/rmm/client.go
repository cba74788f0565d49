// Package rmm is the client for the RMM console API: it lists open alerts
// for a session (the alert source) and triggers device restarts for the
// reboot action. Login/session mechanics live behind the console's token
// endpoint and are not modeled here.
package rmm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/sift/internal/alert"
)

const httpTimeout = 30 * time.Second

// Client talks to the RMM console API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a console client. token is a bearer API token; it is held
// for the client's lifetime and never logged.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// consoleAlert is the wire shape the console returns for one alert.
type consoleAlert struct {
	UID        string    `json:"uid"`
	DeviceName string    `json:"deviceName"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListAlerts fetches up to limit open alerts, oldest first. Records
// without identity fields are dropped; severity is normalized.
func (c *Client) ListAlerts(ctx context.Context, limit int) ([]alert.Alert, error) {
	u := fmt.Sprintf("%s/v2/alerts?pageSize=%s", c.baseURL, strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("rmm: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rmm: list alerts: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rmm: list alerts returned %d: %s", resp.StatusCode, string(body))
	}

	var raw []consoleAlert
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("rmm: decode alerts: %w", err)
	}

	alerts := make([]alert.Alert, 0, len(raw))
	for _, ca := range raw {
		if len(alerts) >= limit {
			break
		}
		al := alert.Alert{
			ID:          ca.UID,
			DeviceName:  ca.DeviceName,
			AlertType:   ca.Category,
			Description: ca.Message,
			Severity:    ca.Severity,
			ObservedAt:  ca.CreatedAt,
			RawText:     ca.Category + ": " + ca.Message,
		}
		al.Normalize()
		if !al.Valid() {
			continue
		}
		alerts = append(alerts, al)
	}
	return alerts, nil
}

// Reboot asks the console to restart the named device.
func (c *Client) Reboot(ctx context.Context, deviceName string) error {
	u := fmt.Sprintf("%s/v2/device/%s/reboot/NORMAL", c.baseURL, url.PathEscape(deviceName))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("rmm: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rmm: reboot %s: %w", deviceName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rmm: reboot %s returned %d: %s", deviceName, resp.StatusCode, string(body))
	}
	return nil
}
