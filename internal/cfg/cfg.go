// Package cfg holds the application configuration, registered as flags
// and filled from SIFT_-prefixed environment variables.
package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds sift-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	AlertLimit            int
	MaxAttempts           int
	RetryBudgetSeconds    int
	ClassifyTimeoutSecs   int
	ManualSecondsPerAlert int
	AdminPort             int
	ConsoleBaseURL        string
	ConsoleToken          string
	ClaudeAPIKey          string
	ClaudeModel           string
	DatabaseURL           string
	TicketWebhookURL      string
	SlackWebhookURL       string
	AuditLogPath          string
	AlertsFile            string
	Demo                  bool
	LiveReboots           bool
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.AlertLimit, "alert-limit", 10, "maximum alerts fetched per session (1..500)")
	fs.IntVar(&c.MaxAttempts, "max-attempts", 3, "classifier attempts per alert before degrading to ignore (1..10)")
	fs.IntVar(&c.RetryBudgetSeconds, "retry-budget-seconds", 30, "total seconds spent waiting across classifier retries per alert (1..300)")
	fs.IntVar(&c.ClassifyTimeoutSecs, "classify-timeout-seconds", 60, "per-call classifier timeout in seconds (1..300)")
	fs.IntVar(&c.ManualSecondsPerAlert, "manual-seconds-per-alert", 180, "assumed technician seconds per alert for the time-savings estimate")
	fs.IntVar(&c.AdminPort, "admin-port", 8080, "admin listen TCP port for health and metrics (0 = disabled, 1..65535)")
	fs.StringVar(&c.ConsoleBaseURL, "console-base-url", "", "RMM console API base URL")
	fs.StringVar(&c.ConsoleToken, "console-token", "", "RMM console API bearer token")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = no database audit sink)")
	fs.StringVar(&c.TicketWebhookURL, "ticket-webhook-url", "", "PSA ticketing webhook URL (empty = tickets logged only)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for client notifications (empty = simulated)")
	fs.StringVar(&c.AuditLogPath, "audit-log", "agent_log.jsonl", "path to the append-only JSONL audit log")
	fs.StringVar(&c.AlertsFile, "alerts-file", "", "JSON file of alerts to triage instead of the console API (demo mode)")
	fs.BoolVar(&c.Demo, "demo", false, "demo mode: keyword rule classifier, no console or Claude credentials needed")
	fs.BoolVar(&c.LiveReboots, "live-reboots", false, "trigger real device reboots through the console API instead of simulating them")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.AlertLimit <= 0 || c.AlertLimit > 500 {
		errs = append(errs, fmt.Errorf("invalid ALERT_LIMIT %d (must be 1..500)", c.AlertLimit))
	}
	if c.MaxAttempts <= 0 || c.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("invalid MAX_ATTEMPTS %d (must be 1..10)", c.MaxAttempts))
	}
	if c.RetryBudgetSeconds <= 0 || c.RetryBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid RETRY_BUDGET_SECONDS %d (must be 1..300)", c.RetryBudgetSeconds))
	}
	if c.ClassifyTimeoutSecs <= 0 || c.ClassifyTimeoutSecs > 300 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFY_TIMEOUT_SECONDS %d (must be 1..300)", c.ClassifyTimeoutSecs))
	}
	if c.ManualSecondsPerAlert <= 0 {
		errs = append(errs, fmt.Errorf("invalid MANUAL_SECONDS_PER_ALERT %d (must be positive)", c.ManualSecondsPerAlert))
	}

	// Admin port 0 disables the listener.
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 0..65535)", c.AdminPort))
	}

	// Demo mode runs the rule classifier over a local alerts file, so no
	// console or Claude credentials are needed.
	if !c.Demo {
		if c.AlertsFile == "" {
			if c.ConsoleBaseURL == "" {
				errs = append(errs, errors.New("CONSOLE_BASE_URL is required"))
			}
			if c.ConsoleToken == "" {
				errs = append(errs, errors.New("CONSOLE_TOKEN is required"))
			}
		}
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required"))
		}
	}

	if c.AuditLogPath == "" {
		errs = append(errs, errors.New("AUDIT_LOG is required"))
	}

	// Live reboots need a console to talk to.
	if c.LiveReboots && (c.ConsoleBaseURL == "" || c.ConsoleToken == "") {
		errs = append(errs, errors.New("LIVE_REBOOTS requires CONSOLE_BASE_URL and CONSOLE_TOKEN"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
