package triage

import "time"

// Action is the closed set of dispositions the classifier may choose.
type Action string

const (
	ActionReboot       Action = "reboot"
	ActionNotifyClient Action = "notify_client"
	ActionCreateTicket Action = "create_ticket"
	ActionIgnore       Action = "ignore"
)

// Actions lists every valid action, in dispatch-table order.
var Actions = []Action{ActionReboot, ActionNotifyClient, ActionCreateTicket, ActionIgnore}

// Valid reports whether a is one of the four permitted actions.
func (a Action) Valid() bool {
	switch a {
	case ActionReboot, ActionNotifyClient, ActionCreateTicket, ActionIgnore:
		return true
	}
	return false
}

// Confidence is the classifier's self-reported certainty.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Decision is the validated output of classification for one alert.
// It is produced only by Validate and is immutable afterwards.
type Decision struct {
	Action     Action     `json:"action"`
	Reason     string     `json:"reason"`
	Confidence Confidence `json:"confidence"`
}

// OutcomeStatus records whether an action's side effect succeeded.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome labels for the dispatch table.
const (
	LabelRebootSimulated  = "reboot_simulated"
	LabelRebootTriggered  = "reboot_triggered"
	LabelNotificationSent = "notification_sent"
	LabelTicketCreated    = "ticket_created"
	LabelIgnored          = "ignored"
)

// Outcome is the result of executing a Decision. Actions are attempted at
// most once; an Outcome is never retried.
type Outcome struct {
	Label    string        `json:"label"`
	Status   OutcomeStatus `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
}

// Record is the audit unit persisted per alert. Exactly one Record exists
// per processed alert, regardless of which stage failed.
type Record struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Timestamp  time.Time     `json:"timestamp"`
	AlertID    string        `json:"alert_id"`
	DeviceName string        `json:"device_name"`
	AlertType  string        `json:"alert_type"`
	Severity   string        `json:"severity"`
	Decision   Decision      `json:"decision"`
	Outcome    Outcome       `json:"outcome"`
	Duration   time.Duration `json:"duration_ns"`
}

// TimeSavings is the derived time-saved block of a session summary.
type TimeSavings struct {
	PerAlertSeconds        float64 `json:"per_alert_seconds"`
	TotalSavedSeconds      float64 `json:"total_saved_seconds"`
	TotalSavedMinutes      float64 `json:"total_saved_minutes"`
	DailyProjectionMinutes float64 `json:"daily_projection_minutes"`
}

// Summary is the aggregate result of one triage session. It is finalized
// and persisted exactly once, after the last alert or on early termination.
type Summary struct {
	SessionID       string         `json:"session_id"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	AlertsProcessed int            `json:"total_alerts_processed"`
	ActionCounts    map[Action]int `json:"actions_breakdown"`
	Failures        int            `json:"errors_encountered"`
	TimeSavings     TimeSavings    `json:"time_savings"`
}
