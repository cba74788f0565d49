package triage

import (
	"testing"
	"time"
)

func summaryRecords() []Record {
	return []Record{
		{Decision: Decision{Action: ActionReboot}, Outcome: Outcome{Status: OutcomeSuccess}},
		{Decision: Decision{Action: ActionReboot}, Outcome: Outcome{Status: OutcomeSuccess}},
		{Decision: Decision{Action: ActionCreateTicket}, Outcome: Outcome{Status: OutcomeFailure}},
		{Decision: Decision{Action: ActionNotifyClient}, Outcome: Outcome{Status: OutcomeSuccess}},
		{Decision: Decision{Action: ActionIgnore}, Outcome: Outcome{Status: OutcomeSuccess}},
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(50 * time.Second)
	model := SavingsModel{ManualSecondsPerAlert: 180, AutomatedSecondsPerAlert: 5}

	sum := Summarize("sess-1", start, end, summaryRecords(), model)

	if sum.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", sum.SessionID)
	}
	if sum.AlertsProcessed != 5 {
		t.Errorf("AlertsProcessed = %d, want 5", sum.AlertsProcessed)
	}
	if sum.Failures != 1 {
		t.Errorf("Failures = %d, want 1", sum.Failures)
	}
	if sum.ActionCounts[ActionReboot] != 2 {
		t.Errorf("reboot count = %d, want 2", sum.ActionCounts[ActionReboot])
	}
	if sum.ActionCounts[ActionCreateTicket] != 1 {
		t.Errorf("ticket count = %d, want 1", sum.ActionCounts[ActionCreateTicket])
	}

	// 5 alerts * 180s manual - 50s elapsed = 850s saved.
	if sum.TimeSavings.TotalSavedSeconds != 850 {
		t.Errorf("TotalSavedSeconds = %v, want 850", sum.TimeSavings.TotalSavedSeconds)
	}
	if sum.TimeSavings.TotalSavedMinutes != 14.2 {
		t.Errorf("TotalSavedMinutes = %v, want 14.2", sum.TimeSavings.TotalSavedMinutes)
	}
	if sum.TimeSavings.DailyProjectionMinutes != sum.TimeSavings.TotalSavedMinutes {
		t.Error("daily projection should equal the per-session minutes")
	}
	if sum.TimeSavings.PerAlertSeconds != 175 {
		t.Errorf("PerAlertSeconds = %v, want 175", sum.TimeSavings.PerAlertSeconds)
	}
}

func TestSummarize_Deterministic(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	model := SavingsModel{ManualSecondsPerAlert: 180, AutomatedSecondsPerAlert: 5}
	records := summaryRecords()

	a := Summarize("s", start, end, records, model)
	b := Summarize("s", start, end, records, model)

	if a.TimeSavings != b.TimeSavings {
		t.Errorf("TimeSavings differ: %+v vs %+v", a.TimeSavings, b.TimeSavings)
	}
	if a.AlertsProcessed != b.AlertsProcessed || a.Failures != b.Failures {
		t.Error("totals differ between identical invocations")
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	sum := Summarize("s", start, start.Add(time.Second), nil, SavingsModel{ManualSecondsPerAlert: 180, AutomatedSecondsPerAlert: 5})

	if sum.AlertsProcessed != 0 || sum.Failures != 0 {
		t.Errorf("empty session totals = %d/%d, want 0/0", sum.AlertsProcessed, sum.Failures)
	}
	if sum.TimeSavings.TotalSavedSeconds != 0 {
		t.Errorf("TotalSavedSeconds = %v, want clamped to 0", sum.TimeSavings.TotalSavedSeconds)
	}
}

func TestSummarize_NeverNegative(t *testing.T) {
	t.Parallel()

	// A session slower than the manual baseline clamps at zero.
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	records := []Record{{Decision: Decision{Action: ActionIgnore}, Outcome: Outcome{Status: OutcomeSuccess}}}

	sum := Summarize("s", start, end, records, SavingsModel{ManualSecondsPerAlert: 180, AutomatedSecondsPerAlert: 5})
	if sum.TimeSavings.TotalSavedSeconds != 0 {
		t.Errorf("TotalSavedSeconds = %v, want 0", sum.TimeSavings.TotalSavedSeconds)
	}
}
