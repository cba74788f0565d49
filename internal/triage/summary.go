package triage

import (
	"math"
	"time"
)

// SavingsModel holds the constants the time-savings estimate is derived
// from: how long an operator spends on one alert by hand versus what the
// pipeline spends.
type SavingsModel struct {
	ManualSecondsPerAlert    float64
	AutomatedSecondsPerAlert float64
}

// Summarize computes the session summary from a fixed list of records.
// It is a pure function: the same inputs always yield identical totals
// and histogram, regardless of when it is computed.
func Summarize(sessionID string, start, end time.Time, records []Record, model SavingsModel) *Summary {
	counts := make(map[Action]int, len(Actions))
	failures := 0

	for i := range records {
		counts[records[i].Decision.Action]++
		if records[i].Outcome.Status == OutcomeFailure {
			failures++
		}
	}

	processed := len(records)
	elapsed := end.Sub(start).Seconds()

	perAlert := model.ManualSecondsPerAlert - model.AutomatedSecondsPerAlert
	totalSaved := float64(processed)*model.ManualSecondsPerAlert - elapsed
	if totalSaved < 0 {
		totalSaved = 0
	}
	totalMinutes := round1(totalSaved / 60)

	return &Summary{
		SessionID:       sessionID,
		StartedAt:       start,
		EndedAt:         end,
		AlertsProcessed: processed,
		ActionCounts:    counts,
		Failures:        failures,
		TimeSavings: TimeSavings{
			PerAlertSeconds:   perAlert,
			TotalSavedSeconds: round1(totalSaved),
			TotalSavedMinutes: totalMinutes,
			// One session per day is the operating assumption.
			DailyProjectionMinutes: totalMinutes,
		},
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
