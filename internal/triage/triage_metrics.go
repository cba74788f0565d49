package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	AlertsTotal        *prometheus.CounterVec
	ClassifyCallsTotal *prometheus.CounterVec
	ClassifyDuration   prometheus.Histogram
	ClassifyExhausted  prometheus.Counter
	ActionDuration     *prometheus.HistogramVec
	RecorderErrors     prometheus.Counter
	SessionsTotal      prometheus.Counter
	SessionDuration    prometheus.Histogram
	TimeSavedSeconds   prometheus.Counter
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_alerts_total",
			Help: "Alerts processed by decided action and outcome status.",
		}, []string{"action", "status"}),
		ClassifyCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_classify_calls_total",
			Help: "Classifier calls by outcome, counting each retry attempt.",
		}, []string{"outcome"}),
		ClassifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_classify_duration_seconds",
			Help:    "Duration of individual classifier calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}),
		ClassifyExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_classify_exhausted_total",
			Help: "Alerts whose classifier retries were exhausted and degraded to ignore.",
		}),
		ActionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_action_duration_seconds",
			Help:    "Duration of action handler executions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 0.1s .. ~12.8s
		}, []string{"action"}),
		RecorderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_recorder_errors_total",
			Help: "Audit recorder append/finalize failures (fail-soft).",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_sessions_total",
			Help: "Completed triage sessions.",
		}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_session_duration_seconds",
			Help:    "Duration of triage sessions in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}),
		TimeSavedSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sift_time_saved_seconds_total",
			Help: "Estimated operator seconds saved across sessions.",
		}),
	}

	reg.MustRegister(
		m.AlertsTotal,
		m.ClassifyCallsTotal,
		m.ClassifyDuration,
		m.ClassifyExhausted,
		m.ActionDuration,
		m.RecorderErrors,
		m.SessionsTotal,
		m.SessionDuration,
		m.TimeSavedSeconds,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnClassify: func(outcome string, duration float64) {
			m.ClassifyCallsTotal.WithLabelValues(outcome).Inc()
			m.ClassifyDuration.Observe(duration)
		},
		OnExhausted: func() {
			m.ClassifyExhausted.Inc()
		},
		OnDispatch: func(action, status string, duration float64) {
			m.AlertsTotal.WithLabelValues(action, status).Inc()
			m.ActionDuration.WithLabelValues(action).Observe(duration)
		},
		OnRecordErr: func() {
			m.RecorderErrors.Inc()
		},
		OnComplete: func(sum *Summary, elapsed float64) {
			m.SessionsTotal.Inc()
			m.SessionDuration.Observe(elapsed)
			m.TimeSavedSeconds.Add(sum.TimeSavings.TotalSavedSeconds)
		},
	}
}
