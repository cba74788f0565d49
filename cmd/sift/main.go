// Sift is an AI-powered triage agent for RMM console alerts: it fetches a
// batch of open alerts, classifies each one, executes the chosen action and
// writes a full audit trail.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	spanprofiler "github.com/grafana/otel-profiling-go"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"
	"go.opentelemetry.io/otel"

	"github.com/linnemanlabs/sift/internal/alert"
	"github.com/linnemanlabs/sift/internal/audit"
	"github.com/linnemanlabs/sift/internal/audit/jsonl"
	"github.com/linnemanlabs/sift/internal/audit/pg"
	sc "github.com/linnemanlabs/sift/internal/cfg"
	"github.com/linnemanlabs/sift/internal/llm/claude"
	"github.com/linnemanlabs/sift/internal/llm/rules"
	"github.com/linnemanlabs/sift/internal/notify/slack"
	"github.com/linnemanlabs/sift/internal/postgres"
	"github.com/linnemanlabs/sift/internal/rmm"
	"github.com/linnemanlabs/sift/internal/ticket/superops"
	"github.com/linnemanlabs/sift/internal/triage"
)

const appName = "sift"
const component = "triage"

// actionTimeout bounds each dispatched side effect (reboot, notification,
// ticket). Classifier timeouts are configured separately.
const actionTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set app name and component
	v.AppName = appName
	v.Component = component

	// Get build/version info
	vi := v.Get()

	// each package registers its own flags and options struct
	var (
		appCfg   sc.Config
		logCfg   log.Config
		profCfg  prof.Config
		traceCfg otelx.Config
	)

	// register flags for each package, which will be parsed into the shared config struct
	appCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	profCfg.RegisterFlags(flag.CommandLine)
	traceCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	// parse flags to get config values from cmdline, we check env vars next which do not override cmdline flags
	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	// Fill in config values from environment variables with prefix SIFT_,
	// these do not override cmdline flags
	cfg.FillFromEnv(flag.CommandLine, "SIFT_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		appCfg.Validate(),
		logCfg.Validate(),
		profCfg.Validate(),
		traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// initialize logger early
	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	// create a logger with component field pre-filled for structured logging in this package
	L := lg.With("component", vi.Component)

	// add logger to context
	ctx = log.WithContext(ctx, L)

	// Credentials and webhook URLs are deliberately absent here.
	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"alert_limit", appCfg.AlertLimit,
		"max_attempts", appCfg.MaxAttempts,
		"admin_port", appCfg.AdminPort,
		"demo", appCfg.Demo,
		"live_reboots", appCfg.LiveReboots,
		"audit_log", appCfg.AuditLogPath,
		"database", appCfg.DatabaseURL != "",
	)

	// Setup pyroscope profiling early so we get profiles from the entire app lifetime
	profOpts := profCfg.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", profCfg.PyroServer)
	}
	if stopProf != nil {
		defer stopProf()
	}

	// Setup otel for tracing
	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version

	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	// Tag profiles with the active span so traces and profiles correlate.
	if profErr == nil && profCfg.EnablePyroscope {
		otel.SetTracerProvider(spanprofiler.NewTracerProvider(otel.GetTracerProvider()))
	}

	// Setup metrics, we use our own metrics package for internal instrumentation
	var m = metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	triageMetrics := triage.NewMetrics(m.Registry())

	// Admin listener for health and metrics scrapes during long sessions.
	// A batch run is live and ready as long as the process is up.
	if appCfg.AdminPort > 0 {
		stopAdmin := startAdmin(ctx, L, appCfg.AdminPort, m.Handler())
		defer stopAdmin()
	}

	// Console client is shared by the alert source and the reboot path.
	var console *rmm.Client
	if appCfg.ConsoleBaseURL != "" {
		console = rmm.New(appCfg.ConsoleBaseURL, appCfg.ConsoleToken)
	}

	// Fetch the alert batch before wiring the rest: an empty console is a
	// successful no-op session.
	alerts, err := loadAlerts(ctx, L, &appCfg, console)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	L.Info(ctx, "alert batch loaded", "count", len(alerts))

	// Classifier: keyword rules in demo mode, Claude otherwise.
	var classifier triage.Classifier
	if appCfg.Demo {
		classifier = rules.New()
		L.Info(ctx, "using rule classifier (demo mode)")
	} else {
		classifier = claude.New(appCfg.ClaudeAPIKey, appCfg.ClaudeModel)
		L.Info(ctx, "using claude classifier", "model", appCfg.ClaudeModel)
	}

	// Device controller: real reboots only when explicitly enabled.
	var devices triage.DeviceController
	if appCfg.LiveReboots {
		devices = console
		L.Warn(ctx, "live reboots enabled")
	} else {
		devices = rmm.NewSimulator(L)
	}

	notifier := slack.New(appCfg.SlackWebhookURL, L)
	tickets := superops.New(appCfg.TicketWebhookURL, L)
	dispatcher := triage.NewDispatcher(devices, notifier, tickets, actionTimeout, !appCfg.LiveReboots, L)

	// Audit sinks: the JSONL log always, PostgreSQL when configured.
	jl, err := jsonl.Open(appCfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("audit log init: %w", err)
	}
	defer func() { _ = jl.Close() }()

	sinks := []triage.Recorder{jl}
	if appCfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, appCfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		defer pool.Close()
		pgRec, err := pg.New(ctx, pool)
		if err != nil {
			return fmt.Errorf("pg recorder init: %w", err)
		}
		sinks = append(sinks, pgRec)
		L.Info(ctx, "postgres audit sink enabled")
	}
	recorder := audit.Tee(sinks...)

	engine := triage.NewEngine(classifier, dispatcher, recorder, triage.Options{
		MaxAttempts:     appCfg.MaxAttempts,
		RetryBudget:     time.Duration(appCfg.RetryBudgetSeconds) * time.Second,
		ClassifyTimeout: time.Duration(appCfg.ClassifyTimeoutSecs) * time.Second,
		Savings: triage.SavingsModel{
			ManualSecondsPerAlert: float64(appCfg.ManualSecondsPerAlert),
		},
	}, L, triageMetrics.Hooks())

	// Notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// Run the session. Ctrl+C / SIGTERM cancels ctx; the engine finishes
	// the alert in flight, finalizes the summary and returns.
	sum := engine.Run(ctx, alerts)

	printSummary(os.Stdout, sum)
	return nil
}

// loadAlerts picks the alert source: a local JSON file when configured,
// otherwise the console API.
func loadAlerts(ctx context.Context, L log.Logger, c *sc.Config, console *rmm.Client) ([]alert.Alert, error) {
	if c.AlertsFile != "" {
		alerts, err := alert.LoadFile(c.AlertsFile)
		if err != nil {
			return nil, err
		}
		if len(alerts) > c.AlertLimit {
			alerts = alerts[:c.AlertLimit]
		}
		L.Info(ctx, "alerts loaded from file", "path", c.AlertsFile)
		return alerts, nil
	}
	if console == nil {
		return nil, errors.New("no alert source: set -alerts-file or -console-base-url")
	}
	return console.ListAlerts(ctx, c.AlertLimit)
}

// startAdmin serves health and metrics on its own listener and returns a
// stop function.
func startAdmin(ctx context.Context, L log.Logger, port int, metricsHandler http.Handler) func() {
	liveness := health.Fixed(true, "")
	readiness := health.All(liveness)

	r := chi.NewRouter()
	r.Get("/-/healthy", health.HealthzHandler(liveness))
	r.Get("/-/ready", health.ReadyzHandler(readiness))
	r.Handle("/metrics", metricsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "admin listener failed", "port", port)
		}
	}()

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			L.Error(context.Background(), err, "admin listener shutdown")
		}
	}
}

// printSummary writes the human-readable session report to w. The audit
// sinks hold the structured version; this is for the operator's terminal.
func printSummary(w *os.File, sum *triage.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== TRIAGE SESSION SUMMARY ===")
	fmt.Fprintf(w, "Session:          %s\n", sum.SessionID)
	fmt.Fprintf(w, "Alerts processed: %d\n", sum.AlertsProcessed)
	fmt.Fprintf(w, "Errors:           %d\n", sum.Failures)
	fmt.Fprintln(w, "Actions:")
	for _, a := range triage.Actions {
		if n := sum.ActionCounts[a]; n > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", string(a)+":", n)
		}
	}
	fmt.Fprintf(w, "Time saved:       %.1f min (projected %.1f min/day)\n",
		sum.TimeSavings.TotalSavedMinutes, sum.TimeSavings.DailyProjectionMinutes)
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // G704: addr is from NOTIFY_SOCKET set by systemd not user input, no context support in net package for unixgram sockets
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
