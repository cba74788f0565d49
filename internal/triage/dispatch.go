package triage

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/sift/internal/alert"
)

var dispatchTracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage")

// DeviceController triggers restarts on managed devices.
type DeviceController interface {
	Reboot(ctx context.Context, deviceName string) error
}

// ClientNotifier delivers an end-client notification for an alert.
type ClientNotifier interface {
	Notify(ctx context.Context, al *alert.Alert, d Decision) error
}

// TicketFiler submits a ticket payload to the configured ticketing endpoint.
type TicketFiler interface {
	File(ctx context.Context, al *alert.Alert, d Decision) error
}

// Dispatcher maps a validated Decision to its action handler, executes it
// at most once, and captures the result. It never raises: handler errors
// and panics alike are folded into a failure Outcome.
type Dispatcher struct {
	devices   DeviceController
	notifier  ClientNotifier
	tickets   TicketFiler
	timeout   time.Duration
	simulated bool
	logger    log.Logger
}

// NewDispatcher creates a dispatcher over the three side-effect handlers.
// simulated selects the reboot outcome label; timeout bounds each handler
// invocation.
func NewDispatcher(devices DeviceController, notifier ClientNotifier, tickets TicketFiler, timeout time.Duration, simulated bool, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		devices:   devices,
		notifier:  notifier,
		tickets:   tickets,
		timeout:   timeout,
		simulated: simulated,
		logger:    logger,
	}
}

// Dispatch executes the decision's action for the alert and returns the
// outcome with its wall-clock duration. Failed actions are not retried;
// a failure here is terminal for the alert and recorded as such.
func (d *Dispatcher) Dispatch(ctx context.Context, al *alert.Alert, dec Decision) (out Outcome) {
	ctx, span := dispatchTracer.Start(ctx, "action.execute")
	span.SetAttributes(
		attribute.String("sift.action", string(dec.Action)),
		attribute.String("sift.alert.id", al.ID),
		attribute.String("sift.alert.device", al.DeviceName),
	)
	defer span.End()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()

	// A handler panic must not escape the alert boundary.
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Label:    string(dec.Action) + "_failed",
				Status:   OutcomeFailure,
				Duration: time.Since(start),
				Detail:   fmt.Sprintf("handler panic: %v", r),
			}
			d.logger.Error(ctx, fmt.Errorf("panic: %v", r), "action handler panicked",
				"action", dec.Action, "alert_id", al.ID)
		}
		if out.Status == OutcomeFailure {
			span.SetStatus(codes.Error, out.Detail)
		}
		span.SetAttributes(attribute.String("sift.outcome", out.Label))
	}()

	switch dec.Action {
	case ActionReboot:
		out = d.reboot(ctx, al)
	case ActionNotifyClient:
		out = d.notify(ctx, al, dec)
	case ActionCreateTicket:
		out = d.ticket(ctx, al, dec)
	case ActionIgnore:
		// Ignoring performs no external effect and is never itself a failure.
		out = Outcome{Label: LabelIgnored, Status: OutcomeSuccess}
	default:
		// Unreachable through Validate; kept so a raw Decision literal
		// cannot slip an unknown action past the audit trail.
		out = Outcome{
			Label:  "unknown_action",
			Status: OutcomeFailure,
			Detail: "unknown action " + quote(string(dec.Action)),
		}
	}

	out.Duration = time.Since(start)
	return out
}

func (d *Dispatcher) reboot(ctx context.Context, al *alert.Alert) Outcome {
	label := LabelRebootTriggered
	if d.simulated {
		label = LabelRebootSimulated
	}

	if err := d.devices.Reboot(ctx, al.DeviceName); err != nil {
		d.logger.Error(ctx, err, "reboot trigger failed", "device", al.DeviceName)
		return Outcome{Label: "reboot_failed", Status: OutcomeFailure, Detail: err.Error()}
	}

	d.logger.Info(ctx, "reboot dispatched", "device", al.DeviceName, "label", label)
	return Outcome{Label: label, Status: OutcomeSuccess}
}

func (d *Dispatcher) notify(ctx context.Context, al *alert.Alert, dec Decision) Outcome {
	// Content is always derivable from alert+decision; only transport
	// failures count as failures here.
	if err := d.notifier.Notify(ctx, al, dec); err != nil {
		d.logger.Error(ctx, err, "client notification failed", "device", al.DeviceName)
		return Outcome{Label: "notification_failed", Status: OutcomeFailure, Detail: err.Error()}
	}

	d.logger.Info(ctx, "client notified", "device", al.DeviceName)
	return Outcome{Label: LabelNotificationSent, Status: OutcomeSuccess}
}

func (d *Dispatcher) ticket(ctx context.Context, al *alert.Alert, dec Decision) Outcome {
	if err := d.tickets.File(ctx, al, dec); err != nil {
		d.logger.Error(ctx, err, "ticket creation failed", "alert_id", al.ID)
		return Outcome{Label: "ticket_failed", Status: OutcomeFailure, Detail: err.Error()}
	}

	d.logger.Info(ctx, "ticket created", "alert_id", al.ID, "device", al.DeviceName)
	return Outcome{Label: LabelTicketCreated, Status: OutcomeSuccess}
}
