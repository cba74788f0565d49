package rmm

import (
	"context"

	"github.com/linnemanlabs/go-core/log"
)

// Simulator is a DeviceController that only logs the restart command.
// Used in demo mode and wherever real reboots must not happen.
type Simulator struct {
	logger log.Logger
}

// NewSimulator creates a no-op device controller.
func NewSimulator(logger log.Logger) *Simulator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Simulator{logger: logger}
}

// Reboot logs the command it would have sent and succeeds.
func (s *Simulator) Reboot(ctx context.Context, deviceName string) error {
	s.logger.Info(ctx, "simulated reboot",
		"device", deviceName,
		"command", "Restart-Computer -ComputerName "+deviceName+" -Force",
	)
	return nil
}
