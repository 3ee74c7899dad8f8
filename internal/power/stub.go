//go:build !linux

package power

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// HostController is not available on non-Linux platforms.
type HostController struct{}

// NewHostController returns a controller whose Suspend always fails.
func NewHostController(string, *zap.Logger) *HostController {
	return &HostController{}
}

func (h *HostController) ArmTimer(time.Duration)  {}
func (h *HostController) ArmExternalWake(int, int) {}

// Suspend is not implemented on non-Linux platforms.
func (h *HostController) Suspend() error {
	return errors.New("power: not supported on this platform (requires Linux)")
}

func (h *HostController) LastWakeCause() WakeCause {
	return WakeCauseFromEnv()
}
