//go:build linux

package power

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

// HostController emulates deep sleep on a Linux host. Suspend idles until
// the timer fires or the wake line goes active, then replaces the process
// image with a fresh copy of the binary so the next run is a cold boot.
type HostController struct {
	chip   string
	logger *zap.Logger
	cause  WakeCause

	timer       time.Duration
	wakeLine    int
	activeLevel int
	externalSet bool

	// exec is swapped in tests.
	exec func(cause WakeCause) error
}

// NewHostController creates a controller that watches lines on chip.
func NewHostController(chip string, logger *zap.Logger) *HostController {
	h := &HostController{
		chip:   chip,
		logger: logger,
		cause:  WakeCauseFromEnv(),
	}
	h.exec = h.reexec
	return h
}

func (h *HostController) ArmTimer(d time.Duration) {
	h.timer = d
}

func (h *HostController) ArmExternalWake(line int, activeLevel int) {
	h.wakeLine = line
	h.activeLevel = activeLevel
	h.externalSet = true
}

func (h *HostController) LastWakeCause() WakeCause {
	return h.cause
}

// Suspend blocks until a wake source fires and then re-executes the
// binary. It returns only on failure.
func (h *HostController) Suspend() error {
	if h.timer <= 0 && !h.externalSet {
		return errors.New("suspend: no wake source armed")
	}

	wake := make(chan WakeCause, 1)

	if h.externalSet {
		var edge gpiocdev.LineReqOption = gpiocdev.WithFallingEdge
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
		if h.activeLevel != 0 {
			edge = gpiocdev.WithRisingEdge
			opts = []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
		}
		opts = append(opts, edge, gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			select {
			case wake <- WakeExternal:
			default:
			}
		}))

		line, err := gpiocdev.RequestLine(h.chip, h.wakeLine, opts...)
		if err != nil {
			return fmt.Errorf("arm external wake on pin %d: %w", h.wakeLine, err)
		}
		defer line.Close()
	}

	var timeout <-chan time.Time
	if h.timer > 0 {
		t := time.NewTimer(h.timer)
		defer t.Stop()
		timeout = t.C
	}

	h.logger.Info("entering deep sleep now",
		zap.Duration("timer", h.timer),
		zap.Bool("external", h.externalSet),
	)

	var cause WakeCause
	select {
	case cause = <-wake:
	case <-timeout:
		cause = WakeTimer
	}
	return h.exec(cause)
}

func (h *HostController) reexec(cause WakeCause) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := syscall.Exec(self, os.Args, wakeEnv(os.Environ(), cause)); err != nil {
		return fmt.Errorf("exec %s: %w", self, err)
	}
	return nil
}
