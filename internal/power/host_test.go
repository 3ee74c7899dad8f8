//go:build linux

package power

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHostSuspendTimerWake(t *testing.T) {
	h := NewHostController("gpiochip0", zap.NewNop())
	var got WakeCause
	h.exec = func(c WakeCause) error {
		got = c
		return nil
	}

	h.ArmTimer(10 * time.Millisecond)
	if err := h.Suspend(); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if got != WakeTimer {
		t.Errorf("wake cause: got %s, want TIMER", got)
	}
}

func TestHostSuspendNothingArmed(t *testing.T) {
	h := NewHostController("gpiochip0", zap.NewNop())
	h.exec = func(WakeCause) error {
		t.Fatal("should not re-exec")
		return nil
	}
	if err := h.Suspend(); err == nil {
		t.Error("expected error with no wake source")
	}
}

func TestHostWakeCauseFromEnv(t *testing.T) {
	t.Setenv(EnvWakeCause, string(WakeExternal))
	h := NewHostController("gpiochip0", zap.NewNop())
	if h.LastWakeCause() != WakeExternal {
		t.Errorf("cause: got %s", h.LastWakeCause())
	}
}
