// Package power arms wake sources and suspends the node. Suspend ends the
// process lifetime: the next code to run is a cold boot that can ask
// LastWakeCause why it woke.
package power

import (
	"os"
	"strings"
	"time"
)

// WakeCause is why the current process lifetime started.
type WakeCause string

const (
	WakePowerOn  WakeCause = "POWER_ON"
	WakeTimer    WakeCause = "TIMER"
	WakeExternal WakeCause = "EXTERNAL"
)

// EnvWakeCause carries the wake cause across the re-exec that ends a
// host suspend.
const EnvWakeCause = "SCAN_NODE_WAKE_CAUSE"

// Controller is the low-power subsystem.
type Controller interface {
	// ArmTimer schedules a wake after d.
	ArmTimer(d time.Duration)

	// ArmExternalWake wakes the node when line reaches activeLevel.
	ArmExternalWake(line int, activeLevel int)

	// Suspend enters low power. On hardware it does not return; it only
	// returns an error when suspension could not be entered.
	Suspend() error

	// LastWakeCause reports why this lifetime started.
	LastWakeCause() WakeCause
}

// WakeCauseFromEnv decodes EnvWakeCause; absent or unknown means power-on.
func WakeCauseFromEnv() WakeCause {
	switch c := WakeCause(os.Getenv(EnvWakeCause)); c {
	case WakeTimer, WakeExternal:
		return c
	default:
		return WakePowerOn
	}
}

// wakeEnv returns environ with EnvWakeCause set to cause. Earlier
// assignments are dropped so the next lifetime reads only this one.
func wakeEnv(environ []string, cause WakeCause) []string {
	prefix := EnvWakeCause + "="
	env := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			env = append(env, kv)
		}
	}
	return append(env, prefix+string(cause))
}
