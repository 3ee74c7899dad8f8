package power

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestWakeCauseFromEnv(t *testing.T) {
	cases := map[string]WakeCause{
		"":         WakePowerOn,
		"TIMER":    WakeTimer,
		"EXTERNAL": WakeExternal,
		"bogus":    WakePowerOn,
	}
	for env, want := range cases {
		t.Setenv(EnvWakeCause, env)
		if got := WakeCauseFromEnv(); got != want {
			t.Errorf("env %q: got %s, want %s", env, got, want)
		}
	}
}

func TestWakeEnvReplacesCause(t *testing.T) {
	environ := []string{
		"HOME=/root",
		EnvWakeCause + "=TIMER",
		"SCAN_NODE_WAKE_CAUSE_OLD=x",
		EnvWakeCause + "=EXTERNAL",
	}
	got := wakeEnv(environ, WakeExternal)
	want := []string{"HOME=/root", "SCAN_NODE_WAKE_CAUSE_OLD=x", EnvWakeCause + "=EXTERNAL"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("env: got %q, want %q", got, want)
	}
	if environ[1] != EnvWakeCause+"=TIMER" {
		t.Error("input environment modified")
	}
}

func TestWakeEnvAcrossSleeps(t *testing.T) {
	env := []string{"PATH=/usr/bin"}

	// Each re-exec starts with the environment the previous one built.
	for _, cause := range []WakeCause{WakeTimer, WakeExternal, WakeTimer} {
		env = wakeEnv(env, cause)
		var seen []string
		for _, kv := range env {
			if strings.HasPrefix(kv, EnvWakeCause+"=") {
				seen = append(seen, kv)
			}
		}
		if want := []string{EnvWakeCause + "=" + string(cause)}; !reflect.DeepEqual(seen, want) {
			t.Errorf("after sleep ending in %s: got %q", cause, seen)
		}
	}
	if len(env) != 2 {
		t.Errorf("env grew across sleeps: %q", env)
	}
}

func TestFakeController(t *testing.T) {
	f := NewFakeController(WakeTimer)
	if f.LastWakeCause() != WakeTimer {
		t.Errorf("cause: got %s", f.LastWakeCause())
	}
	if f.External {
		t.Error("external wake should not be armed initially")
	}

	f.ArmTimer(30 * time.Second)
	f.ArmExternalWake(0, 0)
	if err := f.Suspend(); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	if f.TimerArmed != 30*time.Second {
		t.Errorf("timer: got %v", f.TimerArmed)
	}
	if !f.External || f.WakeLine != 0 || f.ActiveLevel != 0 {
		t.Errorf("external wake: got line=%d level=%d armed=%v", f.WakeLine, f.ActiveLevel, f.External)
	}
	if f.Suspended != 1 {
		t.Errorf("suspended: got %d", f.Suspended)
	}
}
