// Package node is the duty-cycle orchestrator: one wake cycle of scanning,
// buffering, joining, transmitting, idling and finally sleeping.
//
// All collaborators are injected. Time advances only through the tick
// channel so the countdown is deterministic under test.
package node

import (
	"errors"
	"time"

	"github.com/sweeney/scan-node/internal/button"
	"github.com/sweeney/scan-node/internal/network"
	"github.com/sweeney/scan-node/internal/store"
)

// State is the orchestrator's position in the wake cycle.
type State string

const (
	StateBooting      State = "BOOTING"
	StateDeciding     State = "DECIDING"
	StateScanning     State = "SCANNING"
	StateJoining      State = "JOINING"
	StateTransmitting State = "TRANSMITTING"
	StateIdle         State = "IDLE"
	StateSleeping     State = "SLEEPING"
)

// Intent is the per-cycle decision made while Deciding.
type Intent string

const (
	IntentFreshScan Intent = "FRESH_SCAN"
	IntentResend    Intent = "RESEND"
)

// DecideIntent picks RESEND exactly when the store holds a non-empty
// pending record.
func DecideIntent(rec *store.Record) Intent {
	if rec.Owed() {
		return IntentResend
	}
	return IntentFreshScan
}

// EventKind classifies orchestrator events.
type EventKind string

const (
	EventUserAction     EventKind = "USER_ACTION"
	EventJoinResult     EventKind = "JOIN_RESULT"
	EventTransmitResult EventKind = "TRANSMIT_RESULT"
	EventTimerExpired   EventKind = "TIMER_EXPIRED"
	EventDownlink       EventKind = "DOWNLINK"
)

// Event is one entry in the orchestrator's ordered event stream.
type Event struct {
	Kind     EventKind
	Action   button.Kind
	OK       bool
	Err      error
	Downlink network.Downlink
}

// ErrTimerCreation aborts startup: without a countdown the node would
// never sleep.
var ErrTimerCreation = errors.New("countdown timer creation failed")

// Config holds the duty-cycle constants.
type Config struct {
	// IdleTicks is the countdown length D in ticks.
	IdleTicks int
	// Tick is the tick period, used for logging only.
	Tick time.Duration
	// Sleep is the timer wake duration S.
	Sleep time.Duration

	MaxResults int
	MTU        int
	Port       uint8
	Confirmed  bool

	WakeLine        int
	WakeActiveLevel int
}

// DefaultConfig returns the firmware defaults: 20 one-second ticks idle,
// 30 seconds asleep, and as many results as fill a 51 byte uplink.
func DefaultConfig() Config {
	return Config{
		IdleTicks:       20,
		Tick:            time.Second,
		Sleep:           30 * time.Second,
		MaxResults:      7,
		MTU:             51,
		Port:            1,
		Confirmed:       true,
		WakeLine:        0,
		WakeActiveLevel: 0,
	}
}

// PayloadStore is the single-slot buffer the orchestrator drives.
type PayloadStore interface {
	Load() (*store.Record, error)
	Save(store.Record) error
	ErasePayload() error
	EraseAll() error
}
