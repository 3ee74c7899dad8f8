// Package status provides a thread-safe status tracker for the scan-node.
// It is written by the orchestrator and read by the HTTP status server.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/scan-node/internal/scan"
)

// Config contains node configuration for display.
type Config struct {
	IdleTicks  int
	TickMs     int64
	SleepMs    int64
	MaxResults int
	Broker     string
	GatewayID  string
	Store      string
	HTTPAddr   string
}

// Activity is one entry in the recent-activity history.
type Activity struct {
	Time   time.Time
	Kind   string
	Detail string
}

// Snapshot is a point-in-time view of node state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State              string
	Intent             string
	WakeCause          string
	Joined             bool
	Pending            bool
	Delivered          int
	CountdownRemaining int
	LatestScan         []scan.AccessPoint
	History            []Activity
	HistoryDropped     int
	StartTime          time.Time
	Now                time.Time
	Config             Config
}

// Uptime returns the duration since the wake cycle started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable node state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	history *ringBuffer
	now     func() time.Time
}

// HistorySize is how many activity entries the tracker keeps.
const HistorySize = 32

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		history: newRingBuffer(HistorySize),
		now:     time.Now,
	}
}

// SetState records the orchestrator state and the intent for this cycle.
func (t *Tracker) SetState(state, intent string) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Intent = intent
	t.mu.Unlock()
}

// SetWakeCause records why this lifetime started.
func (t *Tracker) SetWakeCause(cause string) {
	t.mu.Lock()
	t.snap.WakeCause = cause
	t.mu.Unlock()
}

// SetJoined sets the network session state.
func (t *Tracker) SetJoined(joined bool) {
	t.mu.Lock()
	t.snap.Joined = joined
	t.mu.Unlock()
}

// SetPending records whether a payload is still owed to the network.
func (t *Tracker) SetPending(pending bool) {
	t.mu.Lock()
	t.snap.Pending = pending
	t.mu.Unlock()
}

// AddDelivered counts a confirmed delivery.
func (t *Tracker) AddDelivered() {
	t.mu.Lock()
	t.snap.Delivered++
	t.mu.Unlock()
}

// SetLatestScan replaces the latest scan results.
func (t *Tracker) SetLatestScan(aps []scan.AccessPoint) {
	cp := make([]scan.AccessPoint, len(aps))
	copy(cp, aps)
	t.mu.Lock()
	t.snap.LatestScan = cp
	t.mu.Unlock()
}

// SetCountdown records the remaining idle ticks before sleep.
func (t *Tracker) SetCountdown(remaining int) {
	t.mu.Lock()
	t.snap.CountdownRemaining = remaining
	t.mu.Unlock()
}

// Record appends an activity entry, dropping the oldest when full.
func (t *Tracker) Record(kind, detail string) {
	t.mu.Lock()
	t.history.push(Activity{Time: t.now(), Kind: kind, Detail: detail})
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the node state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.LatestScan = append([]scan.AccessPoint(nil), t.snap.LatestScan...)
	s.History = t.history.items()
	s.HistoryDropped = t.history.dropped
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
