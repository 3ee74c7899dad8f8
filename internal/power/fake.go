package power

import "time"

// FakeController records armed wake sources. Suspend returns, which ends
// the simulated process lifetime.
type FakeController struct {
	Cause WakeCause

	TimerArmed  time.Duration
	WakeLine    int
	ActiveLevel int
	External    bool

	Suspended    int
	SuspendError error
}

// NewFakeController creates a controller reporting cause as the last wake.
func NewFakeController(cause WakeCause) *FakeController {
	return &FakeController{Cause: cause, WakeLine: -1}
}

func (f *FakeController) ArmTimer(d time.Duration) {
	f.TimerArmed = d
}

func (f *FakeController) ArmExternalWake(line int, activeLevel int) {
	f.WakeLine = line
	f.ActiveLevel = activeLevel
	f.External = true
}

func (f *FakeController) Suspend() error {
	if f.SuspendError != nil {
		return f.SuspendError
	}
	f.Suspended++
	return nil
}

func (f *FakeController) LastWakeCause() WakeCause {
	return f.Cause
}
