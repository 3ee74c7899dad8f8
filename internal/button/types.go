// Package button turns edges on the node's single physical button into
// discrete press kinds. Classification is pure logic with injected time;
// the real source reads a Linux GPIO character device.
package button

import "time"

// Kind is a classified button event.
type Kind string

const (
	PressDown      Kind = "PRESS_DOWN"
	PressUp        Kind = "PRESS_UP"
	SingleClick    Kind = "SINGLE_CLICK"
	DoubleClick    Kind = "DOUBLE_CLICK"
	MultipleClick  Kind = "MULTIPLE_CLICK"
	LongPressStart Kind = "LONG_PRESS_START"
	LongPressUp    Kind = "LONG_PRESS_UP"
)

// Accepted reports whether k is one of the kinds the node acts on.
// Everything else is dropped at the source.
func Accepted(k Kind) bool {
	switch k {
	case SingleClick, DoubleClick, LongPressStart:
		return true
	}
	return false
}

// Edge is a debounced level change on the button line (already logical:
// Pressed=true means held down regardless of active level).
type Edge struct {
	Pressed bool
	Time    time.Time
}

// Timing controls click classification.
type Timing struct {
	// LongPress is how long the button must be held to emit LongPressStart.
	LongPress time.Duration
	// ClickWindow is how long after a release a further press still counts
	// towards the same multi-click.
	ClickWindow time.Duration
}

// DefaultTiming mirrors common button-library defaults.
var DefaultTiming = Timing{
	LongPress:   1500 * time.Millisecond,
	ClickWindow: 300 * time.Millisecond,
}

// Source delivers accepted button events.
type Source interface {
	// Events returns the event channel. It is closed by Close.
	Events() <-chan Kind

	// Close releases the button hardware.
	Close() error
}
