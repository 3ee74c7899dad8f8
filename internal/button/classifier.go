package button

import "time"

// Classifier tracks press/release edges and emits click kinds.
type Classifier struct {
	timing Timing

	pressed    bool
	pressedAt  time.Time
	longFired  bool
	clicks     int
	releasedAt time.Time
}

// NewClassifier creates a classifier with the given timing.
func NewClassifier(timing Timing) *Classifier {
	return &Classifier{timing: timing}
}

// Process handles one edge and returns the kinds it completes.
// Repeated edges with the same level are ignored.
func (c *Classifier) Process(e Edge) []Kind {
	if e.Pressed == c.pressed {
		return nil
	}

	// A press after the window closed starts a new sequence.
	out := c.Tick(e.Time)

	if e.Pressed {
		c.pressed = true
		c.pressedAt = e.Time
		c.longFired = false
		return append(out, PressDown)
	}

	c.pressed = false
	out = append(out, PressUp)
	if c.longFired {
		c.clicks = 0
		return append(out, LongPressUp)
	}
	c.clicks++
	c.releasedAt = e.Time
	return out
}

// Tick advances time and emits kinds whose deadline has passed:
// LongPressStart while held, or the pending click count once the click
// window closes.
func (c *Classifier) Tick(now time.Time) []Kind {
	if c.pressed {
		if !c.longFired && now.Sub(c.pressedAt) >= c.timing.LongPress {
			c.longFired = true
			c.clicks = 0
			return []Kind{LongPressStart}
		}
		return nil
	}

	if c.clicks == 0 || now.Sub(c.releasedAt) < c.timing.ClickWindow {
		return nil
	}

	n := c.clicks
	c.clicks = 0
	switch n {
	case 1:
		return []Kind{SingleClick}
	case 2:
		return []Kind{DoubleClick}
	default:
		return []Kind{MultipleClick}
	}
}

// Pressed reports whether the button is currently held.
func (c *Classifier) Pressed() bool {
	return c.pressed
}
