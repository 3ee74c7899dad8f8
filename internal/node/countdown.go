package node

// countdown is the single idle timer. It is owned by the orchestrator loop
// and never shared, so there is exactly one instance to cancel or restart.
type countdown struct {
	total     int
	remaining int
	live      bool

	// starts counts how many times a countdown was created.
	starts int
}

func newCountdown(total int) *countdown {
	return &countdown{total: total}
}

// restart cancels any running countdown and starts a new one at full length.
func (c *countdown) restart() {
	c.cancel()
	c.live = true
	c.remaining = c.total
	c.starts++
}

func (c *countdown) cancel() {
	c.live = false
	c.remaining = 0
}

// tick advances a live countdown by one and reports whether it expired.
func (c *countdown) tick() bool {
	if !c.live {
		return false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.cancel()
		return true
	}
	return false
}

// Remaining returns the ticks left, zero when not running.
func (c *countdown) Remaining() int {
	return c.remaining
}

// Live reports whether a countdown is running.
func (c *countdown) Live() bool {
	return c.live
}
