package node

import (
	"sync/atomic"
	"time"
)

// Ticker drives the idle countdown. Reset restarts the tick phase so a
// freshly started countdown always lasts its full length.
type Ticker interface {
	C() <-chan time.Time
	Reset()
	Stop()
}

type clockTicker struct {
	t *time.Ticker
	d time.Duration
}

// NewTicker returns a wall-clock Ticker with period d.
func NewTicker(d time.Duration) Ticker {
	return &clockTicker{t: time.NewTicker(d), d: d}
}

func (c *clockTicker) C() <-chan time.Time { return c.t.C }
func (c *clockTicker) Reset()              { c.t.Reset(c.d) }
func (c *clockTicker) Stop()               { c.t.Stop() }

// FakeTicker is a Ticker whose ticks are sent by the test on Ch.
type FakeTicker struct {
	Ch chan time.Time

	resets  atomic.Int32
	stopped atomic.Bool
}

// NewFakeTicker creates a FakeTicker; buffer sizes Ch.
func NewFakeTicker(buffer int) *FakeTicker {
	return &FakeTicker{Ch: make(chan time.Time, buffer)}
}

func (f *FakeTicker) C() <-chan time.Time { return f.Ch }
func (f *FakeTicker) Reset()              { f.resets.Add(1) }
func (f *FakeTicker) Stop()               { f.stopped.Store(true) }

// Resets counts Reset calls.
func (f *FakeTicker) Resets() int { return int(f.resets.Load()) }

// Stopped reports whether Stop was called.
func (f *FakeTicker) Stopped() bool { return f.stopped.Load() }
