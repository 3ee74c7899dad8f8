package button

import "sync"

// FakeSource is a test double that delivers pushed events.
type FakeSource struct {
	ch     chan Kind
	once   sync.Once
	Closed bool
}

// NewFakeSource creates a FakeSource whose queue holds size events.
func NewFakeSource(size int) *FakeSource {
	return &FakeSource{ch: make(chan Kind, size)}
}

// Push queues an event. Kinds the node does not act on are dropped, as the
// real source would.
func (f *FakeSource) Push(k Kind) {
	if Accepted(k) {
		f.ch <- k
	}
}

// Events returns the event channel.
func (f *FakeSource) Events() <-chan Kind {
	return f.ch
}

// Close closes the event channel.
func (f *FakeSource) Close() error {
	f.once.Do(func() {
		f.Closed = true
		close(f.ch)
	})
	return nil
}
