package network

import (
	"context"
	"fmt"
	"sync"
)

// Uplink is a transmit call recorded by FakeStack.
type Uplink struct {
	Payload   []byte
	Port      uint8
	Confirmed bool
}

// FakeStack is a test double with scripted join and transmit outcomes.
type FakeStack struct {
	mu sync.Mutex

	// JoinFailures makes the first N Join calls fail.
	JoinFailures int

	// TransmitErrors scripts Transmit outcomes in order; nil means success.
	// Once exhausted, Transmit succeeds.
	TransmitErrors []error

	// Uplinks records every Transmit call, successful or not.
	Uplinks []Uplink

	JoinCalls int
	Joined    bool
	Closed    bool

	// BeforeTransmit, if set, runs inside Transmit before the outcome is
	// decided. Tests use it to inject events mid-call.
	BeforeTransmit func()

	handler func(Downlink)
}

// NewFakeStack creates a FakeStack that always succeeds.
func NewFakeStack() *FakeStack {
	return &FakeStack{}
}

func (f *FakeStack) Join(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinCalls++
	if f.JoinCalls <= f.JoinFailures {
		f.Joined = false
		return fmt.Errorf("%w: scripted failure", ErrJoin)
	}
	f.Joined = true
	return nil
}

func (f *FakeStack) Transmit(ctx context.Context, payload []byte, port uint8, confirmed bool) error {
	f.mu.Lock()
	hook := f.BeforeTransmit
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uplinks = append(f.Uplinks, Uplink{
		Payload:   append([]byte(nil), payload...),
		Port:      port,
		Confirmed: confirmed,
	})
	if !f.Joined {
		return fmt.Errorf("%w: not joined", ErrTransmit)
	}
	if len(f.TransmitErrors) > 0 {
		err := f.TransmitErrors[0]
		f.TransmitErrors = f.TransmitErrors[1:]
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransmit, err)
		}
	}
	return nil
}

func (f *FakeStack) OnMessage(handler func(Downlink)) {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
}

// Deliver simulates a downlink arriving from the network.
func (f *FakeStack) Deliver(dl Downlink) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(dl)
	}
}

func (f *FakeStack) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
