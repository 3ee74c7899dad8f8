//go:build !linux

package button

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Config describes the button wiring.
type Config struct {
	Chip        string
	Line        int
	ActiveLevel int
	Debounce    time.Duration
	Timing      Timing
}

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(Config, *zap.Logger) (*RealSource, error) {
	return nil, errors.New("button: not supported on this platform (requires Linux)")
}

// Events returns nil on non-Linux platforms.
func (s *RealSource) Events() <-chan Kind { return nil }

// Close is a no-op on non-Linux platforms.
func (s *RealSource) Close() error { return nil }
