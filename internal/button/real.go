//go:build linux

package button

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/zap"
)

// Config describes the button wiring.
type Config struct {
	Chip        string
	Line        int
	ActiveLevel int // 0 = pressed pulls the line low
	Debounce    time.Duration
	Timing      Timing
}

// RealSource reads the button from a GPIO character device.
type RealSource struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	edges  chan Edge
	events chan Kind
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger *zap.Logger
}

// NewRealSource requests the button line with both-edge detection.
func NewRealSource(cfg Config, logger *zap.Logger) (*RealSource, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &RealSource{
		chip:   chip,
		edges:  make(chan Edge, 16),
		events: make(chan Kind, 8),
		done:   make(chan struct{}),
		logger: logger,
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.onEdge),
	}
	if cfg.ActiveLevel == 0 {
		// Logical value follows the button: rising edge means pressed.
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	} else {
		opts = append(opts, gpiocdev.WithPullDown)
	}
	if cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
	}

	line, err := chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", cfg.Line, err)
	}
	s.line = line

	ticker := time.NewTicker(20 * time.Millisecond)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		pump(NewClassifier(cfg.Timing), s.edges, ticker.C, s.done, s.events, logger)
	}()

	return s, nil
}

// onEdge runs on the gpiocdev watcher goroutine.
func (s *RealSource) onEdge(evt gpiocdev.LineEvent) {
	e := Edge{Pressed: evt.Type == gpiocdev.LineEventRisingEdge, Time: time.Now()}
	select {
	case s.edges <- e:
	default:
		s.logger.Warn("button edge queue full, dropping edge")
	}
}

// Events returns accepted button events.
func (s *RealSource) Events() <-chan Kind {
	return s.events
}

// Close releases the line so the power controller can claim it for wake.
func (s *RealSource) Close() error {
	var errs []error
	s.once.Do(func() {
		close(s.done)
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
		s.wg.Wait()
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		close(s.events)
	})
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
