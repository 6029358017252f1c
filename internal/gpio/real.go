//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// LineSource watches both edges of one GPIO line using the Linux GPIO
// character device. Edge timestamps come from the kernel event clock, so
// scheduling latency does not distort pulse widths.
type LineSource struct {
	chip string
	pin  int

	mu     sync.Mutex
	line   *gpiocdev.Line
	closed bool
}

// NewLineSource creates a source for the given chip and line offset (BCM
// numbering on a Raspberry Pi). No line is requested until Watch.
func NewLineSource(chip string, pin int) *LineSource {
	return &LineSource{chip: chip, pin: pin}
}

// Watch requests the line with edge detection on both edges and forwards
// every event to h. gpiocdev delivers events from a single goroutine.
func (s *LineSource) Watch(h EdgeHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.line != nil {
		return ErrWatching
	}

	line, err := gpiocdev.RequestLine(s.chip, s.pin,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			h(uint32(evt.Timestamp.Microseconds()))
		}))
	if err != nil {
		return fmt.Errorf("request line %s:%d: %w", s.chip, s.pin, err)
	}
	s.line = line
	return nil
}

// Unwatch releases the line, which stops event delivery.
func (s *LineSource) Unwatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release()
}

func (s *LineSource) release() error {
	if s.line == nil {
		return nil
	}
	var errs []error

	// Leave the pin as a plain input with pull-down, matching the Pi boot
	// default.
	if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line %d: %w", s.pin, err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line %d: %w", s.pin, err))
	}
	s.line = nil

	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}

// Close releases the line. The source cannot be watched again.
func (s *LineSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.release()
}
