//go:build !linux

package gpio

import "errors"

// LineSource is not available on non-Linux platforms.
type LineSource struct{}

// NewLineSource returns a source whose Watch always fails.
func NewLineSource(chip string, pin int) *LineSource {
	return &LineSource{}
}

// Watch is not implemented on non-Linux platforms.
func (s *LineSource) Watch(h EdgeHandler) error {
	return errors.New("gpio: not supported on this platform (requires Linux)")
}

// Unwatch is a no-op on non-Linux platforms.
func (s *LineSource) Unwatch() error {
	return nil
}

// Close is a no-op on non-Linux platforms.
func (s *LineSource) Close() error {
	return nil
}
