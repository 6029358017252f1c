// Package gpio delivers signal edges from the 433 MHz receiver's data pin.
// The real implementation uses the Linux GPIO character device.
// A serial implementation reads pulse widths measured by a microcontroller
// front end. The fake implementation allows testing without hardware.
package gpio

import "errors"

// EdgeHandler is called once per signal edge with a microsecond timestamp.
// Timestamps are free-running and wrap at 2^32.
type EdgeHandler func(micros uint32)

// EdgeSource delivers signal edges to a handler.
// A source calls its handler from a single goroutine, never concurrently.
type EdgeSource interface {
	// Watch starts delivering edges to h.
	Watch(h EdgeHandler) error

	// Unwatch stops delivering edges. It is a no-op when not watching.
	Unwatch() error

	// Close stops watching and releases resources.
	Close() error
}

// Defaults for a Raspberry Pi with the receiver data pin on BCM 27.
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 27
)

var (
	// ErrWatching is returned by Watch when the source is already watching.
	ErrWatching = errors.New("gpio: already watching")

	// ErrClosed is returned by Watch after Close.
	ErrClosed = errors.New("gpio: source closed")
)
