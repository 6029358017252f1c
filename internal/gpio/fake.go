package gpio

import "sync"

// FakeSource is a test double that delivers scripted pulse durations.
type FakeSource struct {
	// WatchError, if set, is returned by Watch.
	WatchError error

	// Closed tracks if Close was called.
	Closed bool

	mu      sync.Mutex
	handler EdgeHandler
	now     uint32
	watches int
}

// NewFakeSource creates a FakeSource whose clock starts at start.
func NewFakeSource(start uint32) *FakeSource {
	return &FakeSource{now: start}
}

// Watch records h as the handler for Emit.
func (f *FakeSource) Watch(h EdgeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WatchError != nil {
		return f.WatchError
	}
	if f.Closed {
		return ErrClosed
	}
	if f.handler != nil {
		return ErrWatching
	}
	f.handler = h
	f.watches++
	return nil
}

// Unwatch drops the handler.
func (f *FakeSource) Unwatch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = nil
	return nil
}

// Close drops the handler and marks the source closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = nil
	f.Closed = true
	return nil
}

// Emit advances the clock by each duration in turn and delivers an edge at
// every step. The clock advances even when nobody is watching.
func (f *FakeSource) Emit(durations ...uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range durations {
		f.now += d
		if f.handler != nil {
			f.handler(f.now)
		}
	}
}

// Now returns the current fake clock in microseconds.
func (f *FakeSource) Now() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Watching reports whether a handler is attached.
func (f *FakeSource) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// Watches returns how many times Watch succeeded.
func (f *FakeSource) Watches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watches
}
