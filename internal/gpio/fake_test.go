package gpio

import (
	"errors"
	"testing"
)

func TestFakeSourceEmit(t *testing.T) {
	f := NewFakeSource(100)

	var got []uint32
	if err := f.Watch(func(us uint32) { got = append(got, us) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.Emit(550, 975, 1400)

	want := []uint32{650, 1625, 3025}
	if len(got) != len(want) {
		t.Fatalf("expected %d edges, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("edge %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestFakeSourceClockWraps(t *testing.T) {
	f := NewFakeSource(^uint32(0) - 10)

	var got uint32
	f.Watch(func(us uint32) { got = us })
	f.Emit(20)

	if got != 9 {
		t.Errorf("expected wrapped timestamp 9, got %d", got)
	}
}

func TestFakeSourceUnwatch(t *testing.T) {
	f := NewFakeSource(0)

	calls := 0
	f.Watch(func(uint32) { calls++ })
	f.Emit(500)
	if err := f.Unwatch(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Emit(500, 500)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if f.Watching() {
		t.Error("should not be watching after Unwatch")
	}
	if f.Now() != 1500 {
		t.Errorf("clock should keep running: got %d", f.Now())
	}

	// Watch again after Unwatch.
	if err := f.Watch(func(uint32) {}); err != nil {
		t.Errorf("re-watch failed: %v", err)
	}
	if f.Watches() != 2 {
		t.Errorf("expected 2 watches, got %d", f.Watches())
	}
}

func TestFakeSourceDoubleWatch(t *testing.T) {
	f := NewFakeSource(0)
	f.Watch(func(uint32) {})

	if err := f.Watch(func(uint32) {}); !errors.Is(err, ErrWatching) {
		t.Errorf("expected ErrWatching, got %v", err)
	}
}

func TestFakeSourceWatchError(t *testing.T) {
	f := NewFakeSource(0)
	f.WatchError = errors.New("simulated error")

	err := f.Watch(func(uint32) {})
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeSourceClose(t *testing.T) {
	f := NewFakeSource(0)
	f.Watch(func(uint32) {})

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
	if err := f.Watch(func(uint32) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
