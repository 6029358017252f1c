package logic

import (
	"time"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
)

// Filter drops transmitter repeats and counts what it lets through.
//
// A LaCrosse transmitter sends every frame more than once. A measurement is
// a repeat when the same sensor reported the same kind and value less than
// the dedup window ago. The window is measured from the first copy, so a
// value that stays constant is still reported once per window.
type Filter struct {
	window        time.Duration
	startTime     time.Time
	last          map[Key]seen
	counts        Counts
	lastHeartbeat time.Time
}

type seen struct {
	m  decoder.Measurement
	at time.Time
}

// NewFilter creates a filter with the given dedup window. A window <= 0
// passes every measurement. startTime is used for heartbeat uptime.
func NewFilter(window time.Duration, startTime time.Time) *Filter {
	return &Filter{
		window:        window,
		startTime:     startTime,
		last:          make(map[Key]seen),
		lastHeartbeat: startTime,
	}
}

// Process returns the reading to publish for m, or false if m is Unknown or
// a repeat.
func (f *Filter) Process(now time.Time, m decoder.Measurement) (Reading, bool) {
	if !m.Valid() {
		return Reading{}, false
	}

	r := Reading{Timestamp: now, Measurement: m}
	k := r.Key()

	if prev, ok := f.last[k]; ok && f.window > 0 && sameValue(prev.m, m) {
		if age := now.Sub(prev.at); age >= 0 && age < f.window {
			f.counts.Duplicates++
			return Reading{}, false
		}
	}
	f.last[k] = seen{m: m, at: now}

	switch m.Kind {
	case decoder.Temperature:
		f.counts.Temperature++
	case decoder.Humidity:
		f.counts.Humidity++
	}
	return r, true
}

func sameValue(a, b decoder.Measurement) bool {
	return a.Sign == b.Sign && a.Units == b.Units && a.Decimals == b.Decimals
}

// Counts returns the counts since startup.
func (f *Filter) Counts() Counts {
	return f.counts
}

// Sensors returns the number of distinct channels seen.
func (f *Filter) Sensors() int {
	return len(f.last)
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (f *Filter) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(f.lastHeartbeat) < interval {
		return nil
	}

	f.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(f.startTime),
		Counts:    f.counts,
		Sensors:   len(f.last),
	}
}
