// Package capture turns a stream of edge timestamps into candidate packets.
//
// HandleEdge is meant to run in the edge notification context: it uses only
// fixed-size arrays owned by the Pipeline, never allocates and never blocks.
// It must not be called concurrently with itself.
package capture

import (
	"sync/atomic"

	"github.com/sweeney/lacrosse-receiver/internal/pulse"
)

const (
	// WindowSize is the scratch window capacity: 60 bits of durations.
	WindowSize = 120

	// MaxErrors is the number of invalid durations tolerated by the
	// backward pre-scan, the terminator included.
	MaxErrors = 10

	// MinScanned is the minimum number of scanned durations (16 bits).
	MinScanned = 32
)

// Sink receives accepted packets. queue.Queue implements it.
type Sink interface {
	Push(msec uint32, timings []uint32)
}

// Stats counts capture sessions since creation.
type Stats struct {
	Sessions  uint64 // sessions ended by a sync gap
	Accepted  uint64 // sessions handed to the sink
	Discarded uint64 // sessions rejected by the pre-scan
}

// Pipeline is the capture state machine: IDLE until a SHORT or LONG pulse,
// ACCUMULATING until a sync gap, then back to IDLE.
type Pipeline struct {
	sink   Sink
	millis func() uint32

	window    [WindowSize]uint32
	linear    [WindowSize]uint32
	pos       int
	full      bool
	receiving bool
	lastEdge  uint32

	sessions  atomic.Uint64
	accepted  atomic.Uint64
	discarded atomic.Uint64
}

// New creates a pipeline that hands accepted packets to sink, stamped with
// the millisecond clock.
func New(sink Sink, millis func() uint32) *Pipeline {
	return &Pipeline{sink: sink, millis: millis}
}

// Reset abandons any partially accumulated session. The next edge only
// re-arms the edge clock.
func (p *Pipeline) Reset(now uint32) {
	p.receiving = false
	p.pos = 0
	p.full = false
	p.lastEdge = now
}

// HandleEdge processes one signal edge at time now (microseconds, any
// monotonic origin; wrap-around is handled).
func (p *Pipeline) HandleEdge(now uint32) {
	d := now - p.lastEdge
	p.lastEdge = now

	if !p.receiving {
		if !pulse.IsLongShort(d) {
			return
		}
		p.receiving = true
		p.pos = 0
		p.full = false
	}

	p.window[p.pos] = d
	p.pos++
	if p.pos == WindowSize {
		p.full = true
		p.pos = 0
	}

	if !pulse.IsTerminator(d) {
		return
	}
	p.receiving = false
	p.sessions.Add(1)

	size, start := p.scan()
	if size < MinScanned || size < pulse.MinPacketLen {
		p.discarded.Add(1)
		return
	}

	for i := 0; i < size; i++ {
		p.linear[i] = p.window[(start+i)%WindowSize]
	}
	if p.linear[size-1] > pulse.Terminator+pulse.TerminatorSlack {
		p.linear[size-1] = pulse.Terminator
	}

	p.sink.Push(p.millis(), p.linear[:size])
	p.accepted.Add(1)
}

// scan walks the window backward from the terminator, counting durations
// until the error budget is spent or the window is exhausted. It returns the
// number of scanned durations and the window index of the oldest one.
func (p *Pipeline) scan() (size, start int) {
	collected := p.pos
	if p.full {
		collected = WindowSize
	}

	i := p.pos
	errors := -1 // the terminator never classifies
	for collected > 0 && errors < MaxErrors {
		size++
		collected--
		i--
		if i < 0 {
			i = WindowSize - 1
		}
		if !pulse.IsValid(p.window[i]) {
			errors++
		}
	}
	return size, i
}

// Stats returns a snapshot of the capture counters. Safe to call from any
// goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Sessions:  p.sessions.Load(),
		Accepted:  p.accepted.Load(),
		Discarded: p.discarded.Load(),
	}
}
