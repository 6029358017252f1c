// Package queue implements the bounded packet ring shared by the capture
// producer and the measurement consumer.
//
// One producer calls Push (from the edge handler) and one consumer calls
// Pop. Indices are free-running counters reduced modulo the ring sizes.
// The producer owns the head index and the write offset; the tail index is
// advanced by the consumer on Pop and by the producer when it evicts, so it
// is only ever moved with compare-and-swap. A Pop that loses the race to an
// eviction discards its copy and retries. No locks are taken on either side.
//
// Queued packets are contiguous in the data ring, from the tail packet's
// start offset up to the write offset, so occupancy is read from that range
// rather than kept in a counter the two sides would update at different
// times.
package queue

import (
	"sync/atomic"

	"github.com/sweeney/lacrosse-receiver/internal/pulse"
)

// Ring sizes.
const (
	DataCapacity     = 1024 // duration slots, headers included
	PositionCapacity = 128  // queued packet start offsets
	headerSlots      = 2    // length, timestamp
)

// Stats counts queue activity since creation.
type Stats struct {
	Pushed   uint64
	Evicted  uint64
	Popped   uint64
	Dropped  uint64 // packets larger than the whole ring
	Queued   int
	UsedSize int
}

// Queue is a fixed-capacity FIFO of variable-length packets.
type Queue struct {
	data   [DataCapacity]atomic.Uint32
	starts [PositionCapacity]atomic.Uint32

	head     atomic.Uint32 // next packet index to publish; producer only
	tail     atomic.Uint32 // oldest queued packet index; CAS only
	writePos atomic.Uint32 // next free data slot; producer only

	pushed  atomic.Uint64
	evicted atomic.Uint64
	popped  atomic.Uint64
	dropped atomic.Uint64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

func wrap(i uint32) uint32 {
	return i % DataCapacity
}

// Push appends a packet, evicting the oldest packets until it fits.
// It does not allocate and never blocks. Packets that cannot fit in an
// empty ring are dropped.
func (q *Queue) Push(msec uint32, timings []uint32) {
	footprint := int32(len(timings) + headerSlots)
	if footprint > DataCapacity {
		q.dropped.Add(1)
		return
	}

	head := q.head.Load()
	for q.occupied(head)+int(footprint) > DataCapacity || head-q.tail.Load() >= PositionCapacity {
		if !q.evictOldest(head) {
			break
		}
	}

	start := q.writePos.Load()
	q.data[start].Store(uint32(len(timings)))
	q.data[wrap(start+1)].Store(msec)
	for i, d := range timings {
		q.data[wrap(start+headerSlots+uint32(i))].Store(d)
	}
	q.writePos.Store(wrap(start + uint32(footprint)))
	q.starts[head%PositionCapacity].Store(start)

	q.pushed.Add(1)
	// Publish only after the packet is fully written.
	q.head.Store(head + 1)
}

// occupied returns the slots held by packets tail..head-1. A non-empty
// queue whose range wraps onto itself fills the whole ring.
func (q *Queue) occupied(head uint32) int {
	tail := q.tail.Load()
	if tail == head {
		return 0
	}
	start := q.starts[tail%PositionCapacity].Load()
	n := int(wrap(q.writePos.Load() + DataCapacity - start))
	if n == 0 {
		return DataCapacity
	}
	return n
}

// evictOldest drops the tail packet. It reports false when the queue is
// already empty.
func (q *Queue) evictOldest(head uint32) bool {
	tail := q.tail.Load()
	if tail == head {
		return false
	}
	if q.tail.CompareAndSwap(tail, tail+1) {
		q.evicted.Add(1)
	}
	// A failed CAS means the consumer popped it first. The caller
	// re-reads occupancy either way.
	return true
}

// Pop removes and returns the oldest packet. ok is false when the queue is
// empty.
func (q *Queue) Pop() (p pulse.Packet, ok bool) {
	for {
		tail := q.tail.Load()
		if tail == q.head.Load() {
			return pulse.Packet{}, false
		}

		start := q.starts[tail%PositionCapacity].Load()
		size := q.data[start].Load()
		if size > DataCapacity-headerSlots {
			// Torn read of a slot being rewritten; the CAS below must fail.
			size = 0
		}
		msec := q.data[wrap(start+1)].Load()
		timings := make([]uint32, size)
		for i := range timings {
			timings[i] = q.data[wrap(start+headerSlots+uint32(i))].Load()
		}

		if q.tail.CompareAndSwap(tail, tail+1) {
			q.popped.Add(1)
			return pulse.Packet{Msec: msec, Timings: timings}, true
		}
	}
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	return int(q.head.Load() - q.tail.Load())
}

// Used returns the number of slots held by queued packets. Called
// concurrently with Push it may include a packet still being written.
func (q *Queue) Used() int {
	return q.occupied(q.head.Load())
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pushed:   q.pushed.Load(),
		Evicted:  q.evicted.Load(),
		Popped:   q.popped.Load(),
		Dropped:  q.dropped.Load(),
		Queued:   q.Len(),
		UsedSize: q.Used(),
	}
}
