package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packetOf returns n durations all equal to v.
func packetOf(n int, v uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestPopEmpty(t *testing.T) {
	q := New()

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Used())
}

func TestPushPopPreservesPacket(t *testing.T) {
	q := New()
	timings := []uint32{550, 975, 1400, 975, 5000}

	q.Push(1234, timings)
	require.Equal(t, 1, q.Len())
	assert.Equal(t, len(timings)+2, q.Used())

	p, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(1234), p.Msec)
	assert.Equal(t, timings, p.Timings)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Used())

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestFIFOOrder(t *testing.T) {
	q := New()
	for i := 0; i < 10; i++ {
		q.Push(uint32(i), packetOf(64, uint32(i)))
	}

	for i := 0; i < 10; i++ {
		p, ok := q.Pop()
		require.True(t, ok, "pop %d", i)
		assert.Equal(t, uint32(i), p.Msec)
		assert.Equal(t, uint32(i), p.Timings[0])
	}
}

func TestPushEvictsOldestToFit(t *testing.T) {
	q := New()

	// 8 packets of 120 durations: footprint 122 each, 976 slots used.
	for i := 0; i < 8; i++ {
		q.Push(uint32(i), packetOf(120, uint32(i)))
	}
	require.Equal(t, 8, q.Len())
	require.Equal(t, 8*122, q.Used())

	// 976 + 122 > 1024: exactly one eviction makes room.
	q.Push(8, packetOf(120, 8))
	assert.Equal(t, 8, q.Len())
	assert.Equal(t, 8*122, q.Used())
	assert.Equal(t, uint64(1), q.Stats().Evicted)

	// A 64-duration packet needs 66 slots; 1024-976 = 48 free, so one more
	// eviction is needed.
	q.Push(9, packetOf(64, 9))
	assert.Equal(t, uint64(2), q.Stats().Evicted)
	assert.Equal(t, 7*122+66, q.Used())

	var got []uint32
	for {
		p, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, p.Msec)
	}
	assert.Equal(t, []uint32{2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.Equal(t, 0, q.Used())
}

func TestPopFreesSpaceForNextPush(t *testing.T) {
	q := New()
	for i := 0; i < 8; i++ {
		q.Push(uint32(i), packetOf(120, uint32(i)))
	}

	// 976 - 122 = 854 slots after the pop; another 122 fits without
	// touching the remaining packets.
	p, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint32(0), p.Msec)
	assert.Equal(t, 7*122, q.Used())

	q.Push(8, packetOf(120, 8))
	assert.Equal(t, uint64(0), q.Stats().Evicted)
	assert.Equal(t, 8, q.Len())
	assert.Equal(t, 8*122, q.Used())

	p, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(1), p.Msec)
}

func TestExactlyFullRing(t *testing.T) {
	q := New()

	// 8 packets of 126 durations fill all 1024 slots.
	for i := 0; i < 8; i++ {
		q.Push(uint32(i), packetOf(126, uint32(i)))
	}
	require.Equal(t, 8, q.Len())
	assert.Equal(t, DataCapacity, q.Used())
	assert.Equal(t, uint64(0), q.Stats().Evicted)

	q.Push(8, packetOf(126, 8))
	assert.Equal(t, uint64(1), q.Stats().Evicted)
	assert.Equal(t, DataCapacity, q.Used())

	for want := uint32(1); want <= 8; want++ {
		p, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, p.Msec)
		assert.Equal(t, want, p.Timings[125])
	}
	assert.Equal(t, 0, q.Used())
}

func TestEvictionMultiplePackets(t *testing.T) {
	q := New()

	// 15 small packets of 64 durations: 15*66 = 990 slots.
	for i := 0; i < 15; i++ {
		q.Push(uint32(i), packetOf(64, 1))
	}
	require.Equal(t, 990, q.Used())

	// 120 durations need 122 slots; 34 free, so two 66-slot packets go.
	q.Push(100, packetOf(120, 2))
	assert.Equal(t, uint64(2), q.Stats().Evicted)
	assert.Equal(t, 13*66+122, q.Used())
	assert.LessOrEqual(t, q.Used(), DataCapacity)

	p, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(2), p.Msec)
}

func TestWrapAroundKeepsData(t *testing.T) {
	q := New()

	// Push and pop enough to wrap both rings several times.
	for i := 0; i < 500; i++ {
		n := 64 + i%57
		timings := make([]uint32, n)
		for j := range timings {
			timings[j] = uint32(i*1000 + j)
		}
		q.Push(uint32(i), timings)

		p, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, uint32(i), p.Msec)
		require.Equal(t, timings, p.Timings)
	}
	assert.Equal(t, 0, q.Used())
}

func TestPositionRingNeverOverruns(t *testing.T) {
	q := New()

	// Zero-length packets use 2 slots, so the data ring alone would allow
	// 512 of them; the start-offset ring caps the queue first.
	for i := 0; i < 300; i++ {
		q.Push(uint32(i), nil)
	}
	assert.Equal(t, PositionCapacity, q.Len())
	assert.Equal(t, 2*PositionCapacity, q.Used())

	p, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(300-PositionCapacity), p.Msec)
}

func TestOversizedPacketDropped(t *testing.T) {
	q := New()
	q.Push(1, packetOf(DataCapacity, 1))

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, uint64(1), q.Stats().Dropped)
}

func TestConcurrentPushPop(t *testing.T) {
	q := New()
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			timings := packetOf(64+i%50, uint32(i))
			q.Push(uint32(i), timings)
		}
	}()

	var last int64 = -1
	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		for {
			p, ok := q.Pop()
			if !ok {
				return
			}
			// Every packet is internally consistent and in capture order.
			require.Equal(t, 64+int(p.Msec)%50, len(p.Timings))
			for _, d := range p.Timings {
				require.Equal(t, p.Msec, d)
			}
			require.Greater(t, int64(p.Msec), last)
			last = int64(p.Msec)
			received++
		}
	}

	for {
		select {
		case <-done:
			drain()
			s := q.Stats()
			assert.Equal(t, uint64(n), s.Pushed)
			assert.Equal(t, uint64(received), s.Popped)
			assert.Equal(t, s.Pushed, s.Popped+s.Evicted)
			assert.Equal(t, 0, q.Used())
			return
		default:
			drain()
		}
	}
}
