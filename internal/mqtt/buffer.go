package mqtt

import "log"

// pending is a serialized message held for replay after reconnection.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds the newest messages published while the broker was
// unreachable. Not safe for concurrent use; RealPublisher guards it.
type ringBuffer struct {
	msgs    []pending
	next    int // write position
	count   int
	dropped int // evicted since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{msgs: make([]pending, capacity)}
}

func (r *ringBuffer) push(msg pending) {
	if r.count == len(r.msgs) {
		if r.dropped == 0 {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", len(r.msgs))
		}
		r.dropped++
	} else {
		r.count++
	}
	r.msgs[r.next] = msg
	r.next = (r.next + 1) % len(r.msgs)
}

// drain returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drain() []pending {
	if r.count == 0 {
		return nil
	}

	out := make([]pending, r.count)
	first := (r.next - r.count + len(r.msgs)) % len(r.msgs)
	for i := range out {
		out[i] = r.msgs[(first+i)%len(r.msgs)]
		r.msgs[(first+i)%len(r.msgs)] = pending{}
	}

	if r.dropped > 0 {
		log.Printf("mqtt: %d buffered messages were dropped while offline", r.dropped)
	}
	r.count, r.next, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
