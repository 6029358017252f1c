package pulse

// Packet is one capture session: the pulse durations between two sync gaps
// and the millisecond clock value when the session ended.
// A Packet is never modified after capture.
type Packet struct {
	Msec    uint32
	Timings []uint32
}

// Len returns the number of durations in the packet.
func (p Packet) Len() int {
	return len(p.Timings)
}

// At returns the duration at position i. The last position, and anything
// past it, always reads as the Terminator: Lacrosse sensors end a packet
// with a gap of arbitrary length.
func (p Packet) At(i int) uint32 {
	if i >= len(p.Timings)-1 {
		return Terminator
	}
	return p.Timings[i]
}
