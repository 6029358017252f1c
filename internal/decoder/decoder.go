// Package decoder recovers Lacrosse TX3/TX4/TX7U readings from candidate
// packets of pulse durations.
//
// A transmission is 44 bits. Each bit is a SHORT (1) or LONG (0) pulse
// followed by a FIXED spacing:
//
//	header  type  sensor  parity  tens  ones  tenths  tens  ones  checksum
//	   8     4      7       1      4     4      4      4     4       4
//
// The header is always 0x0A. Type is 0x0 for temperature, 0xE for humidity.
// Parity makes the count of one bits over parity and the three digits even.
// The last two digits repeat the first two. The checksum is the low nibble
// of the sum of all preceding nibbles.
//
// Leading bits are often lost while the receiver AGC settles, and noise can
// split or merge pulses, so decoding is heuristic. The packet is parsed
// forward from a searched header and, if that fails, backward from the sync
// gap. Every field read falls back from strict to fuzzy tolerance, and from
// greedy to ungreedy FIXED consumption.
package decoder

import "github.com/sweeney/lacrosse-receiver/internal/pulse"

const headerByte = 0x0A

// Type nibbles.
const (
	nibbleTemperature = 0x0
	nibbleHumidity    = 0xE
)

// onesCount is the number of one bits in each decimal digit.
var onesCount = [10]uint8{0, 1, 1, 2, 1, 2, 2, 3, 1, 2}

// Decoder turns packets into measurements. It holds no per-packet state and
// is safe for concurrent use.
type Decoder struct {
	ignoreChecksum bool
}

// New returns a decoder. With ignoreChecksum set, a checksum mismatch does
// not reject a reading, and a reading whose fields were all recovered by
// some combination of the forward and backward parses is accepted.
func New(ignoreChecksum bool) *Decoder {
	return &Decoder{ignoreChecksum: ignoreChecksum}
}

// Decode returns the measurement carried by p, or a measurement of Kind
// Unknown stamped with p.Msec.
func (d *Decoder) Decode(p pulse.Packet) Measurement {
	r, ok := d.decode(p)
	if !ok {
		return Measurement{Msec: p.Msec}
	}
	return fromWire(p.Msec, r.sensor, r.kind, r.units, r.decimals)
}

func (d *Decoder) decode(p pulse.Packet) (reading, bool) {
	// Up to 12 leading bits may be missing; beyond that the sensor address
	// cannot be recovered.
	if p.Len() < pulse.MinPacketLen {
		return reading{}, false
	}

	f := &frame{p: p, size: p.Len(), ignoreChecksum: d.ignoreChecksum}

	var fwd reading
	if f.readForward(&fwd) {
		return fwd, true
	}
	var bwd reading
	if f.readBackward(&bwd) {
		return bwd, true
	}
	if !d.ignoreChecksum {
		return reading{}, false
	}
	// Most readings that fail only on checksum or on the trailing fields
	// are correct, so accept whatever the two parses recovered together.
	r := merge(fwd, bwd)
	return r, r.complete()
}

// reading holds the wire fields recovered by one parse.
type reading struct {
	kind       Kind
	sensor     uint8
	hasSensor  bool
	units      uint8 // tens*10 + ones, offset still applied
	decimals   uint8
	parity     uint8
	hasMeasure bool
}

func (r reading) complete() bool {
	return r.kind != Unknown && r.hasSensor && r.hasMeasure
}

func (r reading) checksum() uint8 {
	var kind uint8 = nibbleTemperature
	if r.kind == Humidity {
		kind = nibbleHumidity
	}
	return checksum(kind, r.sensor, r.parity, r.units, r.decimals)
}

func checksum(kind, sensor, parity, units, decimals uint8) uint8 {
	sum := uint(headerByte>>4) + uint(headerByte&0x0F) +
		uint(kind) +
		uint(sensor>>3) + uint((sensor<<1)&0x0F) + uint(parity) +
		uint(units/10)*2 + uint(units%10)*2 +
		uint(decimals)
	return uint8(sum & 0x0F)
}

// merge combines two partial readings. Fields recovered by the backward
// parse win.
func merge(fwd, bwd reading) reading {
	out := fwd
	if bwd.kind != Unknown {
		out.kind = bwd.kind
	}
	if bwd.hasSensor {
		out.sensor = bwd.sensor
		out.hasSensor = true
	}
	if bwd.hasMeasure {
		out.units = bwd.units
		out.decimals = bwd.decimals
		out.parity = bwd.parity
		out.hasMeasure = true
	}
	return out
}

func kindOf(nibble uint8) (Kind, bool) {
	switch nibble {
	case nibbleTemperature:
		return Temperature, true
	case nibbleHumidity:
		return Humidity, true
	}
	return Unknown, false
}

// frame is the state of one Decode call.
//
// Positions index p. A field read returns the number of durations it used;
// zero means the read failed.
type frame struct {
	p              pulse.Packet
	size           int
	ignoreChecksum bool
}

// fixedRun returns how many durations after the first one, starting at pos,
// make up a FIXED spacing, or -1. Ungreedy stops at the first prefix sum in
// the FIXED window; greedy extends the run while the sum stays in it.
func (f *frame) fixedRun(pos int, ungreedy, fuzzy bool) int {
	var sum uint32
	for t := pos; t < f.size; t++ {
		sum += f.p.At(t)
		if t < f.size-1 && sum > pulse.Long {
			break
		}
		if !pulse.IsFixed(sum, fuzzy) {
			continue
		}
		if ungreedy {
			return t - pos
		}
		for t++; t < f.size; t++ {
			sum += f.p.At(t)
			if !pulse.IsFixed(sum, fuzzy) {
				return t - pos - 1
			}
		}
		return f.size - pos - 1
	}
	return -1
}

// bit reads one bit at pos. When the pulse at pos does not classify, short
// pulses are merged until their sum does and the following FIXED run lands
// on another bit pulse or the end of the packet.
func (f *frame) bit(pos int, ungreedy, fuzzy bool) (uint8, int) {
	if pos >= f.size {
		return 0, 0
	}
	if c := pulse.ClassifyShortLong(f.p.At(pos), fuzzy); c != pulse.None {
		if n := f.fixedRun(pos+1, ungreedy, fuzzy); n > -1 {
			return c.Bit(), n + 2
		}
	}

	var sum uint32
	for t := pos; t < f.size; t++ {
		sum += f.p.At(t)
		if c := pulse.ClassifyShortLong(sum, fuzzy); c != pulse.None {
			n := f.fixedRun(t+1, ungreedy, fuzzy)
			if n == -1 {
				return 0, 0
			}
			next := t + n + 2
			if next == f.size || pulse.ClassifyShortLong(f.p.At(next), fuzzy) != pulse.None {
				return c.Bit(), next - pos
			}
		}
		if sum > pulse.Long {
			break
		}
	}
	return 0, 0
}

// bits reads n bits MSB first, strict then fuzzy.
func (f *frame) bits(pos, n int, ungreedy bool) (uint8, int) {
	if v, used := f.bitsIn(pos, n, ungreedy, false); used > 0 {
		return v, used
	}
	return f.bitsIn(pos, n, ungreedy, true)
}

func (f *frame) bitsIn(pos, n int, ungreedy, fuzzy bool) (uint8, int) {
	var v uint8
	t := 0
	for i := 0; i < n; i++ {
		b, used := f.bit(pos+t, ungreedy, fuzzy)
		if used == 0 {
			return 0, 0
		}
		v = v<<1 | b
		t += used
	}
	return v, t
}

// bitLadder reads a single bit, strict then fuzzy.
func (f *frame) bitLadder(pos int) (uint8, int) {
	if b, used := f.bit(pos, false, false); used > 0 {
		return b, used
	}
	return f.bit(pos, false, true)
}
