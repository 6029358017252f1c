package decoder

import "github.com/sweeney/lacrosse-receiver/internal/pulse"

// Backward positions point at the last duration of a bit, which is the end
// of its FIXED run. A read moving backward returns the durations it used.

// fixedRunBack mirrors fixedRun, summing from pos toward the packet start.
func (f *frame) fixedRunBack(pos int, ungreedy, fuzzy bool) int {
	var sum uint32
	for t := pos; t >= 0; t-- {
		sum += f.p.At(t)
		if t < f.size-1 && sum > pulse.Long {
			break
		}
		if !pulse.IsFixed(sum, fuzzy) {
			continue
		}
		if ungreedy {
			return pos - t
		}
		for t--; t >= 0; t-- {
			sum += f.p.At(t)
			if !pulse.IsFixed(sum, fuzzy) {
				return pos - t - 1
			}
		}
		return pos
	}
	return -1
}

func (f *frame) bitBack(pos int, ungreedy, fuzzy bool) (uint8, int) {
	n := f.fixedRunBack(pos, ungreedy, fuzzy)
	if n == -1 || pos-n < 1 {
		return 0, 0
	}
	c := pulse.ClassifyShortLong(f.p.At(pos-n-1), fuzzy)
	if c == pulse.None {
		return 0, 0
	}
	return c.Bit(), n + 2
}

// bitsBack reads n bits ending at pos, LSB first, strict then fuzzy.
func (f *frame) bitsBack(pos, n int, ungreedy bool) (uint8, int) {
	if v, used := f.bitsBackIn(pos, n, ungreedy, false); used > 0 {
		return v, used
	}
	return f.bitsBackIn(pos, n, ungreedy, true)
}

func (f *frame) bitsBackIn(pos, n int, ungreedy, fuzzy bool) (uint8, int) {
	var v uint8
	t := pos
	for i := 0; i < n; i++ {
		if t < 0 {
			return 0, 0
		}
		b, used := f.bitBack(t, ungreedy, fuzzy)
		if used == 0 {
			return 0, 0
		}
		v |= b << i
		t -= used
	}
	return v, pos - t
}

func (f *frame) bitBackLadder(pos int) (uint8, int) {
	if b, used := f.bitBack(pos, false, false); used > 0 {
		return b, used
	}
	return f.bitBack(pos, false, true)
}

// repeatBack reads the repeated measure ending at pos: ones, then tens.
func (f *frame) repeatBack(pos int, ungreedy bool) (uint8, int) {
	ones, n := f.bitsBack(pos, 4, ungreedy)
	if n == 0 || ones > 9 {
		return 0, 0
	}
	tens, m := f.bitsBack(pos-n, 4, ungreedy)
	if m == 0 || tens > 9 {
		return 0, 0
	}
	return tens*10 + ones, n + m
}

// measureBack reads tenths, ones, tens and the parity bit ending at pos and
// checks parity.
func (f *frame) measureBack(pos int, ungreedy bool) (units, decimals, parity uint8, used int) {
	t := pos
	var ones uint8
	for digit := 2; digit >= 0; digit-- {
		v, n := f.bitsBack(t, 4, ungreedy)
		if n == 0 || v > 9 {
			return 0, 0, 0, 0
		}
		switch digit {
		case 2:
			decimals = v
		case 1:
			units = v
		default:
			units += v * 10
		}
		t -= n
		ones += onesCount[v]
	}

	parity, n := f.bitBackLadder(t)
	if n == 0 {
		return 0, 0, 0, 0
	}
	t -= n
	if (ones+parity)%2 == 1 {
		return 0, 0, 0, 0
	}
	return units, decimals, parity, pos - t
}

// readBackward parses the packet from the sync gap toward the start,
// recording every field it recovers in r.
func (f *frame) readBackward(r *reading) bool {
	// The last duration is the sync gap, which doubles as the FIXED run of
	// the last checksum bit.
	t := f.size - 2
	c := pulse.ClassifyShortLong(f.p.At(t), false)
	if c == pulse.None {
		c = pulse.ClassifyShortLong(f.p.At(t), true)
	}
	if c == pulse.None {
		return false
	}
	sum := c.Bit()

	v, used := f.bitsBack(t-1, 3, false)
	if used == 0 {
		return false
	}
	sum |= v << 1
	t -= used + 1

	rep, used := f.repeatBack(t, false)
	if used == 0 {
		rep, used = f.repeatBack(t, true)
	}
	if used == 0 {
		return false
	}
	t -= used

	units, decimals, parity, used := f.measureBack(t, false)
	if used == 0 {
		units, decimals, parity, used = f.measureBack(t, true)
	}
	if used == 0 {
		return false
	}
	t -= used
	if rep != units {
		return false
	}
	r.units, r.decimals, r.parity, r.hasMeasure = units, decimals, parity, true

	// Sensor and type need 11 bits.
	if t < 22 {
		return false
	}

	sensor, used := f.bitsBack(t, 7, false)
	if used == 0 {
		return false
	}
	r.sensor, r.hasSensor = sensor, true
	t -= used

	v, used = f.bitsBack(t, 4, false)
	if _, valid := kindOf(v); used == 0 || !valid {
		v, used = f.bitsBack(t, 4, true)
	}
	if used == 0 {
		return false
	}
	kind, valid := kindOf(v)
	if !valid {
		return false
	}
	r.kind = kind

	if f.ignoreChecksum {
		return true
	}
	return sum == r.checksum()
}
