package decoder

// Minimum durations left after the header for type, sensor, parity and the
// three measure digits (24 bits).
const minAfterHeader = 48

// isPartOfHeader reports whether the low n bits of v appear anywhere in the
// header byte.
func isPartOfHeader(v uint8, n int) bool {
	mask := uint8(0xFF >> (8 - n))
	for i := 0; i <= 8-n; i++ {
		if (headerByte>>i)&mask == v {
			return true
		}
	}
	return false
}

// findHeader slides over the packet looking for a 0 bit followed by any
// bit, then extends the match while the decoded bits still fit inside the
// header. Leading header bits may have been lost, so a suffix of the header
// is enough. It returns the position right after the header.
func (f *frame) findHeader(fuzzy bool) (int, bool) {
	var header uint8
	found := false
	t := 0
	// Room for 2 header bits, type, sensor, parity and measure.
	for t < f.size-52 {
		b, used := f.bit(t, false, fuzzy)
		if used == 0 {
			t++
			continue
		}
		t += used
		if b != 0 {
			continue
		}
		b, used = f.bit(t, false, fuzzy)
		if used == 0 {
			t++
			continue
		}
		t += used
		header = b
		found = true
		break
	}
	if !found {
		return 0, false
	}

	n := 2
	var last int
	for {
		if t > f.size-minAfterHeader {
			return 0, false
		}
		b, used := f.bit(t, false, fuzzy)
		if used == 0 {
			return 0, false
		}
		header = header<<1 + b
		t += used
		last = used
		if n < 8 {
			n++
		}
		if !isPartOfHeader(header, n) {
			break
		}
	}

	// The last bit read is not part of the header.
	n--
	header >>= 1
	if header != headerByte&(0xFF>>(8-n)) {
		return 0, false
	}
	return t - last, true
}

// findHeaderSuffix tries header suffixes of 8 down to 3 bits at every
// position, for packets that lost too much of their head for findHeader.
func (f *frame) findHeaderSuffix() (int, bool) {
	for t := 0; t < f.size-54; t++ {
		for cut := 0; cut < 6; cut++ {
			want := uint8(headerByte & (0xFF >> cut))
			v, used := f.bits(t, 8-cut, false)
			if used == 0 || v != want {
				v, used = f.bits(t, 8-cut, true)
			}
			if used > 0 && v == want {
				return t + used, true
			}
		}
	}
	return 0, false
}

// measure reads the three measure digits starting at pos and checks parity.
func (f *frame) measure(pos int, parity uint8, ungreedy bool) (units, decimals uint8, used int) {
	t := pos
	ones := parity
	for digit := 0; digit < 3; digit++ {
		v, n := f.bits(t, 4, ungreedy)
		if n == 0 || v > 9 {
			return 0, 0, 0
		}
		switch digit {
		case 0:
			units = v * 10
		case 1:
			units += v
		default:
			decimals = v
		}
		t += n
		ones += onesCount[v]
	}
	if ones%2 == 1 {
		return 0, 0, 0
	}
	return units, decimals, t - pos
}

// repeat reads the two repeated measure digits starting at pos.
func (f *frame) repeat(pos int, ungreedy bool) (uint8, int) {
	tens, n := f.bits(pos, 4, ungreedy)
	if n == 0 || tens > 9 {
		return 0, 0
	}
	ones, m := f.bits(pos+n, 4, ungreedy)
	if m == 0 || ones > 9 {
		return 0, 0
	}
	return tens*10 + ones, n + m
}

// readForward parses the packet from the header on, recording every field
// it recovers in r.
func (f *frame) readForward(r *reading) bool {
	tHeader, ok := f.findHeader(false)
	if !ok {
		tHeader, ok = f.findHeader(true)
	}
	if !ok {
		tHeader, ok = f.findHeaderSuffix()
	}
	if !ok || f.size-tHeader < minAfterHeader {
		return false
	}

	v, used := f.bits(tHeader, 4, false)
	if _, valid := kindOf(v); used == 0 || !valid {
		v, used = f.bits(tHeader, 4, true)
	}
	if used == 0 {
		return false
	}
	kind, valid := kindOf(v)
	if !valid {
		return false
	}
	r.kind = kind
	t := tHeader + used

	sensor, used := f.bits(t, 7, false)
	if used == 0 {
		return false
	}
	t += used

	parity, used := f.bitLadder(t)
	if used == 0 {
		return false
	}
	t += used

	units, decimals, used := f.measure(t, parity, false)
	if used == 0 {
		units, decimals, used = f.measure(t, parity, true)
	}
	if used == 0 {
		return false
	}
	t += used

	// A valid measure vouches for the sensor address read before it.
	r.sensor, r.hasSensor = sensor, true
	r.units, r.decimals, r.parity, r.hasMeasure = units, decimals, parity, true

	if f.size-t < 16 {
		return f.ignoreChecksum
	}
	rep, used := f.repeat(t, false)
	if used == 0 {
		rep, used = f.repeat(t, true)
	}
	if used == 0 {
		return f.ignoreChecksum
	}
	t += used
	if rep != units {
		r.hasMeasure = false
		return false
	}

	if f.ignoreChecksum {
		return true
	}
	if f.size-t < 8 {
		return false
	}
	sum, used := f.bits(t, 4, false)
	return used > 0 && sum == r.checksum()
}
