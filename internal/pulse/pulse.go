// Package pulse classifies Lacrosse pulse durations and defines the
// candidate packet view shared by the capture and decoding stages.
// This package has NO external dependencies and no state.
package pulse

// Reference pulse widths in microseconds.
const (
	Short      = 550  // bit value 1
	Long       = 1400 // bit value 0
	Fixed      = 975  // spacing after every bit pulse
	Terminator = 5000 // minimum width of the sync gap that ends a packet

	Tolerance      = 210 // strict window is width ± Tolerance
	FuzzyTolerance = 500 // fuzzy window is width ± FuzzyTolerance

	// TerminatorSlack bounds the gap accepted as a FIXED continuation and
	// the gap stored verbatim at the end of a captured packet.
	TerminatorSlack = 1000
)

// MinPacketLen is the minimum number of durations in a candidate packet
// (32 bits). Up to 12 leading bits may be lost; beyond that the sensor
// address cannot be recovered.
const MinPacketLen = 64

// Class is the result of classifying a bit pulse.
type Class uint8

const (
	None Class = iota
	ShortPulse
	LongPulse
)

// Bit returns the bit value encoded by the class: LONG is 0, SHORT is 1.
func (c Class) Bit() byte {
	if c == ShortPulse {
		return 1
	}
	return 0
}

func (c Class) String() string {
	switch c {
	case ShortPulse:
		return "SHORT"
	case LongPulse:
		return "LONG"
	default:
		return "NONE"
	}
}

func within(d uint32, width, tol uint32) bool {
	return d > width-tol && d < width+tol
}

// ClassifyShortLong classifies d as a SHORT or LONG bit pulse. Strict windows
// are checked first; fuzzy windows only when fuzzy is set.
func ClassifyShortLong(d uint32, fuzzy bool) Class {
	if within(d, Long, Tolerance) {
		return LongPulse
	}
	if within(d, Short, Tolerance) {
		return ShortPulse
	}
	if fuzzy {
		if within(d, Long, FuzzyTolerance) {
			return LongPulse
		}
		if within(d, Short, FuzzyTolerance) {
			return ShortPulse
		}
	}
	return None
}

// IsFixed reports whether d is a FIXED spacing. The sync gap itself, up to
// TerminatorSlack over the minimum, counts as FIXED so the last bit of a
// packet decodes like any other.
func IsFixed(d uint32, fuzzy bool) bool {
	if d >= Terminator && d < Terminator+TerminatorSlack {
		return true
	}
	if fuzzy {
		return within(d, Fixed, FuzzyTolerance)
	}
	return within(d, Fixed, Tolerance)
}

// IsLongShort reports whether d is a strict SHORT or LONG pulse.
func IsLongShort(d uint32) bool {
	return ClassifyShortLong(d, false) != None
}

// IsValid reports whether d is a strict SHORT, LONG or FIXED pulse.
func IsValid(d uint32) bool {
	return within(d, Fixed, Tolerance) || IsLongShort(d)
}

// IsTerminator reports whether d ends a packet.
func IsTerminator(d uint32) bool {
	return d >= Terminator
}
