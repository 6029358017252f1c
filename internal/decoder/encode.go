package decoder

import (
	"fmt"

	"github.com/sweeney/lacrosse-receiver/internal/pulse"
)

// FrameBits is the length of one transmission.
const FrameBits = 44

// Transmission is one reading as a sensor would send it. Encode renders it
// as the pulse durations a receiver would capture.
type Transmission struct {
	SensorAddr uint8
	Kind       Kind // Temperature or Humidity
	Sign       int8
	Units      uint8
	Decimals   uint8
}

// TransmissionOf returns the transmission that carries m.
func TransmissionOf(m Measurement) Transmission {
	return Transmission{
		SensorAddr: m.SensorAddr,
		Kind:       m.Kind,
		Sign:       m.Sign,
		Units:      m.Units,
		Decimals:   m.Decimals,
	}
}

// Validate reports whether the reading fits the wire format.
func (tx Transmission) Validate() error {
	if tx.SensorAddr > 0x7F {
		return fmt.Errorf("sensor address %d out of range", tx.SensorAddr)
	}
	if tx.Decimals > 9 {
		return fmt.Errorf("decimals %d out of range", tx.Decimals)
	}
	switch tx.Kind {
	case Humidity:
		if tx.Units > 99 {
			return fmt.Errorf("humidity %d.%d out of range", tx.Units, tx.Decimals)
		}
	case Temperature:
		// Wire range is 00.0 to 99.9, i.e. -50.0 to 49.9 °C.
		tenths := int(tx.Units)*10 + int(tx.Decimals)
		if tx.Sign < 0 {
			tenths = -tenths
		}
		if tenths < -500 || tenths > 499 {
			return fmt.Errorf("temperature %d.%d out of range", tx.Units, tx.Decimals)
		}
	default:
		return fmt.Errorf("cannot encode kind %s", tx.Kind)
	}
	return nil
}

// Bits returns the 44 transmitted bits, first bit first.
func (tx Transmission) Bits() ([FrameBits]uint8, error) {
	var out [FrameBits]uint8
	if err := tx.Validate(); err != nil {
		return out, err
	}
	raw, dec := toWire(tx.Kind, tx.Sign, tx.Units, tx.Decimals)
	tens, ones := raw/10, raw%10

	parity := (onesCount[tens] + onesCount[ones] + onesCount[dec]) % 2
	var kind uint8 = nibbleTemperature
	if tx.Kind == Humidity {
		kind = nibbleHumidity
	}

	i := 0
	put := func(v uint8, n int) {
		for b := n - 1; b >= 0; b-- {
			out[i] = (v >> b) & 1
			i++
		}
	}
	put(headerByte, 8)
	put(kind, 4)
	put(tx.SensorAddr, 7)
	put(parity, 1)
	put(tens, 4)
	put(ones, 4)
	put(dec, 4)
	put(tens, 4)
	put(ones, 4)
	put(checksum(kind, tx.SensorAddr, parity, raw, dec), 4)
	return out, nil
}

// EncodeBits renders bits as nominal pulse durations: each bit is a SHORT
// (1) or LONG (0) pulse followed by a FIXED spacing, and the last spacing is
// the sync gap.
func EncodeBits(bits []uint8) []uint32 {
	out := make([]uint32, 0, 2*len(bits))
	for _, b := range bits {
		if b == 1 {
			out = append(out, pulse.Short)
		} else {
			out = append(out, pulse.Long)
		}
		out = append(out, pulse.Fixed)
	}
	if len(out) > 0 {
		out[len(out)-1] = pulse.Terminator
	}
	return out
}

// Encode renders tx as the 88 durations of a clean capture.
func (tx Transmission) Encode() ([]uint32, error) {
	bits, err := tx.Bits()
	if err != nil {
		return nil, err
	}
	return EncodeBits(bits[:]), nil
}
