package decoder

import "fmt"

// Kind identifies what a measurement reports.
type Kind uint8

const (
	Unknown Kind = iota
	Temperature
	Humidity
)

// String returns the short tag used in capture files and log lines.
func (k Kind) String() string {
	switch k {
	case Temperature:
		return "TMP"
	case Humidity:
		return "HUM"
	default:
		return "???"
	}
}

// Unit returns the display unit for the kind.
func (k Kind) Unit() string {
	switch k {
	case Temperature:
		return "°C"
	case Humidity:
		return "%rh"
	default:
		return ""
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "TMP":
		return Temperature, nil
	case "HUM":
		return Humidity, nil
	case "???":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("unknown measurement kind %q", s)
}

// Measurement is one decoded sensor reading. A Measurement with Kind Unknown
// carries no reading; only Msec is meaningful in that case.
//
// Units and Decimals are decimal digits as sent on the wire. For
// temperatures the +50 °C wire offset has already been removed and Sign
// holds the sign of the result.
type Measurement struct {
	Msec       uint32
	SensorAddr uint8
	Kind       Kind
	Units      uint8
	Decimals   uint8
	Sign       int8
}

// Valid reports whether the measurement carries a reading.
func (m Measurement) Valid() bool {
	return m.Kind != Unknown
}

// Value returns the reading as a float, sign applied.
func (m Measurement) Value() float64 {
	v := float64(int(m.Units)*10+int(m.Decimals)) / 10
	if m.Sign < 0 {
		return -v
	}
	return v
}

func (m Measurement) String() string {
	if !m.Valid() {
		return "unknown"
	}
	sign := ""
	if m.Sign < 0 {
		sign = "-"
	}
	return fmt.Sprintf("sensor #%d: %s%d.%d %s", m.SensorAddr, sign, m.Units, m.Decimals, m.Kind.Unit())
}

// fromWire builds a measurement from raw wire digits. Temperatures are sent
// as value+50 and the offset is removed digit by digit so no precision is
// lost: raw 45.3 becomes -4.7, not -4.699.
func fromWire(msec uint32, sensor uint8, kind Kind, raw, decimals uint8) Measurement {
	m := Measurement{
		Msec:       msec,
		SensorAddr: sensor,
		Kind:       kind,
		Units:      raw,
		Decimals:   decimals,
		Sign:       1,
	}
	if kind != Temperature {
		return m
	}
	if raw >= tempOffset {
		m.Units = raw - tempOffset
		return m
	}
	m.Sign = -1
	m.Units = tempOffset - raw
	if decimals != 0 {
		m.Units--
		m.Decimals = 10 - decimals
	}
	return m
}

// toWire is the inverse of fromWire.
func toWire(kind Kind, sign int8, units, decimals uint8) (raw, dec uint8) {
	if kind != Temperature {
		return units, decimals
	}
	if sign >= 0 {
		return units + tempOffset, decimals
	}
	if decimals == 0 {
		return tempOffset - units, 0
	}
	return tempOffset - units - 1, 10 - decimals
}

const tempOffset = 50
