// Package capfile reads recorded capture files: candidate packets together
// with the reading each one is expected to decode to.
//
// A file is a whitespace-separated token stream. The first token is the
// record count. Each record is
//
//	msec n value sensor kind d1 d2 ... dn
//
// where value is units.decimals with an optional leading minus sign, kind
// is TMP, HUM or ??? and d1..dn are pulse durations in microseconds.
package capfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/pulse"
)

// maxDurations bounds n so a corrupt file cannot request a huge allocation.
const maxDurations = 4096

// ErrTruncated is returned when the file ends inside a record.
var ErrTruncated = errors.New("capfile: unexpected end of file")

// Record is one recorded packet.
type Record struct {
	Packet pulse.Packet
	// Want is the expected decoding. Want.Msec equals Packet.Msec.
	Want decoder.Measurement
}

// Load parses the capture file at path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	defer f.Close()

	recs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Parse reads a capture file from r.
func Parse(r io.Reader) ([]Record, error) {
	tok := &tokens{s: bufio.NewScanner(r)}
	tok.s.Split(bufio.ScanWords)

	count, err := tok.uint("record count", 1<<20)
	if err != nil {
		return nil, err
	}

	recs := make([]Record, 0, count)
	for i := 0; i < int(count); i++ {
		rec, err := parseRecord(tok)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseRecord(tok *tokens) (Record, error) {
	msec, err := tok.uint("msec", 1<<32-1)
	if err != nil {
		return Record{}, err
	}
	n, err := tok.uint("duration count", maxDurations)
	if err != nil {
		return Record{}, err
	}
	value, err := tok.next("value")
	if err != nil {
		return Record{}, err
	}
	sign, units, decimals, err := parseValue(value)
	if err != nil {
		return Record{}, err
	}
	sensor, err := tok.uint("sensor", 0x7F)
	if err != nil {
		return Record{}, err
	}
	tag, err := tok.next("kind")
	if err != nil {
		return Record{}, err
	}
	kind, err := decoder.ParseKind(tag)
	if err != nil {
		return Record{}, err
	}

	timings := make([]uint32, n)
	for j := range timings {
		d, err := tok.uint("duration", 1<<32-1)
		if err != nil {
			return Record{}, err
		}
		timings[j] = uint32(d)
	}

	rec := Record{
		Packet: pulse.Packet{Msec: uint32(msec), Timings: timings},
		Want: decoder.Measurement{
			Msec:       uint32(msec),
			SensorAddr: uint8(sensor),
			Kind:       kind,
			Units:      units,
			Decimals:   decimals,
			Sign:       sign,
		},
	}
	if kind == decoder.Unknown {
		rec.Want = decoder.Measurement{Msec: uint32(msec)}
	}
	return rec, nil
}

// parseValue splits "-4.7" into sign, units and decimals.
func parseValue(s string) (sign int8, units, decimals uint8, err error) {
	sign = 1
	v := s
	if strings.HasPrefix(v, "-") {
		sign = -1
		v = v[1:]
	}
	whole, frac, ok := strings.Cut(v, ".")
	if !ok || len(frac) != 1 {
		return 0, 0, 0, fmt.Errorf("value %q: want units.decimals", s)
	}
	u, err := strconv.ParseUint(whole, 10, 8)
	if err != nil || u > 99 {
		return 0, 0, 0, fmt.Errorf("value %q: bad units", s)
	}
	d, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("value %q: bad decimals", s)
	}
	return sign, uint8(u), uint8(d), nil
}

type tokens struct {
	s *bufio.Scanner
}

func (t *tokens) next(what string) (string, error) {
	if !t.s.Scan() {
		if err := t.s.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", what, err)
		}
		return "", fmt.Errorf("reading %s: %w", what, ErrTruncated)
	}
	return t.s.Text(), nil
}

func (t *tokens) uint(what string, max uint64) (uint64, error) {
	s, err := t.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: not a number", what, s)
	}
	if v > max {
		return 0, fmt.Errorf("%s %d out of range", what, v)
	}
	return v, nil
}
