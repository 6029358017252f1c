package pulse

import "testing"

func TestClassifyShortLongStrict(t *testing.T) {
	tests := []struct {
		d    uint32
		want Class
	}{
		{0, None},
		{340, None},
		{341, ShortPulse},
		{550, ShortPulse},
		{759, ShortPulse},
		{760, None},
		{975, None},
		{1190, None},
		{1191, LongPulse},
		{1400, LongPulse},
		{1609, LongPulse},
		{1610, None},
		{5000, None},
	}

	for _, tt := range tests {
		if got := ClassifyShortLong(tt.d, false); got != tt.want {
			t.Errorf("ClassifyShortLong(%d, strict): got %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestClassifyShortLongFuzzy(t *testing.T) {
	tests := []struct {
		d    uint32
		want Class
	}{
		{0, None},
		{51, ShortPulse},
		{800, ShortPulse},
		// Overlap between the widened windows resolves to LONG.
		{950, LongPulse},
		{1050, LongPulse},
		{1899, LongPulse},
		{1900, None},
	}

	for _, tt := range tests {
		if got := ClassifyShortLong(tt.d, true); got != tt.want {
			t.Errorf("ClassifyShortLong(%d, fuzzy): got %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestStrictWinsOverFuzzy(t *testing.T) {
	// 1200 is a strict LONG; fuzzy mode must not reinterpret it.
	if got := ClassifyShortLong(1200, true); got != LongPulse {
		t.Errorf("got %s, want LONG", got)
	}
	if got := ClassifyShortLong(600, true); got != ShortPulse {
		t.Errorf("got %s, want SHORT", got)
	}
}

func TestIsFixed(t *testing.T) {
	tests := []struct {
		d     uint32
		fuzzy bool
		want  bool
	}{
		{975, false, true},
		{766, false, true},
		{765, false, false},
		{1184, false, true},
		{1185, false, false},
		{500, false, false},
		{500, true, true},
		{1450, true, true},
		{1475, true, false},
		{4999, false, false},
		{5000, false, true},
		{5999, false, true},
		{6000, false, false},
		{5500, true, true},
	}

	for _, tt := range tests {
		if got := IsFixed(tt.d, tt.fuzzy); got != tt.want {
			t.Errorf("IsFixed(%d, fuzzy=%v): got %v, want %v", tt.d, tt.fuzzy, got, tt.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	for _, d := range []uint32{550, 975, 1400} {
		if !IsValid(d) {
			t.Errorf("IsValid(%d): got false, want true", d)
		}
	}
	for _, d := range []uint32{0, 200, 762, 1188, 2000, 5000} {
		if IsValid(d) {
			t.Errorf("IsValid(%d): got true, want false", d)
		}
	}
}

func TestClassBit(t *testing.T) {
	if ShortPulse.Bit() != 1 {
		t.Error("SHORT should encode 1")
	}
	if LongPulse.Bit() != 0 {
		t.Error("LONG should encode 0")
	}
}

func TestPacketAtLastIsTerminator(t *testing.T) {
	p := Packet{Msec: 42, Timings: []uint32{550, 975, 1400, 975, 12000}}

	if p.Len() != 5 {
		t.Fatalf("Len: got %d, want 5", p.Len())
	}
	if p.At(0) != 550 {
		t.Errorf("At(0): got %d, want 550", p.At(0))
	}
	if p.At(4) != Terminator {
		t.Errorf("At(4): got %d, want %d", p.At(4), Terminator)
	}
	if p.At(9) != Terminator {
		t.Errorf("At(9): got %d, want %d", p.At(9), Terminator)
	}
}
