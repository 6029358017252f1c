package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/logic"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "readings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func rd(offset time.Duration, sensor uint8, kind decoder.Kind, sign int8, units, decimals uint8) logic.Reading {
	return logic.Reading{
		Timestamp: t0.Add(offset),
		Measurement: decoder.Measurement{
			Msec:       uint32(offset.Milliseconds()),
			SensorAddr: sensor,
			Kind:       kind,
			Sign:       sign,
			Units:      units,
			Decimals:   decimals,
		},
	}
}

func TestEmptyStore(t *testing.T) {
	s := openTest(t)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	recent, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestRecordRoundTrip(t *testing.T) {
	s := openTest(t)
	want := rd(1500*time.Millisecond, 12, decoder.Temperature, -1, 4, 7)

	require.NoError(t, s.Record(want))

	got, err := s.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	s := openTest(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(rd(time.Duration(i)*time.Minute, uint8(i), decoder.Humidity, 1, 40, 0)))
	}

	got, err := s.Recent(3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint8(4), got[0].Measurement.SensorAddr)
	assert.Equal(t, uint8(3), got[1].Measurement.SensorAddr)
	assert.Equal(t, uint8(2), got[2].Measurement.SensorAddr)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestLatestPerChannel(t *testing.T) {
	s := openTest(t)
	readings := []logic.Reading{
		rd(0, 7, decoder.Humidity, 1, 50, 0),
		rd(time.Second, 3, decoder.Temperature, 1, 20, 1),
		rd(2*time.Second, 7, decoder.Temperature, 1, 18, 0),
		rd(3*time.Second, 7, decoder.Humidity, 1, 51, 0),
		rd(4*time.Second, 3, decoder.Temperature, 1, 20, 2),
	}
	for _, r := range readings {
		require.NoError(t, s.Record(r))
	}

	got, err := s.Latest()
	require.NoError(t, err)

	want := []logic.Reading{readings[4], readings[2], readings[3]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(rd(0, 1, decoder.Temperature, 1, 21, 5)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "readings.db"))
	assert.Error(t, err)
}
