package receiver

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/gpio"
	"github.com/sweeney/lacrosse-receiver/internal/pulse"
)

func newTestReceiver(t *testing.T, cfg Config) (*Receiver, *gpio.FakeSource) {
	t.Helper()
	src := gpio.NewFakeSource(0)
	var ms uint32
	r := New(src, func() uint32 { ms += 100; return ms }, cfg)
	require.NoError(t, r.Start())
	t.Cleanup(func() { r.Stop() })
	// First edge arms the pipeline clock.
	src.Emit(20000)
	return r, src
}

func transmit(t *testing.T, src *gpio.FakeSource, tx decoder.Transmission) {
	t.Helper()
	durations, err := tx.Encode()
	require.NoError(t, err)
	src.Emit(durations...)
}

func TestNextOnEmptyQueue(t *testing.T) {
	r, _ := newTestReceiver(t, DefaultConfig())

	for i := 0; i < 3; i++ {
		m := r.Next()
		assert.Equal(t, decoder.Measurement{}, m)
		assert.Equal(t, decoder.Unknown, m.Kind)
		assert.Equal(t, uint32(0), m.Msec)
	}
	assert.Equal(t, 0, r.Stats().Queue.Queued)
}

func TestDefaultConfigIgnoresChecksum(t *testing.T) {
	assert.True(t, DefaultConfig().IgnoreChecksum)
}

func TestEndToEnd(t *testing.T) {
	r, src := newTestReceiver(t, Config{IgnoreChecksum: false})

	tx := decoder.Transmission{SensorAddr: 5, Kind: decoder.Temperature, Sign: 1, Units: 23, Decimals: 4}
	transmit(t, src, tx)

	got := r.Next()
	want := decoder.Measurement{Msec: 100, SensorAddr: 5, Kind: decoder.Temperature, Units: 23, Decimals: 4, Sign: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	assert.False(t, r.Next().Valid())

	s := r.Stats()
	assert.Equal(t, uint64(1), s.Capture.Accepted)
	assert.Equal(t, uint64(1), s.Decoded)
	assert.Equal(t, uint64(0), s.Unknown)
}

func TestNextPreservesCaptureOrder(t *testing.T) {
	r, src := newTestReceiver(t, DefaultConfig())

	for sensor := uint8(1); sensor <= 3; sensor++ {
		transmit(t, src, decoder.Transmission{SensorAddr: sensor, Kind: decoder.Humidity, Sign: 1, Units: 40 + sensor})
	}

	for sensor := uint8(1); sensor <= 3; sensor++ {
		m := r.Next()
		require.True(t, m.Valid())
		assert.Equal(t, sensor, m.SensorAddr)
		assert.Equal(t, 40+sensor, m.Units)
	}
	assert.False(t, r.Next().Valid())
}

func TestNextSkipsUndecodablePackets(t *testing.T) {
	r, src := newTestReceiver(t, DefaultConfig())

	// 35 one bits: passes the capture pre-scan but has no header.
	var junk []uint32
	for i := 0; i < 35; i++ {
		junk = append(junk, pulse.Short, pulse.Fixed)
	}
	junk[len(junk)-1] = pulse.Terminator
	src.Emit(junk...)
	transmit(t, src, decoder.Transmission{SensorAddr: 7, Kind: decoder.Humidity, Sign: 1, Units: 55})

	m := r.Next()
	require.True(t, m.Valid())
	assert.Equal(t, uint8(7), m.SensorAddr)

	s := r.Stats()
	assert.Equal(t, uint64(2), s.Capture.Accepted)
	assert.Equal(t, uint64(1), s.Unknown)
	assert.Equal(t, uint64(1), s.Decoded)
}

func TestQueueOverflowKeepsNewest(t *testing.T) {
	r, src := newTestReceiver(t, DefaultConfig())

	// 88 durations take 90 queue slots; 11 packets fit in 1024.
	for sensor := uint8(0); sensor < 20; sensor++ {
		transmit(t, src, decoder.Transmission{SensorAddr: sensor, Kind: decoder.Humidity, Sign: 1, Units: 60})
	}

	var got []uint8
	for m := r.Next(); m.Valid(); m = r.Next() {
		got = append(got, m.SensorAddr)
	}
	assert.Equal(t, []uint8{9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, got)
	assert.Equal(t, uint64(9), r.Stats().Queue.Evicted)
}

func TestStopAbandonsPartialPacket(t *testing.T) {
	r, src := newTestReceiver(t, DefaultConfig())

	durations, err := decoder.Transmission{SensorAddr: 1, Kind: decoder.Humidity, Sign: 1, Units: 30}.Encode()
	require.NoError(t, err)

	src.Emit(durations[:50]...)
	require.NoError(t, r.Stop())
	assert.False(t, r.Running())
	src.Emit(durations[50:]...)

	require.NoError(t, r.Start())
	src.Emit(30000)
	transmit(t, src, decoder.Transmission{SensorAddr: 2, Kind: decoder.Humidity, Sign: 1, Units: 31})

	m := r.Next()
	require.True(t, m.Valid())
	assert.Equal(t, uint8(2), m.SensorAddr)
	assert.False(t, r.Next().Valid())
	assert.Equal(t, 2, src.Watches())
}

func TestStartTwiceIsNoop(t *testing.T) {
	r, src := newTestReceiver(t, DefaultConfig())

	require.NoError(t, r.Start())
	assert.Equal(t, 1, src.Watches())
	assert.True(t, r.Running())
}

func TestStartError(t *testing.T) {
	src := gpio.NewFakeSource(0)
	src.WatchError = errors.New("line busy")
	r := New(src, func() uint32 { return 0 }, DefaultConfig())

	err := r.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line busy")
	assert.False(t, r.Running())
}
