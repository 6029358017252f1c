package gpio

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptionsNormalizeDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, 115200, opts.BaudRate)
	assert.Equal(t, 8, opts.DataBits)
	assert.Equal(t, 1, opts.StopBits)
	assert.Equal(t, "N", opts.Parity)
}

func TestPortOptionsNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)

	assert.Equal(t, 57600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
}

// closeTracker wraps a reader and records Close.
type closeTracker struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (c *closeTracker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestSerialSourceConvertsDurations(t *testing.T) {
	port := &closeTracker{Reader: strings.NewReader("550\n 975 \n\ngarbage\n1400\r\n")}
	s := newSerialSource(func() (io.ReadCloser, error) { return port, nil })

	var mu sync.Mutex
	var got []uint32
	require.NoError(t, s.Watch(func(us uint32) {
		mu.Lock()
		got = append(got, us)
		mu.Unlock()
	}))

	// Unwatch waits for the reader to drain the input.
	require.NoError(t, s.Unwatch())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint32{550, 1525, 2925}, got)
	assert.True(t, port.closed)
}

func TestSerialSourceWatchTwice(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	s := newSerialSource(func() (io.ReadCloser, error) { return pr, nil })

	require.NoError(t, s.Watch(func(uint32) {}))
	assert.ErrorIs(t, s.Watch(func(uint32) {}), ErrWatching)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Watch(func(uint32) {}), ErrClosed)
}

func TestSerialSourceOpenError(t *testing.T) {
	s := newSerialSource(func() (io.ReadCloser, error) { return nil, errors.New("no such device") })

	err := s.Watch(func(uint32) {})
	assert.EqualError(t, err, "no such device")
	assert.NoError(t, s.Unwatch())
}
