package gpio

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// PortOptions describes the serial connection to a pulse front end.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity
	return opts, nil
}

// SerialMode converts the options into the mode go.bug.st/serial expects.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// SerialSource reads pulse widths from a microcontroller that timestamps the
// receiver output itself, one decimal microsecond count per line, and turns
// them back into edge timestamps.
type SerialSource struct {
	open func() (io.ReadCloser, error)

	mu     sync.Mutex
	port   io.ReadCloser
	done   chan struct{}
	closed bool
}

// NewSerialSource creates a source for the serial device at path. The port
// is opened on Watch.
func NewSerialSource(path string, opts PortOptions) (*SerialSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial options: %w", err)
	}
	return newSerialSource(func() (io.ReadCloser, error) {
		port, err := serial.Open(path, mode)
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", path, err)
		}
		return port, nil
	}), nil
}

func newSerialSource(open func() (io.ReadCloser, error)) *SerialSource {
	return &SerialSource{open: open}
}

// Watch opens the port and starts a reader goroutine that calls h.
func (s *SerialSource) Watch(h EdgeHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.port != nil {
		return ErrWatching
	}

	port, err := s.open()
	if err != nil {
		return err
	}
	s.port = port
	s.done = make(chan struct{})
	go s.readLoop(port, h, s.done)
	return nil
}

func (s *SerialSource) readLoop(r io.Reader, h EdgeHandler, done chan struct{}) {
	defer close(done)

	var now uint32
	bad := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			// Log the first bad line only; a wrong baud rate produces
			// nothing but garbage.
			if bad == 0 {
				log.Printf("serial: ignoring malformed line %q", line)
			}
			bad++
			continue
		}
		now += uint32(d)
		h(now)
	}
	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		closing := s.port == nil
		s.mu.Unlock()
		if !closing {
			log.Printf("serial: read error: %v", err)
		}
	}
	if bad > 1 {
		log.Printf("serial: ignored %d malformed lines", bad)
	}
}

// Unwatch closes the port and waits for the reader goroutine to exit.
func (s *SerialSource) Unwatch() error {
	s.mu.Lock()
	port, done := s.port, s.done
	s.port = nil
	s.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	<-done
	if err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}

// Close stops watching. The source cannot be watched again.
func (s *SerialSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Unwatch()
}
