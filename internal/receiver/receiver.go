// Package receiver ties an edge source, the capture pipeline, the packet
// queue and the decoder together behind Start, Stop and Next.
package receiver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sweeney/lacrosse-receiver/internal/capture"
	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/gpio"
	"github.com/sweeney/lacrosse-receiver/internal/queue"
)

// Config holds receiver settings fixed at construction.
type Config struct {
	// IgnoreChecksum accepts readings whose checksum does not match and
	// readings assembled from partial parses.
	IgnoreChecksum bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{IgnoreChecksum: true}
}

// Stats aggregates counters from every stage.
type Stats struct {
	Capture capture.Stats
	Queue   queue.Stats
	Decoded uint64 // packets that produced a measurement
	Unknown uint64 // packets that did not
}

// Receiver is the decoding front end. Start and Stop may be called from any
// goroutine; Next must only be called from one.
type Receiver struct {
	src      gpio.EdgeSource
	pipeline *capture.Pipeline
	queue    *queue.Queue
	decoder  *decoder.Decoder

	mu      sync.Mutex
	running bool

	decoded atomic.Uint64
	unknown atomic.Uint64
}

// New creates a receiver reading edges from src. millis stamps captured
// packets.
func New(src gpio.EdgeSource, millis func() uint32, cfg Config) *Receiver {
	q := queue.New()
	return &Receiver{
		src:      src,
		pipeline: capture.New(q, millis),
		queue:    q,
		decoder:  decoder.New(cfg.IgnoreChecksum),
	}
}

// Start attaches the capture pipeline to the edge source. The first edge
// only sets the pipeline clock. Starting a running receiver is a no-op.
func (r *Receiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	armed := false
	err := r.src.Watch(func(us uint32) {
		if !armed {
			r.pipeline.Reset(us)
			armed = true
			return
		}
		r.pipeline.HandleEdge(us)
	})
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	r.running = true
	return nil
}

// Stop detaches the pipeline. A partially captured packet is abandoned;
// queued packets stay available to Next.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	r.running = false
	if err := r.src.Unwatch(); err != nil {
		return fmt.Errorf("stop capture: %w", err)
	}
	return nil
}

// Running reports whether capture is attached.
func (r *Receiver) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Next pops and decodes queued packets until one yields a measurement. When
// the queue runs dry it returns the zero Measurement, whose Kind is
// Unknown.
func (r *Receiver) Next() decoder.Measurement {
	for {
		p, ok := r.queue.Pop()
		if !ok {
			return decoder.Measurement{}
		}
		m := r.decoder.Decode(p)
		if m.Valid() {
			r.decoded.Add(1)
			return m
		}
		r.unknown.Add(1)
	}
}

// Stats returns a snapshot of all counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Capture: r.pipeline.Stats(),
		Queue:   r.queue.Stats(),
		Decoded: r.decoded.Load(),
		Unknown: r.unknown.Load(),
	}
}
