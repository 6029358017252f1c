package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/sweeney/lacrosse-receiver/internal/capfile"
	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/gpio"
	"github.com/sweeney/lacrosse-receiver/internal/pulse"
)

// armGap is emitted first so the capture clock starts in a quiet period.
const armGap = 20000

// edgeSink is the part of gpio.FakeSource the feeds drive.
type edgeSink interface {
	Emit(durations ...uint32)
}

var _ edgeSink = (*gpio.FakeSource)(nil)

func loadReplay(path string) ([]capfile.Record, error) {
	recs, err := capfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load replay: %w", err)
	}
	log.Printf("replay: %d recorded packets from %s", len(recs), path)
	return recs, nil
}

// replay emits recorded packets one per pace so the run loop keeps up with
// the queue.
func replay(ctx context.Context, src edgeSink, recs []capfile.Record, pace time.Duration) error {
	src.Emit(armGap)
	for _, rec := range recs {
		src.Emit(rec.Packet.Timings...)
		if n := len(rec.Packet.Timings); n == 0 || !pulse.IsTerminator(rec.Packet.Timings[n-1]) {
			src.Emit(pulse.Terminator)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pace):
		}
	}
	return nil
}

// simulate emits a fresh set of transmissions every interval, each sent
// twice the way a real transmitter repeats itself.
func simulate(ctx context.Context, src edgeSink, interval time.Duration, sim *simulation) error {
	src.Emit(armGap)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, tx := range sim.next() {
			durations, err := tx.Encode()
			if err != nil {
				return err
			}
			src.Emit(durations...)
			src.Emit(durations...)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type simSensor struct {
	addr     uint8
	tenths   int // temperature in 0.1 °C
	humidity int
}

// simulation random-walks a couple of outdoor sensors.
type simulation struct {
	rng     *rand.Rand
	sensors []simSensor
}

func newSimulation(seed int64) *simulation {
	rng := rand.New(rand.NewSource(seed))
	s := &simulation{rng: rng}
	for i := 0; i < 2; i++ {
		s.sensors = append(s.sensors, simSensor{
			addr:     uint8(rng.Intn(128)),
			tenths:   rng.Intn(300) - 50,
			humidity: 40 + rng.Intn(40),
		})
	}
	return s
}

func (s *simulation) next() []decoder.Transmission {
	var out []decoder.Transmission
	for i := range s.sensors {
		sn := &s.sensors[i]
		sn.tenths = clamp(sn.tenths+s.rng.Intn(7)-3, -400, 450)
		sn.humidity = clamp(sn.humidity+s.rng.Intn(3)-1, 10, 95)

		out = append(out, temperature(sn.addr, sn.tenths), decoder.Transmission{
			SensorAddr: sn.addr,
			Kind:       decoder.Humidity,
			Sign:       1,
			Units:      uint8(sn.humidity),
		})
	}
	return out
}

func temperature(addr uint8, tenths int) decoder.Transmission {
	tx := decoder.Transmission{SensorAddr: addr, Kind: decoder.Temperature, Sign: 1}
	if tenths < 0 {
		tx.Sign = -1
		tenths = -tenths
	}
	tx.Units = uint8(tenths / 10)
	tx.Decimals = uint8(tenths % 10)
	return tx
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
