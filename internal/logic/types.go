// Package logic contains pure business logic for turning decoded measurements
// into published readings. It has no I/O; time is always passed in as a
// time.Time parameter.
package logic

import (
	"fmt"
	"time"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
)

// Key identifies one measurement channel of one transmitter.
type Key struct {
	Sensor uint8
	Kind   decoder.Kind
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.Sensor, k.Kind)
}

// Reading is a decoded measurement stamped with wall-clock time.
type Reading struct {
	Timestamp   time.Time
	Measurement decoder.Measurement
}

// Key returns the channel the reading belongs to.
func (r Reading) Key() Key {
	return Key{Sensor: r.Measurement.SensorAddr, Kind: r.Measurement.Kind}
}

// Counts tracks readings since startup.
type Counts struct {
	Temperature int
	Humidity    int
	// Duplicates are transmitter repeats suppressed by the filter.
	Duplicates int
}

// Readings returns the number of readings passed through.
func (c Counts) Readings() int {
	return c.Temperature + c.Humidity
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
	Sensors   int
}
