// Package status provides a thread-safe status tracker for the
// lacrosse-receiver daemon. It is read by HTTP handlers and heartbeats.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/lacrosse-receiver/internal/logic"
	"github.com/sweeney/lacrosse-receiver/internal/receiver"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Source         string // "gpiochip0:27", "/dev/ttyUSB0", "replay:file.cap", "simulate"
	PollMs         int64
	DedupMs        int64
	HeartbeatMs    int64
	IgnoreChecksum bool
	Broker         string
	HTTPAddr       string
	DBPath         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	// Sensors holds the latest reading of every channel ordered by sensor,
	// temperature before humidity.
	Sensors       []logic.Reading
	Counts        logic.Counts
	Receiver      receiver.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	latest map[logic.Key]logic.Reading
	now    func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		latest: make(map[logic.Key]logic.Reading),
		now:    time.Now,
	}
}

// Observe records r as the latest reading of its channel.
func (t *Tracker) Observe(r logic.Reading) {
	t.mu.Lock()
	t.latest[r.Key()] = r
	t.mu.Unlock()
}

// Update sets counters. Called from runLoop on every tick.
func (t *Tracker) Update(counts logic.Counts, stats receiver.Stats) {
	t.mu.Lock()
	t.snap.Counts = counts
	t.snap.Receiver = stats
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Sensors = make([]logic.Reading, 0, len(t.latest))
	for _, r := range t.latest {
		s.Sensors = append(s.Sensors, r)
	}
	t.mu.RUnlock()

	sort.Slice(s.Sensors, func(i, j int) bool {
		a, b := s.Sensors[i].Key(), s.Sensors[j].Key()
		if a.Sensor != b.Sensor {
			return a.Sensor < b.Sensor
		}
		return a.Kind < b.Kind
	})
	s.Now = t.now()
	return s
}
