package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lacrosse-receiver/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"reading_counts"`
	Receiver      ReceiverJSON `json:"receiver"`
	Sensors       []SensorJSON `json:"sensors"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of reading counts.
type CountsJSON struct {
	Temperature int `json:"temperature"`
	Humidity    int `json:"humidity"`
	Duplicates  int `json:"duplicates"`
}

// ReceiverJSON is the JSON representation of pipeline counters.
type ReceiverJSON struct {
	Sessions  uint64 `json:"sessions"`
	Accepted  uint64 `json:"accepted"`
	Discarded uint64 `json:"discarded"`
	Evicted   uint64 `json:"evicted"`
	Queued    int    `json:"queued"`
	Decoded   uint64 `json:"decoded"`
	Unknown   uint64 `json:"unknown"`
}

// SensorJSON is the latest reading of one channel.
type SensorJSON struct {
	Sensor    uint8   `json:"sensor"`
	Type      string  `json:"type"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Timestamp string  `json:"timestamp"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Source         string `json:"source"`
	PollMs         int64  `json:"poll_ms"`
	DedupMs        int64  `json:"dedup_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	IgnoreChecksum bool   `json:"ignore_checksum"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	DBPath         string `json:"db_path,omitempty"`
}

// Sensor converts a reading for JSON output.
func Sensor(r logic.Reading) SensorJSON {
	m := r.Measurement
	return SensorJSON{
		Sensor:    m.SensorAddr,
		Type:      m.Kind.String(),
		Value:     m.Value(),
		Unit:      m.Kind.Unit(),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Sensors converts readings for JSON output. Never returns nil so that an
// empty list encodes as [].
func Sensors(rs []logic.Reading) []SensorJSON {
	out := make([]SensorJSON, 0, len(rs))
	for _, r := range rs {
		out = append(out, Sensor(r))
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	rx := snap.Receiver
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Temperature: snap.Counts.Temperature,
			Humidity:    snap.Counts.Humidity,
			Duplicates:  snap.Counts.Duplicates,
		},
		Receiver: ReceiverJSON{
			Sessions:  rx.Capture.Sessions,
			Accepted:  rx.Capture.Accepted,
			Discarded: rx.Capture.Discarded,
			Evicted:   rx.Queue.Evicted,
			Queued:    rx.Queue.Queued,
			Decoded:   rx.Decoded,
			Unknown:   rx.Unknown,
		},
		Sensors: Sensors(snap.Sensors),
		Config: ConfigJSON{
			Source:         snap.Config.Source,
			PollMs:         snap.Config.PollMs,
			DedupMs:        snap.Config.DedupMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			IgnoreChecksum: snap.Config.IgnoreChecksum,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			DBPath:         snap.Config.DBPath,
		},
	}
	if n := snap.Network; n != nil {
		inner.Network = &NetworkJSON{
			Type:       n.Type,
			IP:         n.IP,
			Status:     n.Status,
			Gateway:    n.Gateway,
			WifiStatus: n.WifiStatus,
			SSID:       n.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
