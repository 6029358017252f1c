package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lacrosse-receiver/internal/decoder"
	"github.com/sweeney/lacrosse-receiver/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"reading": func(m decoder.Measurement) string {
		return fmt.Sprintf("%.1f %s", m.Value(), m.Kind.Unit())
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>LaCrosse Receiver</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.value { font-weight: bold; }
.none { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>LaCrosse Receiver</h1>

<h2>Sensors</h2>
{{if .Sensors}}<table>
<tr><th>Sensor</th><td>Reading</td><td>Seen</td></tr>
{{range .Sensors}}<tr><th>#{{.Measurement.SensorAddr}} {{.Measurement.Kind}}</th><td class="value">{{reading .Measurement}}</td><td>{{.Timestamp.UTC.Format "15:04:05"}}</td></tr>
{{end}}</table>{{else}}<p class="none">no readings yet</p>{{end}}

<h2>Receiver</h2>
<table>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
<tr><th>Sessions</th><td>{{.Receiver.Capture.Sessions}} ({{.Receiver.Capture.Discarded}} discarded)</td></tr>
<tr><th>Decoded</th><td>{{.Receiver.Decoded}} ({{.Receiver.Unknown}} unknown)</td></tr>
<tr><th>Queue</th><td>{{.Receiver.Queue.Queued}} queued, {{.Receiver.Queue.Evicted}} evicted</td></tr>
<tr><th>Readings</th><td>{{.Counts.Temperature}} TMP, {{.Counts.Humidity}} HUM, {{.Counts.Duplicates}} repeats</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Dedup</th><td>{{if eq .Config.DedupMs 0}}disabled{{else}}{{.Config.DedupMs}}ms{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Checksum</th><td>{{if .Config.IgnoreChecksum}}ignored{{else}}required{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">status</a> | <a href="/sensors.json">sensors</a>{{if .Config.DBPath}} | <a href="/history.json">history</a>{{end}}</p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// The template needs Uptime as a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
