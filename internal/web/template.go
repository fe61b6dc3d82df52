package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/basilic/energy-counter/internal/config"
	"github.com/basilic/energy-counter/internal/status"
	"github.com/basilic/energy-counter/internal/storage"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Energy Counter</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Energy Counter{{if .Config.ConfigMode}} (configuration mode){{end}}</h1>

<h2>Counters</h2>
<table>
<tr><th>Channel</th><th>Name</th><th>Count</th><th>Edges</th><th>Validated</th><th>Rejected</th></tr>
{{range $i, $c := .Channels}}<tr><td>{{$i}}</td><td>{{$c.Name}}</td><td>{{$c.Count}}</td><td>{{$c.Edges}}</td><td>{{$c.Validated}}</td><td>{{$c.Rejected}}</td></tr>
{{end}}</table>

<h2>Persistence</h2>
<table>
<tr><th>Saves</th><td>{{.FlushSaves}}</td></tr>
<tr><th>Save failures</th><td>{{.FlushFailures}}</td></tr>
<tr><th>Dropped notifications</th><td>{{.DroppedNotifs}}</td></tr>
<tr><th>Threshold</th><td>{{.Config.ThresholdP}} pulses</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic namespace</th><td>{{.Config.Namespace}}</td></tr>
<tr><th>Publish interval</th><td>{{.Config.PublishMs}}ms</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .Portal}} | <a href="/config">Configuration</a>{{end}}</p>
</body>
</html>
`

var configTmpl = template.Must(template.New("config").Funcs(template.FuncMap{
	"counterKey": storage.CounterKey,
	"nameKey":    storage.NameKey,
}).Parse(configHTML))

const configHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Energy Counter Configuration</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
input { font-family: monospace; width: 100%; box-sizing: border-box; }
button { font-family: monospace; padding: 6px 16px; }
</style>
</head>
<body>
<h1>Energy Counter Configuration</h1>
<form method="POST" action="/save">

<h2>Counters</h2>
<table>
<tr><th>Channel</th><th>Name</th><th>Value</th></tr>
{{range $i, $name := .Settings.MeterNames}}<tr>
<td>{{$i}}</td>
<td><input name="{{nameKey $i}}" value="{{$name}}"></td>
<td><input name="{{counterKey $i}}" value="{{index $.Counts $i}}" inputmode="numeric"></td>
</tr>
{{end}}</table>

<h2>MQTT</h2>
<table>
<tr><th>Server</th><td><input name="mqtt_server" value="{{.Settings.Server}}"></td></tr>
<tr><th>Port</th><td><input name="mqtt_port" value="{{.Settings.Port}}" inputmode="numeric"></td></tr>
<tr><th>Username</th><td><input name="mqtt_user" value="{{.Settings.Username}}"></td></tr>
<tr><th>Password</th><td><input name="mqtt_pass" type="password" value="{{.Settings.Password}}"></td></tr>
</table>

<p><button type="submit">Save</button> <a href="/">Back</a></p>
</form>
</body>
</html>
`

const savedHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Saved</title></head>
<body style="font-family: monospace; max-width: 640px; margin: 2em auto;">
<p>Configuration saved.</p>
<p><a href="/">Back to status</a> | <a href="/config">Back to configuration</a></p>
</body>
</html>
`

func renderIndex(w io.Writer, snap status.Snapshot, portal bool) {
	// Snapshot has an Uptime() method but the template needs a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Portal bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Portal:   portal,
	}
	indexTmpl.Execute(w, data)
}

func renderConfig(w io.Writer, settings config.Settings, counts []uint32) {
	data := struct {
		Settings config.Settings
		Counts   []uint32
	}{
		Settings: settings,
		Counts:   counts,
	}
	configTmpl.Execute(w, data)
}
