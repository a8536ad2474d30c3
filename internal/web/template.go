package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/pet-feeder/internal/logic"
	"github.com/sweeney/pet-feeder/internal/status"
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
	"levelOrUnknown": func(l logic.Level) string {
		if l == "" {
			return "unknown"
		}
		return string(l)
	},
	"hhmm": func(e logic.Entry) string {
		return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Pet Feeder</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.display { background: #123; color: #9f9; padding: 0.5em 1em; width: 16ch; white-space: pre; }
.ok { color: green; font-weight: bold; }
.low { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Pet Feeder {{.Config.DeviceID}}</h1>

<div class="display">{{index .Display 0}}
{{index .Display 1}}</div>

<h2>Feeding</h2>
<table>
<tr><th>State</th><td>{{.Dispense.State}}</td></tr>
{{if eq (printf "%s" .Dispense.State) "DISPENSING"}}<tr><th>Target</th><td>{{.Dispense.Target}}g</td></tr>
<tr><th>Weight</th><td>{{.Dispense.Weight}}g</td></tr>{{end}}
<tr><th>Feeds since boot</th><td>{{.Feeds}}</td></tr>
{{if .LastFeed}}<tr><th>Last feed</th><td>{{.LastFeed.FinalWeight}}g of {{.LastFeed.TargetGrams}}g</td></tr>{{end}}
</table>

<h2>Schedule</h2>
<table>
{{range .Schedule}}<tr><th>{{hhmm .}}</th><td>{{.Grams}}g</td></tr>
{{else}}<tr><td>No schedule</td></tr>
{{end}}</table>

<h2>Supplies</h2>
<table>
<tr><th>Main stock</th><td class="{{levelOrUnknown .Stock}}">{{levelOrUnknown .Stock}}</td></tr>
<tr><th>Water</th><td class="{{levelOrUnknown .Water}}">{{levelOrUnknown .Water}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Buffered events</th><td>{{.BufferDepth}} / {{.BufferCap}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Clock</th><td>{{.ClockText}}{{if not .ClockSynced}} (not synced){{end}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Status interval</th><td>{{.Config.StatusIntervalMs}}ms</td></tr>
<tr><th>Dispense timeout</th><td>{{.Config.DispenseTimeoutMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		ClockText string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		ClockText: status.ClockString(snap),
	}
	indexTmpl.Execute(w, data)
}
