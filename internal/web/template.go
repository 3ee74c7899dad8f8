package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/scan-node/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Scan Node</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.yes { color: green; font-weight: bold; }
.no { color: #888; }
.pending { color: orange; font-weight: bold; }
</style>
</head>
<body>
<h1>Scan Node</h1>

<h2>Cycle</h2>
<table>
<tr><th>State</th><td id="state">{{orUnknown .State}}</td></tr>
<tr><th>Intent</th><td>{{orUnknown .Intent}}</td></tr>
<tr><th>Wake cause</th><td>{{orUnknown .WakeCause}}</td></tr>
<tr><th>Joined</th><td class="{{if .Joined}}yes{{else}}no{{end}}">{{if .Joined}}yes{{else}}no{{end}}</td></tr>
<tr><th>Payload</th><td class="{{if .Pending}}pending{{else}}no{{end}}">{{if .Pending}}pending{{else}}none{{end}}</td></tr>
<tr><th>Delivered</th><td>{{.Delivered}}</td></tr>
<tr><th>Sleep in</th><td id="countdown">{{.CountdownRemaining}} ticks</td></tr>
</table>

<h2>Latest scan</h2>
{{if .LatestScan}}<table>
<tr><th>BSSID</th><th>SSID</th><th>RSSI</th></tr>
{{range .LatestScan}}<tr><td>{{.MAC}}</td><td>{{.SSID}}</td><td>{{.RSSI}}</td></tr>
{{end}}</table>{{else}}<p>No APs found in the latest scan.</p>{{end}}

<h2>Activity</h2>
<table>
{{range .History}}<tr><td>{{clock .Time}}</td><td>{{.Kind}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Idle</th><td>{{.Config.IdleTicks}} x {{.Config.TickMs}}ms</td></tr>
<tr><th>Sleep</th><td>{{.Config.SleepMs}}ms</td></tr>
<tr><th>Max results</th><td>{{.Config.MaxResults}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Gateway</th><td>{{.Config.GatewayID}}</td></tr>
<tr><th>Store</th><td>{{.Config.Store}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
