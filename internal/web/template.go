package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/jawtalk/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"value": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

// formatUptime renders d as "3d 4h", "4h 5m" or "5m 6s".
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd %dh", int(d/(24*time.Hour)), int(d%(24*time.Hour)/time.Hour))
	case d >= time.Hour:
		return fmt.Sprintf("%dh %dm", int(d/time.Hour), int(d%time.Hour/time.Minute))
	default:
		return fmt.Sprintf("%dm %ds", int(d/time.Minute), int(d%time.Minute/time.Second))
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Jawtalk</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 1.5em auto; padding: 0 1em; background: #111; color: #eee; }
h1 { font-size: 1.1em; color: #aaa; }
h2 { font-size: 1em; color: #aaa; border-bottom: 1px solid #333; }
#phrase { font-size: 3.2em; font-weight: bold; text-align: center; min-height: 1.3em; margin: 0.6em 0; }
#prompt { font-size: 1.4em; text-align: center; color: #f90; min-height: 1.4em; }
form { text-align: center; margin: 1em 0; }
table { border-collapse: collapse; width: 100%; font-family: monospace; }
td, th { text-align: left; padding: 3px 6px; }
th { width: 40%; font-weight: normal; color: #888; }
.connected { color: #4c4; }
.disconnected { color: #e44; }
#live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; background: #f90; }
#live-dot.ok { background: #4c4; }
#live-dot.err { background: #e44; }
</style>
</head>
<body>
<h1>Jawtalk<span id="live-dot" title="connecting"></span></h1>

<div id="phrase">{{if .LastPhrase}}{{.LastPhrase.Text}}{{end}}</div>
<div id="prompt">{{if .Calibrating}}Calibrating: hold {{.CalibrationStep}}{{else if not .Calibrated}}Not calibrated{{end}}</div>

<form method="post" action="/speech/replay"><button type="submit">Say again</button></form>
<form method="post" action="/calibration"><button type="submit">Recalibrate</button></form>

<h2>Calibration</h2>
<table>
{{if .Profile}}<tr><th>Rest baseline</th><td>{{value .Profile.RestBaseline}}</td></tr>
<tr><th>Open threshold</th><td>{{value .Profile.OpenThreshold}}</td></tr>
<tr><th>Left threshold</th><td>{{value .Profile.LeftThreshold}}</td></tr>
<tr><th>Right threshold</th><td>{{value .Profile.RightThreshold}}</td></tr>
<tr><th>Calibrated</th><td>{{.Profile.CalibratedAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{else}}<tr><th>Profile</th><td>none</td></tr>{{end}}
<tr><th>Last gesture</th><td>{{.LastGesture}}</td></tr>
<tr><th>Pending</th><td>{{range $i, $g := .Pending}}{{if $i}}-{{end}}{{$g}}{{end}}</td></tr>
</table>

<h2>Counters</h2>
<table>
<tr><th>Readings</th><td>{{.Stats.Readings}}</td></tr>
<tr><th>Dropped</th><td>{{.Dropped}}</td></tr>
<tr><th>Out of range</th><td>{{.Stats.OutOfRange}}</td></tr>
<tr><th>Gestures</th><td>{{.Stats.Events}} ({{.Stats.Rejected}} rejected)</td></tr>
<tr><th>Phrases</th><td>{{.Stats.Phrases}}</td></tr>
<tr><th>Unrecognized</th><td>{{.Stats.Unrecognized}}</td></tr>
<tr><th>Abandoned</th><td>{{.Stats.Abandoned}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Session</th><td>{{.Session}}</td></tr>
<tr><th>Speech</th><td>{{if .SpeechEnabled}}on{{else}}off{{end}} ({{.SpeechBackend}})</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Dwell</th><td>{{.Config.DwellMs}}ms</td></tr>
<tr><th>Sequence timeout</th><td>{{.Config.SequenceTimeoutMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var phraseEl = document.getElementById("phrase");
  var promptEl = document.getElementById("prompt");

  function setDot(cls, title) {
    dot.className = cls;
    dot.title = title;
  }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var msg = JSON.parse(e.data);
        if (msg.type === "phrase") {
          phraseEl.textContent = msg.text;
        } else if (msg.type === "unrecognized") {
          phraseEl.textContent = "?";
        } else if (msg.type === "calibration") {
          promptEl.textContent = msg.done ? "" : "Calibrating: hold " + msg.step;
        }
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
