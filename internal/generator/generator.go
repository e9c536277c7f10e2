// Package generator renders the dashboard page.
package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/Zachdehooge/flood-dashboard/internal/dashboard"
	"github.com/Zachdehooge/flood-dashboard/internal/risk"
	"github.com/Zachdehooge/flood-dashboard/internal/sink"
)

// chart viewBox
const (
	chartWidth  = 300.0
	chartHeight = 100.0
)

var page = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"chartPoints": chartPoints,
}).Parse(pageTemplate))

type pageData struct {
	dashboard.Snapshot
	StateJSON   template.JS
	LastUpdated string
}

// RenderHTML writes the dashboard page for snap to w.
func RenderHTML(w io.Writer, snap dashboard.Snapshot) error {
	state, err := toJSON(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal state to JSON: %w", err)
	}
	data := pageData{
		Snapshot:    snap,
		StateJSON:   state,
		LastUpdated: "never",
	}
	if !snap.UpdatedAt.IsZero() {
		data.LastUpdated = snap.UpdatedAt.UTC().Format("Jan 2, 2006 at 15:04:05 UTC")
	}
	return page.Execute(w, data)
}

// WriteHTML renders snap to path, replacing it atomically.
func WriteHTML(path string, snap dashboard.Snapshot) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, snap); err != nil {
		return err
	}
	return sink.WriteFileAtomic(path, buf.Bytes())
}

func toJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

// chartPoints converts a series into SVG polyline points. Bounded series are
// clamped to [0, 1]; others are scaled so their largest value reaches the top.
func chartPoints(s *risk.Series) string {
	if s == nil || len(s.Points) == 0 {
		return ""
	}
	ceiling := chartCeiling(s)
	step := 0.0
	if len(s.Points) > 1 {
		step = chartWidth / float64(len(s.Points)-1)
	}
	parts := make([]string, 0, len(s.Points))
	for i, p := range s.Points {
		v := min(max(p.Value, 0), ceiling) / ceiling
		parts = append(parts, fmt.Sprintf("%.1f,%.1f", float64(i)*step, chartHeight-v*chartHeight))
	}
	return strings.Join(parts, " ")
}

func chartCeiling(s *risk.Series) float64 {
	if s.Bounded {
		return 1
	}
	top := 0.0
	for _, p := range s.Points {
		top = max(top, p.Value)
	}
	if top <= 0 {
		return 1
	}
	return top
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
   <meta charset="UTF-8"/>
   <meta name="viewport" content="width=device-width, initial-scale=1"/>
   <title>Flood Risk Dashboard</title>
   <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
   <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
   <style>
      :root {
         --bg-color: #121212;
         --text-color: #e0e0e0;
         --card-bg: #1e1e1e;
         --card-border: #333;
         --banner-bg: #3d1a1a;
         --banner-border: #a52a2a;
      }
      body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: var(--bg-color); color: var(--text-color); }
      .layout { display: grid; grid-template-columns: 2fr 1fr; gap: 20px; }
      #map { height: 520px; border-radius: 5px; }
      .card { border: 1px solid var(--card-border); background-color: var(--card-bg); border-radius: 5px; padding: 12px; margin-bottom: 15px; }
      .banner { background-color: var(--banner-bg); border: 1px solid var(--banner-border); padding: 10px; border-radius: 5px; margin-bottom: 15px; }
      .gauge { height: 18px; background: #333; border-radius: 9px; overflow: hidden; }
      .gauge-fill { height: 100%; }
      .tier-high { color: #dc3545; }
      .tier-medium { color: #fd7e14; }
      .tier-low { color: #28a745; }
      .location { cursor: pointer; padding: 6px; border-bottom: 1px solid var(--card-border); display: flex; justify-content: space-between; }
      .location.active { background: #2a2a2a; }
      .suggestion { padding: 8px; border-left: 4px solid #666; margin-bottom: 8px; background: #252525; }
      .priority-critical { border-color: #dc3545; }
      .priority-high { border-color: #fd7e14; }
      .priority-medium { border-color: #ffc107; }
      .priority-low { border-color: #28a745; }
      .priority-info { border-color: #17a2b8; }
      .muted { color: #888; font-size: 0.85em; }
      .hidden { display: none; }
      svg.chart { width: 100%; height: 110px; background: #181818; }
      button { background: #333; color: var(--text-color); border: 1px solid #555; border-radius: 4px; padding: 4px 8px; cursor: pointer; }
   </style>
</head>
<body>
   <h1>Flood Risk Dashboard</h1>
   <div id="banner" class="banner{{ if not .Banner }} hidden{{ end }}">{{ .Banner }}</div>
   <div class="muted">Last updated: <span id="updated">{{ .LastUpdated }}</span>{{ if .Demo }} (demo data){{ end }}</div>

   <div class="layout">
      <div>
         <div id="map"></div>
         <div class="card">
            <h3>Risk trend <span id="chart-label" class="muted">{{ with .Forecast }}{{ .Label }}{{ end }}</span></h3>
            <svg class="chart" viewBox="0 0 300 100" preserveAspectRatio="none">
               <polyline id="chart-line" fill="none" stroke="#17a2b8" stroke-width="2" points="{{ chartPoints .Forecast }}"/>
            </svg>
         </div>
      </div>
      <div>
         <div class="card" id="active">
            {{ with .Active }}
            <h2>{{ .Name }}</h2>
            <div class="{{ .Class }}">Risk {{ .Percent }}% ({{ .Tier }})</div>
            <div class="gauge"><div class="gauge-fill" style="width: {{ .Percent }}%; background: {{ .Color }}"></div></div>
            {{ else }}
            <p>No locations reported.</p>
            {{ end }}
         </div>

         <div class="card">
            <h3>Suggested actions{{ if .Fallback }} <span class="muted">(local guidance)</span>{{ end }}</h3>
            <div id="suggestions">
            {{ if .Loading }}<p class="muted">Loading suggestions...</p>{{ end }}
            {{ range $i, $s := .Suggestions }}
               <div class="suggestion {{ $s.Class }}">
                  <strong>{{ $s.Priority }}</strong> {{ $s.Action }}
                  {{ if $s.Rerouteable }}<div><button class="reroute" data-index="{{ $i }}">View Reroute Plan</button></div>{{ end }}
               </div>
            {{ end }}
            </div>
         </div>

         <div class="card">
            <h3>Locations</h3>
            <div id="locations">
            {{ range .Locations }}
               <div class="location{{ if eq .ID $.ActiveID }} active{{ end }}" onclick="selectLocation('{{ .ID }}')">
                  <span>{{ .Name }}</span><span class="{{ .Class }}">{{ .Percent }}%</span>
               </div>
            {{ end }}
            </div>
         </div>
      </div>
   </div>

   <script>
      let state = {{ .StateJSON }};
      let map, markers = [], rerouteLayers = [];

      function esc(s) {
          const d = document.createElement('div');
          d.textContent = s == null ? '' : String(s);
          return d.innerHTML;
      }

      function initMap() {
          map = L.map('map').setView([13.04, 80.23], 11);
          L.tileLayer('https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png', {
              attribution: '&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>',
              subdomains: 'abcd', maxZoom: 20
          }).addTo(map);
      }

      function drawMarkers() {
          markers.forEach(m => map.removeLayer(m));
          markers = (state.locations || []).map(loc => {
              const m = L.circleMarker([loc.lat, loc.lon], {
                  radius: loc.id === state.activeId ? 12 : 8,
                  color: loc.color, fillColor: loc.color, fillOpacity: 0.7
              }).addTo(map);
              m.bindPopup('<b>' + esc(loc.name) + '</b><br>Risk ' + loc.percent + '%');
              m.on('click', () => selectLocation(loc.id));
              return m;
          });
      }

      function drawReroute() {
          rerouteLayers.forEach(l => map.removeLayer(l));
          rerouteLayers = [];
          const r = state.reroute;
          if (!r) return;
          (r.avoid || []).forEach(seg => {
              rerouteLayers.push(L.polyline(seg.coordinates, { color: '#dc3545', weight: 5, dashArray: '6 6' }).addTo(map));
          });
          rerouteLayers.push(L.polyline([r.start, r.end], { color: '#28a745', weight: 4 }).addTo(map));
          map.fitBounds(L.latLngBounds([r.start, r.end]), { padding: [40, 40] });
      }

      function drawChart() {
          const f = state.forecast;
          const line = document.getElementById('chart-line');
          document.getElementById('chart-label').textContent = f ? f.label : '';
          if (!f || !f.points.length) { line.setAttribute('points', ''); return; }
          const step = f.points.length > 1 ? 300 / (f.points.length - 1) : 0;
          let ceiling = 1;
          if (!f.bounded) {
              const top = Math.max(0, ...f.points.map(p => p.value));
              if (top > 0) ceiling = top;
          }
          line.setAttribute('points', f.points.map((p, i) => {
              const v = Math.min(Math.max(p.value, 0), ceiling) / ceiling;
              return (i * step).toFixed(1) + ',' + (100 - v * 100).toFixed(1);
          }).join(' '));
      }

      function drawPanels() {
          const banner = document.getElementById('banner');
          banner.textContent = state.banner || '';
          banner.classList.toggle('hidden', !state.banner);
          document.getElementById('updated').textContent = new Date(state.updatedAt).toUTCString();

          const a = state.active;
          document.getElementById('active').innerHTML = a
              ? '<h2>' + esc(a.name) + '</h2><div class="' + a.class + '">Risk ' + a.percent + '% (' + a.tier + ')</div>' +
                '<div class="gauge"><div class="gauge-fill" style="width:' + a.percent + '%;background:' + a.color + '"></div></div>'
              : '<p>No locations reported.</p>';

          let html = state.loading ? '<p class="muted">Loading suggestions...</p>' : '';
          (state.suggestions || []).forEach((s, i) => {
              html += '<div class="suggestion ' + s.class + '"><strong>' + esc(s.priority) + '</strong> ' + esc(s.action) +
                  (s.rerouteable ? '<div><button class="reroute" data-index="' + i + '">View Reroute Plan</button></div>' : '') + '</div>';
          });
          document.getElementById('suggestions').innerHTML = html;
          document.querySelectorAll('#suggestions .reroute').forEach(el => {
              el.onclick = () => showReroute(el.dataset.index);
          });

          document.getElementById('locations').innerHTML = (state.locations || []).map(loc =>
              '<div class="location' + (loc.id === state.activeId ? ' active' : '') + '" data-id="' + esc(loc.id) + '">' +
              '<span>' + esc(loc.name) + '</span><span class="' + loc.class + '">' + loc.percent + '%</span></div>'
          ).join('');
          document.querySelectorAll('#locations .location').forEach(el => {
              el.onclick = () => selectLocation(el.dataset.id);
          });
      }

      function render() {
          drawMarkers();
          drawReroute();
          drawChart();
          drawPanels();
      }

      function selectLocation(id) {
          fetch('/api/select/' + encodeURIComponent(id), { method: 'POST' })
              .catch(e => console.error('select failed:', e));
      }

      function showReroute(i) {
          fetch('/api/reroute/' + i, { method: 'POST' })
              .catch(e => console.error('reroute failed:', e));
      }

      window.onload = function() {
          initMap();
          render();
          const events = new EventSource('/events');
          events.addEventListener('state', e => {
              state = JSON.parse(e.data);
              render();
          });
          events.onerror = () => console.warn('[events] connection lost, retrying');
      };
   </script>
</body>
</html>
`
