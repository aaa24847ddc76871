package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/occupancy.report/internal/units"
)

// echartsAssetsPrefix is the script host baked into rendered chart pages.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleEstimatesChart renders a confidence timeline for one person from the
// journalled estimates.
// Query params:
//
//	person (required)
//	limit (optional, default 200, max 5000)
func (m *Monitor) handleEstimatesChart(w http.ResponseWriter, r *http.Request) {
	if m.db == nil {
		m.writeJSONError(w, http.StatusServiceUnavailable, "no database configured for charts")
		return
	}

	personID := r.URL.Query().Get("person")
	if personID == "" {
		m.writeJSONError(w, http.StatusBadRequest, "missing 'person' parameter")
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 5000 {
			limit = v
		}
	}

	rows, err := m.db.RecentEstimates(r.Context(), personID, limit)
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get estimates: %v", err))
		return
	}
	if len(rows) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no estimates for person")
		return
	}

	data := PrepareEstimateTimeline(personID, rows)

	points := make([]opts.LineData, 0, data.NumPoints)
	for i, c := range data.Confidence {
		points = append(points, opts.LineData{Value: c, Name: data.Rooms[i]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Occupancy Estimates", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Estimate confidence: %s", personID), Subtitle: fmt.Sprintf("latest room=%s points=%d", data.LatestRoom, data.NumPoints)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "confidence"}),
	)
	line.SetXAxis(data.Times).
		AddSeries("confidence", points,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
		)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleRoomsChart renders per-room event counts and occupied minutes for a
// rollup day.
// Query params:
//
//	day (optional, YYYY-MM-DD, default today UTC)
func (m *Monitor) handleRoomsChart(w http.ResponseWriter, r *http.Request) {
	if m.db == nil {
		m.writeJSONError(w, http.StatusServiceUnavailable, "no database configured for charts")
		return
	}

	day := r.URL.Query().Get("day")
	if day == "" {
		day = units.DayKey(time.Now(), m.location)
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		m.writeJSONError(w, http.StatusBadRequest, "invalid 'day' parameter, want YYYY-MM-DD")
		return
	}

	stats, err := m.db.RoomDailyStats(r.Context(), day)
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get room stats: %v", err))
		return
	}
	if len(stats) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no rollups for day")
		return
	}

	data := PrepareRoomDayChart(day, stats)

	events := make([]opts.BarData, 0, len(data.Rooms))
	for _, n := range data.EventCounts {
		events = append(events, opts.BarData{Value: n})
	}
	minutes := make([]opts.BarData, 0, len(data.Rooms))
	for _, v := range data.OccupiedMinutes {
		minutes = append(minutes, opts.BarData{Value: v})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Room activity", Subtitle: fmt.Sprintf("day=%s events=%d", day, data.TotalEvents)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(data.Rooms).
		AddSeries("events", events,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("occupied minutes", minutes)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
