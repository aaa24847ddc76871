// Chart data preparation is separated from rendering so the shaping logic
// is testable without parsing echarts output.

package monitor

import (
	"time"

	"github.com/banshee-data/occupancy.report/internal/db"
)

// EstimateTimelineData holds prepared data for one person's confidence
// timeline.
type EstimateTimelineData struct {
	PersonID   string    `json:"person_id"`
	Times      []string  `json:"times"`
	Confidence []float64 `json:"confidence"`
	Rooms      []string  `json:"rooms"`
	LatestRoom string    `json:"latest_room"`
	NumPoints  int       `json:"num_points"`
}

// PrepareEstimateTimeline shapes journalled estimates, newest first as the
// store returns them, into a chronological timeline.
func PrepareEstimateTimeline(personID string, rows []db.Estimate) *EstimateTimelineData {
	data := &EstimateTimelineData{
		PersonID:   personID,
		Times:      []string{},
		Confidence: []float64{},
		Rooms:      []string{},
	}

	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		sec := int64(row.Unix)
		nsec := int64((row.Unix - float64(sec)) * 1e9)
		ts := time.Unix(sec, nsec).UTC()

		data.Times = append(data.Times, ts.Format("01-02 15:04:05"))
		data.Confidence = append(data.Confidence, row.Confidence)
		data.Rooms = append(data.Rooms, row.Room)
	}

	if len(rows) > 0 {
		data.LatestRoom = rows[0].Room
	}
	data.NumPoints = len(data.Times)
	return data
}

// RoomDayChartData holds per-room bar series for one rollup day.
type RoomDayChartData struct {
	Day             string    `json:"day"`
	Rooms           []string  `json:"rooms"`
	EventCounts     []int64   `json:"event_counts"`
	OccupiedMinutes []float64 `json:"occupied_minutes"`
	TotalEvents     int64     `json:"total_events"`
}

// PrepareRoomDayChart shapes one day of rollups into per-room bar series.
func PrepareRoomDayChart(day string, stats []db.RoomDayStat) *RoomDayChartData {
	data := &RoomDayChartData{
		Day:             day,
		Rooms:           []string{},
		EventCounts:     []int64{},
		OccupiedMinutes: []float64{},
	}

	for _, s := range stats {
		data.Rooms = append(data.Rooms, s.Room)
		data.EventCounts = append(data.EventCounts, s.EventCount)
		data.OccupiedMinutes = append(data.OccupiedMinutes, s.OccupiedSeconds/60)
		data.TotalEvents += s.EventCount
	}

	return data
}
