package db

import (
	"context"
	"database/sql"
	"fmt"
)

// RoomDayStat is one day of rolled-up occupancy for one room.
type RoomDayStat struct {
	Day             string   `json:"day"`
	Room            string   `json:"room"`
	EventCount      int64    `json:"event_count"`
	OccupiedSeconds float64  `json:"occupied_seconds"`
	FirstEventUnix  *float64 `json:"first_event_unix,omitempty"`
	LastEventUnix   *float64 `json:"last_event_unix,omitempty"`
}

func (s *RoomDayStat) String() string {
	return fmt.Sprintf("%s %s: events=%d occupied=%.0fs", s.Day, s.Room, s.EventCount, s.OccupiedSeconds)
}

// RoomDailyStats returns the rollup rows for one day key (YYYY-MM-DD),
// ordered by room. Day boundaries are whatever the rollup worker was
// configured with.
func (db *DB) RoomDailyStats(ctx context.Context, day string) ([]RoomDayStat, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day, room, event_count, occupied_seconds, first_event_unix, last_event_unix
		FROM room_daily_stats WHERE day = ? ORDER BY room
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoomDayStats(rows)
}

// RoomHistory returns the newest rollup rows for one room, most recent day
// first.
func (db *DB) RoomHistory(ctx context.Context, room string, limit int) ([]RoomDayStat, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := db.QueryContext(ctx, `
		SELECT day, room, event_count, occupied_seconds, first_event_unix, last_event_unix
		FROM room_daily_stats WHERE room = ? ORDER BY day DESC LIMIT ?
	`, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoomDayStats(rows)
}

func scanRoomDayStats(rows *sql.Rows) ([]RoomDayStat, error) {
	var stats []RoomDayStat
	for rows.Next() {
		var (
			s           RoomDayStat
			first, last sql.NullFloat64
		)
		if err := rows.Scan(&s.Day, &s.Room, &s.EventCount, &s.OccupiedSeconds, &first, &last); err != nil {
			return nil, err
		}
		if first.Valid {
			v := first.Float64
			s.FirstEventUnix = &v
		}
		if last.Valid {
			v := last.Float64
			s.LastEventUnix = &v
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
