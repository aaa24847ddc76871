package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SensorEvent is one stored sensor observation. ID is assigned on insert
// when empty. Present is only meaningful for kind "presence".
type SensorEvent struct {
	ID       string  `json:"id"`
	SensorID string  `json:"sensor_id"`
	Room     string  `json:"room"`
	PersonID string  `json:"person_id"`
	Kind     string  `json:"kind"`
	Present  *bool   `json:"present,omitempty"`
	Unix     float64 `json:"ts"`
}

// Event kinds stored in sensor_events.
const (
	EventKindMotion   = "motion"
	EventKindPresence = "presence"
	EventKindPhone    = "phone"
)

func (e *SensorEvent) String() string {
	return fmt.Sprintf("Event %s: room=%s person=%s kind=%s ts=%f",
		e.ID, e.Room, e.PersonID, e.Kind, e.Unix)
}

// Time returns the event timestamp as a time.Time.
func (e *SensorEvent) Time() time.Time {
	sec := int64(e.Unix)
	nsec := int64((e.Unix - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// RecordSensorEvent inserts one sensor observation. An empty ID gets a fresh
// UUID; an empty Kind defaults to motion. The assigned ID is written back.
func (db *DB) RecordSensorEvent(ctx context.Context, event *SensorEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Kind == "" {
		event.Kind = EventKindMotion
	}

	var present interface{}
	if event.Present != nil {
		present = *event.Present
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO sensor_events (event_id, sensor_id, room, person_id, kind, present, event_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.SensorID, event.Room, event.PersonID, event.Kind, present, event.Unix,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sensor event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events, most recent first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]SensorEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT event_id, sensor_id, room, person_id, kind, present, event_unix
		 FROM sensor_events ORDER BY event_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSensorEvents(rows)
}

// EventsInRange returns all events with event_unix in [start, end], oldest
// first, for replay and rollup computation.
func (db *DB) EventsInRange(ctx context.Context, start, end float64) ([]SensorEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT event_id, sensor_id, room, person_id, kind, present, event_unix
		 FROM sensor_events WHERE event_unix BETWEEN ? AND ? ORDER BY event_unix`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSensorEvents(rows)
}

func scanSensorEvents(rows *sql.Rows) ([]SensorEvent, error) {
	var events []SensorEvent
	for rows.Next() {
		var (
			e       SensorEvent
			present sql.NullBool
		)
		if err := rows.Scan(&e.ID, &e.SensorID, &e.Room, &e.PersonID, &e.Kind, &present, &e.Unix); err != nil {
			return nil, err
		}
		if present.Valid {
			v := present.Bool
			e.Present = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
