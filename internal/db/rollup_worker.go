package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/occupancy.report/internal/units"
)

// RollupWorker periodically recomputes daily per-room occupancy statistics
// from sensor_events into room_daily_stats. Designed to run every 15 minutes;
// each run rewrites every day touched by the lookback window, so re-runs and
// overlaps are idempotent. Day boundaries follow Location: a house in New
// York should see its evening under one day key, not split at midnight UTC.
type RollupWorker struct {
	DB *DB
	// OccupancyGap is how long one event counts as continued occupancy when
	// unioning activity windows. Matches the sensor cooldown.
	OccupancyGap time.Duration
	Interval     time.Duration  // how often to run (e.g., 15m)
	Window       time.Duration  // lookback window (e.g., 30m)
	Location     *time.Location // day boundary timezone; nil means UTC
	StopChan     chan struct{}
}

func NewRollupWorker(db *DB, occupancyGap time.Duration) *RollupWorker {
	if occupancyGap <= 0 {
		occupancyGap = 7 * time.Minute
	}
	return &RollupWorker{
		DB:           db,
		OccupancyGap: occupancyGap,
		Interval:     15 * time.Minute,
		Window:       30 * time.Minute,
		StopChan:     make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *RollupWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					log.Printf("rollup worker run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *RollupWorker) Stop() {
	close(w.StopChan)
}

// RunOnce recomputes every day touched by the last w.Window.
func (w *RollupWorker) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	end := float64(now.Unix())
	start := float64(now.Add(-w.Window).Unix())

	return w.RunRange(ctx, start, end)
}

// RunFullHistory recomputes rollups for the full available event range.
func (w *RollupWorker) RunFullHistory(ctx context.Context) error {
	var start, end sql.NullFloat64
	if err := w.DB.QueryRowContext(ctx, `SELECT MIN(event_unix), MAX(event_unix) FROM sensor_events`).Scan(&start, &end); err != nil {
		return err
	}
	if !start.Valid || !end.Valid {
		log.Printf("Rollup worker full-history run skipped (no events)")
		return nil
	}
	return w.RunRange(ctx, start.Float64, end.Float64)
}

// RunRange recomputes rollups for every day intersecting [start, end]
// (unix seconds), using the worker's day boundary timezone.
func (w *RollupWorker) RunRange(ctx context.Context, start, end float64) error {
	if start > end {
		return fmt.Errorf("invalid range: start=%v end=%v", start, end)
	}

	loc := w.loc()
	first := units.StartOfDay(time.Unix(int64(start), 0), loc)
	last := units.StartOfDay(time.Unix(int64(end), 0), loc)
	for day := first; !day.After(last); day = units.NextDay(day) {
		if err := w.recomputeDay(ctx, day); err != nil {
			return fmt.Errorf("rollup for %s failed: %w", day.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (w *RollupWorker) loc() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	return time.UTC
}

// recomputeDay rewrites the room_daily_stats rows for one day from scratch.
// day must be a midnight in the worker's location. Activity windows of
// OccupancyGap after each event are unioned per room; a window that crosses
// midnight credits its full span to the day the event landed on.
func (w *RollupWorker) recomputeDay(ctx context.Context, day time.Time) error {
	dayKey := day.Format("2006-01-02")
	dayStart := float64(day.Unix())
	dayEnd := float64(units.NextDay(day).Unix())

	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			// ErrTxDone means transaction was already committed/rolled back
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_daily_stats WHERE day = ?`, dayKey); err != nil {
		return fmt.Errorf("failed to clear day rows: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT room, event_unix
		FROM sensor_events
		WHERE event_unix >= ? AND event_unix < ?
		ORDER BY room, event_unix
	`, dayStart, dayEnd)
	if err != nil {
		return err
	}
	defer rows.Close()

	type roomStat struct {
		count    int64
		first    float64
		last     float64
		occupied float64
		// open activity window being unioned
		winStart float64
		winEnd   float64
	}

	gap := w.OccupancyGap.Seconds()
	stats := make(map[string]*roomStat)
	var order []string

	for rows.Next() {
		var (
			room string
			ts   float64
		)
		if err := rows.Scan(&room, &ts); err != nil {
			return err
		}

		s, ok := stats[room]
		if !ok {
			s = &roomStat{first: ts, last: ts, winStart: ts, winEnd: ts + gap}
			stats[room] = s
			order = append(order, room)
			s.count = 1
			continue
		}
		s.count++
		s.last = ts
		if ts <= s.winEnd {
			// extends the open window
			if end := ts + gap; end > s.winEnd {
				s.winEnd = end
			}
		} else {
			// gap exceeded: close the window, open a new one
			s.occupied += s.winEnd - s.winStart
			s.winStart = ts
			s.winEnd = ts + gap
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO room_daily_stats (
			day, room, event_count, occupied_seconds,
			first_event_unix, last_event_unix, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, UNIXEPOCH('subsec'))
	`)
	if err != nil {
		return err
	}
	defer insert.Close()

	for _, room := range order {
		s := stats[room]
		s.occupied += s.winEnd - s.winStart // close the final window
		if _, err := insert.ExecContext(ctx, dayKey, room, s.count, s.occupied, s.first, s.last); err != nil {
			return fmt.Errorf("failed to insert rollup for %s/%s: %w", dayKey, room, err)
		}
	}

	return tx.Commit()
}
