package db

import (
	"context"
	"fmt"
)

// Estimate is one journalled location estimate: the modal room for a person
// at a point in time, with the share of probability mass behind it.
type Estimate struct {
	ID         int64   `json:"id"`
	PersonID   string  `json:"person_id"`
	Room       string  `json:"room"`
	Confidence float64 `json:"confidence"`
	Unix       float64 `json:"ts"`
}

func (e *Estimate) String() string {
	return fmt.Sprintf("Estimate %d: person=%s room=%s confidence=%.2f ts=%f",
		e.ID, e.PersonID, e.Room, e.Confidence, e.Unix)
}

// RecordEstimate journals one estimate. The assigned row id is written back.
func (db *DB) RecordEstimate(ctx context.Context, est *Estimate) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO estimates (person_id, room, confidence, estimate_unix)
		 VALUES (?, ?, ?, ?)`,
		est.PersonID, est.Room, est.Confidence, est.Unix,
	)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", err)
	}
	est.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get estimate ID: %w", err)
	}
	return nil
}

// RecentEstimates returns the newest estimates for one person, most recent
// first. An empty personID returns estimates across all people.
func (db *DB) RecentEstimates(ctx context.Context, personID string, limit int) ([]Estimate, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT estimate_id, person_id, room, confidence, estimate_unix
		 FROM estimates WHERE person_id = ? ORDER BY estimate_unix DESC LIMIT ?`
	args := []interface{}{personID, limit}
	if personID == "" {
		query = `SELECT estimate_id, person_id, room, confidence, estimate_unix
		 FROM estimates ORDER BY estimate_unix DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var estimates []Estimate
	for rows.Next() {
		var e Estimate
		if err := rows.Scan(&e.ID, &e.PersonID, &e.Room, &e.Confidence, &e.Unix); err != nil {
			return nil, err
		}
		estimates = append(estimates, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return estimates, nil
}

// LatestEstimates returns the most recent estimate per person.
func (db *DB) LatestEstimates(ctx context.Context) (map[string]Estimate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.estimate_id, e.person_id, e.room, e.confidence, e.estimate_unix
		FROM estimates e
		JOIN (
			SELECT person_id, MAX(estimate_unix) AS max_unix
			FROM estimates
			GROUP BY person_id
		) latest ON e.person_id = latest.person_id AND e.estimate_unix = latest.max_unix
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Estimate)
	for rows.Next() {
		var e Estimate
		if err := rows.Scan(&e.ID, &e.PersonID, &e.Room, &e.Confidence, &e.Unix); err != nil {
			return nil, err
		}
		out[e.PersonID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
