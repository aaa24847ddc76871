// Package units provides display formatting and local-day helpers shared by
// the rollup worker, the monitor, and config validation. The store keeps all
// timestamps in unix seconds; days only exist at the reporting boundary, in
// whatever timezone the deployment configures.
package units

import (
	"fmt"
	"time"
)

// Location resolves a tz database name. Empty or "UTC" returns time.UTC.
func Location(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// IsTimezoneValid reports whether tz resolves against the tz database.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NextDay returns the following midnight. AddDate keeps the location, so
// 23- and 25-hour DST days come out right.
func NextDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1)
}

// DayKey formats t's calendar day in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// FormatDuration renders a duration compactly for status pages:
// 42s, 1m30s, 3h07m. Negative durations clamp to zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatPercent renders a probability as a whole percent, clamped to
// [0%, 100%].
func FormatPercent(p float64) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return fmt.Sprintf("%.0f%%", p*100)
}
