package tracks

import (
	"fmt"
	"time"
)

// Event is one presence interval in a single room. An event is open while
// the occupant is (or may still be) in the room and closes exactly once,
// either on an explicit falling edge from a presence sensor or when the
// owning track's head moves to a different room. A new room always starts a
// new Event; re-triggering the same room refreshes the open one.
type Event struct {
	// Room the interval belongs to.
	Room string

	// FirstPresence is when the interval opened (first rising edge).
	FirstPresence time.Time

	// LastRisingEdge is the most recent trigger inside the interval.
	// Impulse sensors refresh this on every firing.
	LastRisingEdge time.Time

	// LastFallingEdge is when the interval closed. Zero while the event is
	// still open.
	LastFallingEdge time.Time
}

// NewEvent opens an event for room at now.
func NewEvent(room string, now time.Time) *Event {
	return &Event{
		Room:           room,
		FirstPresence:  now,
		LastRisingEdge: now,
	}
}

// Open reports whether the interval is still ongoing.
func (e *Event) Open() bool { return e.LastFallingEdge.IsZero() }

// Impulse records an impulse-sensor firing, refreshing the rising edge and
// keeping the event open. Firings against a closed event are dropped:
// closing is terminal and a fresh room visit must open a fresh event.
func (e *Event) Impulse(now time.Time) {
	if !e.Open() {
		return
	}
	if now.After(e.LastRisingEdge) {
		e.LastRisingEdge = now
	}
}

// Presence records a sustained-presence report. Identical edge behavior to
// Impulse; kept separate so call sites read like their sensor type.
func (e *Event) Presence(now time.Time) {
	e.Impulse(now)
}

// End closes the event at now. Closing is terminal: later calls keep the
// first boundary, which is what makes track merges idempotent. A falling
// edge that would land before the rising edge clamps to it so the duration
// can never run negative.
func (e *Event) End(now time.Time) {
	if !e.Open() {
		return
	}
	if now.Before(e.LastRisingEdge) {
		now = e.LastRisingEdge
	}
	e.LastFallingEdge = now
}

// Absence records an explicit falling edge from a presence sensor. Same
// transition as End.
func (e *Event) Absence(now time.Time) {
	e.End(now)
}

// Duration returns how long the interval has lasted: up to its falling edge
// when closed, up to now while open. Never negative.
func (e *Event) Duration(now time.Time) time.Duration {
	end := e.LastFallingEdge
	if e.Open() {
		end = now
	}
	d := end.Sub(e.FirstPresence)
	if d < 0 {
		return 0
	}
	return d
}

// clone returns an independent copy of the event.
func (e *Event) clone() *Event {
	c := *e
	return &c
}

// String renders the event for logs.
func (e *Event) String() string {
	state := "open"
	if !e.Open() {
		state = "closed"
	}
	return fmt.Sprintf("%s[%s since %s]", e.Room, state, e.FirstPresence.Format(time.RFC3339))
}
