package tracks

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultMaxTrackLength caps how many events a track retains; older events
// fall off the tail.
const DefaultMaxTrackLength = 5

// Track is an ordered chain of Events approximating one occupant's path.
// Events are held newest-first: index 0 is the room the occupant is believed
// to be in right now. A track always holds at least one event.
//
// Tracks are not safe for concurrent use; the Manager serializes access.
type Track struct {
	// ID is the track's sequence number. IDs are assigned in creation order,
	// so a lower ID always means an older track.
	ID int64

	// MaxLength caps the event chain; zero means DefaultMaxTrackLength.
	MaxLength int

	events        []*Event // newest first
	lastEventTime time.Time
}

// NewTrack opens a track with a single event for room at now.
func NewTrack(id int64, room string, now time.Time) *Track {
	return &Track{
		ID:            id,
		MaxLength:     DefaultMaxTrackLength,
		events:        []*Event{NewEvent(room, now)},
		lastEventTime: now,
	}
}

// Len returns the number of events in the chain.
func (t *Track) Len() int { return len(t.events) }

// Head returns the newest event. A track always has one.
func (t *Track) Head() *Event { return t.events[0] }

// Room returns the room the track currently places its occupant in.
func (t *Track) Room() string { return t.events[0].Room }

// PreviousRoom returns the room before the current one, or "" when the track
// holds a single event. Used for directional scoring.
func (t *Track) PreviousRoom() string {
	if len(t.events) < 2 {
		return ""
	}
	return t.events[1].Room
}

// Events returns the event chain newest-first as independent copies.
func (t *Track) Events() []*Event {
	out := make([]*Event, len(t.events))
	for i, e := range t.events {
		out[i] = e.clone()
	}
	return out
}

// LastEventTime returns when the track last received evidence (a new event
// or a refresh of the head). Housekeeping uses it to find stale tracks.
func (t *Track) LastEventTime() time.Time { return t.lastEventTime }

// FirstEventTime returns the opening time of the oldest retained event.
func (t *Track) FirstEventTime() time.Time { return t.events[len(t.events)-1].FirstPresence }

// IdleFor returns how long the track has gone without evidence.
func (t *Track) IdleFor(now time.Time) time.Duration {
	d := now.Sub(t.lastEventTime)
	if d < 0 {
		return 0
	}
	return d
}

// AddEvent extends the track. A trigger in the head's own room refreshes the
// open interval instead of opening a duplicate; a different room closes the
// head at now and prepends a fresh event. Callers feed events in
// chronological order.
func (t *Track) AddEvent(room string, now time.Time) {
	head := t.events[0]
	if head.Room == room {
		head.Impulse(now)
	} else {
		head.End(now)
		t.events = append([]*Event{NewEvent(room, now)}, t.events...)
		t.trim()
	}
	t.lastEventTime = now
}

// RefreshHead records continued presence in the current room without
// touching the chain shape.
func (t *Track) RefreshHead(now time.Time) {
	t.events[0].Impulse(now)
	t.lastEventTime = now
}

// EndHead closes the current head, recording that the occupant left the room
// without evidence of where to.
func (t *Track) EndHead(now time.Time) {
	t.events[0].End(now)
}

// Merge absorbs other's events into t, interleaving both chains into
// newest-first chronological order. Any event that gains a newer successor
// through the merge is closed at that successor's opening, so interval
// durations stay consistent; events that were already closed keep their
// boundaries, which makes the operation idempotent. A disjoint older
// timeline simply lands at the tail. The resulting interval set does not
// depend on which track initiated the merge.
func (t *Track) Merge(other *Track) {
	merged := make([]*Event, 0, len(t.events)+len(other.events))
	merged = append(merged, t.events...)
	seen := make(map[*Event]bool, len(t.events))
	for _, e := range t.events {
		seen[e] = true
	}
	for _, e := range other.events {
		if !seen[e] {
			merged = append(merged, e)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if !a.FirstPresence.Equal(b.FirstPresence) {
			return a.FirstPresence.After(b.FirstPresence)
		}
		if !a.LastRisingEdge.Equal(b.LastRisingEdge) {
			return a.LastRisingEdge.After(b.LastRisingEdge)
		}
		return a.Room < b.Room
	})

	// Everything but the newest event now has a determined successor; close
	// any still-open interval at that successor's opening edge.
	for i := 1; i < len(merged); i++ {
		if merged[i].Open() {
			merged[i].End(merged[i-1].FirstPresence)
		}
	}

	t.events = merged
	t.trim()

	if other.lastEventTime.After(t.lastEventTime) {
		t.lastEventTime = other.lastEventTime
	}
}

// trim drops the oldest events beyond MaxLength.
func (t *Track) trim() {
	max := t.MaxLength
	if max <= 0 {
		max = DefaultMaxTrackLength
	}
	if len(t.events) > max {
		t.events = t.events[:max]
	}
}

// Duration sums the durations of every retained event.
func (t *Track) Duration(now time.Time) time.Duration {
	var total time.Duration
	for _, e := range t.events {
		total += e.Duration(now)
	}
	return total
}

// Rooms returns the visited rooms newest-first.
func (t *Track) Rooms() []string {
	out := make([]string, len(t.events))
	for i, e := range t.events {
		out[i] = e.Room
	}
	return out
}

// PrettyString renders the path newest-first with the total duration, e.g.
// "kitchen <- hallway <- bedroom (12.300s)". Diagnostic only; not a parseable
// format.
func (t *Track) PrettyString(now time.Time) string {
	var b strings.Builder
	for i, e := range t.events {
		if i > 0 {
			b.WriteString(" <- ")
		}
		b.WriteString(e.Room)
	}
	fmt.Fprintf(&b, " (%.3fs)", t.Duration(now).Seconds())
	return b.String()
}

// clone returns a deep copy of the track.
func (t *Track) clone() *Track {
	c := &Track{
		ID:            t.ID,
		MaxLength:     t.MaxLength,
		events:        make([]*Event, len(t.events)),
		lastEventTime: t.lastEventTime,
	}
	for i, e := range t.events {
		c.events[i] = e.clone()
	}
	return c
}
