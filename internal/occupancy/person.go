package occupancy

import (
	"time"
)

// Phone is a mobile device that reports location hints. A phone belongs to
// at most one person at a time; reassociating it overwrites the previous
// owner. Unowned phones still record their own state so late association
// picks up the latest hint.
type Phone struct {
	ID       string
	Room     string // last reported room, "" when never reported
	Activity string // last reported activity label, e.g. "walking"
	LastSeen time.Time
	OwnerID  string // "" while unassociated
}

// update records a phone report. Empty fields leave the previous value in
// place so an activity-only ping does not erase the last known room.
func (p *Phone) update(room, activity string, now time.Time) {
	if room != "" {
		p.Room = room
	}
	if activity != "" {
		p.Activity = activity
	}
	p.LastSeen = now
}

// Person pairs an identifier with its PersonTracker and any associated
// phones. Generic persons are created automatically for sensor events that
// arrive without an identity.
type Person struct {
	ID      string
	Generic bool
	Tracker *PersonTracker

	phoneIDs []string // association order
}

// addPhone links a phone id to this person, once.
func (p *Person) addPhone(phoneID string) {
	for _, id := range p.phoneIDs {
		if id == phoneID {
			return
		}
	}
	p.phoneIDs = append(p.phoneIDs, phoneID)
}

// removePhone unlinks a phone id, keeping association order for the rest.
func (p *Person) removePhone(phoneID string) {
	for i, id := range p.phoneIDs {
		if id == phoneID {
			p.phoneIDs = append(p.phoneIDs[:i], p.phoneIDs[i+1:]...)
			return
		}
	}
}

// Phones returns the associated phone ids in association order.
func (p *Person) Phones() []string {
	out := make([]string, len(p.phoneIDs))
	copy(out, p.phoneIDs)
	return out
}

// Estimate returns the tracker's current modal room.
func (p *Person) Estimate() string { return p.Tracker.Estimate() }
