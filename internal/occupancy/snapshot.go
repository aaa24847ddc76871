package occupancy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PersonState is the serializable view of one tracked person.
type PersonState struct {
	Estimate string   `json:"estimate"`
	Phones   []string `json:"phones"`
}

// PhoneState is the serializable view of one known phone.
type PhoneState struct {
	Person   string    `json:"person"`
	LastRoom string    `json:"last_room"`
	LastSeen time.Time `json:"last_seen"`
}

// StateSnapshot is a complete point-in-time dump of tracker state, used by
// the HTTP API and the debug frame recorder. Snapshots are deep copies;
// holding one does not pin live tracker state.
type StateSnapshot struct {
	People map[string]PersonState `json:"people"`
	Phones map[string]PhoneState  `json:"phones"`
}

// DumpState captures the current people and phones. Repeated calls with no
// intervening events return equal snapshots.
func (m *MultiPersonTracker) DumpState() *StateSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &StateSnapshot{
		People: make(map[string]PersonState, len(m.people)),
		Phones: make(map[string]PhoneState, len(m.phones)),
	}
	for id, person := range m.people {
		snap.People[id] = PersonState{
			Estimate: person.Estimate(),
			Phones:   person.Phones(),
		}
	}
	for id, phone := range m.phones {
		snap.Phones[id] = PhoneState{
			Person:   phone.OwnerID,
			LastRoom: phone.Room,
			LastSeen: phone.LastSeen,
		}
	}
	return snap
}

// PrettyString renders a snapshot as indented text for logs and the debug
// console, one person per line with their phones nested beneath.
func (s *StateSnapshot) PrettyString() string {
	var b strings.Builder

	people := make([]string, 0, len(s.People))
	for id := range s.People {
		people = append(people, id)
	}
	sort.Strings(people)

	b.WriteString("people:\n")
	for _, id := range people {
		p := s.People[id]
		estimate := p.Estimate
		if estimate == "" {
			estimate = "(no estimate)"
		}
		fmt.Fprintf(&b, "  %s: %s\n", id, estimate)
		phones := append([]string(nil), p.Phones...)
		sort.Strings(phones)
		for _, phoneID := range phones {
			if ph, ok := s.Phones[phoneID]; ok {
				fmt.Fprintf(&b, "    phone %s: room=%q last_seen=%s\n",
					phoneID, ph.LastRoom, ph.LastSeen.Format(time.RFC3339))
			} else {
				fmt.Fprintf(&b, "    phone %s\n", phoneID)
			}
		}
	}

	orphans := make([]string, 0)
	for id, ph := range s.Phones {
		if ph.Person == "" {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		sort.Strings(orphans)
		b.WriteString("unassociated phones:\n")
		for _, id := range orphans {
			ph := s.Phones[id]
			fmt.Fprintf(&b, "  %s: room=%q last_seen=%s\n",
				id, ph.LastRoom, ph.LastSeen.Format(time.RFC3339))
		}
	}
	return b.String()
}
