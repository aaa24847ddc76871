package occupancy

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/occupancy/roomgraph"
)

// MultiTrackerConfig holds orchestration parameters.
type MultiTrackerConfig struct {
	Filter FilterConfig // parameters for each new person's filter

	// Seed is the base seed for per-person random sources; tracker n gets
	// Seed+n. Zero means time-seeded (non-deterministic).
	Seed int64

	// Logf receives diagnostic output. Nil uses monitoring.Logf.
	Logf func(format string, v ...interface{})
}

// DefaultMultiTrackerConfig returns the default orchestration parameters.
func DefaultMultiTrackerConfig() MultiTrackerConfig {
	return MultiTrackerConfig{Filter: DefaultFilterConfig()}
}

// Stats is a point-in-time snapshot of orchestrator counters.
type Stats struct {
	EventsProcessed   int64 // sensor events delegated to a tracker
	PhonePings        int64 // phone reports received
	PresenceUpdates   int64 // explicit presence overrides applied
	DecayTicks        int64 // Step calls
	UnknownRoomEvents int64 // events dropped for rooms not in the graph
	People            int
	Phones            int
}

// MultiPersonTracker owns one PersonTracker per known person and the
// identifier bookkeeping around them. Events are processed to completion one
// at a time; a mutex serializes the ingest path against HTTP readers.
//
// There is no reset operation: hosts discard the instance and construct a
// new one.
type MultiPersonTracker struct {
	graph   *roomgraph.RoomGraph
	sensors *SensorModel
	config  MultiTrackerConfig
	logf    func(format string, v ...interface{})

	mu             sync.RWMutex
	people         map[string]*Person
	phones         map[string]*Phone
	genericCounter int
	trackerCount   int64
	stats          Stats
}

// NewMultiPersonTracker creates an orchestrator over the given room graph
// and shared sensor model.
func NewMultiPersonTracker(graph *roomgraph.RoomGraph, sensors *SensorModel, config MultiTrackerConfig) *MultiPersonTracker {
	logf := config.Logf
	if logf == nil {
		logf = func(format string, v ...interface{}) { monitoring.Logf(format, v...) }
	}
	return &MultiPersonTracker{
		graph:   graph,
		sensors: sensors,
		config:  config,
		logf:    logf,
		people:  make(map[string]*Person),
		phones:  make(map[string]*Phone),
	}
}

// newRNG hands each tracker its own random source so per-person resampling
// stays deterministic under a fixed base seed regardless of event order for
// other people.
func (m *MultiPersonTracker) newRNG() *rand.Rand {
	n := m.trackerCount
	m.trackerCount++
	if m.config.Seed == 0 {
		return nil // NewPersonTracker falls back to a time seed
	}
	return rand.New(rand.NewSource(m.config.Seed + n))
}

// getOrCreatePerson resolves a person id, creating the person and their
// tracker on first reference.
func (m *MultiPersonTracker) getOrCreatePerson(personID string, generic bool) *Person {
	if person, ok := m.people[personID]; ok {
		return person
	}
	person := &Person{
		ID:      personID,
		Generic: generic,
		Tracker: NewPersonTracker(m.graph, m.sensors, m.config.Filter, m.newRNG()),
	}
	m.people[personID] = person
	m.logf("occupancy: new person %q (generic=%v)", personID, generic)
	return person
}

// createGenericPerson mints the next anonymous person (unknown_0,
// unknown_1, ...). Every identity-less sensor event gets a fresh one.
func (m *MultiPersonTracker) createGenericPerson() *Person {
	id := fmt.Sprintf("unknown_%d", m.genericCounter)
	m.genericCounter++
	return m.getOrCreatePerson(id, true)
}

// ProcessEvent handles one sensor sighting. An empty personID creates a new
// anonymous person. Rooms missing from the connectivity graph are logged and
// ignored; occupancy inference degrades rather than failing the host.
func (m *MultiPersonTracker) ProcessEvent(personID, room string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.HasRoom(room) {
		m.stats.UnknownRoomEvents++
		m.logf("occupancy: ignoring event for unknown room %q (person %q)", room, personID)
		return
	}

	var person *Person
	if personID == "" {
		person = m.createGenericPerson()
	} else {
		person = m.getOrCreatePerson(personID, false)
	}
	person.Tracker.Update(now, room)
	m.stats.EventsProcessed++
}

// AssociatePhone links a phone to a person, creating either on demand. A
// phone already owned by someone else is reassigned and the previous owner
// loses it.
func (m *MultiPersonTracker) AssociatePhone(personID, phoneID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	phone, ok := m.phones[phoneID]
	if !ok {
		phone = &Phone{ID: phoneID}
		m.phones[phoneID] = phone
	}
	person := m.getOrCreatePerson(personID, false)

	if phone.OwnerID != "" && phone.OwnerID != personID {
		if prev, ok := m.people[phone.OwnerID]; ok {
			prev.removePhone(phoneID)
		}
		m.logf("occupancy: phone %q reassigned %q -> %q", phoneID, phone.OwnerID, personID)
	}
	phone.OwnerID = personID
	person.addPhone(phoneID)
}

// ProcessPhoneData handles one phone report. A report naming a known room is
// forwarded to the owning person's tracker as a direct sighting. An
// activity-only report (empty room) re-sights the phone's last known room
// when it has one. Reports for unowned phones only update the phone's own
// record. Unknown rooms are logged and not propagated.
func (m *MultiPersonTracker) ProcessPhoneData(phoneID, room, activity string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.PhonePings++

	if room != "" && !m.graph.HasRoom(room) {
		m.stats.UnknownRoomEvents++
		m.logf("occupancy: phone %q reported unknown room %q; recording without tracking", phoneID, room)
		room = ""
	}

	phone, ok := m.phones[phoneID]
	if !ok {
		phone = &Phone{ID: phoneID}
		m.phones[phoneID] = phone
	}
	phone.update(room, activity, now)

	if phone.OwnerID == "" {
		return // diagnostic-only effect for unassociated phones
	}
	person, ok := m.people[phone.OwnerID]
	if !ok {
		m.logf("occupancy: phone %q owner %q missing", phoneID, phone.OwnerID)
		return
	}

	sighting := room
	if sighting == "" {
		// Activity-only ping: fall back to the phone's last known room.
		sighting = phone.Room
	}
	person.Tracker.Update(now, sighting)
	if sighting != "" {
		m.stats.EventsProcessed++
	}
}

// RecordPresence applies an explicit occupied/empty report for a room and
// re-runs every tracker with no new sighting so the override propagates into
// every active distribution.
func (m *MultiPersonTracker) RecordPresence(room string, present bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.graph.HasRoom(room) {
		m.stats.UnknownRoomEvents++
		m.logf("occupancy: ignoring presence for unknown room %q", room)
		return
	}
	m.sensors.SetPresence(room, present)
	m.stats.PresenceUpdates++
	for _, person := range m.people {
		person.Tracker.Update(now, "")
	}
}

// ClearPresence removes a room's explicit override without running trackers.
func (m *MultiPersonTracker) ClearPresence(room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensors.ClearPresence(room)
}

// Step advances every tracker one decay/diffusion tick with no fresh
// evidence. Called on a periodic clock between events.
func (m *MultiPersonTracker) Step(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.DecayTicks++
	for _, person := range m.people {
		person.Tracker.Update(now, "")
	}
}

// EstimateLocations returns the current modal room per person id.
func (m *MultiPersonTracker) EstimateLocations() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.people))
	for id, person := range m.people {
		out[id] = person.Estimate()
	}
	return out
}

// Distribution returns one person's normalized room histogram, or nil for
// an unknown person.
func (m *MultiPersonTracker) Distribution(personID string) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	person, ok := m.people[personID]
	if !ok {
		return nil
	}
	return person.Tracker.Distribution()
}

// Distributions returns every person's normalized room histogram.
func (m *MultiPersonTracker) Distributions() map[string]map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]float64, len(m.people))
	for id, person := range m.people {
		out[id] = person.Tracker.Distribution()
	}
	return out
}

// PersonIDs returns the known person ids, sorted.
func (m *MultiPersonTracker) PersonIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.people))
	for id := range m.people {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Stats returns a copy of the orchestrator counters.
func (m *MultiPersonTracker) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.stats
	s.People = len(m.people)
	s.Phones = len(m.phones)
	return s
}
