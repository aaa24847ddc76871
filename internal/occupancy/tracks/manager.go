package tracks

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
	"github.com/banshee-data/occupancy.report/internal/occupancy/roomgraph"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// Constants for manager configuration.
const (
	// DefaultScoreThreshold is the association gate in graph hops: events
	// further than this from every track head start a new track.
	DefaultScoreThreshold = 2.5
	// DefaultOldestTrack is how long a track may go without evidence before
	// housekeeping drops it.
	DefaultOldestTrack = 30 * time.Minute
	// DefaultMaxTracks caps simultaneous tracks; the oldest-updated are
	// evicted first when exceeded.
	DefaultMaxTracks = 10
)

// ManagerConfig holds association and housekeeping parameters.
type ManagerConfig struct {
	ScoreThreshold float64       // association gate (graph hops)
	OldestTrack    time.Duration // idle duration before a track is dropped
	MaxTrackLength int           // events retained per track
	MaxTracks      int           // simultaneous track cap

	// Logf receives diagnostic output. Nil uses monitoring.Logf.
	Logf func(format string, v ...interface{})
}

// DefaultManagerConfig returns the default association parameters.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ScoreThreshold: DefaultScoreThreshold,
		OldestTrack:    DefaultOldestTrack,
		MaxTrackLength: DefaultMaxTrackLength,
		MaxTracks:      DefaultMaxTracks,
	}
}

// ManagerConfigFromTuning builds a ManagerConfig from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func ManagerConfigFromTuning(cfg *config.TuningConfig) ManagerConfig {
	return ManagerConfig{
		ScoreThreshold: cfg.GetScoreThreshold(),
		OldestTrack:    cfg.GetOldestTrack(),
		MaxTrackLength: cfg.GetMaxTrackLength(),
		MaxTracks:      cfg.GetMaxTracks(),
	}
}

// ManagerStats is a point-in-time snapshot of manager counters.
type ManagerStats struct {
	EventsSeen        int64 // room events accepted for scoring
	UnknownRoomEvents int64 // events dropped for rooms not in the graph
	Merges            int64 // events absorbed into an existing track
	Refreshes         int64 // events that re-triggered a track's head room
	NewTracks         int64 // events that started a distinct track
	TracksExpired     int64 // tracks dropped for idling past OldestTrack
	TracksEvicted     int64 // tracks dropped for exceeding MaxTracks
	ActiveTracks      int
}

// candidate is one existing track scored against an incoming room event.
type candidate struct {
	track     *Track
	base      int     // shortest-path hops, track head to new room
	aligned   bool    // track was heading toward the new room
	hasTiming bool    // both speeds below are computable
	speedDiff float64 // |last-hop speed - implied match speed|, hops/sec
}

// better reports whether a should win association over b. Alignment
// dominates, then having usable timing, then the smaller speed discrepancy,
// then the smaller distance; the final tie goes to the lower (older) track
// id so selection is deterministic.
func (a candidate) better(b candidate) bool {
	if a.aligned != b.aligned {
		return a.aligned
	}
	if a.hasTiming != b.hasTiming {
		return a.hasTiming
	}
	if a.hasTiming && a.speedDiff != b.speedDiff {
		return a.speedDiff < b.speedDiff
	}
	if a.base != b.base {
		return a.base < b.base
	}
	return a.track.ID < b.track.ID
}

// Manager stitches room events into per-occupant tracks. Each incoming event
// is scored against every live track by graph distance, with directional
// alignment and speed consistency breaking ties; the event merges into the
// best track under the score threshold or starts a new one. Safe for
// concurrent use.
type Manager struct {
	graph  *roomgraph.RoomGraph
	config ManagerConfig
	clock  timeutil.Clock
	logf   func(format string, v ...interface{})

	mu          sync.RWMutex
	tracks      []*Track
	nextTrackID int64
	stats       ManagerStats
}

// NewManager creates a Manager over the given room graph. A nil clock uses
// the wall clock.
func NewManager(graph *roomgraph.RoomGraph, config ManagerConfig, clock timeutil.Clock) *Manager {
	if config.ScoreThreshold <= 0 {
		config.ScoreThreshold = DefaultScoreThreshold
	}
	if config.OldestTrack <= 0 {
		config.OldestTrack = DefaultOldestTrack
	}
	if config.MaxTrackLength <= 0 {
		config.MaxTrackLength = DefaultMaxTrackLength
	}
	if config.MaxTracks <= 0 {
		config.MaxTracks = DefaultMaxTracks
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	logf := config.Logf
	if logf == nil {
		logf = func(format string, v ...interface{}) { monitoring.Logf(format, v...) }
	}
	return &Manager{
		graph:       graph,
		config:      config,
		clock:       clock,
		logf:        logf,
		nextTrackID: 1,
	}
}

// AddEvent processes a room sensor firing stamped with the manager's clock.
func (m *Manager) AddEvent(room string) {
	m.AddEventAt(room, m.clock.Now())
}

// AddEventAt processes a room sensor firing at an explicit time. Events for
// rooms missing from the connectivity graph are logged and ignored.
//
// Idle tracks are expired before scoring so a long-dead track can never
// claim a fresh event just because its last room happens to be nearby.
func (m *Manager) AddEventAt(room string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireIdleLocked(now)

	if !m.graph.HasRoom(room) {
		m.stats.UnknownRoomEvents++
		m.logf("tracks: ignoring event for unknown room %q", room)
		return
	}
	m.stats.EventsSeen++

	if best, ok := m.associateLocked(room, now); ok {
		if best.Room() == room {
			// Same room as the track head: refresh the open interval
			// instead of stacking a duplicate event.
			best.RefreshHead(now)
			m.stats.Refreshes++
			m.logf("tracks: track_%d refreshed in %q", best.ID, room)
		} else {
			// The merged-in track is absorbed whole; it never needs an id.
			incoming := NewTrack(0, room, now)
			incoming.MaxLength = m.config.MaxTrackLength
			best.Merge(incoming)
			m.stats.Merges++
			m.logf("tracks: track_%d extended into %q", best.ID, room)
		}
	} else {
		t := NewTrack(m.nextTrackID, room, now)
		t.MaxLength = m.config.MaxTrackLength
		m.nextTrackID++
		m.tracks = append(m.tracks, t)
		m.stats.NewTracks++
		m.logf("tracks: new track_%d in %q", t.ID, room)
	}

	m.enforceTrackCapLocked()
}

// associateLocked scores every live track against an event in room at now
// and returns the winner, or false when no track passes the gate.
func (m *Manager) associateLocked(room string, now time.Time) (*Track, bool) {
	var best candidate
	found := false

	for _, t := range m.tracks {
		base, ok := m.graph.Distance(t.Room(), room)
		if !ok || float64(base) >= m.config.ScoreThreshold {
			continue
		}
		c := candidate{track: t, base: base}

		if prev := t.PreviousRoom(); prev != "" {
			c.aligned = m.graph.OnShortestPathVia(prev, t.Room(), room)

			// Speed consistency: compare the track's last hop rate against
			// the rate implied by claiming this event.
			head := t.events[0]
			prevEvent := t.events[1]
			lastElapsed := head.FirstPresence.Sub(prevEvent.FirstPresence).Seconds()
			matchElapsed := now.Sub(head.FirstPresence).Seconds()
			hopDist, hopOK := m.graph.Distance(prev, t.Room())
			if hopOK && lastElapsed > 0 && matchElapsed > 0 {
				lastSpeed := float64(hopDist) / lastElapsed
				matchSpeed := float64(base) / matchElapsed
				c.speedDiff = lastSpeed - matchSpeed
				if c.speedDiff < 0 {
					c.speedDiff = -c.speedDiff
				}
				c.hasTiming = true
			}
		}

		if !found || c.better(best) {
			best = c
			found = true
		}
	}
	if !found {
		return nil, false
	}
	return best.track, true
}

// RecordAbsence closes the open head interval of any track currently placed
// in room. Fed by presence sensors reporting a falling edge; tracks
// elsewhere are untouched and closed heads keep their boundary.
func (m *Manager) RecordAbsence(room string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tracks {
		if t.Room() == room && t.Head().Open() {
			t.EndHead(now)
			m.logf("tracks: track_%d absence in %q", t.ID, room)
		}
	}
}

// expireIdleLocked drops tracks that have gone longer than OldestTrack
// without evidence.
func (m *Manager) expireIdleLocked(now time.Time) {
	kept := m.tracks[:0]
	for _, t := range m.tracks {
		if t.IdleFor(now) > m.config.OldestTrack {
			m.stats.TracksExpired++
			m.logf("tracks: track_%d expired after %s idle", t.ID, t.IdleFor(now))
			continue
		}
		kept = append(kept, t)
	}
	m.tracks = kept
}

// enforceTrackCapLocked evicts the oldest-updated tracks over MaxTracks.
func (m *Manager) enforceTrackCapLocked() {
	excess := len(m.tracks) - m.config.MaxTracks
	if excess <= 0 {
		return
	}
	sort.SliceStable(m.tracks, func(i, j int) bool {
		return m.tracks[i].LastEventTime().Before(m.tracks[j].LastEventTime())
	})
	for _, t := range m.tracks[:excess] {
		m.stats.TracksEvicted++
		m.logf("tracks: track_%d evicted over track cap", t.ID)
	}
	m.tracks = m.tracks[excess:]
	sort.SliceStable(m.tracks, func(i, j int) bool {
		return m.tracks[i].ID < m.tracks[j].ID
	})
}

// Tracks returns deep copies of the live tracks, oldest first.
func (m *Manager) Tracks() []*Track {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Track, len(m.tracks))
	for i, t := range m.tracks {
		out[i] = t.clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TrackCount returns the number of live tracks.
func (m *Manager) TrackCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracks)
}

// Stats returns a copy of the manager counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.stats
	s.ActiveTracks = len(m.tracks)
	return s
}

// GetPrettyString renders every live track one per line for logs and the
// debug console.
func (m *Manager) GetPrettyString() string {
	now := m.clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.tracks) == 0 {
		return "no tracks\n"
	}
	sorted := make([]*Track, len(m.tracks))
	copy(sorted, m.tracks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var b strings.Builder
	for _, t := range sorted {
		fmt.Fprintf(&b, "track_%d: %s\n", t.ID, t.PrettyString(now))
	}
	return b.String()
}
