package occupancy

import (
	"sync"
	"time"
)

// Constants for sensor evidence defaults.
const (
	// DefaultSensorCooldown is how long a motion trigger is treated as
	// evidence of continued presence before fully decaying.
	DefaultSensorCooldown = 7 * time.Minute
	// DefaultFloorProbability is the residual likelihood that a person is
	// still in a room once a trigger has fully decayed. Non-zero because a
	// motionless person stops firing impulse sensors.
	DefaultFloorProbability = 0.05
)

// SensorModelConfig holds the evidence decay parameters.
type SensorModelConfig struct {
	Cooldown  time.Duration // window during which a trigger decays from 1.0 to the floor
	FloorProb float64       // clamp value after the cooldown elapses
}

// DefaultSensorModelConfig returns the default sensor evidence parameters.
func DefaultSensorModelConfig() SensorModelConfig {
	return SensorModelConfig{
		Cooldown:  DefaultSensorCooldown,
		FloorProb: DefaultFloorProbability,
	}
}

// SensorModel converts per-room trigger recency into a likelihood that a
// person is still present. Room evidence is a property of the room, not of
// any tracked person, so one SensorModel is shared by every PersonTracker in
// a building. Safe for concurrent use.
type SensorModel struct {
	config SensorModelConfig

	mu          sync.RWMutex
	lastTrigger map[string]time.Time
	presence    map[string]bool // explicit override; absence of key = unknown
}

// NewSensorModel creates a SensorModel with the given decay parameters.
func NewSensorModel(config SensorModelConfig) *SensorModel {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultSensorCooldown
	}
	if config.FloorProb <= 0 {
		config.FloorProb = DefaultFloorProbability
	}
	return &SensorModel{
		config:      config,
		lastTrigger: make(map[string]time.Time),
		presence:    make(map[string]bool),
	}
}

// Cooldown returns the configured decay window.
func (m *SensorModel) Cooldown() time.Duration { return m.config.Cooldown }

// RecordTrigger notes a motion trigger in room at time now. A trigger that
// lands inside the room's active cooldown window is dropped: a chattering
// sensor must not keep re-arming the window and pinning likelihood at 1.0.
func (m *SensorModel) RecordTrigger(room string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.motionActiveLocked(room, now) {
		return
	}
	m.lastTrigger[room] = now
}

// MotionActive reports whether room is inside its cooldown window at now.
func (m *SensorModel) MotionActive(room string, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.motionActiveLocked(room, now)
}

func (m *SensorModel) motionActiveLocked(room string, now time.Time) bool {
	last, ok := m.lastTrigger[room]
	if !ok {
		return false
	}
	elapsed := now.Sub(last)
	return elapsed >= 0 && elapsed < m.config.Cooldown
}

// LastTrigger returns the most recent recorded trigger time for room.
func (m *SensorModel) LastTrigger(room string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.lastTrigger[room]
	return t, ok
}

// SetPresence records an explicit occupied/empty report for room. While set
// it overrides time decay entirely: LikelihoodStillPresent returns exactly
// 1.0 or 0.0. Used for sensors that report sustained presence rather than
// impulses.
func (m *SensorModel) SetPresence(room string, present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presence[room] = present
}

// ClearPresence removes the explicit override for room, returning it to the
// time-decay regime.
func (m *SensorModel) ClearPresence(room string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.presence, room)
}

// Presence returns the explicit override for room. The second return is
// false when the room has no override.
func (m *SensorModel) Presence(room string) (present, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	present, ok = m.presence[room]
	return present, ok
}

// LikelihoodStillPresent returns the probability that a person who was in
// room is still there at time now. An explicit presence override wins
// outright; otherwise the likelihood decays linearly from 1.0 at trigger
// time to the floor probability at the end of the cooldown, and clamps at
// the floor thereafter. A room with no recorded trigger sits at the floor.
func (m *SensorModel) LikelihoodStillPresent(room string, now time.Time) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if present, ok := m.presence[room]; ok {
		if present {
			return 1.0
		}
		return 0.0
	}

	last, ok := m.lastTrigger[room]
	if !ok {
		return m.config.FloorProb
	}
	elapsed := now.Sub(last)
	if elapsed <= 0 {
		return 1.0
	}
	if elapsed >= m.config.Cooldown {
		return m.config.FloorProb
	}
	frac := float64(elapsed) / float64(m.config.Cooldown)
	return 1.0 - frac*(1.0-m.config.FloorProb)
}
