package occupancy

import (
	"math/rand"
	"sort"
	"time"

	"github.com/banshee-data/occupancy.report/internal/occupancy/roomgraph"
)

// Constants for particle filter defaults.
const (
	// DefaultNumParticles is the number of room hypotheses per person.
	DefaultNumParticles = 100
	// DefaultStayProb is the probability a particle stays put on a decay
	// step with no fresh evidence.
	DefaultStayProb = 0.6
	// DefaultSightingBoost multiplies the weight of particles sitting in
	// the last directly sighted room, reinforcing confirmed observations.
	DefaultSightingBoost = 1.5
)

// FilterConfig holds the particle filter parameters for one person.
type FilterConfig struct {
	NumParticles  int     // size of the hypothesis set
	StayProb      float64 // motion model: probability of not moving per step
	SightingBoost float64 // weight multiplier for the last sighted room
}

// DefaultFilterConfig returns the default particle filter parameters.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		NumParticles:  DefaultNumParticles,
		StayProb:      DefaultStayProb,
		SightingBoost: DefaultSightingBoost,
	}
}

// Particle is a single room hypothesis with a weight. Particles are owned
// exclusively by one PersonTracker and are replaced wholesale on every
// resampling step.
type Particle struct {
	Room   string
	Weight float64
}

// PersonTracker is a particle filter over rooms for a single person.
//
// It is not safe for concurrent use; MultiPersonTracker serializes access.
// All randomness flows through the injected rand source so tests can seed
// deterministic outcomes.
type PersonTracker struct {
	graph   *roomgraph.RoomGraph
	sensors *SensorModel
	config  FilterConfig
	rng     *rand.Rand

	particles      []Particle
	lastSensorRoom string
	lastSensorTime time.Time
}

// NewPersonTracker creates a tracker whose particles start uniformly spread
// over the graph's rooms. A nil rng gets a time-seeded source.
func NewPersonTracker(graph *roomgraph.RoomGraph, sensors *SensorModel, config FilterConfig, rng *rand.Rand) *PersonTracker {
	if config.NumParticles <= 0 {
		config.NumParticles = DefaultNumParticles
	}
	if config.StayProb <= 0 || config.StayProb > 1 {
		config.StayProb = DefaultStayProb
	}
	if config.SightingBoost <= 0 {
		config.SightingBoost = DefaultSightingBoost
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	pt := &PersonTracker{
		graph:   graph,
		sensors: sensors,
		config:  config,
		rng:     rng,
	}
	rooms := graph.Rooms()
	pt.particles = make([]Particle, config.NumParticles)
	for i := range pt.particles {
		pt.particles[i] = Particle{Room: rooms[rng.Intn(len(rooms))], Weight: 1.0}
	}
	return pt
}

// Update advances the filter one step. sensorRoom is the room a sensor just
// sighted this person in, or "" when there is no fresh observation.
//
// A direct sighting is authoritative: the last-seen bookkeeping is updated,
// the trigger is forwarded to the shared SensorModel, and every particle
// snaps to the sighted room. Without a sighting, and once the last direct
// observation has aged past the sensor cooldown, particles diffuse: each
// stays with probability StayProb or steps to a uniformly random neighbor.
// Every step ends with a reweight against the SensorModel and an
// inverse-CDF resample.
func (pt *PersonTracker) Update(now time.Time, sensorRoom string) {
	if sensorRoom != "" {
		pt.lastSensorRoom = sensorRoom
		pt.lastSensorTime = now
		pt.sensors.RecordTrigger(sensorRoom, now)
		for i := range pt.particles {
			pt.particles[i].Room = sensorRoom
		}
	} else if pt.lastSensorTime.IsZero() || now.Sub(pt.lastSensorTime) > pt.sensors.Cooldown() {
		for i := range pt.particles {
			pt.moveParticle(&pt.particles[i])
		}
	}

	// Reweight against shared room evidence.
	total := 0.0
	for i := range pt.particles {
		w := pt.sensors.LikelihoodStillPresent(pt.particles[i].Room, now)
		if pt.lastSensorRoom != "" && pt.particles[i].Room == pt.lastSensorRoom {
			w *= pt.config.SightingBoost
		}
		pt.particles[i].Weight = w
		total += w
	}

	// Normalize. A zero total means the evidence carries no information
	// (every hypothesis explicitly contradicted); fall back to uniform
	// rather than dividing by zero.
	if total == 0 {
		uniform := 1.0 / float64(len(pt.particles))
		for i := range pt.particles {
			pt.particles[i].Weight = uniform
		}
	} else {
		for i := range pt.particles {
			pt.particles[i].Weight /= total
		}
	}

	pt.resample()
}

// moveParticle applies the motion model to a single particle. Rooms with no
// neighbors pin their particles; that is tolerated, not an error.
func (pt *PersonTracker) moveParticle(p *Particle) {
	if pt.rng.Float64() < pt.config.StayProb {
		return
	}
	neighbors := pt.graph.Neighbors(p.Room)
	if len(neighbors) == 0 {
		return
	}
	p.Room = neighbors[pt.rng.Intn(len(neighbors))]
}

// resample draws a fresh particle set proportional to the normalized
// weights using one uniform draw per slot against the cumulative table.
func (pt *PersonTracker) resample() {
	cumulative := make([]float64, len(pt.particles))
	acc := 0.0
	for i := range pt.particles {
		acc += pt.particles[i].Weight
		cumulative[i] = acc
	}

	resampled := make([]Particle, len(pt.particles))
	for i := range resampled {
		r := pt.rng.Float64()
		idx := sort.SearchFloat64s(cumulative, r)
		if idx >= len(pt.particles) {
			// float accumulation can leave the final cell a hair under 1.0
			idx = len(pt.particles) - 1
		}
		resampled[i] = Particle{Room: pt.particles[idx].Room, Weight: 1.0}
	}
	pt.particles = resampled
}

// Estimate returns the modal particle room. Ties break to the
// lexicographically smallest room so repeated calls are deterministic.
// Returns "" only when the tracker has no particles, which indicates a
// configuration error.
func (pt *PersonTracker) Estimate() string {
	counts := make(map[string]int, 8)
	for i := range pt.particles {
		counts[pt.particles[i].Room]++
	}
	best := ""
	bestCount := 0
	for room, c := range counts {
		if c > bestCount || (c == bestCount && room < best) {
			best, bestCount = room, c
		}
	}
	return best
}

// Distribution returns the normalized histogram of particle rooms. The
// fractions sum to 1.0 whenever the tracker holds at least one particle.
func (pt *PersonTracker) Distribution() map[string]float64 {
	if len(pt.particles) == 0 {
		return map[string]float64{}
	}
	counts := make(map[string]int, 8)
	for i := range pt.particles {
		counts[pt.particles[i].Room]++
	}
	total := float64(len(pt.particles))
	dist := make(map[string]float64, len(counts))
	for room, c := range counts {
		dist[room] = float64(c) / total
	}
	return dist
}

// LastSighting returns the most recent direct observation of this person.
// ok is false if the person has never been sighted.
func (pt *PersonTracker) LastSighting() (room string, at time.Time, ok bool) {
	return pt.lastSensorRoom, pt.lastSensorTime, !pt.lastSensorTime.IsZero()
}

// NumParticles returns the configured hypothesis count.
func (pt *PersonTracker) NumParticles() int { return len(pt.particles) }
