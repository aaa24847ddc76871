package occupancy

import (
	"github.com/banshee-data/occupancy.report/internal/config"
)

// SensorModelConfigFromTuning builds a SensorModelConfig from a loaded
// TuningConfig. Use this in production code where the TuningConfig is
// already loaded.
func SensorModelConfigFromTuning(cfg *config.TuningConfig) SensorModelConfig {
	return SensorModelConfig{
		Cooldown:  cfg.GetSensorCooldown(),
		FloorProb: cfg.GetFloorProbability(),
	}
}

// FilterConfigFromTuning builds a FilterConfig from a loaded TuningConfig.
func FilterConfigFromTuning(cfg *config.TuningConfig) FilterConfig {
	return FilterConfig{
		NumParticles:  cfg.GetNumParticles(),
		StayProb:      cfg.GetStayProbability(),
		SightingBoost: cfg.GetSightingBoost(),
	}
}

// MultiTrackerConfigFromTuning builds a MultiTrackerConfig from a loaded
// TuningConfig. Seed stays zero (time-seeded); hosts that need determinism
// set it explicitly.
func MultiTrackerConfigFromTuning(cfg *config.TuningConfig) MultiTrackerConfig {
	return MultiTrackerConfig{
		Filter: FilterConfigFromTuning(cfg),
	}
}
