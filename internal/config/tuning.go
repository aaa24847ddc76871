package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the inference parameters for both occupancy engines.
// The schema matches the /api/params endpoint so the same JSON can be used
// for startup configuration and runtime updates. All fields are pointers:
// nil means "not specified, use the default", so partial configs are safe.
type TuningConfig struct {
	// Sensor evidence params
	SensorCooldown   *string  `json:"sensor_cooldown,omitempty"`   // duration string like "7m"
	FloorProbability *float64 `json:"floor_probability,omitempty"` // residual likelihood after decay

	// Particle filter params
	NumParticles    *int     `json:"num_particles,omitempty"`
	StayProbability *float64 `json:"stay_probability,omitempty"` // motion model stay chance per step
	SightingBoost   *float64 `json:"sighting_boost,omitempty"`   // weight multiplier in the last sighted room

	// Track association params
	ScoreThreshold *float64 `json:"score_threshold,omitempty"` // association gate in graph hops
	OldestTrack    *string  `json:"oldest_track,omitempty"`    // duration string like "30m"
	MaxTrackLength *int     `json:"max_track_length,omitempty"`
	MaxTracks      *int     `json:"max_tracks,omitempty"`

	// Daemon params
	StepInterval *string `json:"step_interval,omitempty"` // decay tick period, duration string like "30s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated to
// its documented default. Matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		SensorCooldown:   ptrString("7m"),
		FloorProbability: ptrFloat64(0.05),
		NumParticles:     ptrInt(100),
		StayProbability:  ptrFloat64(0.6),
		SightingBoost:    ptrFloat64(1.5),
		ScoreThreshold:   ptrFloat64(2.5),
		OldestTrack:      ptrString("30m"),
		MaxTrackLength:   ptrInt(5),
		MaxTracks:        ptrInt(10),
		StepInterval:     ptrString("30s"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/occupancy/tracks/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SensorCooldown != nil && *c.SensorCooldown != "" {
		d, err := time.ParseDuration(*c.SensorCooldown)
		if err != nil {
			return fmt.Errorf("invalid sensor_cooldown '%s': %w", *c.SensorCooldown, err)
		}
		if d <= 0 {
			return fmt.Errorf("sensor_cooldown must be positive, got %s", d)
		}
	}

	if c.FloorProbability != nil {
		if *c.FloorProbability <= 0 || *c.FloorProbability >= 1 {
			return fmt.Errorf("floor_probability must be in (0, 1), got %f", *c.FloorProbability)
		}
	}

	if c.NumParticles != nil {
		if *c.NumParticles < 1 {
			return fmt.Errorf("num_particles must be >= 1, got %d", *c.NumParticles)
		}
	}

	if c.StayProbability != nil {
		if *c.StayProbability <= 0 || *c.StayProbability > 1 {
			return fmt.Errorf("stay_probability must be in (0, 1], got %f", *c.StayProbability)
		}
	}

	if c.SightingBoost != nil {
		if *c.SightingBoost < 1 {
			return fmt.Errorf("sighting_boost must be >= 1, got %f", *c.SightingBoost)
		}
	}

	if c.ScoreThreshold != nil {
		if *c.ScoreThreshold <= 0 {
			return fmt.Errorf("score_threshold must be positive, got %f", *c.ScoreThreshold)
		}
	}

	if c.OldestTrack != nil && *c.OldestTrack != "" {
		if _, err := time.ParseDuration(*c.OldestTrack); err != nil {
			return fmt.Errorf("invalid oldest_track '%s': %w", *c.OldestTrack, err)
		}
	}

	if c.MaxTrackLength != nil {
		if *c.MaxTrackLength < 1 {
			return fmt.Errorf("max_track_length must be >= 1, got %d", *c.MaxTrackLength)
		}
	}

	if c.MaxTracks != nil {
		if *c.MaxTracks < 1 {
			return fmt.Errorf("max_tracks must be >= 1, got %d", *c.MaxTracks)
		}
	}

	if c.StepInterval != nil && *c.StepInterval != "" {
		if _, err := time.ParseDuration(*c.StepInterval); err != nil {
			return fmt.Errorf("invalid step_interval '%s': %w", *c.StepInterval, err)
		}
	}

	return nil
}

// GetSensorCooldown parses and returns the SensorCooldown as a time.Duration.
func (c *TuningConfig) GetSensorCooldown() time.Duration {
	if c.SensorCooldown == nil || *c.SensorCooldown == "" {
		return 7 * time.Minute // default
	}
	d, err := time.ParseDuration(*c.SensorCooldown)
	if err != nil {
		return 7 * time.Minute // default on parse error
	}
	return d
}

// GetFloorProbability returns the floor_probability value or the default.
func (c *TuningConfig) GetFloorProbability() float64 {
	if c.FloorProbability == nil {
		return 0.05
	}
	return *c.FloorProbability
}

// GetNumParticles returns the num_particles value or the default.
func (c *TuningConfig) GetNumParticles() int {
	if c.NumParticles == nil {
		return 100
	}
	return *c.NumParticles
}

// GetStayProbability returns the stay_probability value or the default.
func (c *TuningConfig) GetStayProbability() float64 {
	if c.StayProbability == nil {
		return 0.6
	}
	return *c.StayProbability
}

// GetSightingBoost returns the sighting_boost value or the default.
func (c *TuningConfig) GetSightingBoost() float64 {
	if c.SightingBoost == nil {
		return 1.5
	}
	return *c.SightingBoost
}

// GetScoreThreshold returns the score_threshold value or the default.
func (c *TuningConfig) GetScoreThreshold() float64 {
	if c.ScoreThreshold == nil {
		return 2.5
	}
	return *c.ScoreThreshold
}

// GetOldestTrack parses and returns the OldestTrack as a time.Duration.
func (c *TuningConfig) GetOldestTrack() time.Duration {
	if c.OldestTrack == nil || *c.OldestTrack == "" {
		return 30 * time.Minute // default
	}
	d, err := time.ParseDuration(*c.OldestTrack)
	if err != nil {
		return 30 * time.Minute // default on parse error
	}
	return d
}

// GetMaxTrackLength returns the max_track_length value or the default.
func (c *TuningConfig) GetMaxTrackLength() int {
	if c.MaxTrackLength == nil {
		return 5
	}
	return *c.MaxTrackLength
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 10
	}
	return *c.MaxTracks
}

// GetStepInterval parses and returns the StepInterval as a time.Duration.
func (c *TuningConfig) GetStepInterval() time.Duration {
	if c.StepInterval == nil || *c.StepInterval == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StepInterval)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}
