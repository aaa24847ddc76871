package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyTuningConfig(t *testing.T) {
	cfg := EmptyTuningConfig()
	if cfg == nil {
		t.Fatal("EmptyTuningConfig returned nil")
	}
	if cfg.SensorCooldown != nil {
		t.Error("expected SensorCooldown to be nil")
	}
	if cfg.NumParticles != nil {
		t.Error("expected NumParticles to be nil")
	}
	if cfg.ScoreThreshold != nil {
		t.Error("expected ScoreThreshold to be nil")
	}
}

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()
	if cfg == nil {
		t.Fatal("DefaultTuningConfig returned nil")
	}

	// Every field must be populated.
	if cfg.SensorCooldown == nil || *cfg.SensorCooldown != "7m" {
		t.Errorf("expected SensorCooldown '7m', got %v", cfg.SensorCooldown)
	}
	if cfg.FloorProbability == nil || *cfg.FloorProbability != 0.05 {
		t.Errorf("expected FloorProbability 0.05, got %v", cfg.FloorProbability)
	}
	if cfg.NumParticles == nil || *cfg.NumParticles != 100 {
		t.Errorf("expected NumParticles 100, got %v", cfg.NumParticles)
	}
	if cfg.StayProbability == nil || *cfg.StayProbability != 0.6 {
		t.Errorf("expected StayProbability 0.6, got %v", cfg.StayProbability)
	}
	if cfg.SightingBoost == nil || *cfg.SightingBoost != 1.5 {
		t.Errorf("expected SightingBoost 1.5, got %v", cfg.SightingBoost)
	}
	if cfg.ScoreThreshold == nil || *cfg.ScoreThreshold != 2.5 {
		t.Errorf("expected ScoreThreshold 2.5, got %v", cfg.ScoreThreshold)
	}
	if cfg.OldestTrack == nil || *cfg.OldestTrack != "30m" {
		t.Errorf("expected OldestTrack '30m', got %v", cfg.OldestTrack)
	}
	if cfg.MaxTrackLength == nil || *cfg.MaxTrackLength != 5 {
		t.Errorf("expected MaxTrackLength 5, got %v", cfg.MaxTrackLength)
	}
	if cfg.MaxTracks == nil || *cfg.MaxTracks != 10 {
		t.Errorf("expected MaxTracks 10, got %v", cfg.MaxTracks)
	}
	if cfg.StepInterval == nil || *cfg.StepInterval != "30s" {
		t.Errorf("expected StepInterval '30s', got %v", cfg.StepInterval)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestTuningConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty config is valid",
			cfg:     EmptyTuningConfig(),
			wantErr: false,
		},
		{
			name: "valid full config",
			cfg: &TuningConfig{
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
			},
			wantErr: false,
		},
		{
			name: "invalid sensor_cooldown format",
			cfg: &TuningConfig{
				SensorCooldown: ptrString("seven minutes"),
			},
			wantErr: true,
			errMsg:  "invalid sensor_cooldown",
		},
		{
			name: "negative sensor_cooldown",
			cfg: &TuningConfig{
				SensorCooldown: ptrString("-5m"),
			},
			wantErr: true,
			errMsg:  "sensor_cooldown must be positive",
		},
		{
			name: "floor_probability zero",
			cfg: &TuningConfig{
				FloorProbability: ptrFloat64(0),
			},
			wantErr: true,
			errMsg:  "floor_probability must be in (0, 1)",
		},
		{
			name: "floor_probability one",
			cfg: &TuningConfig{
				FloorProbability: ptrFloat64(1.0),
			},
			wantErr: true,
			errMsg:  "floor_probability must be in (0, 1)",
		},
		{
			name: "zero particles",
			cfg: &TuningConfig{
				NumParticles: ptrInt(0),
			},
			wantErr: true,
			errMsg:  "num_particles must be >= 1",
		},
		{
			name: "stay_probability above one",
			cfg: &TuningConfig{
				StayProbability: ptrFloat64(1.5),
			},
			wantErr: true,
			errMsg:  "stay_probability must be in (0, 1]",
		},
		{
			name: "stay_probability exactly one is valid",
			cfg: &TuningConfig{
				StayProbability: ptrFloat64(1.0),
			},
			wantErr: false,
		},
		{
			name: "sighting_boost below one",
			cfg: &TuningConfig{
				SightingBoost: ptrFloat64(0.5),
			},
			wantErr: true,
			errMsg:  "sighting_boost must be >= 1",
		},
		{
			name: "sighting_boost exactly one is valid",
			cfg: &TuningConfig{
				SightingBoost: ptrFloat64(1.0),
			},
			wantErr: false,
		},
		{
			name: "negative score_threshold",
			cfg: &TuningConfig{
				ScoreThreshold: ptrFloat64(-1.0),
			},
			wantErr: true,
			errMsg:  "score_threshold must be positive",
		},
		{
			name: "invalid oldest_track",
			cfg: &TuningConfig{
				OldestTrack: ptrString("half an hour"),
			},
			wantErr: true,
			errMsg:  "invalid oldest_track",
		},
		{
			name: "zero max_track_length",
			cfg: &TuningConfig{
				MaxTrackLength: ptrInt(0),
			},
			wantErr: true,
			errMsg:  "max_track_length must be >= 1",
		},
		{
			name: "zero max_tracks",
			cfg: &TuningConfig{
				MaxTracks: ptrInt(0),
			},
			wantErr: true,
			errMsg:  "max_tracks must be >= 1",
		},
		{
			name: "invalid step_interval",
			cfg: &TuningConfig{
				StepInterval: ptrString("fast"),
			},
			wantErr: true,
			errMsg:  "invalid step_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestGettersReturnDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetSensorCooldown(); got != 7*time.Minute {
		t.Errorf("GetSensorCooldown default: got %v, want 7m", got)
	}
	if got := cfg.GetFloorProbability(); got != 0.05 {
		t.Errorf("GetFloorProbability default: got %v, want 0.05", got)
	}
	if got := cfg.GetNumParticles(); got != 100 {
		t.Errorf("GetNumParticles default: got %v, want 100", got)
	}
	if got := cfg.GetStayProbability(); got != 0.6 {
		t.Errorf("GetStayProbability default: got %v, want 0.6", got)
	}
	if got := cfg.GetSightingBoost(); got != 1.5 {
		t.Errorf("GetSightingBoost default: got %v, want 1.5", got)
	}
	if got := cfg.GetScoreThreshold(); got != 2.5 {
		t.Errorf("GetScoreThreshold default: got %v, want 2.5", got)
	}
	if got := cfg.GetOldestTrack(); got != 30*time.Minute {
		t.Errorf("GetOldestTrack default: got %v, want 30m", got)
	}
	if got := cfg.GetMaxTrackLength(); got != 5 {
		t.Errorf("GetMaxTrackLength default: got %v, want 5", got)
	}
	if got := cfg.GetMaxTracks(); got != 10 {
		t.Errorf("GetMaxTracks default: got %v, want 10", got)
	}
	if got := cfg.GetStepInterval(); got != 30*time.Second {
		t.Errorf("GetStepInterval default: got %v, want 30s", got)
	}
}

func TestGettersReturnSetValues(t *testing.T) {
	cfg := &TuningConfig{
		SensorCooldown:   ptrString("3m"),
		FloorProbability: ptrFloat64(0.1),
		NumParticles:     ptrInt(500),
		StayProbability:  ptrFloat64(0.8),
		SightingBoost:    ptrFloat64(2.0),
		ScoreThreshold:   ptrFloat64(3.5),
		OldestTrack:      ptrString("1h"),
		MaxTrackLength:   ptrInt(8),
		MaxTracks:        ptrInt(20),
		StepInterval:     ptrString("10s"),
	}

	if got := cfg.GetSensorCooldown(); got != 3*time.Minute {
		t.Errorf("GetSensorCooldown: got %v, want 3m", got)
	}
	if got := cfg.GetFloorProbability(); got != 0.1 {
		t.Errorf("GetFloorProbability: got %v, want 0.1", got)
	}
	if got := cfg.GetNumParticles(); got != 500 {
		t.Errorf("GetNumParticles: got %v, want 500", got)
	}
	if got := cfg.GetStayProbability(); got != 0.8 {
		t.Errorf("GetStayProbability: got %v, want 0.8", got)
	}
	if got := cfg.GetSightingBoost(); got != 2.0 {
		t.Errorf("GetSightingBoost: got %v, want 2.0", got)
	}
	if got := cfg.GetScoreThreshold(); got != 3.5 {
		t.Errorf("GetScoreThreshold: got %v, want 3.5", got)
	}
	if got := cfg.GetOldestTrack(); got != time.Hour {
		t.Errorf("GetOldestTrack: got %v, want 1h", got)
	}
	if got := cfg.GetMaxTrackLength(); got != 8 {
		t.Errorf("GetMaxTrackLength: got %v, want 8", got)
	}
	if got := cfg.GetMaxTracks(); got != 20 {
		t.Errorf("GetMaxTracks: got %v, want 20", got)
	}
	if got := cfg.GetStepInterval(); got != 10*time.Second {
		t.Errorf("GetStepInterval: got %v, want 10s", got)
	}
}

func TestGettersFallBackOnBadDuration(t *testing.T) {
	cfg := &TuningConfig{
		SensorCooldown: ptrString("not a duration"),
		OldestTrack:    ptrString("also not"),
		StepInterval:   ptrString("nope"),
	}
	if got := cfg.GetSensorCooldown(); got != 7*time.Minute {
		t.Errorf("GetSensorCooldown on bad value: got %v, want 7m default", got)
	}
	if got := cfg.GetOldestTrack(); got != 30*time.Minute {
		t.Errorf("GetOldestTrack on bad value: got %v, want 30m default", got)
	}
	if got := cfg.GetStepInterval(); got != 30*time.Second {
		t.Errorf("GetStepInterval on bad value: got %v, want 30s default", got)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("failed to load defaults file: %v", err)
	}

	// The on-disk defaults must agree with DefaultTuningConfig.
	want := DefaultTuningConfig()
	if cfg.GetSensorCooldown() != want.GetSensorCooldown() {
		t.Errorf("defaults file sensor_cooldown %v != %v", cfg.GetSensorCooldown(), want.GetSensorCooldown())
	}
	if cfg.GetFloorProbability() != want.GetFloorProbability() {
		t.Errorf("defaults file floor_probability %v != %v", cfg.GetFloorProbability(), want.GetFloorProbability())
	}
	if cfg.GetNumParticles() != want.GetNumParticles() {
		t.Errorf("defaults file num_particles %v != %v", cfg.GetNumParticles(), want.GetNumParticles())
	}
	if cfg.GetStayProbability() != want.GetStayProbability() {
		t.Errorf("defaults file stay_probability %v != %v", cfg.GetStayProbability(), want.GetStayProbability())
	}
	if cfg.GetSightingBoost() != want.GetSightingBoost() {
		t.Errorf("defaults file sighting_boost %v != %v", cfg.GetSightingBoost(), want.GetSightingBoost())
	}
	if cfg.GetScoreThreshold() != want.GetScoreThreshold() {
		t.Errorf("defaults file score_threshold %v != %v", cfg.GetScoreThreshold(), want.GetScoreThreshold())
	}
	if cfg.GetOldestTrack() != want.GetOldestTrack() {
		t.Errorf("defaults file oldest_track %v != %v", cfg.GetOldestTrack(), want.GetOldestTrack())
	}
	if cfg.GetMaxTrackLength() != want.GetMaxTrackLength() {
		t.Errorf("defaults file max_track_length %v != %v", cfg.GetMaxTrackLength(), want.GetMaxTrackLength())
	}
	if cfg.GetMaxTracks() != want.GetMaxTracks() {
		t.Errorf("defaults file max_tracks %v != %v", cfg.GetMaxTracks(), want.GetMaxTracks())
	}
	if cfg.GetStepInterval() != want.GetStepInterval() {
		t.Errorf("defaults file step_interval %v != %v", cfg.GetStepInterval(), want.GetStepInterval())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.example.json")
	if err != nil {
		t.Fatalf("failed to load example file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example config failed validation: %v", err)
	}

	// Fields the example omits fall back to defaults.
	if got := cfg.GetFloorProbability(); got != 0.05 {
		t.Errorf("example floor_probability: got %v, want default 0.05", got)
	}
	if got := cfg.GetOldestTrack(); got != 30*time.Minute {
		t.Errorf("example oldest_track: got %v, want default 30m", got)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	content := `{"num_particles": 250, "sensor_cooldown": "2m"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("failed to load partial config: %v", err)
	}

	// Specified fields take the file values.
	if got := cfg.GetNumParticles(); got != 250 {
		t.Errorf("num_particles: got %v, want 250", got)
	}
	if got := cfg.GetSensorCooldown(); got != 2*time.Minute {
		t.Errorf("sensor_cooldown: got %v, want 2m", got)
	}

	// Unspecified fields stay nil and fall back to defaults.
	if cfg.ScoreThreshold != nil {
		t.Error("expected ScoreThreshold to remain nil for partial config")
	}
	if got := cfg.GetScoreThreshold(); got != 2.5 {
		t.Errorf("score_threshold: got %v, want default 2.5", got)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("num_particles: 50"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadTuningConfig(path)
	if err == nil {
		t.Fatal("expected error for non-.json extension")
	}
	if !strings.Contains(err.Error(), ".json extension") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.json")
	big := make([]byte, 2*1024*1024)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(path, big, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadTuningConfig(path)
	if err == nil {
		t.Fatal("expected error for oversized file")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	content := `{"floor_probability": 2.0}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadTuningConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "floor_probability") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/tuning.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTuningConfigRoundTrip(t *testing.T) {
	orig := DefaultTuningConfig()
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}

	var decoded TuningConfig
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.GetNumParticles() != orig.GetNumParticles() {
		t.Errorf("round trip num_particles: got %v, want %v", decoded.GetNumParticles(), orig.GetNumParticles())
	}
	if decoded.GetSensorCooldown() != orig.GetSensorCooldown() {
		t.Errorf("round trip sensor_cooldown: got %v, want %v", decoded.GetSensorCooldown(), orig.GetSensorCooldown())
	}
}
