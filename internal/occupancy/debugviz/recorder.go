// Package debugviz records periodic tracker state frames for offline
// inspection: a JSON snapshot of estimates and per-room distributions plus a
// rendered heatmap PNG per frame. The recorder only reads engine state; the
// daemon drives it from the step loop, never from inside an update.
package debugviz

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/occupancy.report/internal/fsutil"
	"github.com/banshee-data/occupancy.report/internal/occupancy"
	"github.com/banshee-data/occupancy.report/internal/timeutil"
)

// Defaults applied by NewRecorder for zero config fields.
const (
	DefaultLogInterval  = 5 * time.Second
	DefaultLogRetention = 200
)

// Config controls where frames land and how many survive.
type Config struct {
	Dir          string        // output directory, created on Start
	LogInterval  time.Duration // minimum spacing between frames
	LogRetention int           // newest frames kept on disk, per kind
}

// StateFrame is the JSON document written for each captured frame.
type StateFrame struct {
	Frame         int                           `json:"frame"`
	Unix          float64                       `json:"ts"`
	Estimates     map[string]string             `json:"estimates"`
	Distributions map[string]map[string]float64 `json:"distributions"`
}

// Recorder writes state_%06d.json and frame_%06d.png pairs into a debug
// directory. Captures are rate limited by LogInterval and the directory is
// pruned to LogRetention frames after each write.
type Recorder struct {
	mu        sync.Mutex
	enabled   bool
	dir       string
	interval  time.Duration
	retention int
	clock     timeutil.Clock

	frameIdx  int
	lastWrite time.Time
}

// NewRecorder creates a disabled recorder. Zero config fields get defaults;
// a nil clock gets the real one. Call Start before capturing.
func NewRecorder(config Config, clock timeutil.Clock) *Recorder {
	if config.LogInterval <= 0 {
		config.LogInterval = DefaultLogInterval
	}
	if config.LogRetention <= 0 {
		config.LogRetention = DefaultLogRetention
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{
		dir:       config.Dir,
		interval:  config.LogInterval,
		retention: config.LogRetention,
		clock:     clock,
	}
}

// Start creates the output directory and enables capturing.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dir == "" {
		return fmt.Errorf("no debug directory configured")
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create debug dir: %w", err)
	}
	r.enabled = true
	return nil
}

// Stop disables capturing. Files already written stay on disk.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

// IsEnabled reports whether Capture currently writes frames.
func (r *Recorder) IsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// FrameCount returns the number of frames written since construction.
func (r *Recorder) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameIdx
}

// Capture writes one frame if the recorder is enabled and LogInterval has
// elapsed since the previous frame. The PNG is skipped when the tracker has
// no people yet.
func (r *Recorder) Capture(tracker *occupancy.MultiPersonTracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled || tracker == nil {
		return nil
	}
	now := r.clock.Now()
	if !r.lastWrite.IsZero() && now.Sub(r.lastWrite) < r.interval {
		return nil
	}
	r.frameIdx++
	r.lastWrite = now

	frame := &StateFrame{
		Frame:         r.frameIdx,
		Unix:          float64(now.UnixNano()) / 1e9,
		Estimates:     tracker.EstimateLocations(),
		Distributions: tracker.Distributions(),
	}

	data, err := json.MarshalIndent(frame, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal frame %d: %w", frame.Frame, err)
	}
	statePath := filepath.Join(r.dir, fmt.Sprintf("state_%06d.json", frame.Frame))
	if err := fsutil.AtomicWriteFile(statePath, data, 0644); err != nil {
		return fmt.Errorf("frame %d: %w", frame.Frame, err)
	}

	if len(frame.Distributions) > 0 {
		png, err := renderHeatmap(frame)
		if err != nil {
			return fmt.Errorf("failed to render frame %d: %w", frame.Frame, err)
		}
		framePath := filepath.Join(r.dir, fmt.Sprintf("frame_%06d.png", frame.Frame))
		if err := fsutil.AtomicWriteFile(framePath, png, 0644); err != nil {
			return fmt.Errorf("frame %d: %w", frame.Frame, err)
		}
	}

	if _, err := fsutil.PruneOldest(r.dir, "state_*.json", r.retention); err != nil {
		return err
	}
	if _, err := fsutil.PruneOldest(r.dir, "frame_*.png", r.retention); err != nil {
		return err
	}
	return nil
}
