package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/occupancy.report/internal/api"
	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/ingest"
	"github.com/banshee-data/occupancy.report/internal/notify"
	"github.com/banshee-data/occupancy.report/internal/occupancy"
	"github.com/banshee-data/occupancy.report/internal/occupancy/debugviz"
	"github.com/banshee-data/occupancy.report/internal/occupancy/monitor"
	"github.com/banshee-data/occupancy.report/internal/occupancy/roomgraph"
	"github.com/banshee-data/occupancy.report/internal/occupancy/tracks"
	"github.com/banshee-data/occupancy.report/internal/sensormux"
	"github.com/banshee-data/occupancy.report/internal/version"
)

// daemon owns every long-lived component of a running occupancyd and wires
// them together: both inference engines, the shared ingest pipeline, the
// event sources, and the HTTP surface.
type daemon struct {
	cfg      *config.ServiceConfig
	tuning   *config.TuningConfig
	tracker  *occupancy.MultiPersonTracker
	manager  *tracks.Manager
	pipeline *occupancy.Pipeline
	database *db.DB // nil when persistence is off
	sensors  sensormux.SensorMuxInterface
	udp      *ingest.UDPListener
	monitor  *monitor.Monitor
	rollups  *db.RollupWorker // nil without a database
	notifier *notify.Notifier // nil without a webhook URL
	recorder *debugviz.Recorder

	mu            sync.Mutex
	lastEstimates map[string]string
}

func newDaemon(cfg *config.ServiceConfig, tuning *config.TuningConfig, graph *roomgraph.RoomGraph, database *db.DB, sensors sensormux.SensorMuxInterface) *daemon {
	sensorModel := occupancy.NewSensorModel(occupancy.SensorModelConfigFromTuning(tuning))
	tracker := occupancy.NewMultiPersonTracker(graph, sensorModel, occupancy.MultiTrackerConfigFromTuning(tuning))
	manager := tracks.NewManager(graph, tracks.ManagerConfigFromTuning(tuning), nil)

	// A nil *db.DB stored directly in the EventStore interface would not
	// compare equal to nil inside the pipeline.
	var store occupancy.EventStore
	if database != nil {
		store = database
	}

	d := &daemon{
		cfg:      cfg,
		tuning:   tuning,
		tracker:  tracker,
		manager:  manager,
		pipeline: occupancy.NewPipeline(tracker, manager, store),
		database: database,
		sensors:  sensors,
		recorder: debugviz.NewRecorder(debugviz.Config{Dir: cfg.DebugDir}, nil),
	}

	d.udp = ingest.NewUDPListener(ingest.UDPListenerConfig{
		Address: cfg.UDPListenAddr(),
		RcvBuf:  cfg.RcvBuf,
		Stats:   ingest.NewPacketStats(),
		Handler: d,
	})

	if database != nil {
		d.rollups = db.NewRollupWorker(database, cfg.GapDuration())
		d.rollups.Location = cfg.Location()
	}

	if cfg.WebhookURL != "" {
		d.notifier = notify.NewNotifier(cfg.WebhookURL, nil, nil)
	}

	apiServer := api.NewServer(tracker, manager, d, database, tuning)
	d.monitor = monitor.New(monitor.Config{
		Address:  cfg.HTTPAddr,
		Tracker:  tracker,
		Manager:  manager,
		DB:       database,
		Sensors:  sensors,
		API:      api.LoggingMiddleware(apiServer.ServeMux()),
		UDPPort:  cfg.UDPPort,
		Version:  version.String(),
		Location: cfg.Location(),
	})

	return d
}

// HandleEvent is the shared ingest path for every event source: the UDP
// listener, the serial sensor mux, and POST /api/events all land here.
func (d *daemon) HandleEvent(ctx context.Context, event *ingest.Event) error {
	err := d.pipeline.HandleEvent(ctx, event)
	d.publishEstimates(ctx, event.Time())
	if cerr := d.recorder.Capture(d.tracker); cerr != nil {
		log.Printf("debug capture failed: %v", cerr)
	}
	return err
}

// run starts every component and blocks until the context is cancelled and
// all routines have drained.
func (d *daemon) run(ctx context.Context) error {
	if d.cfg.DebugDir != "" {
		if err := d.recorder.Start(); err != nil {
			log.Printf("Failed to start debug recorder: %v", err)
		} else {
			log.Printf("Recording debug frames to %s", d.cfg.DebugDir)
			defer d.recorder.Stop()
		}
	}

	if d.notifier != nil {
		d.notifier.Start()
		defer d.notifier.Stop()
	}

	if d.rollups != nil {
		d.rollups.Start()
		defer d.rollups.Stop()
	}

	var wg sync.WaitGroup

	// UDP gateway listener routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.udp.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("UDP listener error: %v", err)
		}
		log.Print("UDP listener routine terminated")
	}()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.sensors.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("sensor monitor routine terminated")
	}()

	// subscribe to the serial port lines and pass them to the event handler
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := d.sensors.Subscribe()
		defer d.sensors.Unsubscribe(id)
		for {
			select {
			case payload := <-c:
				if err := sensormux.HandleLine(ctx, d, payload); err != nil {
					log.Printf("error handling sensor line: %v", err)
				}
			case <-ctx.Done():
				log.Printf("sensor subscribe routine terminated")
				return
			}
		}
	}()

	// step ticker routine: decays both engines and publishes the result even
	// when no events arrive, so absence shows up on the feed
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(d.tuning.GetStepInterval())
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				d.tracker.Step(now)
				d.publishEstimates(ctx, now)
				if err := d.recorder.Capture(d.tracker); err != nil {
					log.Printf("debug capture failed: %v", err)
				}
			case <-ctx.Done():
				log.Printf("step routine terminated")
				return
			}
		}
	}()

	// HTTP monitor routine; Start blocks until ctx is done and the server
	// has shut down
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.monitor.Start(ctx); err != nil {
			log.Printf("monitor server error: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Wait()
	return ctx.Err()
}

// publishEstimates diffs the tracker's current estimates against the last
// published set and, when anything moved, journals the changes, notifies the
// webhook, and broadcasts the full map to the live feed.
func (d *daemon) publishEstimates(ctx context.Context, now time.Time) {
	current := d.tracker.EstimateLocations()

	d.mu.Lock()
	defer d.mu.Unlock()

	var changes []notify.Event
	for person, room := range current {
		if d.lastEstimates[person] == room {
			continue
		}
		changes = append(changes, notify.Event{
			PersonID:   person,
			Room:       room,
			Previous:   d.lastEstimates[person],
			Confidence: d.tracker.Distribution(person)[room],
			Unix:       float64(now.UnixNano()) / 1e9,
		})
	}
	// A person expiring out of the tracker changes the map without showing
	// up in changes.
	if len(changes) == 0 && len(current) == len(d.lastEstimates) {
		return
	}
	d.lastEstimates = current

	for _, change := range changes {
		if d.database != nil {
			estimate := &db.Estimate{
				PersonID:   change.PersonID,
				Room:       change.Room,
				Confidence: change.Confidence,
				Unix:       change.Unix,
			}
			if err := d.database.RecordEstimate(ctx, estimate); err != nil {
				log.Printf("Failed to record estimate for %s: %v", change.PersonID, err)
			}
		}
		if d.notifier != nil {
			d.notifier.Notify(change)
		}
	}

	d.monitor.Hub().Broadcast(monitor.EstimateUpdate{
		Unix:      float64(now.UnixNano()) / 1e9,
		Estimates: current,
	})
}
