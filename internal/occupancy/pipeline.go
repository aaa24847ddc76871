package occupancy

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/ingest"
)

// EventStore persists raw sensor events. *db.DB satisfies it; a nil store
// disables persistence.
type EventStore interface {
	RecordSensorEvent(ctx context.Context, event *db.SensorEvent) error
}

// TrackSink receives anonymous room activity for deterministic track
// association. *tracks.Manager satisfies it.
type TrackSink interface {
	AddEventAt(room string, now time.Time)
	RecordAbsence(room string, now time.Time)
}

// Pipeline fans one decoded gateway event out to the particle tracker, the
// track manager, and the event store. It is the single ingest path shared by
// the UDP listener, the serial mux, and the HTTP API, so every source sees
// identical semantics.
type Pipeline struct {
	tracker *MultiPersonTracker
	tracks  TrackSink
	store   EventStore
}

// NewPipeline wires the ingest fanout. tracks and store may be nil.
func NewPipeline(tracker *MultiPersonTracker, tracks TrackSink, store EventStore) *Pipeline {
	return &Pipeline{
		tracker: tracker,
		tracks:  tracks,
		store:   store,
	}
}

// HandleEvent implements ingest.EventHandler. Engines run before the store so
// live inference keeps working through persistence failures; a store error is
// reported to the caller after the event has taken effect.
func (p *Pipeline) HandleEvent(ctx context.Context, event *ingest.Event) error {
	now := event.Time()
	if now.IsZero() {
		// Listener sources stamp on receipt; direct API posts may not.
		now = time.Now().UTC()
		event.Unix = float64(now.UnixNano()) / 1e9
	}

	switch event.Kind {
	case db.EventKindMotion:
		p.tracker.ProcessEvent(event.PersonID, event.Room, now)
		if p.tracks != nil {
			p.tracks.AddEventAt(event.Room, now)
		}

	case db.EventKindPresence:
		present := event.Present != nil && *event.Present
		p.tracker.RecordPresence(event.Room, present, now)
		if p.tracks != nil && !present {
			p.tracks.RecordAbsence(event.Room, now)
		}

	case db.EventKindPhone:
		p.tracker.ProcessPhoneData(event.SensorID, event.Room, event.Activity, now)

	default:
		return fmt.Errorf("unroutable event kind %q", event.Kind)
	}

	if p.store != nil {
		if err := p.store.RecordSensorEvent(ctx, event.StoreEvent()); err != nil {
			return fmt.Errorf("failed to persist event from %s: %w", event.SensorID, err)
		}
	}
	return nil
}
