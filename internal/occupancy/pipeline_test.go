package occupancy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/ingest"
)

type recordingStore struct {
	events []*db.SensorEvent
	err    error
}

func (s *recordingStore) RecordSensorEvent(ctx context.Context, event *db.SensorEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type recordingTracks struct {
	added    []string
	absences []string
	lastTime time.Time
}

func (s *recordingTracks) AddEventAt(room string, now time.Time) {
	s.added = append(s.added, room)
	s.lastTime = now
}

func (s *recordingTracks) RecordAbsence(room string, now time.Time) {
	s.absences = append(s.absences, room)
	s.lastTime = now
}

func boolPtr(v bool) *bool { return &v }

func TestPipeline_MotionEvent(t *testing.T) {
	m := newTestMulti(t)
	sink := &recordingTracks{}
	store := &recordingStore{}
	p := NewPipeline(m, sink, store)

	now := sensorTestTime()
	event := &ingest.Event{
		SensorID: "pir-7",
		Room:     "kitchen",
		Kind:     db.EventKindMotion,
		Unix:     float64(now.UnixNano()) / 1e9,
	}

	require.NoError(t, p.HandleEvent(context.Background(), event))

	estimates := m.EstimateLocations()
	assert.Equal(t, "kitchen", estimates["unknown_0"], "anonymous motion mints a generic person")

	require.Equal(t, []string{"kitchen"}, sink.added)
	assert.True(t, sink.lastTime.Equal(now), "sink must see the event timestamp")

	require.Len(t, store.events, 1)
	assert.Equal(t, "pir-7", store.events[0].SensorID)
	assert.Equal(t, db.EventKindMotion, store.events[0].Kind)
}

func TestPipeline_MotionEvent_NamedPerson(t *testing.T) {
	m := newTestMulti(t)
	p := NewPipeline(m, nil, nil)

	event := &ingest.Event{
		SensorID: "pir-7",
		Room:     "bedroom",
		PersonID: "alice",
		Kind:     db.EventKindMotion,
		Unix:     float64(sensorTestTime().UnixNano()) / 1e9,
	}

	require.NoError(t, p.HandleEvent(context.Background(), event))
	assert.Equal(t, "bedroom", m.EstimateLocations()["alice"])
}

func TestPipeline_PresenceEmpty(t *testing.T) {
	m := newTestMulti(t)
	sink := &recordingTracks{}
	p := NewPipeline(m, sink, nil)

	event := &ingest.Event{
		SensorID: "mm-1",
		Room:     "kitchen",
		Kind:     db.EventKindPresence,
		Present:  boolPtr(false),
		Unix:     float64(sensorTestTime().UnixNano()) / 1e9,
	}

	require.NoError(t, p.HandleEvent(context.Background(), event))

	assert.Equal(t, int64(1), m.Stats().PresenceUpdates)
	assert.Equal(t, []string{"kitchen"}, sink.absences, "an empty report closes room activity")
	assert.Empty(t, sink.added)
}

func TestPipeline_PresenceOccupied(t *testing.T) {
	m := newTestMulti(t)
	sink := &recordingTracks{}
	p := NewPipeline(m, sink, nil)

	event := &ingest.Event{
		SensorID: "mm-1",
		Room:     "kitchen",
		Kind:     db.EventKindPresence,
		Present:  boolPtr(true),
		Unix:     float64(sensorTestTime().UnixNano()) / 1e9,
	}

	require.NoError(t, p.HandleEvent(context.Background(), event))

	assert.Equal(t, int64(1), m.Stats().PresenceUpdates)
	assert.Empty(t, sink.absences, "an occupied report must not close activity")
}

func TestPipeline_PhoneEvent(t *testing.T) {
	m := newTestMulti(t)
	sink := &recordingTracks{}
	p := NewPipeline(m, sink, nil)

	m.AssociatePhone("alice", "pixel-9")

	event := &ingest.Event{
		SensorID: "pixel-9",
		Room:     "bathroom",
		Kind:     db.EventKindPhone,
		Activity: "walking",
		Unix:     float64(sensorTestTime().UnixNano()) / 1e9,
	}

	require.NoError(t, p.HandleEvent(context.Background(), event))

	assert.Equal(t, "bathroom", m.EstimateLocations()["alice"])
	assert.Empty(t, sink.added, "phone reports bypass track association")
}

func TestPipeline_StampsUnstampedEvents(t *testing.T) {
	m := newTestMulti(t)
	store := &recordingStore{}
	p := NewPipeline(m, nil, store)

	event := &ingest.Event{
		SensorID: "pir-7",
		Room:     "kitchen",
		Kind:     db.EventKindMotion,
	}

	before := float64(time.Now().UnixNano()) / 1e9
	require.NoError(t, p.HandleEvent(context.Background(), event))
	after := float64(time.Now().UnixNano()) / 1e9

	require.Len(t, store.events, 1)
	assert.GreaterOrEqual(t, event.Unix, before)
	assert.LessOrEqual(t, event.Unix, after)
	assert.Equal(t, event.Unix, store.events[0].Unix)
}

func TestPipeline_UnroutableKind(t *testing.T) {
	m := newTestMulti(t)
	p := NewPipeline(m, nil, nil)

	event := &ingest.Event{
		SensorID: "pir-7",
		Room:     "kitchen",
		Kind:     "seismic",
		Unix:     1,
	}

	err := p.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unroutable event kind")
}

func TestPipeline_StoreErrorAfterProcessing(t *testing.T) {
	m := newTestMulti(t)
	store := &recordingStore{err: errors.New("disk full")}
	p := NewPipeline(m, nil, store)

	event := &ingest.Event{
		SensorID: "pir-7",
		Room:     "kitchen",
		PersonID: "alice",
		Kind:     db.EventKindMotion,
		Unix:     float64(sensorTestTime().UnixNano()) / 1e9,
	}

	err := p.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// The event took effect before persistence failed
	assert.Equal(t, "kitchen", m.EstimateLocations()["alice"])
}
