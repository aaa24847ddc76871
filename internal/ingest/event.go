// Package ingest receives gateway sensor events over UDP and hands them to
// the occupancy pipeline. Each datagram carries a single JSON event in the
// gateway wire format; malformed datagrams are counted and skipped so one bad
// sensor cannot stall the listener.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/occupancy.report/internal/db"
)

// Event is one gateway datagram decoded from the wire. Kind defaults to
// "motion" when omitted. For kind "phone" the SensorID is the phone
// identifier and Room may be empty (an activity-only ping). Unix is seconds
// since the epoch; zero means "stamp on receipt".
type Event struct {
	SensorID string  `json:"sensor_id"`
	Room     string  `json:"room,omitempty"`
	PersonID string  `json:"person_id,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Present  *bool   `json:"present,omitempty"`
	Activity string  `json:"activity,omitempty"`
	Unix     float64 `json:"ts,omitempty"`
}

// DecodeEvent unmarshals and validates a single wire datagram.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event datagram: %w", err)
	}
	if event.Kind == "" {
		// Serial presence sensors omit the kind and are identified by the
		// present flag; everything else without a kind is a motion trigger.
		if event.Present != nil {
			event.Kind = db.EventKindPresence
		} else {
			event.Kind = db.EventKindMotion
		}
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// Validate checks the fields the pipeline depends on. It does not check the
// room against the topology; unknown rooms are the tracker's concern.
func (e *Event) Validate() error {
	if e.SensorID == "" {
		return fmt.Errorf("event missing sensor_id")
	}
	switch e.Kind {
	case db.EventKindMotion:
		if e.Room == "" {
			return fmt.Errorf("motion event from %s missing room", e.SensorID)
		}
	case db.EventKindPresence:
		if e.Room == "" {
			return fmt.Errorf("presence event from %s missing room", e.SensorID)
		}
		if e.Present == nil {
			return fmt.Errorf("presence event from %s missing present flag", e.SensorID)
		}
	case db.EventKindPhone:
		// Room is optional: an empty room is an activity-only ping that
		// re-sights the phone's last known room.
	default:
		return fmt.Errorf("unknown event kind %q from %s", e.Kind, e.SensorID)
	}
	return nil
}

// Time returns the event timestamp, or the zero time when unstamped.
func (e *Event) Time() time.Time {
	if e.Unix == 0 {
		return time.Time{}
	}
	sec := int64(e.Unix)
	nsec := int64((e.Unix - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// StoreEvent converts the wire event to its stored form. The store assigns
// the event id on insert.
func (e *Event) StoreEvent() *db.SensorEvent {
	return &db.SensorEvent{
		SensorID: e.SensorID,
		Room:     e.Room,
		PersonID: e.PersonID,
		Kind:     e.Kind,
		Present:  e.Present,
		Unix:     e.Unix,
	}
}

func (e *Event) String() string {
	return fmt.Sprintf("Event sensor=%s kind=%s room=%s ts=%.3f", e.SensorID, e.Kind, e.Room, e.Unix)
}
