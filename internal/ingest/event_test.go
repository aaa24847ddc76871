package ingest

import (
	"strings"
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }

func TestDecodeEvent_Motion(t *testing.T) {
	data := []byte(`{"sensor_id":"pir-7","room":"kitchen","ts":1700000000.5}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if event.SensorID != "pir-7" {
		t.Errorf("Expected sensor_id 'pir-7', got '%s'", event.SensorID)
	}
	if event.Room != "kitchen" {
		t.Errorf("Expected room 'kitchen', got '%s'", event.Room)
	}
	if event.Kind != "motion" {
		t.Errorf("Expected kind to default to 'motion', got '%s'", event.Kind)
	}
	if event.Unix != 1700000000.5 {
		t.Errorf("Expected ts 1700000000.5, got %f", event.Unix)
	}
	if event.Present != nil {
		t.Error("Expected nil present for motion event")
	}
}

func TestDecodeEvent_Presence(t *testing.T) {
	data := []byte(`{"sensor_id":"mmwave-2","room":"office","kind":"presence","present":true,"ts":1700000001}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if event.Kind != "presence" {
		t.Errorf("Expected kind 'presence', got '%s'", event.Kind)
	}
	if event.Present == nil || !*event.Present {
		t.Error("Expected present=true")
	}
}

func TestDecodeEvent_PresenceKindInferred(t *testing.T) {
	// Serial presence sensors omit the kind field
	data := []byte(`{"sensor_id":"mm-1","room":"office","present":false,"ts":1700000003}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if event.Kind != "presence" {
		t.Errorf("Expected kind inferred as 'presence', got '%s'", event.Kind)
	}
	if event.Present == nil || *event.Present {
		t.Error("Expected present=false")
	}
}

func TestDecodeEvent_PhoneActivityOnly(t *testing.T) {
	// Phones may ping with an activity label and no room
	data := []byte(`{"sensor_id":"phone-alice","kind":"phone","activity":"walking","ts":1700000002}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if event.Room != "" {
		t.Errorf("Expected empty room, got '%s'", event.Room)
	}
	if event.Activity != "walking" {
		t.Errorf("Expected activity 'walking', got '%s'", event.Activity)
	}
}

func TestDecodeEvent_PersonID(t *testing.T) {
	data := []byte(`{"sensor_id":"pir-3","room":"bedroom","person_id":"alice","ts":1700000003}`)

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if event.PersonID != "alice" {
		t.Errorf("Expected person_id 'alice', got '%s'", event.PersonID)
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "truncated json",
			data:    `{"sensor_id":"pir-1"`,
			wantErr: "failed to decode",
		},
		{
			name:    "missing sensor_id",
			data:    `{"room":"kitchen","ts":1}`,
			wantErr: "missing sensor_id",
		},
		{
			name:    "motion without room",
			data:    `{"sensor_id":"pir-1","ts":1}`,
			wantErr: "missing room",
		},
		{
			name:    "presence without room",
			data:    `{"sensor_id":"mm-1","kind":"presence","present":true,"ts":1}`,
			wantErr: "missing room",
		},
		{
			name:    "presence without flag",
			data:    `{"sensor_id":"mm-1","kind":"presence","room":"office","ts":1}`,
			wantErr: "missing present flag",
		},
		{
			name:    "unknown kind",
			data:    `{"sensor_id":"x-1","room":"office","kind":"sonar","ts":1}`,
			wantErr: "unknown event kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected decode error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestEventTime(t *testing.T) {
	// 0.25 is exactly representable, so the nanosecond split is lossless
	event := &Event{SensorID: "pir-1", Room: "kitchen", Kind: "motion", Unix: 1700000000.25}

	got := event.Time()
	want := time.Unix(1700000000, 250000000).UTC()
	if !got.Equal(want) {
		t.Errorf("Time() = %v, want %v", got, want)
	}
}

func TestEventTime_Unstamped(t *testing.T) {
	event := &Event{SensorID: "pir-1", Room: "kitchen", Kind: "motion"}
	if !event.Time().IsZero() {
		t.Errorf("Expected zero time for unstamped event, got %v", event.Time())
	}
}

func TestEventStoreEvent(t *testing.T) {
	event := &Event{
		SensorID: "mmwave-2",
		Room:     "office",
		PersonID: "alice",
		Kind:     "presence",
		Present:  boolPtr(true),
		Unix:     1700000004.5,
	}

	stored := event.StoreEvent()

	if stored.ID != "" {
		t.Errorf("Expected empty id before insert, got '%s'", stored.ID)
	}
	if stored.SensorID != "mmwave-2" || stored.Room != "office" || stored.PersonID != "alice" {
		t.Errorf("Stored event fields mismatch: %+v", stored)
	}
	if stored.Kind != "presence" {
		t.Errorf("Expected kind 'presence', got '%s'", stored.Kind)
	}
	if stored.Present == nil || !*stored.Present {
		t.Error("Expected present=true to carry over")
	}
	if stored.Unix != 1700000004.5 {
		t.Errorf("Expected ts 1700000004.5, got %f", stored.Unix)
	}
}
