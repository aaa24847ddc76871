package sensormux

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/occupancy.report/internal/ingest"
)

// CurrentState holds the latest config values echoed by the device
// and is intentionally package-level so admin routes or tests can inspect it.
var CurrentState map[string]any

// HandleSensorReport decodes a presence or motion line and forwards it to the
// event pipeline. Lines without a timestamp are stamped on receipt.
func HandleSensorReport(ctx context.Context, h ingest.EventHandler, payload string) error {
	event, err := ingest.DecodeEvent([]byte(payload))
	if err != nil {
		return fmt.Errorf("failed to decode sensor line: %w", err)
	}
	if event.Unix == 0 {
		event.Unix = float64(time.Now().UnixNano()) / 1e9
	}
	return h.HandleEvent(ctx, event)
}

// HandleConfigResponse merges a config echo line into CurrentState.
func HandleConfigResponse(payload string) error {
	var configValues map[string]any

	if err := json.Unmarshal([]byte(payload), &configValues); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	// update the current state with the new config values
	if CurrentState == nil {
		CurrentState = make(map[string]any)
	}
	for k, v := range configValues {
		CurrentState[k] = v
	}

	// log the current line
	log.Printf("Config Line: %+v", payload)

	return nil
}

// HandleLine routes one serial line by classification.
func HandleLine(ctx context.Context, h ingest.EventHandler, payload string) error {
	switch ClassifyPayload(payload) {
	case EventTypePresence, EventTypeMotion:
		if err := HandleSensorReport(ctx, h, payload); err != nil {
			return fmt.Errorf("failed to handle sensor report: %w", err)
		}
	case EventTypeConfig:
		if err := HandleConfigResponse(payload); err != nil {
			return fmt.Errorf("failed to handle config response: %w", err)
		}
	default:
		log.Printf("unknown sensor line: %s", payload)
	}
	return nil
}
