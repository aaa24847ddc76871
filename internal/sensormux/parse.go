package sensormux

import "strings"

const (
	EventTypePresence = "presence"
	EventTypeMotion   = "motion"
	EventTypeConfig   = "config"
	EventTypeUnknown  = "unknown"
)

// ClassifyPayload inspects a payload string and returns a simple event type
// token. The classification is intentionally conservative: sensor reports
// carry the gateway JSON schema, config echoes are bare JSON objects.
func ClassifyPayload(payload string) string {
	if strings.Contains(payload, `"present"`) {
		return EventTypePresence
	}
	if strings.Contains(payload, `"sensor_id"`) {
		return EventTypeMotion
	}
	if strings.HasPrefix(payload, "{") {
		return EventTypeConfig
	}
	return EventTypeUnknown
}
