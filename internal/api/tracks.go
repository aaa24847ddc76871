package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/banshee-data/occupancy.report/internal/occupancy/tracks"
)

// TrackAPI is the wire shape for one association track, pinned independently
// of the engine's internal representation.
type TrackAPI struct {
	ID           int64           `json:"id"`
	Room         string          `json:"room"`
	PreviousRoom string          `json:"previous_room,omitempty"`
	Path         []string        `json:"path"`
	Events       []TrackEventAPI `json:"events"`
	FirstEvent   time.Time       `json:"first_event"`
	LastEvent    time.Time       `json:"last_event"`
	IdleSeconds  float64         `json:"idle_seconds"`
	Summary      string          `json:"summary"`
}

// TrackEventAPI is the wire shape for one presence interval within a track.
type TrackEventAPI struct {
	Room          string     `json:"room"`
	FirstPresence time.Time  `json:"first_presence"`
	LastTrigger   time.Time  `json:"last_trigger"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Open          bool       `json:"open"`
	Seconds       float64    `json:"seconds"`
}

// TrackToAPI converts an engine track to its wire shape as of now.
func TrackToAPI(t *tracks.Track, now time.Time) TrackAPI {
	events := t.Events()
	apiEvents := make([]TrackEventAPI, len(events))
	for i, e := range events {
		apiEvents[i] = TrackEventAPI{
			Room:          e.Room,
			FirstPresence: e.FirstPresence,
			LastTrigger:   e.LastRisingEdge,
			Open:          e.Open(),
			Seconds:       e.Duration(now).Seconds(),
		}
		if !e.Open() {
			closed := e.LastFallingEdge
			apiEvents[i].ClosedAt = &closed
		}
	}

	return TrackAPI{
		ID:           t.ID,
		Room:         t.Room(),
		PreviousRoom: t.PreviousRoom(),
		Path:         t.Rooms(),
		Events:       apiEvents,
		FirstEvent:   t.FirstEventTime(),
		LastEvent:    t.LastEventTime(),
		IdleSeconds:  t.IdleFor(now).Seconds(),
		Summary:      t.PrettyString(now),
	}
}

func (s *Server) showTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.manager == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Track association disabled")
		return
	}

	now := time.Now()
	list := s.manager.Tracks()
	apiTracks := make([]TrackAPI, len(list))
	for i, t := range list {
		apiTracks[i] = TrackToAPI(t, now)
	}
	sort.Slice(apiTracks, func(i, j int) bool { return apiTracks[i].ID < apiTracks[j].ID })

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": apiTracks,
		"count":  len(apiTracks),
	})
}
