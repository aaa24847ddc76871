package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/occupancy.report/internal/config"
	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/ingest"
	"github.com/banshee-data/occupancy.report/internal/occupancy"
	"github.com/banshee-data/occupancy.report/internal/occupancy/tracks"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes tracker state and the ingest path over JSON HTTP. Reads go
// straight to the engines; writes go through the same pipeline handler the
// UDP listener and serial mux feed.
type Server struct {
	tracker *occupancy.MultiPersonTracker
	manager *tracks.Manager
	handler ingest.EventHandler
	db      *db.DB
	tuning  *config.TuningConfig
}

// NewServer builds the API server. manager, handler, db, and tuning may each
// be nil; the routes that need them respond 503.
func NewServer(tracker *occupancy.MultiPersonTracker, manager *tracks.Manager, handler ingest.EventHandler, database *db.DB, tuning *config.TuningConfig) *Server {
	return &Server{
		tracker: tracker,
		manager: manager,
		handler: handler,
		db:      database,
		tuning:  tuning,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. The caller decides middleware and where to
// mount them.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/estimates", s.showEstimates)
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/tracks", s.showTracks)
	mux.HandleFunc("/api/distribution", s.showDistribution)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/presence", s.postPresence)
	mux.HandleFunc("/api/phones", s.postPhone)
	mux.HandleFunc("/api/associate", s.postAssociate)
	mux.HandleFunc("/api/params", s.showParams)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/room_stats", s.showRoomStats)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to write response: %v", err)
	}
}

func (s *Server) showEstimates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	estimates := s.tracker.EstimateLocations()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"estimates": estimates,
		"count":     len(estimates),
	})
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.tracker.DumpState())
}

func (s *Server) showDistribution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	person := r.URL.Query().Get("person")
	if person == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'person' parameter")
		return
	}

	dist := s.tracker.Distribution(person)
	if dist == nil {
		s.writeJSONError(w, http.StatusNotFound, "Unknown person")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"person":       person,
		"distribution": dist,
	})
}

// showParams reports the tuning values the engines were built with. Tuning is
// load-time only; there is no live re-tune, so this route is read-only.
func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	tuning := s.tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	s.writeJSON(w, http.StatusOK, tuning)
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats := map[string]interface{}{
		"tracker": s.tracker.Stats(),
	}
	if s.manager != nil {
		stats["tracks"] = s.manager.Stats()
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// showRoomStats serves the per-room daily occupancy rollups for one UTC day
// (default today).
func (s *Server) showRoomStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Event store disabled")
		return
	}

	day := r.URL.Query().Get("day")
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'day' parameter, want YYYY-MM-DD")
		return
	}

	stats, err := s.db.RoomDailyStats(r.Context(), day)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to retrieve room stats")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"day":   day,
		"rooms": stats,
	})
}
