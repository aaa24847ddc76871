// Package monitor serves the web console for a running occupancy daemon:
// a status page, chart views over the history store, a live websocket
// estimate feed, prometheus metrics, and the debug/admin mounts.
package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sort"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/occupancy.report/internal/db"
	"github.com/banshee-data/occupancy.report/internal/occupancy"
	"github.com/banshee-data/occupancy.report/internal/occupancy/tracks"
	"github.com/banshee-data/occupancy.report/internal/units"
)

//go:embed status.html
var statusHTML embed.FS

// AdminRouter is anything that can mount its own debug routes on the monitor
// mux, such as the serial sensor mux.
type AdminRouter interface {
	AttachAdminRoutes(*http.ServeMux)
}

// Config contains configuration options for the web monitor.
type Config struct {
	Address  string
	Tracker  *occupancy.MultiPersonTracker
	Manager  *tracks.Manager
	DB       *db.DB
	Sensors  AdminRouter
	API      http.Handler // mounted under /api/; nil disables the JSON API
	UDPPort  int
	Version  string
	Location *time.Location // day boundary for chart defaults; nil means UTC
}

// Monitor handles the HTTP console for a running daemon. Nil engine or
// store references disable the routes that depend on them.
type Monitor struct {
	address  string
	tracker  *occupancy.MultiPersonTracker
	manager  *tracks.Manager
	db       *db.DB
	sensors  AdminRouter
	api      http.Handler
	udpPort  int
	version  string
	location *time.Location

	hub     *Hub
	metrics *Metrics
	server  *http.Server
	started time.Time
}

// New creates a web monitor with the provided configuration.
func New(config Config) *Monitor {
	if config.Location == nil {
		config.Location = time.UTC
	}
	m := &Monitor{
		address:  config.Address,
		tracker:  config.Tracker,
		manager:  config.Manager,
		db:       config.DB,
		sensors:  config.Sensors,
		api:      config.API,
		udpPort:  config.UDPPort,
		version:  config.Version,
		location: config.Location,
		started:  time.Now(),
	}

	m.metrics = NewMetrics(config.Tracker, config.Manager)
	m.hub = NewHub(m.metrics)
	m.server = &http.Server{
		Addr:    m.address,
		Handler: m.setupRoutes(),
	}

	return m
}

// Hub returns the live estimate feed so the daemon can publish changes.
func (m *Monitor) Hub() *Hub {
	return m.hub
}

func (m *Monitor) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (m *Monitor) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting monitor server on %s", m.address)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start monitor server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down monitor server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := m.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("monitor server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := m.server.Close(); err != nil {
			log.Printf("monitor server force close error: %v", err)
		}
	}

	log.Printf("monitor server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (m *Monitor) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", m.handleHealth)
	mux.HandleFunc("/", m.handleStatus)
	mux.HandleFunc("/charts/estimates", m.handleEstimatesChart)
	mux.HandleFunc("/charts/rooms", m.handleRoomsChart)
	mux.HandleFunc("/ws/estimates", m.handleEstimatesWS)
	mux.Handle("/metrics", m.metrics.Handler())

	// The API server registers its routes with the /api/ prefix already in
	// place, so no StripPrefix here.
	if m.api != nil {
		mux.Handle("/api/", m.api)
	}

	debug := tsweb.Debugger(mux)
	debug.HandleFunc("export-estimates", "write a person's recent estimates to a JSON file in the temp directory", m.handleExportEstimates)

	if m.db != nil {
		m.db.AttachAdminRoutes(mux)
	}
	if m.sensors != nil {
		m.sensors.AttachAdminRoutes(mux)
	}

	return mux
}

// handleHealth handles the health check endpoint
func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "occupancy", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// estimateRow is one person line on the status page.
type estimateRow struct {
	Person     string
	Room       string
	Confidence string
}

// handleStatus handles the main status page endpoint
func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var estimates []estimateRow
	var trackerStats occupancy.Stats
	if m.tracker != nil {
		locations := m.tracker.EstimateLocations()
		people := make([]string, 0, len(locations))
		for person := range locations {
			people = append(people, person)
		}
		sort.Strings(people)
		for _, person := range people {
			room := locations[person]
			estimates = append(estimates, estimateRow{
				Person:     person,
				Room:       room,
				Confidence: units.FormatPercent(m.tracker.Distribution(person)[room]),
			})
		}
		trackerStats = m.tracker.Stats()
	}

	var trackStats tracks.ManagerStats
	trackDump := ""
	if m.manager != nil {
		trackStats = m.manager.Stats()
		trackDump = m.manager.GetPrettyString()
	}

	data := struct {
		Version     string
		HTTPAddress string
		UDPPort     int
		Uptime      string
		Estimates   []estimateRow
		Tracker     occupancy.Stats
		Tracks      tracks.ManagerStats
		TrackDump   string
		FeedClients int
		HasDB       bool
		HasSensors  bool
	}{
		Version:     m.version,
		HTTPAddress: m.address,
		UDPPort:     m.udpPort,
		Uptime:      units.FormatDuration(time.Since(m.started)),
		Estimates:   estimates,
		Tracker:     trackerStats,
		Tracks:      trackStats,
		TrackDump:   trackDump,
		FeedClients: m.hub.ClientCount(),
		HasDB:       m.db != nil,
		HasSensors:  m.sensors != nil,
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// Close shuts down the web server
func (m *Monitor) Close() error {
	if m.server != nil {
		return m.server.Close()
	}
	return nil
}
