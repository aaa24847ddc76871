package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/occupancy.report/internal/occupancy"
	"github.com/banshee-data/occupancy.report/internal/occupancy/tracks"
)

const metricsNamespace = "occupancy"

// Metrics exposes engine counters on a private prometheus registry. Engine
// totals are read from the tracker and manager stats snapshots at scrape
// time, so the ingest path carries no metrics code.
type Metrics struct {
	registry *prometheus.Registry

	estimateChanges prometheus.Counter
	feedClients     prometheus.Gauge
}

// NewMetrics builds the registry. Nil engines register only the monitor's
// own collectors.
func NewMetrics(tracker *occupancy.MultiPersonTracker, manager *tracks.Manager) *Metrics {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.estimateChanges = auto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "estimate_changes_total",
		Help:      "Modal room changes published to feed subscribers",
	})
	m.feedClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "feed_clients",
		Help:      "Connected websocket estimate feed clients",
	})

	if tracker != nil {
		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "events_total",
			Help:      "Sensor events delegated to a person tracker",
		}, func() float64 { return float64(tracker.Stats().EventsProcessed) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "phone_pings_total",
			Help:      "Phone reports received",
		}, func() float64 { return float64(tracker.Stats().PhonePings) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "presence_updates_total",
			Help:      "Explicit presence overrides applied",
		}, func() float64 { return float64(tracker.Stats().PresenceUpdates) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "decay_ticks_total",
			Help:      "Decay and resampling sweeps applied to all particle sets",
		}, func() float64 { return float64(tracker.Stats().DecayTicks) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "unknown_room_events_total",
			Help:      "Events dropped for rooms missing from the graph",
		}, func() float64 { return float64(tracker.Stats().UnknownRoomEvents) })

		auto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "people",
			Help:      "People with live particle trackers",
		}, func() float64 { return float64(tracker.Stats().People) })

		auto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracker",
			Name:      "phones",
			Help:      "Phones seen or associated",
		}, func() float64 { return float64(tracker.Stats().Phones) })
	}

	if manager != nil {
		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracks",
			Name:      "events_total",
			Help:      "Room events accepted for track scoring",
		}, func() float64 { return float64(manager.Stats().EventsSeen) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracks",
			Name:      "merges_total",
			Help:      "Events absorbed into an existing track",
		}, func() float64 { return float64(manager.Stats().Merges) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracks",
			Name:      "refreshes_total",
			Help:      "Events that re-triggered a track's head room",
		}, func() float64 { return float64(manager.Stats().Refreshes) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracks",
			Name:      "opened_total",
			Help:      "Events that started a distinct track",
		}, func() float64 { return float64(manager.Stats().NewTracks) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracks",
			Name:      "expired_total",
			Help:      "Tracks dropped for idling past the age limit",
		}, func() float64 { return float64(manager.Stats().TracksExpired) })

		auto.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracks",
			Name:      "evicted_total",
			Help:      "Tracks dropped for exceeding the track cap",
		}, func() float64 { return float64(manager.Stats().TracksEvicted) })

		auto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "tracks",
			Name:      "active",
			Help:      "Live tracks",
		}, func() float64 { return float64(manager.Stats().ActiveTracks) })
	}

	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEstimateChange counts one published estimate change.
func (m *Metrics) RecordEstimateChange() {
	m.estimateChanges.Inc()
}

func (m *Metrics) setFeedClients(n int) {
	m.feedClients.Set(float64(n))
}
