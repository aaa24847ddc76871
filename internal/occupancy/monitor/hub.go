package monitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPingInterval = 30 * time.Second
	feedBuffer       = 8
)

// EstimateUpdate is one frame on the live feed: the full person to room map
// after a change, stamped with the publish time.
type EstimateUpdate struct {
	Unix      float64           `json:"ts"`
	Estimates map[string]string `json:"estimates"`
}

// Hub fans estimate updates out to websocket subscribers. Slow subscribers
// miss frames rather than blocking the publisher.
type Hub struct {
	metrics *Metrics

	mu      sync.Mutex
	clients map[chan EstimateUpdate]bool
}

// NewHub creates an empty feed hub. A nil metrics disables counting.
func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		metrics: metrics,
		clients: make(map[chan EstimateUpdate]bool),
	}
}

// Broadcast publishes an update to every connected client. Clients with a
// full buffer skip the frame.
func (h *Hub) Broadcast(update EstimateUpdate) {
	if h.metrics != nil {
		h.metrics.RecordEstimateChange()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- update:
		default:
		}
	}
}

// ClientCount reports the number of connected feed clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register() chan EstimateUpdate {
	ch := make(chan EstimateUpdate, feedBuffer)
	h.mu.Lock()
	h.clients[ch] = true
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.setFeedClients(n)
	}
	return ch
}

// unregister drops a client channel without closing it: a Broadcast may
// still be holding a reference, and an unread buffered channel is collected
// once the writer loop returns.
func (h *Hub) unregister(ch chan EstimateUpdate) {
	h.mu.Lock()
	delete(h.clients, ch)
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.setFeedClients(n)
	}
}

// The monitor binds to LAN debug ports; any origin gets the same view the
// status page serves.
var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEstimatesWS upgrades the connection and streams estimate updates
// until the client goes away. The first frame is the current state so
// clients render immediately.
func (m *Monitor) handleEstimatesWS(w http.ResponseWriter, r *http.Request) {
	if m.tracker == nil {
		m.writeJSONError(w, http.StatusServiceUnavailable, "tracker not configured")
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("monitor: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch := m.hub.register()
	defer m.hub.unregister(ch)

	first := EstimateUpdate{
		Unix:      float64(time.Now().UnixNano()) / 1e9,
		Estimates: m.tracker.EstimateLocations(),
	}
	conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	if err := conn.WriteJSON(first); err != nil {
		return
	}

	// The read side only services close and pong control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case update := <-ch:
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteTimeout)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
