// Package notify pushes room estimate changes to a configured webhook so
// home automations can react without polling the API.
package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/occupancy.report/internal/httputil"
	"github.com/banshee-data/occupancy.report/internal/monitoring"
)

const (
	queueDepth  = 64
	postTimeout = 15 * time.Second
)

// Event is the JSON document POSTed for each estimate change.
type Event struct {
	PersonID   string  `json:"person_id"`
	Room       string  `json:"room"`
	Previous   string  `json:"previous_room,omitempty"`
	Confidence float64 `json:"confidence"`
	Unix       float64 `json:"ts"`
}

// Notifier delivers events to one webhook URL from a background worker.
// Notify never blocks the caller: events are dropped when the queue is full,
// counted in Dropped.
type Notifier struct {
	url    string
	client *httputil.RetryingClient
	logf   func(format string, v ...interface{})

	queue    chan Event
	stopChan chan struct{}
	done     chan struct{}
	dropped  atomic.Int64
}

// NewNotifier builds a notifier for one webhook URL. A nil client gets the
// default retrying client; a nil logf falls back to the package logger.
func NewNotifier(url string, client *httputil.RetryingClient, logf func(format string, v ...interface{})) *Notifier {
	if client == nil {
		client = httputil.NewRetryingClient(nil, httputil.RetryConfig{}, nil)
	}
	if logf == nil {
		logf = func(format string, v ...interface{}) { monitoring.Logf(format, v...) }
	}
	return &Notifier{
		url:      url,
		client:   client,
		logf:     logf,
		queue:    make(chan Event, queueDepth),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the delivery worker in a goroutine.
func (n *Notifier) Start() {
	go n.run()
}

// Stop asks the worker to finish. Already queued events are drained before
// Stop returns.
func (n *Notifier) Stop() {
	close(n.stopChan)
	<-n.done
}

// Notify enqueues one event without blocking.
func (n *Notifier) Notify(event Event) {
	select {
	case n.queue <- event:
	default:
		n.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded on a full queue.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case event := <-n.queue:
			n.deliver(event)
		case <-n.stopChan:
			for {
				select {
				case event := <-n.queue:
					n.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()
	if err := n.client.PostJSON(ctx, n.url, event); err != nil {
		n.logf("notify: delivery failed for %s -> %s: %v", event.PersonID, event.Room, err)
	}
}
