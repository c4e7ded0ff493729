// Package notify emits deferred outbound events, such as "more-info", to
// the host of the topology card.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("dispatcher closed")

// Sink receives emitted events.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher schedules events and hands them to a sink once their delay has
// elapsed. Pending events are dropped by Close.
type Dispatcher struct {
	sink  Sink
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewDispatcher creates a Dispatcher. A non-positive delay uses DefaultDelay.
func NewDispatcher(sink Sink, delay time.Duration) *Dispatcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Dispatcher{
		sink:    sink,
		delay:   delay,
		pending: make(map[string]*time.Timer),
	}
}

// MoreInfo schedules a more-info event for entityID and returns its id.
func (d *Dispatcher) MoreInfo(entityID string) (string, error) {
	if entityID == "" {
		return "", errors.New("more-info: entity id is required")
	}
	return d.schedule(Event{
		ID:        uuid.NewString(),
		Type:      TypeMoreInfo,
		EntityID:  entityID,
		CreatedAt: time.Now().UTC(),
	})
}

func (d *Dispatcher) schedule(ev Event) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrClosed
	}
	d.pending[ev.ID] = time.AfterFunc(d.delay, func() { d.emit(ev) })
	return ev.ID, nil
}

func (d *Dispatcher) emit(ev Event) {
	d.mu.Lock()
	if _, ok := d.pending[ev.ID]; !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, ev.ID)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.sink.Deliver(ctx, ev); err != nil {
		log.Printf("notify: delivering %s for %s: %v", ev.Type, ev.EntityID, err)
	}
}

// Pending returns the number of scheduled events not yet emitted.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close cancels every pending event. Later MoreInfo calls fail.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for id, t := range d.pending {
		t.Stop()
		delete(d.pending, id)
	}
}

// WebhookSink POSTs each event as JSON to a URL.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

// NewWebhookSink creates a WebhookSink with a 10 second client timeout.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
