package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	got    chan Event
}

func newRecorder() *recorder {
	return &recorder{got: make(chan Event, 8)}
}

func (r *recorder) Deliver(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.got <- ev
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestMoreInfoIsDeferred(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec, 40*time.Millisecond)
	defer d.Close()

	start := time.Now()
	id, err := d.MoreInfo("switch.core")
	if err != nil {
		t.Fatalf("MoreInfo: %v", err)
	}
	if rec.count() != 0 {
		t.Fatal("event emitted synchronously")
	}
	if d.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", d.Pending())
	}

	select {
	case ev := <-rec.got:
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("emitted after %s, want >= 40ms", elapsed)
		}
		if ev.ID != id {
			t.Errorf("ID = %q, want %q", ev.ID, id)
		}
		if ev.Type != TypeMoreInfo {
			t.Errorf("Type = %q, want %q", ev.Type, TypeMoreInfo)
		}
		if ev.EntityID != "switch.core" {
			t.Errorf("EntityID = %q, want switch.core", ev.EntityID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never emitted")
	}
	if d.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", d.Pending())
	}
}

func TestMoreInfoRequiresEntity(t *testing.T) {
	d := NewDispatcher(newRecorder(), time.Millisecond)
	defer d.Close()
	if _, err := d.MoreInfo(""); err == nil {
		t.Fatal("expected error for empty entity id")
	}
}

func TestCloseCancelsPending(t *testing.T) {
	rec := newRecorder()
	d := NewDispatcher(rec, 30*time.Millisecond)

	if _, err := d.MoreInfo("light.desk"); err != nil {
		t.Fatalf("MoreInfo: %v", err)
	}
	d.Close()

	time.Sleep(80 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("expected no events after Close, got %d", rec.count())
	}
	if _, err := d.MoreInfo("light.desk"); err != ErrClosed {
		t.Errorf("MoreInfo after Close: err = %v, want ErrClosed", err)
	}
}

func TestDefaultDelay(t *testing.T) {
	d := NewDispatcher(newRecorder(), 0)
	if d.delay != DefaultDelay {
		t.Errorf("delay = %s, want %s", d.delay, DefaultDelay)
	}
}

func TestWebhookSink(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	ev := Event{ID: "e-1", Type: TypeMoreInfo, EntityID: "sensor.rx"}
	if err := sink.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	got := <-received
	if got.EntityID != "sensor.rx" {
		t.Errorf("EntityID = %q, want sensor.rx", got.EntityID)
	}
}

func TestWebhookSinkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL).Deliver(context.Background(), Event{ID: "e-1", Type: TypeMoreInfo, EntityID: "x"})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestSinkFunc(t *testing.T) {
	var got string
	sink := SinkFunc(func(_ context.Context, ev Event) error {
		got = ev.EntityID
		return nil
	})
	if err := sink.Deliver(context.Background(), Event{EntityID: "fan.attic"}); err != nil {
		t.Fatal(err)
	}
	if got != "fan.attic" {
		t.Errorf("got %q, want fan.attic", got)
	}
}
