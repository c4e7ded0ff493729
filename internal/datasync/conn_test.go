package datasync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/topoview/internal/payload"
)

// pushServer speaks the server side of the push protocol.
type pushServer struct {
	*httptest.Server
	token string

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]int

	writeMu      sync.Mutex
	subscribed   chan Envelope
	unsubscribed chan Envelope
}

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func newPushServer(t *testing.T, token string) *pushServer {
	t.Helper()
	s := &pushServer{
		token:        token,
		subs:         make(map[string]int),
		subscribed:   make(chan Envelope, 16),
		unsubscribed: make(chan Envelope, 16),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *pushServer) send(ws *websocket.Conn, msg Envelope) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ws.WriteJSON(msg)
}

func (s *pushServer) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	s.send(ws, Envelope{Type: "auth_required"})
	var auth Envelope
	if err := ws.ReadJSON(&auth); err != nil {
		return
	}
	if auth.AccessToken != s.token {
		s.send(ws, Envelope{Type: "auth_invalid", Message: "bad token"})
		return
	}
	s.send(ws, Envelope{Type: "auth_ok"})

	s.mu.Lock()
	s.conn = ws
	s.mu.Unlock()

	for {
		var msg Envelope
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		ok := true
		switch {
		case msg.Type == "unsubscribe_events":
			s.unsubscribed <- msg
		case strings.HasSuffix(msg.Type, "/subscribe"):
			ok = msg.EntryID != "missing"
			if ok {
				s.mu.Lock()
				s.subs[msg.EntryID] = msg.ID
				s.mu.Unlock()
			}
			s.subscribed <- msg
		}
		result := Envelope{ID: msg.ID, Type: "result", Success: &ok}
		if !ok {
			result.Error = &EnvelopeError{Code: "not_found", Message: "no such entry"}
		}
		s.send(ws, result)
	}
}

func (s *pushServer) push(entryID, event string) {
	s.mu.Lock()
	ws, id := s.conn, s.subs[entryID]
	s.mu.Unlock()
	s.send(ws, Envelope{ID: id, Type: "event", Event: json.RawMessage(event)})
}

// drop closes the current connection from the server side.
func (s *pushServer) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close()
}

func expectEnvelope(t *testing.T, ch chan Envelope) Envelope {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return Envelope{}
	}
}

func dialTest(t *testing.T, s *pushServer, token string) *Conn {
	t.Helper()
	conn, err := Dial(t.Context(), ConnConfig{
		URL:        s.wsURL(),
		Token:      func() string { return token },
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnSubscribeAndPush(t *testing.T) {
	s := newPushServer(t, "good")
	conn := dialTest(t, s, "good")

	events := make(chan json.RawMessage, 4)
	_, err := conn.Subscribe(t.Context(), SubscribeRequest{Type: "network_map/subscribe", EntryID: "A"},
		func(raw json.RawMessage) { events <- raw }, SubscribeOptions{})
	require.NoError(t, err)

	msg := expectEnvelope(t, s.subscribed)
	assert.Equal(t, "A", msg.EntryID)
	assert.Equal(t, 1, conn.Live())

	s.push("A", testPayload)
	select {
	case raw := <-events:
		assert.JSONEq(t, testPayload, string(raw))
	case <-time.After(5 * time.Second):
		t.Fatal("push never delivered")
	}
}

func TestConnRejectsBadToken(t *testing.T) {
	s := newPushServer(t, "good")

	_, err := Dial(t.Context(), ConnConfig{URL: s.wsURL(), Token: func() string { return "bad" }})
	assert.ErrorIs(t, err, ErrAuthInvalid)

	_, err = Dial(t.Context(), ConnConfig{URL: s.wsURL()})
	assert.ErrorIs(t, err, ErrMissingAuth)
}

func TestConnSubscribeFailure(t *testing.T) {
	s := newPushServer(t, "good")
	conn := dialTest(t, s, "good")

	_, err := conn.Subscribe(t.Context(), SubscribeRequest{Type: "network_map/subscribe", EntryID: "missing"},
		func(json.RawMessage) {}, SubscribeOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
	assert.Equal(t, 0, conn.Live())
}

func TestConnUnsubscribeOnce(t *testing.T) {
	s := newPushServer(t, "good")
	conn := dialTest(t, s, "good")

	unsub, err := conn.Subscribe(t.Context(), SubscribeRequest{Type: "network_map/subscribe", EntryID: "A"},
		func(json.RawMessage) {}, SubscribeOptions{})
	require.NoError(t, err)
	sub := expectEnvelope(t, s.subscribed)

	require.NoError(t, unsub())
	require.NoError(t, unsub())

	msg := expectEnvelope(t, s.unsubscribed)
	assert.Equal(t, sub.ID, msg.Subscription)
	assert.Equal(t, 0, conn.Live())
	select {
	case extra := <-s.unsubscribed:
		t.Fatalf("unexpected second unsubscribe: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnResubscribesAfterReconnect(t *testing.T) {
	s := newPushServer(t, "good")
	conn := dialTest(t, s, "good")

	events := make(chan json.RawMessage, 4)
	_, err := conn.Subscribe(t.Context(), SubscribeRequest{Type: "network_map/subscribe", EntryID: "A"},
		func(raw json.RawMessage) { events <- raw }, SubscribeOptions{Resubscribe: true})
	require.NoError(t, err)
	expectEnvelope(t, s.subscribed)

	s.drop()

	again := expectEnvelope(t, s.subscribed)
	assert.Equal(t, "A", again.EntryID)

	s.push("A", testPayload)
	select {
	case raw := <-events:
		assert.JSONEq(t, testPayload, string(raw))
	case <-time.After(5 * time.Second):
		t.Fatal("push after reconnect never delivered")
	}
}

func TestControllerOverConn(t *testing.T) {
	s := newPushServer(t, "good")
	conn := dialTest(t, s, "good")

	got := make(chan *payload.GraphPayload, 1)
	c := New(Options{Subscriber: conn, OnPayload: func(p *payload.GraphPayload) { got <- p }})
	require.NoError(t, c.Subscribe(t.Context(), "entry-1"))
	expectEnvelope(t, s.subscribed)

	s.push("entry-1", testPayload)
	select {
	case p := <-got:
		assert.True(t, p.HasNode("Switch"))
	case <-time.After(5 * time.Second):
		t.Fatal("payload never applied")
	}

	c.Disconnect()
	expectEnvelope(t, s.unsubscribed)
}
