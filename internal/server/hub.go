package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/topoview/internal/auth"
	"github.com/ziadkadry99/topoview/internal/datasync"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const authTimeout = 10 * time.Second

type client struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[int]string // message id -> entry
}

func (c *client) send(msg datasync.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *client) result(id int, code, message string) {
	ok := code == ""
	msg := datasync.Envelope{ID: id, Type: "result", Success: &ok}
	if !ok {
		msg.Error = &datasync.EnvelopeError{Code: code, Message: message}
	}
	if err := c.send(msg); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

// Hub serves the push channel: it authenticates clients, tracks their
// subscriptions and fans published payloads out to them.
type Hub struct {
	namespace string
	tokens    *auth.Manager
	fixtures  *Fixtures
	metrics   *Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(namespace string, tokens *auth.Manager, fixtures *Fixtures, metrics *Metrics) *Hub {
	return &Hub{
		namespace: namespace,
		tokens:    tokens,
		fixtures:  fixtures,
		metrics:   metrics,
		clients:   make(map[*client]struct{}),
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer ws.Close()

	c := &client{ws: ws, subs: make(map[int]string)}
	if !h.authenticate(c) {
		return
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.Clients.Inc()
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		h.metrics.Clients.Dec()
	}()

	for {
		var msg datasync.Envelope
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		switch msg.Type {
		case h.namespace + "/subscribe":
			if !h.fixtures.Has(msg.EntryID) {
				c.result(msg.ID, "not_found", "no fixture for entry "+msg.EntryID)
				continue
			}
			c.mu.Lock()
			c.subs[msg.ID] = msg.EntryID
			c.mu.Unlock()
			c.result(msg.ID, "", "")
		case "unsubscribe_events":
			c.mu.Lock()
			_, ok := c.subs[msg.Subscription]
			delete(c.subs, msg.Subscription)
			c.mu.Unlock()
			if !ok {
				c.result(msg.ID, "not_found", "subscription not found")
				continue
			}
			c.result(msg.ID, "", "")
		default:
			c.result(msg.ID, "unknown_command", "unknown message type: "+msg.Type)
		}
	}
}

// authenticate runs the handshake: auth_required, then an auth message
// answered with auth_ok or auth_invalid.
func (h *Hub) authenticate(c *client) bool {
	if err := c.send(datasync.Envelope{Type: "auth_required"}); err != nil {
		return false
	}
	c.ws.SetReadDeadline(time.Now().Add(authTimeout))
	var msg datasync.Envelope
	if err := c.ws.ReadJSON(&msg); err != nil {
		return false
	}
	c.ws.SetReadDeadline(time.Time{})

	if msg.Type != "auth" {
		c.send(datasync.Envelope{Type: "auth_invalid", Message: "expected auth message"})
		return false
	}
	if _, err := h.tokens.Verify(msg.AccessToken); err != nil {
		c.send(datasync.Envelope{Type: "auth_invalid", Message: err.Error()})
		return false
	}
	return c.send(datasync.Envelope{Type: "auth_ok"}) == nil
}

// Publish pushes raw to every subscription on entry and returns the number
// of deliveries.
func (h *Hub) Publish(entry string, raw json.RawMessage) int {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	delivered := 0
	for _, c := range clients {
		c.mu.Lock()
		var ids []int
		for id, e := range c.subs {
			if e == entry {
				ids = append(ids, id)
			}
		}
		c.mu.Unlock()

		for _, id := range ids {
			if err := c.send(datasync.Envelope{ID: id, Type: "event", Event: raw}); err != nil {
				log.Printf("server: pushing %s: %v", entry, err)
				continue
			}
			delivered++
		}
	}
	h.metrics.Events.Add(float64(delivered))
	return delivered
}

// Subscriptions returns the number of live subscriptions across clients.
func (h *Hub) Subscriptions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		c.mu.Lock()
		n += len(c.subs)
		c.mu.Unlock()
	}
	return n
}
