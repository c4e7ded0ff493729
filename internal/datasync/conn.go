package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrAuthInvalid    = errors.New("push channel rejected the access token")
	ErrConnectionLost = errors.New("push channel connection lost")
	ErrClosed         = errors.New("push channel closed")
)

// Envelope is a message on the push channel, in either direction.
type Envelope struct {
	ID           int             `json:"id,omitempty"`
	Type         string          `json:"type"`
	AccessToken  string          `json:"access_token,omitempty"`
	EntryID      string          `json:"entry_id,omitempty"`
	Subscription int             `json:"subscription,omitempty"`
	Success      *bool           `json:"success,omitempty"`
	Error        *EnvelopeError  `json:"error,omitempty"`
	Message      string          `json:"message,omitempty"`
	Event        json.RawMessage `json:"event,omitempty"`
}

// EnvelopeError is the error detail of a failed result.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnConfig configures a push channel client.
type ConnConfig struct {
	URL        string
	Token      func() string
	Dialer     *websocket.Dialer
	Header     http.Header
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// ResultTimeout bounds how long Subscribe waits for the server's result.
	ResultTimeout time.Duration
}

type pushSub struct {
	id          int
	req         SubscribeRequest
	onMessage   func(json.RawMessage)
	resubscribe bool
}

// Conn is a WebSocket push channel client. It authenticates with the
// bearer token, multiplexes subscriptions by message id and, after a
// dropped connection, reconnects with exponential backoff and replays
// subscriptions opened with Resubscribe.
type Conn struct {
	cfg ConnConfig

	mu      sync.Mutex
	ws      *websocket.Conn
	nextID  int
	subs    map[int]*pushSub
	pending map[int]chan error
	closed  bool

	writeMu sync.Mutex
	done    chan struct{}
}

// Dial connects and authenticates, then serves the connection in the
// background until Close.
func Dial(ctx context.Context, cfg ConnConfig) (*Conn, error) {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Token == nil {
		cfg.Token = func() string { return "" }
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 10 * time.Second
	}

	c := &Conn{
		cfg:     cfg,
		subs:    make(map[int]*pushSub),
		pending: make(map[int]chan error),
		done:    make(chan struct{}),
	}
	ws, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.ws = ws
	go c.serve(ws)
	return c, nil
}

func (c *Conn) connect(ctx context.Context) (*websocket.Conn, error) {
	token := c.cfg.Token()
	if token == "" {
		return nil, ErrMissingAuth
	}
	ws, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dialing push channel: %w", err)
	}
	if err := authenticate(ws, token); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

func authenticate(ws *websocket.Conn, token string) error {
	var msg Envelope
	if err := ws.ReadJSON(&msg); err != nil {
		return fmt.Errorf("reading auth request: %w", err)
	}
	if msg.Type == "auth_ok" {
		return nil
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("unexpected handshake message %q", msg.Type)
	}
	if err := ws.WriteJSON(Envelope{Type: "auth", AccessToken: token}); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}
	if err := ws.ReadJSON(&msg); err != nil {
		return fmt.Errorf("reading auth result: %w", err)
	}
	switch msg.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return fmt.Errorf("%w: %s", ErrAuthInvalid, msg.Message)
	default:
		return fmt.Errorf("unexpected handshake message %q", msg.Type)
	}
}

// serve reads from ws until it fails, then reconnects.
func (c *Conn) serve(ws *websocket.Conn) {
	for {
		c.read(ws)
		c.failPending(ErrConnectionLost)

		next, ok := c.reconnect()
		if !ok {
			return
		}
		ws = next
	}
}

func (c *Conn) read(ws *websocket.Conn) {
	for {
		var msg Envelope
		if err := ws.ReadJSON(&msg); err != nil {
			if !c.isClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("datasync: push channel read: %v", err)
			}
			return
		}

		switch msg.Type {
		case "result":
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- resultError(msg)
			}
		case "event":
			c.mu.Lock()
			sub, ok := c.subs[msg.ID]
			c.mu.Unlock()
			if ok {
				sub.onMessage(msg.Event)
			}
		}
	}
}

func resultError(msg Envelope) error {
	if msg.Success != nil && *msg.Success {
		return nil
	}
	if msg.Error != nil {
		return fmt.Errorf("push channel: %s: %s", msg.Error.Code, msg.Error.Message)
	}
	return errors.New("push channel: request failed")
}

func (c *Conn) reconnect() (*websocket.Conn, bool) {
	backoff := c.cfg.MinBackoff
	for {
		select {
		case <-c.done:
			return nil, false
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ResultTimeout)
		ws, err := c.connect(ctx)
		cancel()
		if err != nil {
			log.Printf("datasync: reconnecting push channel: %v", err)
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return nil, false
		}
		c.ws = ws
		replay := c.renumberLocked()
		c.mu.Unlock()

		for _, sub := range replay {
			if err := c.write(Envelope{ID: sub.id, Type: sub.req.Type, EntryID: sub.req.EntryID}); err != nil {
				log.Printf("datasync: resubscribing %s: %v", sub.req.EntryID, err)
			}
		}
		return ws, true
	}
}

// renumberLocked gives every resubscribing subscription a fresh id on the
// new connection and drops the others.
func (c *Conn) renumberLocked() []*pushSub {
	old := c.subs
	c.subs = make(map[int]*pushSub, len(old))
	var replay []*pushSub
	for _, sub := range old {
		if !sub.resubscribe {
			continue
		}
		c.nextID++
		sub.id = c.nextID
		c.subs[sub.id] = sub
		replay = append(replay, sub)
	}
	return replay
}

func (c *Conn) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- err
		delete(c.pending, id)
	}
}

func (c *Conn) write(msg Envelope) error {
	c.mu.Lock()
	ws, closed := c.ws, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(msg)
}

// Subscribe opens a subscription and waits for the server to accept it.
func (c *Conn) Subscribe(ctx context.Context, req SubscribeRequest, onMessage func(json.RawMessage), opts SubscribeOptions) (Unsubscribe, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	sub := &pushSub{id: c.nextID, req: req, onMessage: onMessage, resubscribe: opts.Resubscribe}
	c.subs[sub.id] = sub
	result := make(chan error, 1)
	c.pending[sub.id] = result
	c.mu.Unlock()

	if err := c.write(Envelope{ID: sub.id, Type: req.Type, EntryID: req.EntryID}); err != nil {
		c.drop(sub)
		return nil, fmt.Errorf("sending subscribe: %w", err)
	}

	timer := time.NewTimer(c.cfg.ResultTimeout)
	defer timer.Stop()
	select {
	case err := <-result:
		if err != nil {
			c.drop(sub)
			return nil, err
		}
	case <-ctx.Done():
		c.drop(sub)
		return nil, ctx.Err()
	case <-timer.C:
		c.drop(sub)
		return nil, fmt.Errorf("subscribe %s: no result after %s", req.EntryID, c.cfg.ResultTimeout)
	}

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() { err = c.unsubscribe(sub) })
		return err
	}, nil
}

func (c *Conn) drop(sub *pushSub) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[sub.id] == sub {
		delete(c.subs, sub.id)
	}
	delete(c.pending, sub.id)
}

func (c *Conn) unsubscribe(sub *pushSub) error {
	c.mu.Lock()
	if c.subs[sub.id] != sub {
		c.mu.Unlock()
		return nil
	}
	delete(c.subs, sub.id)
	c.nextID++
	id, subID := c.nextID, sub.id
	c.mu.Unlock()

	if err := c.write(Envelope{ID: id, Type: "unsubscribe_events", Subscription: subID}); err != nil && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("sending unsubscribe: %w", err)
	}
	return nil
}

// Live returns the number of open subscriptions.
func (c *Conn) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close shuts the connection down and stops reconnecting.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	close(c.done)
	c.mu.Unlock()

	c.failPending(ErrClosed)
	return ws.Close()
}
