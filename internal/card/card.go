// Package card assembles the topology card: it loads the diagram and its
// payload, mounts the sanitized markup in the card shell, augments edges
// with hit-paths and routes pointer input to the gesture engine.
package card

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/topoview/internal/config"
	"github.com/ziadkadry99/topoview/internal/datasync"
	"github.com/ziadkadry99/topoview/internal/diagram"
	"github.com/ziadkadry99/topoview/internal/gesture"
	"github.com/ziadkadry99/topoview/internal/hit"
	"github.com/ziadkadry99/topoview/internal/notify"
	"github.com/ziadkadry99/topoview/internal/panel"
	"github.com/ziadkadry99/topoview/internal/payload"
	"github.com/ziadkadry99/topoview/internal/sanitize"
	"github.com/ziadkadry99/topoview/internal/viewport"
)

const (
	MessageMissingAuth = "No access token available. Sign in to load the network map."
	MessageNoData      = "No diagram data available."
)

// Deps are the card's collaborators. Zero values get defaults: a plain
// HTTP client, a push connection dialed from the config's ws_url, and an
// event sink posting to events_url (or logging when none is set).
type Deps struct {
	Client     *http.Client
	Subscriber datasync.Subscriber
	Metrics    *datasync.Metrics
	Sink       notify.Sink
}

// Card is one topology card instance. Its methods are safe for concurrent
// use; pushes arriving on the transport goroutine are applied under the
// same lock as user input.
type Card struct {
	deps   Deps
	sync   *datasync.Controller
	model  *viewport.Model
	engine *gesture.Engine
	panel  *panel.State
	events *notify.Dispatcher

	mu          sync.Mutex
	cfg         config.Config
	shell       *shell
	root        *html.Node
	svgErr      string
	dataErr     string
	missingAuth bool
	noData      bool
	conn        *datasync.Conn
}

// New creates a card for cfg. Nothing is loaded until Refresh.
func New(cfg *config.Config, deps Deps) *Card {
	c := &Card{
		deps:  deps,
		cfg:   *cfg,
		model: viewport.New(),
		panel: panel.New(),
		shell: newShell(),
	}
	c.sync = datasync.New(datasync.Options{
		Client:     deps.Client,
		Subscriber: deps.Subscriber,
		Namespace:  cfg.Namespace,
		Metrics:    deps.Metrics,
		OnPayload:  c.applyPush,
	})
	c.sync.SetToken(cfg.Token)
	c.sync.SetTargets(cfg.SVGURL, cfg.DataURL)

	c.engine = gesture.New(c.model, c.panel, gesture.Options{})
	// Listeners run inside Dispatch, which already holds c.mu.
	c.engine.OnTransform(c.shell.setTransform)

	sink := deps.Sink
	if sink == nil {
		sink = defaultSink(cfg)
	}
	c.events = notify.NewDispatcher(sink, time.Duration(cfg.MoreInfoDelayMS)*time.Millisecond)
	return c
}

func defaultSink(cfg *config.Config) notify.Sink {
	if cfg.EventsURL != "" {
		return notify.NewWebhookSink(cfg.EventsURL)
	}
	return notify.SinkFunc(func(_ context.Context, ev notify.Event) error {
		log.Printf("card: %s %s", ev.Type, ev.EntityID)
		return nil
	})
}

// Refresh loads the diagram and payload. Loads already satisfied are
// skipped. Failures become card state; the returned error joins them for
// callers that want it. Aborted loads are discarded silently.
func (c *Card) Refresh(ctx context.Context) error {
	svg := c.sync.LoadDiagram(ctx)
	data := c.sync.LoadPayload(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.missingAuth = svg.Kind == datasync.MissingAuth || data.Kind == datasync.MissingAuth

	switch svg.Kind {
	case datasync.Loaded:
		c.svgErr = ""
		c.mountLocked(svg.Data)
	case datasync.Failed:
		c.svgErr = svg.Error
	}
	switch data.Kind {
	case datasync.Loaded:
		c.dataErr = ""
		c.panel.ApplyPayload(data.Data)
	case datasync.Failed:
		c.dataErr = data.Error
	}
	c.shell.setMessage(c.messageLocked())

	var errs []error
	for _, err := range []error{svg.Err(), data.Err()} {
		if err != nil && !errors.Is(err, datasync.ErrAborted) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// mountLocked sanitizes markup and swaps it into the shell. Markup without
// a diagram leaves the card in the "no data" state.
func (c *Card) mountLocked(markup string) {
	clean := sanitize.SVG(markup)
	var root *html.Node
	if clean != "" {
		var err error
		if root, err = diagram.Parse(clean); err != nil {
			log.Printf("card: mounting diagram: %v", err)
			root = nil
		}
	}

	c.root = root
	c.noData = root == nil
	c.shell.mount(root)
	if root == nil {
		c.engine.SetResolver(nil)
		return
	}

	hit.Augment(root, c.cfg.HitWidth)
	c.engine.SetResolver(hit.NewResolver(root, nil))
	if sel := c.panel.Selection().SelectedNode; sel != "" {
		remark(root, sel)
	}
}

// remark restores the selection marker on a freshly mounted diagram.
func remark(root *html.Node, name string) {
	for _, n := range diagram.FindAll(root, func(n *html.Node) bool {
		for _, key := range hit.IDAttrs {
			if v, ok := diagram.Attr(n, key); ok && v == name {
				_, isHitPath := diagram.Attr(n, hit.AttrHitTarget)
				return !isHitPath
			}
		}
		return false
	}) {
		hit.MarkSelected(n)
	}
}

func (c *Card) messageLocked() string {
	switch {
	case c.missingAuth:
		return MessageMissingAuth
	case c.svgErr != "":
		return c.svgErr
	case c.dataErr != "":
		return c.dataErr
	case c.noData:
		return MessageNoData
	}
	return ""
}

func (c *Card) applyPush(p *payload.GraphPayload) {
	c.panel.ApplyPayload(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataErr = ""
	c.shell.setMessage(c.messageLocked())
}

// Connect subscribes to pushes for the configured entry. Without an entry
// id there is nothing to subscribe to. When no Subscriber was injected the
// card dials the config's ws_url itself.
func (c *Card) Connect(ctx context.Context) error {
	c.mu.Lock()
	entryID := c.cfg.EntryID
	c.mu.Unlock()
	if entryID == "" {
		return nil
	}
	if c.deps.Subscriber == nil {
		if err := c.dial(ctx); err != nil {
			return err
		}
	}
	return c.sync.Subscribe(ctx, entryID)
}

func (c *Card) dial(ctx context.Context) error {
	c.mu.Lock()
	dialed, wsURL := c.conn != nil, c.cfg.WSURL
	c.mu.Unlock()
	if dialed {
		return nil
	}
	if wsURL == "" {
		return fmt.Errorf("connecting push channel: ws_url is not configured")
	}
	conn, err := datasync.Dial(ctx, datasync.ConnConfig{
		URL:   wsURL,
		Token: c.token,
	})
	if err != nil {
		return fmt.Errorf("connecting push channel: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()
	c.sync.SetSubscriber(conn)
	return nil
}

// token is read on every reconnect so a refreshed token is picked up.
func (c *Card) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Token
}

// Disconnect releases the subscription and closes a connection the card
// dialed itself.
func (c *Card) Disconnect() {
	c.sync.Disconnect()
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close disconnects and drops pending outbound events.
func (c *Card) Close() {
	c.Disconnect()
	c.events.Close()
}

// Reconfigure applies a new configuration. Changed URLs cancel loads in
// flight for the old ones; a changed entry moves a live subscription.
func (c *Card) Reconfigure(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	c.cfg = *cfg
	c.mu.Unlock()

	c.sync.SetToken(cfg.Token)
	c.sync.SetTargets(cfg.SVGURL, cfg.DataURL)
	if c.sync.Subscription() == "" {
		return nil
	}
	return c.sync.Subscribe(ctx, cfg.EntryID)
}

// MoreInfo asks the host to show its own dialog for entityID once the
// "copied" toast has gone.
func (c *Card) MoreInfo(entityID string) error {
	_, err := c.events.MoreInfo(entityID)
	return err
}

// Back clears the selection.
func (c *Card) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.Back()
}

// Panel exposes the panel state for tab and modal changes.
func (c *Card) Panel() *panel.State { return c.panel }

// Control returns the control button for action.
func (c *Card) Control(action string) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shell.control(action)
}

// Diagram returns the mounted svg element, or nil.
func (c *Card) Diagram() *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// Container returns the element the diagram is mounted in.
func (c *Card) Container() *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shell.view
}

// Targets lists the ids a click in the mounted diagram can resolve to, in
// document order.
func (c *Card) Targets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.root == nil {
		return nil
	}
	r := hit.NewResolver(c.root, nil)
	seen := make(map[string]bool)
	var ids []string
	diagram.Walk(c.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if _, id, ok := r.ResolveElement(n); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		return true
	})
	return ids
}
