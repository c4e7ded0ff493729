// Package datasync loads the diagram and its payload over authenticated
// HTTP and keeps a single push subscription for the configured entry.
package datasync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/topoview/internal/payload"
)

const (
	kindSVG     = "svg"
	kindPayload = "payload"

	maxBodyBytes = 16 << 20
)

// Options configures a Controller.
type Options struct {
	Client     *http.Client
	Subscriber Subscriber
	Namespace  string // push message namespace, e.g. "network_map"
	Metrics    *Metrics

	// OnPayload receives payloads pushed over the subscription.
	OnPayload func(*payload.GraphPayload)
}

// target tracks one URL-keyed resource.
type target struct {
	kind     string
	label    string
	url      string
	loaded   string // last URL loaded successfully
	inflight string // URL currently being fetched
	cancel   context.CancelFunc
	seq      uint64
}

// Controller owns the diagram and payload loads and the subscription slot.
type Controller struct {
	opts Options

	mu      sync.Mutex
	token   string
	svg     target
	payload target

	subMu   sync.Mutex
	slot    slot
	gen     uint64
	liveGen atomic.Uint64
	// liveID mirrors slot.configID and is read without subMu.
	liveID atomic.Pointer[string]
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Namespace == "" {
		opts.Namespace = "network_map"
	}
	return &Controller{
		opts:    opts,
		svg:     target{kind: kindSVG, label: "SVG"},
		payload: target{kind: kindPayload, label: "payload"},
	}
}

// SetToken sets the bearer token used for loads. An empty token makes
// loads report MissingAuth until a token is set.
func (c *Controller) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SetTargets points the controller at new URLs. A request in flight for a
// URL that changed is cancelled.
func (c *Controller) SetTargets(svgURL, dataURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	retarget(&c.svg, svgURL)
	retarget(&c.payload, dataURL)
}

func retarget(t *target, url string) {
	if t.url == url {
		return
	}
	t.url = url
	if t.inflight != "" && t.inflight != url && t.cancel != nil {
		t.cancel()
		t.inflight = ""
		t.cancel = nil
	}
}

// Invalidate forgets what was loaded so the next loads fetch again.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.svg.loaded = ""
	c.payload.loaded = ""
}

// LoadDiagram fetches the raw SVG markup.
func (c *Controller) LoadDiagram(ctx context.Context) Outcome[string] {
	body, out := c.fetch(ctx, &c.svg)
	if out.Kind != Loaded {
		return Outcome[string]{Kind: out.Kind, Error: out.Error}
	}
	return loaded(string(body))
}

// LoadPayload fetches and decodes the JSON payload.
func (c *Controller) LoadPayload(ctx context.Context) Outcome[*payload.GraphPayload] {
	body, out := c.fetch(ctx, &c.payload)
	if out.Kind != Loaded {
		return Outcome[*payload.GraphPayload]{Kind: out.Kind, Error: out.Error}
	}
	p, err := payload.Decode(bytes.NewReader(body))
	if err != nil {
		c.forget(&c.payload)
		return failed[*payload.GraphPayload](describe(err))
	}
	return loaded(p)
}

// fetch performs one guarded GET against t and records the outcome.
func (c *Controller) fetch(ctx context.Context, t *target) (body []byte, out Outcome[struct{}]) {
	defer func() { c.opts.Metrics.fetch(t.kind, out.Kind) }()

	c.mu.Lock()
	token, url := c.token, t.url
	switch {
	case token == "":
		c.mu.Unlock()
		return nil, missingAuth[struct{}]()
	case url == "", t.inflight == url, t.loaded == url:
		c.mu.Unlock()
		return nil, skipped[struct{}]()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	t.seq++
	seq := t.seq
	t.inflight, t.cancel = url, cancel
	c.mu.Unlock()

	defer cancel()
	body, out = c.get(reqCtx, t.label, url, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	if t.seq == seq && t.inflight == url {
		t.inflight, t.cancel = "", nil
	}
	if t.url != url {
		// Retargeted while in flight; the caller must not apply it.
		return nil, aborted[struct{}]()
	}
	if out.Kind == Loaded {
		t.loaded = url
	}
	return body, out
}

func (c *Controller) forget(t *target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.loaded = ""
}

func (c *Controller) get(ctx context.Context, label, url, token string) (body []byte, out Outcome[struct{}]) {
	defer func() {
		if r := recover(); r != nil {
			body, out = nil, failed[struct{}](describe(r))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failed[struct{}](describe(err))
	}
	reqID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-Id", reqID)

	resp, err := c.opts.Client.Do(req)
	if err != nil {
		if isCancellation(ctx, err) {
			return nil, aborted[struct{}]()
		}
		log.Printf("datasync: %s %s (request %s): %v", label, url, reqID, err)
		return nil, failed[struct{}](describe(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, failed[struct{}](fmt.Sprintf("Failed to load %s (HTTP %d)", label, resp.StatusCode))
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isCancellation(ctx, err) {
			return nil, aborted[struct{}]()
		}
		return nil, failed[struct{}](describe(err))
	}
	return body, loaded(struct{}{})
}
