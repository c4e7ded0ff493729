// Package dashboard hosts topology cards server-side for the preview
// server. Each entry gets one long-lived card session that renders its
// snapshot as a page and accepts input events over HTTP.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/topoview/internal/card"
	"github.com/ziadkadry99/topoview/internal/config"
	"github.com/ziadkadry99/topoview/internal/datasync"
)

// Dashboard owns the card sessions.
type Dashboard struct {
	base    config.Config
	metrics *datasync.Metrics

	mu       sync.Mutex
	sessions map[string]*card.Card
}

// New creates a Dashboard whose cards load from base.BaseURL with
// base.Token. metrics may be nil.
func New(base *config.Config, metrics *datasync.Metrics) *Dashboard {
	return &Dashboard{
		base:     *base,
		metrics:  metrics,
		sessions: make(map[string]*card.Card),
	}
}

// RegisterRoutes mounts the dashboard routes onto the given router.
func (d *Dashboard) RegisterRoutes(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", d.handleSessions)
		r.Get("/{entry}", d.handlePage)
		r.Delete("/{entry}", d.handleClose)
		r.Get("/{entry}/snapshot", d.handleSnapshot)
		r.Post("/{entry}/events", d.handleEvent)
		r.Post("/{entry}/back", d.handleBack)
		r.Post("/{entry}/tab", d.handleTab)
		r.Post("/{entry}/more-info", d.handleMoreInfo)
	})
}

// session returns the card for entry, creating it on first use. Every call
// refreshes the card; a new card also subscribes to pushes for its entry.
func (d *Dashboard) session(ctx context.Context, entry string) (*card.Card, error) {
	d.mu.Lock()
	c, ok := d.sessions[entry]
	if !ok {
		cfg := d.base
		cfg.EntryID = entry
		cfg.SVGURL, cfg.DataURL = "", ""
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			d.mu.Unlock()
			return nil, fmt.Errorf("configuring card for %s: %w", entry, err)
		}
		c = card.New(&cfg, card.Deps{Metrics: d.metrics})
		d.sessions[entry] = c
	}
	d.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		log.Printf("dashboard: refreshing %s: %v", entry, err)
	}
	if !ok {
		// The connection outlives the request that created the session.
		if err := c.Connect(context.WithoutCancel(ctx)); err != nil {
			log.Printf("dashboard: connecting %s: %v", entry, err)
		}
	}
	return c, nil
}

// Sessions returns the entries with a live card, sorted.
func (d *Dashboard) Sessions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.sessions))
	for entry := range d.sessions {
		out = append(out, entry)
	}
	sort.Strings(out)
	return out
}

// CloseSession disconnects and forgets the card for entry.
func (d *Dashboard) CloseSession(entry string) bool {
	d.mu.Lock()
	c, ok := d.sessions[entry]
	delete(d.sessions, entry)
	d.mu.Unlock()
	if ok {
		c.Close()
	}
	return ok
}

// Close closes every session.
func (d *Dashboard) Close() {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[string]*card.Card)
	d.mu.Unlock()
	for _, c := range sessions {
		c.Close()
	}
}
