package datasync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ziadkadry99/topoview/internal/payload"
)

// SubscribeRequest is the message that opens a push subscription.
type SubscribeRequest struct {
	Type    string `json:"type"`
	EntryID string `json:"entry_id"`
}

// SubscribeOptions are transport options for a subscription.
type SubscribeOptions struct {
	// Resubscribe asks the transport to re-open the subscription after a
	// reconnect.
	Resubscribe bool
}

// Unsubscribe releases a subscription.
type Unsubscribe func() error

// Subscriber is a push transport.
type Subscriber interface {
	Subscribe(ctx context.Context, req SubscribeRequest, onMessage func(json.RawMessage), opts SubscribeOptions) (Unsubscribe, error)
}

// slot holds the single live subscription handle.
type slot struct {
	configID string
	gen      uint64
	release  Unsubscribe
}

// Subscribe makes configID the one live subscription. Calling it again with
// the same id while a handle is live does nothing. On a change the new
// subscription is acquired first and the previous handle released once, so
// the slot never holds more than one handle. An empty configID releases the
// current handle.
func (c *Controller) Subscribe(ctx context.Context, configID string) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if configID == "" {
		c.releaseLocked()
		return nil
	}
	if c.slot.release != nil && c.slot.configID == configID {
		return nil
	}
	if c.opts.Subscriber == nil {
		return fmt.Errorf("subscribing to %s: no push transport configured", configID)
	}

	c.gen++
	gen := c.gen
	c.liveGen.Store(gen)

	req := SubscribeRequest{Type: c.opts.Namespace + "/subscribe", EntryID: configID}
	release, err := c.opts.Subscriber.Subscribe(ctx, req, func(raw json.RawMessage) {
		c.handlePush(gen, raw)
	}, SubscribeOptions{Resubscribe: true})
	if err != nil {
		// The previous id no longer matches the configuration either.
		c.releaseLocked()
		return fmt.Errorf("subscribing to %s: %w", configID, err)
	}

	prev := c.slot
	c.slot = slot{configID: configID, gen: gen, release: release}
	c.liveID.Store(&configID)
	c.opts.Metrics.live(1)
	if prev.release != nil {
		c.opts.Metrics.live(-1)
		if err := prev.release(); err != nil {
			log.Printf("datasync: unsubscribe %s: %v", prev.configID, err)
		}
	}
	return nil
}

// SetSubscriber swaps the push transport. A subscription held on the old
// transport is released first.
func (c *Controller) SetSubscriber(s Subscriber) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.releaseLocked()
	c.opts.Subscriber = s
}

// Disconnect releases the live subscription, if any.
func (c *Controller) Disconnect() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.releaseLocked()
}

// Subscription returns the config id of the live subscription, or "".
// It does not block on a Subscribe in progress.
func (c *Controller) Subscription() string {
	if id := c.liveID.Load(); id != nil {
		return *id
	}
	return ""
}

func (c *Controller) releaseLocked() {
	c.gen++
	c.liveGen.Store(c.gen)

	prev := c.slot
	c.slot = slot{}
	c.liveID.Store(nil)
	if prev.release == nil {
		return
	}
	c.opts.Metrics.live(-1)
	if err := prev.release(); err != nil {
		log.Printf("datasync: unsubscribe %s: %v", prev.configID, err)
	}
}

// handlePush applies a pushed payload unless it belongs to a replaced
// subscription.
func (c *Controller) handlePush(gen uint64, raw json.RawMessage) {
	if c.liveGen.Load() != gen {
		c.opts.Metrics.push("stale")
		return
	}
	p, err := payload.Decode(bytes.NewReader(raw))
	if err != nil {
		c.opts.Metrics.push("invalid")
		log.Printf("datasync: ignoring push: %v", err)
		return
	}
	c.opts.Metrics.push("applied")
	if c.opts.OnPayload != nil {
		c.opts.OnPayload(p)
	}
}
