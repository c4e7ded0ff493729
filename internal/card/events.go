package card

import (
	"golang.org/x/net/html"

	"github.com/ziadkadry99/topoview/internal/diagram"
	"github.com/ziadkadry99/topoview/internal/gesture"
	"github.com/ziadkadry99/topoview/internal/panel"
	"github.com/ziadkadry99/topoview/internal/payload"
	"github.com/ziadkadry99/topoview/internal/viewport"
)

// EventType is a DOM-style input event name.
type EventType string

const (
	PointerDown   EventType = "pointerdown"
	PointerMove   EventType = "pointermove"
	PointerUp     EventType = "pointerup"
	PointerCancel EventType = "pointercancel"
	Wheel         EventType = "wheel"
	Click         EventType = "click"
)

// Event is an input event in container coordinates. Target is the element
// the host hit, or nil to let the card locate it.
type Event struct {
	Type      EventType  `json:"type"`
	PointerID int        `json:"pointer_id,omitempty"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	DeltaY    float64    `json:"delta_y,omitempty"`
	Target    *html.Node `json:"-"`
}

// Dispatch routes ev to the gesture engine or, for clicks on the control
// strip, to the matching button action. It reports whether the host should
// suppress the default browser behaviour.
func (c *Card) Dispatch(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := gesture.PointerEvent{PointerID: ev.PointerID, X: ev.X, Y: ev.Y, Target: ev.Target}
	switch ev.Type {
	case PointerDown:
		c.engine.PointerDown(p)
	case PointerMove:
		c.engine.PointerMove(p)
	case PointerUp:
		c.engine.PointerUp(p)
	case PointerCancel:
		c.engine.PointerCancel(p)
	case Wheel:
		return c.engine.Wheel(gesture.WheelEvent{DeltaY: ev.DeltaY, Target: ev.Target})
	case Click:
		switch c.shell.action(ev.Target) {
		case ActionZoomIn:
			c.engine.ZoomIn()
		case ActionZoomOut:
			c.engine.ZoomOut()
		case ActionReset:
			c.engine.ResetView()
		default:
			c.engine.Click(p)
		}
	}
	return false
}

// Snapshot is everything the presentation layer renders from.
type Snapshot struct {
	Markup       string                `json:"markup"`
	Transform    viewport.Transform    `json:"transform"`
	Phase        string                `json:"phase"`
	Selection    panel.Selection       `json:"selection"`
	Detail       *panel.Detail         `json:"detail,omitempty"`
	Modal        panel.Modal           `json:"modal"`
	Tooltip      gesture.Tooltip       `json:"tooltip"`
	Message      string                `json:"message,omitempty"`
	MissingAuth  bool                  `json:"missing_auth"`
	NoData       bool                  `json:"no_data"`
	Payload      *payload.GraphPayload `json:"payload,omitempty"`
	Subscription string                `json:"subscription,omitempty"`
}

// Snapshot renders the current state.
func (c *Card) Snapshot() Snapshot {
	// Read before c.mu: a push applied during a subscribe needs c.mu.
	subscription := c.sync.Subscription()

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Markup:       diagram.Render(c.shell.card),
		Transform:    c.engine.Transform(),
		Phase:        c.engine.State().String(),
		Selection:    c.panel.Selection(),
		Modal:        c.panel.Modal(),
		Tooltip:      c.engine.Tooltip(),
		Message:      c.messageLocked(),
		MissingAuth:  c.missingAuth,
		NoData:       c.noData,
		Payload:      c.panel.Payload(),
		Subscription: subscription,
	}
	if d, ok := c.panel.Detail(); ok {
		s.Detail = &d
	}
	return s
}
