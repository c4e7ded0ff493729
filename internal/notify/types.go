package notify

import "time"

// EventType names an outbound event.
type EventType string

const (
	// TypeMoreInfo asks the host to open its own detail dialog for an entity.
	TypeMoreInfo EventType = "more-info"
)

// DefaultDelay is how long an event waits before it is emitted. It matches
// the lifetime of the "copied" toast shown on the triggering click.
const DefaultDelay = 1500 * time.Millisecond

// Event is a single outbound notification for the host.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	EntityID  string    `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
}
