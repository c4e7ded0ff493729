// Package payload defines the JSON document that accompanies a topology
// diagram: edges, node types, status and related entities.
package payload

// Edge is a link between two named nodes.
type Edge struct {
	Left     string `json:"left" validate:"required"`
	Right    string `json:"right" validate:"required"`
	Label    string `json:"label,omitempty"`
	PoE      *bool  `json:"poe,omitempty"`
	Wireless *bool  `json:"wireless,omitempty"`
	Speed    *int   `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Channel  *int   `json:"channel,omitempty" validate:"omitempty,gte=0"`
}

// NodeStatus is the state of the entity backing a node.
type NodeStatus struct {
	EntityID    string `json:"entity_id" validate:"required"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed,omitempty"`
}

// RelatedEntity is an entity attached to a node, such as a port switch or
// a sensor.
type RelatedEntity struct {
	EntityID     string `json:"entity_id" validate:"required"`
	Domain       string `json:"domain,omitempty"`
	State        string `json:"state,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// GraphPayload is an immutable snapshot. A new fetch or push replaces it
// wholesale.
type GraphPayload struct {
	Edges           []Edge                     `json:"edges" validate:"dive"`
	NodeTypes       map[string]string          `json:"node_types"`
	NodeStatus      map[string]NodeStatus      `json:"node_status,omitempty" validate:"dive"`
	NodeEntities    map[string]string          `json:"node_entities,omitempty"`
	RelatedEntities map[string][]RelatedEntity `json:"related_entities,omitempty" validate:"dive,dive"`
	DeviceMACs      map[string]string          `json:"device_macs,omitempty"`
	ClientMACs      map[string]string          `json:"client_macs,omitempty"`
}

// HasNode reports whether name appears anywhere in the payload.
func (p *GraphPayload) HasNode(name string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.NodeTypes[name]; ok {
		return true
	}
	for _, e := range p.Edges {
		if e.Left == name || e.Right == name {
			return true
		}
	}
	return false
}

// EdgesOf returns the edges touching name.
func (p *GraphPayload) EdgesOf(name string) []Edge {
	if p == nil {
		return nil
	}
	var out []Edge
	for _, e := range p.Edges {
		if e.Left == name || e.Right == name {
			out = append(out, e)
		}
	}
	return out
}

// Neighbors returns the names linked to name, in edge order.
func (p *GraphPayload) Neighbors(name string) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range p.EdgesOf(name) {
		other := e.Left
		if other == name {
			other = e.Right
		}
		if !seen[other] {
			seen[other] = true
			out = append(out, other)
		}
	}
	return out
}
