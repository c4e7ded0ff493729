// Package panel holds the selection and detail panel state read by the
// presentation layer: the selected node, the active tab and the entity modal.
package panel

import (
	"fmt"

	"github.com/ziadkadry99/topoview/internal/payload"
)

// Tab is a detail panel tab.
type Tab string

const (
	TabOverview Tab = "overview"
	TabStats    Tab = "stats"
	TabActions  Tab = "actions"
)

// ValidTabs lists the tabs in display order.
var ValidTabs = []Tab{TabOverview, TabStats, TabActions}

// ParseTab converts a tab name.
func ParseTab(s string) (Tab, error) {
	for _, t := range ValidTabs {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q (expected overview, stats or actions)", s)
}

// Selection is the selected node and the tab shown for it.
type Selection struct {
	SelectedNode string `json:"selected_node,omitempty"`
	ActiveTab    Tab    `json:"active_tab"`
}

// Modal is the entity detail modal.
type Modal struct {
	Open     bool   `json:"open"`
	EntityID string `json:"entity_id,omitempty"`
}

// Detail is what the panel shows for the selected node. Found is false when
// the node is absent from the current payload; the other fields are then
// empty and the panel shows "no data for this node".
type Detail struct {
	Node      string                  `json:"node"`
	Found     bool                    `json:"found"`
	Type      string                  `json:"type,omitempty"`
	EntityID  string                  `json:"entity_id,omitempty"`
	Status    *payload.NodeStatus     `json:"status,omitempty"`
	MAC       string                  `json:"mac,omitempty"`
	Edges     []payload.Edge          `json:"edges,omitempty"`
	Neighbors []string                `json:"neighbors,omitempty"`
	Related   []payload.RelatedEntity `json:"related,omitempty"`
}
