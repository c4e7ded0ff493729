package panel

import (
	"sync"

	"github.com/ziadkadry99/topoview/internal/payload"
)

// State is the mutable panel record. It is updated by the gesture engine
// (select, back) and by payload loads, and is safe for concurrent use.
type State struct {
	mu      sync.Mutex
	sel     Selection
	modal   Modal
	payload *payload.GraphPayload
}

// New returns an empty state on the overview tab.
func New() *State {
	return &State{sel: Selection{ActiveTab: TabOverview}}
}

// Select makes node the selected node. Switching to a different node
// returns the panel to the overview tab.
func (s *State) Select(node string) {
	if node == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.SelectedNode != node {
		s.sel = Selection{SelectedNode: node, ActiveTab: TabOverview}
	}
}

// Back clears the selection and closes the modal.
func (s *State) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = Selection{ActiveTab: TabOverview}
	s.modal = Modal{}
}

// SetTab switches the active tab.
func (s *State) SetTab(t Tab) error {
	if _, err := ParseTab(string(t)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.ActiveTab = t
	return nil
}

// OpenModal shows the modal for an entity.
func (s *State) OpenModal(entityID string) {
	if entityID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modal = Modal{Open: true, EntityID: entityID}
}

func (s *State) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modal = Modal{}
}

// ApplyPayload replaces the payload wholesale. The selection is kept even
// if the selected node is no longer present.
func (s *State) ApplyPayload(p *payload.GraphPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = p
}

func (s *State) Payload() *payload.GraphPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

func (s *State) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

func (s *State) Modal() Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal
}

// Detail describes the selected node against the current payload. It
// returns false when nothing is selected.
func (s *State) Detail() (Detail, bool) {
	s.mu.Lock()
	node, p := s.sel.SelectedNode, s.payload
	s.mu.Unlock()
	if node == "" {
		return Detail{}, false
	}
	return Describe(p, node), true
}

// Describe looks node up in p. It never fails; a missing payload or node
// yields Found=false.
func Describe(p *payload.GraphPayload, node string) Detail {
	d := Detail{Node: node}
	if p == nil {
		return d
	}
	status, hasStatus := p.NodeStatus[node]
	if !p.HasNode(node) && !hasStatus {
		return d
	}

	d.Found = true
	d.Type = p.NodeTypes[node]
	if hasStatus {
		d.Status = &status
		d.EntityID = status.EntityID
	}
	if id, ok := p.NodeEntities[node]; ok && id != "" {
		d.EntityID = id
	}
	if mac, ok := p.DeviceMACs[node]; ok {
		d.MAC = mac
	} else {
		d.MAC = p.ClientMACs[node]
	}
	d.Edges = p.EdgesOf(node)
	d.Neighbors = p.Neighbors(node)
	d.Related = p.RelatedEntities[node]
	return d
}
