package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/topoview/internal/payload"
)

func samplePayload() *payload.GraphPayload {
	return &payload.GraphPayload{
		Edges: []payload.Edge{
			{Left: "Gateway", Right: "Switch"},
			{Left: "Switch", Right: "AP"},
		},
		NodeTypes: map[string]string{"Gateway": "gateway", "Switch": "switch", "AP": "ap"},
		NodeStatus: map[string]payload.NodeStatus{
			"Switch": {EntityID: "switch.core", State: "on"},
		},
		NodeEntities: map[string]string{"AP": "device_tracker.ap"},
		RelatedEntities: map[string][]payload.RelatedEntity{
			"Switch": {{EntityID: "switch.core_port_1", Domain: "switch"}},
		},
		DeviceMACs: map[string]string{"Switch": "aa:bb:cc:00:00:01"},
		ClientMACs: map[string]string{"AP": "aa:bb:cc:00:00:02"},
	}
}

func TestNewState(t *testing.T) {
	s := New()
	assert.Equal(t, Selection{ActiveTab: TabOverview}, s.Selection())
	assert.False(t, s.Modal().Open)
	_, ok := s.Detail()
	assert.False(t, ok)
}

func TestSelectResetsTabOnChange(t *testing.T) {
	s := New()
	s.Select("Switch")
	require.NoError(t, s.SetTab(TabStats))

	s.Select("Switch")
	assert.Equal(t, TabStats, s.Selection().ActiveTab, "reselecting keeps the tab")

	s.Select("Gateway")
	assert.Equal(t, Selection{SelectedNode: "Gateway", ActiveTab: TabOverview}, s.Selection())

	s.Select("")
	assert.Equal(t, "Gateway", s.Selection().SelectedNode)
}

func TestBack(t *testing.T) {
	s := New()
	s.Select("Switch")
	require.NoError(t, s.SetTab(TabActions))
	s.OpenModal("switch.core")

	s.Back()

	assert.Equal(t, Selection{ActiveTab: TabOverview}, s.Selection())
	assert.Equal(t, Modal{}, s.Modal())
}

func TestSetTab(t *testing.T) {
	s := New()
	assert.Error(t, s.SetTab("graphs"))
	assert.Equal(t, TabOverview, s.Selection().ActiveTab)

	for _, tab := range ValidTabs {
		require.NoError(t, s.SetTab(tab))
		assert.Equal(t, tab, s.Selection().ActiveTab)
	}
}

func TestModal(t *testing.T) {
	s := New()
	s.OpenModal("")
	assert.False(t, s.Modal().Open)

	s.OpenModal("switch.core")
	assert.Equal(t, Modal{Open: true, EntityID: "switch.core"}, s.Modal())

	s.CloseModal()
	assert.False(t, s.Modal().Open)
}

func TestApplyPayloadKeepsSelection(t *testing.T) {
	s := New()
	s.ApplyPayload(samplePayload())
	s.Select("Switch")
	require.NoError(t, s.SetTab(TabStats))

	s.ApplyPayload(&payload.GraphPayload{NodeTypes: map[string]string{"Switch": "switch"}})

	assert.Equal(t, Selection{SelectedNode: "Switch", ActiveTab: TabStats}, s.Selection())
	d, ok := s.Detail()
	require.True(t, ok)
	assert.True(t, d.Found)
}

func TestDetailDegradesWhenNodeVanishes(t *testing.T) {
	s := New()
	s.ApplyPayload(samplePayload())
	s.Select("AP")

	s.ApplyPayload(&payload.GraphPayload{Edges: []payload.Edge{{Left: "Gateway", Right: "Switch"}}})

	d, ok := s.Detail()
	require.True(t, ok)
	assert.Equal(t, Detail{Node: "AP"}, d)
	assert.Equal(t, "AP", s.Selection().SelectedNode)
}

func TestDescribe(t *testing.T) {
	p := samplePayload()

	sw := Describe(p, "Switch")
	assert.True(t, sw.Found)
	assert.Equal(t, "switch", sw.Type)
	assert.Equal(t, "switch.core", sw.EntityID)
	require.NotNil(t, sw.Status)
	assert.Equal(t, "on", sw.Status.State)
	assert.Equal(t, "aa:bb:cc:00:00:01", sw.MAC)
	assert.Equal(t, []string{"Gateway", "AP"}, sw.Neighbors)
	assert.Len(t, sw.Edges, 2)
	assert.Len(t, sw.Related, 1)

	ap := Describe(p, "AP")
	assert.Equal(t, "device_tracker.ap", ap.EntityID)
	assert.Equal(t, "aa:bb:cc:00:00:02", ap.MAC)
	assert.Nil(t, ap.Status)

	assert.False(t, Describe(nil, "Switch").Found)
	assert.False(t, Describe(p, "Printer").Found)
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab("actions")
	require.NoError(t, err)
	assert.Equal(t, TabActions, tab)

	_, err = ParseTab("Overview")
	assert.Error(t, err)
}
