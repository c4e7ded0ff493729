package hit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ziadkadry99/topoview/internal/diagram"
)

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	root, err := diagram.Parse(markup)
	require.NoError(t, err)
	return root
}

func byID(t *testing.T, root *html.Node, id string) *html.Node {
	t.Helper()
	found := diagram.FindAll(root, func(n *html.Node) bool { return diagram.AttrOr(n, "id", "") == id })
	require.Len(t, found, 1, "element #%s", id)
	return found[0]
}

func TestResolveOrder(t *testing.T) {
	root := parse(t, `<svg id="canvas">
<g id="g-explicit" data-node-id=" Gateway " aria-label="ignored"><circle id="c1" r="3"/></g>
<g id="g-aria" aria-label=" Core Switch "><rect id="r1"/></g>
<g id="g-text-wrap"><text id="t1"> AP Lobby </text></g>
<g id="g-title"><title> NAS </title><text>fallback</text><circle id="c2" r="1"/></g>
<g id="g-text-child"><text>Printer</text><rect id="r2"/></g>
<g id="plain-id"><rect id="r3"/></g>
<g><rect id="r4"/></g>
<text id="empty-text">   </text>
</svg>`)
	r := NewResolver(root, nil)

	tests := []struct {
		target string
		want   string
		ok     bool
	}{
		{"c1", "Gateway", true},
		{"r1", "Core Switch", true},
		{"t1", "AP Lobby", true},
		{"c2", "NAS", true},
		{"r2", "Printer", true},
		{"r3", "r3", true},
		{"r4", "r4", true},
		{"empty-text", "empty-text", true},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, ok := r.Resolve(Event{Target: byID(t, root, tt.target), Container: root})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveEarlierStepBeatsNearerAncestor(t *testing.T) {
	root := parse(t, `<svg><g data-node-id="Outer"><g aria-label="Inner"><rect id="leaf"/></g></g></svg>`)
	r := NewResolver(root, nil)

	got, ok := r.Resolve(Event{Target: byID(t, root, "leaf")})
	require.True(t, ok)
	assert.Equal(t, "Outer", got)
}

func TestGroupLabelOnlyFromNearestGroup(t *testing.T) {
	root := parse(t, `<svg><g><title>Rack</title><g><rect id="port"/></g></g></svg>`)
	r := NewResolver(root, nil)

	got, ok := r.Resolve(Event{Target: byID(t, root, "port")})
	require.True(t, ok)
	assert.Equal(t, "port", got)
}

func TestResolveStopsAtDiagramRoot(t *testing.T) {
	root := parse(t, `<svg id="topology" aria-label="Network"><rect/></svg>`)
	r := NewResolver(root, nil)

	_, ok := r.Resolve(Event{Target: root.FirstChild})
	assert.False(t, ok)
}

func TestResolveNilWhenNothingMatches(t *testing.T) {
	root := parse(t, `<svg><g><rect/></g></svg>`)
	r := NewResolver(root, nil)

	_, ok := r.Resolve(Event{Target: root.FirstChild.FirstChild})
	assert.False(t, ok)
}

func TestResolveFallsBackToLocatorOnContainer(t *testing.T) {
	root := parse(t, `<svg><g data-node-id="Switch"><rect id="sw" x="0" y="0" width="10" height="10"/></g></svg>`)
	var asked [2]float64
	locator := LocatorFunc(func(x, y float64) *html.Node {
		asked = [2]float64{x, y}
		return byID(t, root, "sw")
	})
	r := NewResolver(root, locator)

	got, ok := r.Resolve(Event{Target: root, Container: root, X: 4, Y: 6})
	require.True(t, ok)
	assert.Equal(t, "Switch", got)
	assert.Equal(t, [2]float64{4, 6}, asked)
}

func TestResolveUsesGeometryByDefault(t *testing.T) {
	root := parse(t, `<svg><g data-node-id="Switch"><rect x="0" y="0" width="10" height="10"/></g></svg>`)
	r := NewResolver(root, nil)

	got, ok := r.Resolve(Event{Container: root, X: 5, Y: 5})
	require.True(t, ok)
	assert.Equal(t, "Switch", got)

	_, ok = r.Resolve(Event{Container: root, X: 50, Y: 50})
	assert.False(t, ok)
}

const edgeDiagram = `<svg viewBox="0 0 120 60">
<path class="edge" d="M10 30 L110 30" stroke="#888" stroke-width="1" data-edge-left="A" data-edge-right="B"/>
<circle cx="10" cy="30" r="4" data-node-id="A"/>
<circle cx="110" cy="30" r="4" data-node-id="B"/>
</svg>`

func TestAugmentAddsHitPath(t *testing.T) {
	root := parse(t, edgeDiagram)

	added := Augment(root, 0)
	require.Equal(t, 1, added)

	hits := diagram.FindAll(root, func(n *html.Node) bool { return diagram.HasClass(n, ClassEdgeHit) })
	require.Len(t, hits, 1)
	h := hits[0]
	assert.Equal(t, "A", diagram.AttrOr(h, AttrEdgeLeft, ""))
	assert.Equal(t, "B", diagram.AttrOr(h, AttrEdgeRight, ""))
	assert.Equal(t, "true", diagram.AttrOr(h, AttrHitTarget, ""))
	assert.Equal(t, "0", diagram.AttrOr(h, "opacity", ""))
	assert.Equal(t, "14", diagram.AttrOr(h, "stroke-width", ""))
	assert.Equal(t, "M10 30 L110 30", diagram.AttrOr(h, "d", ""))
	assert.Equal(t, EdgeID("A", "B"), diagram.AttrOr(h, "data-edge-id", ""))

	orig := diagram.FindAll(root, func(n *html.Node) bool { return diagram.HasClass(n, ClassEdge) })
	require.Len(t, orig, 1)
	assert.Equal(t, h, nextElement(orig[0]))
}

func TestAugmentIsIdempotent(t *testing.T) {
	root := parse(t, edgeDiagram)
	Augment(root, 12)
	assert.Equal(t, 0, Augment(root, 12))

	// A re-parsed, already augmented diagram stays as is.
	again := parse(t, diagram.Render(root))
	assert.Equal(t, 0, Augment(again, 12))
	hits := diagram.FindAll(again, func(n *html.Node) bool { return diagram.HasClass(n, ClassEdgeHit) })
	assert.Len(t, hits, 1)
}

func TestClickInWidenedRegionResolvesEdge(t *testing.T) {
	root := parse(t, edgeDiagram)
	r := NewResolver(root, nil)

	// 4 units off the 1-unit stroke: a miss before augmentation.
	_, ok := r.Resolve(Event{Container: root, X: 60, Y: 34})
	require.False(t, ok)

	Augment(root, DefaultHitWidth)

	got, ok := r.Resolve(Event{Container: root, X: 60, Y: 34})
	require.True(t, ok)
	assert.Equal(t, EdgeID("A", "B"), got)

	// Nodes painted later still win where they overlap the hit-path.
	got, ok = r.Resolve(Event{Container: root, X: 110, Y: 31})
	require.True(t, ok)
	assert.Equal(t, "B", got)
}

func TestClickOnCurvedEdgeFollowsTheCurve(t *testing.T) {
	root := parse(t, `<svg viewBox="0 0 100 100">
<path class="edge" d="M0 0 C0 100 100 100 100 0" fill="none" stroke="#888" stroke-width="1" data-edge-left="A" data-edge-right="B"/>
</svg>`)
	Augment(root, DefaultHitWidth)
	r := NewResolver(root, nil)

	got, ok := r.Resolve(Event{Container: root, X: 50, Y: 74})
	require.True(t, ok)
	assert.Equal(t, EdgeID("A", "B"), got)

	// On the chord between the end points, well away from the drawn curve.
	_, ok = r.Resolve(Event{Container: root, X: 50, Y: 3})
	assert.False(t, ok)
}

func TestSelectionMarking(t *testing.T) {
	root := parse(t, `<svg><g id="g1" class="node"><circle id="c1"/></g><rect id="r1"/><rect id="r2"/></svg>`)

	MarkSelected(byID(t, root, "g1"))
	MarkSelected(byID(t, root, "r1"))
	MarkSelected(byID(t, root, "r2"))

	g := byID(t, root, "g1")
	assert.Equal(t, "true", diagram.AttrOr(g, AttrSelected, ""))
	assert.True(t, diagram.HasClass(g, ClassSelected))
	assert.True(t, diagram.HasClass(g, "node"))

	assert.Equal(t, 3, ClearSelection(root))
	assert.Equal(t, 0, ClearSelection(root))
	for _, id := range []string{"g1", "r1", "r2"} {
		n := byID(t, root, id)
		_, marked := diagram.Attr(n, AttrSelected)
		assert.False(t, marked, id)
		assert.False(t, diagram.HasClass(n, ClassSelected), id)
	}
	assert.True(t, diagram.HasClass(g, "node"))
}

func nextElement(n *html.Node) *html.Node {
	for c := n.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}
