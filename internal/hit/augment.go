package hit

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/topoview/internal/diagram"
)

const (
	AttrEdgeLeft  = "data-edge-left"
	AttrEdgeRight = "data-edge-right"
	AttrHitTarget = "data-hit-target"
	AttrAugmented = "data-hit-augmented"
	AttrSelected  = "data-selected"

	ClassEdge     = "edge"
	ClassEdgeHit  = "edge-hit"
	ClassSelected = "selected"

	// DefaultHitWidth is the stroke width of generated hit-paths.
	DefaultHitWidth = 14
)

// EdgeID names the edge between left and right when the diagram does not
// carry an explicit data-edge-id.
func EdgeID(left, right string) string {
	return left + "~" + right
}

// Augment inserts an invisible, wide hit-path after every edge stroke path
// under root and returns how many were added. Edges already augmented are
// skipped, so running it twice adds nothing.
func Augment(root *html.Node, width float64) int {
	if width <= 0 {
		width = DefaultHitWidth
	}
	added := 0
	for _, edge := range diagram.FindAll(root, isEdgePath) {
		if edge.Parent == nil {
			continue
		}
		edge.Parent.InsertBefore(hitPath(edge, width), edge.NextSibling)
		diagram.SetAttr(edge, AttrAugmented, "true")
		added++
	}
	return added
}

func isEdgePath(n *html.Node) bool {
	if !diagram.IsElement(n, "path") {
		return false
	}
	if _, done := diagram.Attr(n, AttrAugmented); done {
		return false
	}
	if _, isHit := diagram.Attr(n, AttrHitTarget); isHit || diagram.HasClass(n, ClassEdgeHit) {
		return false
	}
	_, hasLeft := diagram.Attr(n, AttrEdgeLeft)
	_, hasRight := diagram.Attr(n, AttrEdgeRight)
	return (hasLeft && hasRight) || diagram.HasClass(n, ClassEdge)
}

func hitPath(edge *html.Node, width float64) *html.Node {
	left := diagram.AttrOr(edge, AttrEdgeLeft, "")
	right := diagram.AttrOr(edge, AttrEdgeRight, "")
	id := diagram.AttrOr(edge, "data-edge-id", "")
	if id == "" && left != "" && right != "" {
		id = EdgeID(left, right)
	}

	p := diagram.Element("path",
		"d", diagram.AttrOr(edge, "d", ""),
		"class", ClassEdgeHit,
		"fill", "none",
		"stroke", "transparent",
		"stroke-width", strconv.FormatFloat(width, 'f', -1, 64),
		"opacity", "0",
		AttrHitTarget, "true",
	)
	p.Namespace = edge.Namespace
	if t, ok := diagram.Attr(edge, "transform"); ok {
		diagram.SetAttr(p, "transform", t)
	}
	if left != "" {
		diagram.SetAttr(p, AttrEdgeLeft, left)
	}
	if right != "" {
		diagram.SetAttr(p, AttrEdgeRight, right)
	}
	if id != "" {
		diagram.SetAttr(p, "data-edge-id", id)
	}
	return p
}

// MarkSelected flags el as the current selection.
func MarkSelected(el *html.Node) {
	if el == nil || el.Type != html.ElementNode {
		return
	}
	diagram.SetAttr(el, AttrSelected, "true")
	diagram.AddClass(el, ClassSelected)
}

// ClearSelection unmarks every selected element under root and returns how
// many were cleared.
func ClearSelection(root *html.Node) int {
	marked := diagram.FindAll(root, func(n *html.Node) bool {
		_, ok := diagram.Attr(n, AttrSelected)
		return ok || diagram.HasClass(n, ClassSelected)
	})
	for _, n := range marked {
		diagram.RemoveAttr(n, AttrSelected)
		diagram.RemoveClass(n, ClassSelected)
	}
	return len(marked)
}
