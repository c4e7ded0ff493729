package card

import (
	"golang.org/x/net/html"

	"github.com/ziadkadry99/topoview/internal/diagram"
	"github.com/ziadkadry99/topoview/internal/gesture"
	"github.com/ziadkadry99/topoview/internal/viewport"
)

const (
	ClassCard    = "topology-card"
	ClassDiagram = "diagram"
	ClassMessage = "card-message"

	AttrAction = "data-action"

	ActionZoomIn  = "zoom-in"
	ActionZoomOut = "zoom-out"
	ActionReset   = "reset"
)

// shell is the card's fixed markup: the control strip, the transformed
// diagram container and the inline message line.
type shell struct {
	card     *html.Node
	controls *html.Node
	view     *html.Node
	message  *html.Node
}

func newShell() *shell {
	s := &shell{
		card:     diagram.Element("div", "class", ClassCard),
		controls: diagram.Element("div", "class", gesture.ControlsClass),
		view:     diagram.Element("div", "class", ClassDiagram),
		message:  diagram.Element("div", "class", ClassMessage, "hidden", ""),
	}
	for _, b := range []struct{ action, label, title string }{
		{ActionZoomIn, "+", "Zoom in"},
		{ActionZoomOut, "-", "Zoom out"},
		{ActionReset, "Reset", "Reset view"},
	} {
		btn := diagram.Element("button", "type", "button", AttrAction, b.action, "title", b.title)
		btn.AppendChild(&html.Node{Type: html.TextNode, Data: b.label})
		s.controls.AppendChild(btn)
	}
	s.card.AppendChild(s.controls)
	s.card.AppendChild(s.view)
	s.card.AppendChild(s.message)
	s.setTransform(viewport.Identity)
	return s
}

func (s *shell) setTransform(t viewport.Transform) {
	diagram.SetAttr(s.view, "style", "transform: "+t.CSS()+"; transform-origin: 0 0")
}

// mount replaces the diagram container's content with root. A nil root
// empties it.
func (s *shell) mount(root *html.Node) {
	for c := s.view.FirstChild; c != nil; {
		next := c.NextSibling
		s.view.RemoveChild(c)
		c = next
	}
	if root != nil {
		s.view.AppendChild(root)
	}
}

func (s *shell) setMessage(msg string) {
	for c := s.message.FirstChild; c != nil; {
		next := c.NextSibling
		s.message.RemoveChild(c)
		c = next
	}
	if msg == "" {
		diagram.SetAttr(s.message, "hidden", "")
		return
	}
	diagram.RemoveAttr(s.message, "hidden")
	s.message.AppendChild(&html.Node{Type: html.TextNode, Data: msg})
}

// action returns the control action n belongs to, if any.
func (s *shell) action(n *html.Node) string {
	for p := n; p != nil && p != s.card; p = p.Parent {
		if v, ok := diagram.Attr(p, AttrAction); ok && diagram.Contains(s.controls, p) {
			return v
		}
	}
	return ""
}

// control returns the button for action.
func (s *shell) control(action string) *html.Node {
	for c := s.controls.FirstChild; c != nil; c = c.NextSibling {
		if diagram.AttrOr(c, AttrAction, "") == action {
			return c
		}
	}
	return nil
}
