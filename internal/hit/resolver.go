// Package hit maps pointer events on the mounted diagram to the logical
// node or edge they refer to.
package hit

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/topoview/internal/diagram"
)

// IDAttrs are the explicit identifier attributes, checked in order.
var IDAttrs = []string{"data-node-id", "data-edge-id", "data-entity-id"}

// Event is the part of a pointer event the resolver needs. X and Y are in
// the diagram's user coordinates.
type Event struct {
	Target    *html.Node
	Container *html.Node
	X, Y      float64
}

// Locator finds the element under a point, the way a browser's
// elementFromPoint does.
type Locator interface {
	ElementAt(x, y float64) *html.Node
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(x, y float64) *html.Node

func (f LocatorFunc) ElementAt(x, y float64) *html.Node { return f(x, y) }

// Step inspects a single element and returns the entity it names. When
// Nearest is set, only the closest ancestor it accepts is examined.
type Step struct {
	Name    string
	Match   func(n *html.Node) (string, bool)
	Nearest func(n *html.Node) bool
}

// Steps is the resolution pipeline. Each step scans from the target up to
// the diagram root before the next step runs; the first match wins.
var Steps = []Step{
	{Name: "identifier", Match: explicitID},
	{Name: "aria-label", Match: attrStep("aria-label")},
	{Name: "text", Match: textLabel},
	{Name: "group", Match: groupLabel, Nearest: isGroup},
	{Name: "id", Match: attrStep("id")},
}

// Resolver resolves events against one mounted diagram.
type Resolver struct {
	root    *html.Node
	locator Locator
	steps   []Step
}

// NewResolver creates a Resolver for the diagram rooted at root. locator
// may be nil, in which case ElementAt over root is used.
func NewResolver(root *html.Node, locator Locator) *Resolver {
	if locator == nil {
		locator = LocatorFunc(func(x, y float64) *html.Node { return diagram.ElementAt(root, x, y) })
	}
	return &Resolver{root: root, locator: locator, steps: Steps}
}

// Root returns the diagram root the resolver works on.
func (r *Resolver) Root() *html.Node { return r.root }

// Resolve returns the entity name for ev.
func (r *Resolver) Resolve(ev Event) (string, bool) {
	_, name, ok := r.ResolveNode(ev)
	return name, ok
}

// ResolveNode returns the element that produced the match together with
// the entity name.
func (r *Resolver) ResolveNode(ev Event) (*html.Node, string, bool) {
	target := ev.Target
	if target == nil || target == ev.Container {
		target = r.locator.ElementAt(ev.X, ev.Y)
	}
	if target == nil {
		return nil, "", false
	}
	return r.ResolveElement(target)
}

// ResolveElement runs the pipeline from el upwards.
func (r *Resolver) ResolveElement(el *html.Node) (*html.Node, string, bool) {
	for _, step := range r.steps {
		for n := el; n != nil && n != r.root; n = n.Parent {
			if n.Type != html.ElementNode {
				continue
			}
			if name, ok := step.Match(n); ok {
				return n, name, true
			}
			if step.Nearest != nil && step.Nearest(n) {
				break
			}
		}
	}
	return nil, "", false
}

func explicitID(n *html.Node) (string, bool) {
	for _, key := range IDAttrs {
		if v, ok := nonEmptyAttr(n, key); ok {
			return v, true
		}
	}
	return "", false
}

func attrStep(key string) func(*html.Node) (string, bool) {
	return func(n *html.Node) (string, bool) { return nonEmptyAttr(n, key) }
}

func textLabel(n *html.Node) (string, bool) {
	if !diagram.IsElement(n, "text") && !diagram.IsElement(n, "tspan") {
		return "", false
	}
	return nonEmpty(diagram.Text(n))
}

func isGroup(n *html.Node) bool { return diagram.IsElement(n, "g") }

func groupLabel(n *html.Node) (string, bool) {
	if !isGroup(n) {
		return "", false
	}
	for _, child := range []string{"title", "text"} {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if diagram.IsElement(c, child) {
				if v, ok := nonEmpty(diagram.Text(c)); ok {
					return v, true
				}
			}
		}
	}
	return "", false
}

func nonEmptyAttr(n *html.Node, key string) (string, bool) {
	v, ok := diagram.Attr(n, key)
	if !ok {
		return "", false
	}
	return nonEmpty(v)
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
