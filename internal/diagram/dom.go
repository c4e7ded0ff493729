// Package diagram provides the small DOM toolkit the viewport engine works
// with: parsing sanitized markup into an x/net/html tree, attribute and
// class helpers, and geometric hit testing of SVG shapes.
package diagram

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses sanitized SVG markup and returns its svg element. The
// returned node has no parent; callers attach it where needed.
func Parse(markup string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("parsing diagram: %w", err)
	}
	for _, n := range nodes {
		if IsElement(n, "svg") {
			return n, nil
		}
	}
	return nil, fmt.Errorf("parsing diagram: no svg element")
}

// Render serialises n and its subtree.
func Render(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// Element creates a detached element with the given attributes given as
// key/value pairs.
func Element(name string, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name))}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

// IsElement reports whether n is an element with the given local name,
// compared case-insensitively.
func IsElement(n *html.Node, name string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, name)
}

// Attr returns the value of the attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when it is absent.
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// SetAttr sets or replaces the attribute key on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// Classes returns the whitespace-separated class list of n.
func Classes(n *html.Node) []string {
	return strings.Fields(AttrOr(n, "class", ""))
}

// HasClass reports whether n carries class c.
func HasClass(n *html.Node, c string) bool {
	for _, have := range Classes(n) {
		if have == c {
			return true
		}
	}
	return false
}

// AddClass adds c to the class list of n if missing.
func AddClass(n *html.Node, c string) {
	if HasClass(n, c) {
		return
	}
	SetAttr(n, "class", strings.TrimSpace(strings.Join(append(Classes(n), c), " ")))
}

// RemoveClass drops c from the class list of n. The class attribute is
// removed entirely once empty.
func RemoveClass(n *html.Node, c string) {
	var kept []string
	for _, have := range Classes(n) {
		if have != c {
			kept = append(kept, have)
		}
	}
	if len(kept) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// Text returns the concatenated text content of n's subtree.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	if n != nil {
		walk(n)
	}
	return b.String()
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the subtree of the visited node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// FindAll returns every element under root (inclusive) matched by pred.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == root {
			return true
		}
	}
	return false
}

// ClosestWithClass returns the nearest element from n upwards carrying
// class c.
func ClosestWithClass(n *html.Node, c string) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && HasClass(p, c) {
			return p
		}
	}
	return nil
}
