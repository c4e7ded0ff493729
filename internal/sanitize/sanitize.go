// Package sanitize strips executable content from untrusted SVG markup
// before it is mounted in the card.
package sanitize

import (
	"log"
	"strings"

	"golang.org/x/net/html"
)

// blockedElements are removed together with their whole subtree.
var blockedElements = map[string]bool{
	"script":        true,
	"foreignobject": true,
	"iframe":        true,
	"object":        true,
	"embed":         true,
	"applet":        true,
	"frame":         true,
	"frameset":      true,
	"handler":       true,
	"listener":      true,
	"base":          true,
	"link":          true,
	"meta":          true,
}

// animationElements can rewrite another attribute at runtime. They are only
// dropped when they target an href.
var animationElements = map[string]bool{
	"set":              true,
	"animate":          true,
	"animatetransform": true,
	"animatemotion":    true,
}

// executableSchemes are URI schemes that run code when followed.
var executableSchemes = []string{
	"javascript:",
	"vbscript:",
	"livescript:",
	"data:text/html",
}

// SVG returns the first <svg> element of raw with every script-capable
// element and attribute removed. When raw holds no <svg> element the
// result is the empty string.
func SVG(raw string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sanitize: recovered from malformed markup: %v", r)
			out = ""
		}
	}()

	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	root := findSVG(doc)
	if root == nil {
		return ""
	}

	clean(root)

	var b strings.Builder
	if err := html.Render(&b, root); err != nil {
		return ""
	}
	return b.String()
}

// findSVG returns the first svg element in document order.
func findSVG(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, "svg") {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findSVG(c); found != nil {
			return found
		}
	}
	return nil
}

// clean removes blocked children of n and scrubs attributes on n and every
// surviving descendant.
func clean(n *html.Node) {
	n.Attr = cleanAttrs(n.Attr)

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.ElementNode:
			if isBlocked(c) {
				n.RemoveChild(c)
			} else {
				clean(c)
			}
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
		}
		c = next
	}
}

func isBlocked(n *html.Node) bool {
	name := strings.ToLower(n.Data)
	if blockedElements[name] {
		return true
	}
	if animationElements[name] {
		for _, a := range n.Attr {
			if strings.EqualFold(a.Key, "attributename") && strings.HasSuffix(strings.ToLower(strings.TrimSpace(a.Val)), "href") {
				return true
			}
		}
	}
	return false
}

func cleanAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if IsEventHandler(a.Key) || IsExecutableURI(a.Val) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// IsEventHandler reports whether an attribute name is an inline event
// handler such as onclick or onLoad.
func IsEventHandler(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) > 2 && strings.EqualFold(name[:2], "on")
}

// IsExecutableURI reports whether v, once whitespace and control characters
// are dropped and case folded, starts with an executable URI scheme.
func IsExecutableURI(v string) bool {
	var b strings.Builder
	for _, r := range v {
		if r <= ' ' || r == 0x7f {
			continue
		}
		b.WriteRune(r)
		if b.Len() > 32 {
			break
		}
	}
	normalized := strings.ToLower(b.String())
	for _, scheme := range executableSchemes {
		if strings.HasPrefix(normalized, scheme) {
			return true
		}
	}
	return false
}
