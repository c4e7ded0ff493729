package diagram

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// nonRendered elements never receive pointer hits and their subtrees are
// skipped by ElementAt.
var nonRendered = map[string]bool{
	"defs":           true,
	"title":          true,
	"desc":           true,
	"style":          true,
	"metadata":       true,
	"clippath":       true,
	"mask":           true,
	"marker":         true,
	"symbol":         true,
	"pattern":        true,
	"lineargradient": true,
	"radialgradient": true,
	"filter":         true,
}

var (
	numberRe    = regexp.MustCompile(`[-+]?(?:\d*\.\d+|\d+\.?)(?:[eE][-+]?\d+)?`)
	pathTokenRe = regexp.MustCompile(`[MmLlHhVvZzCcSsQqTtAa]|[-+]?(?:\d*\.\d+|\d+\.?)(?:[eE][-+]?\d+)?`)
	transformRe = regexp.MustCompile(`(matrix|translate|scale)\s*\(([^)]*)\)`)
)

// affine is an axis-aligned transform: x' = a*x + e, y' = d*y + f.
// Rotation and skew are not modelled.
type affine struct{ a, d, e, f float64 }

var identity = affine{a: 1, d: 1}

func (m affine) apply(x, y float64) (float64, float64) {
	return m.a*x + m.e, m.d*y + m.f
}

// mul returns m*n, i.e. n applied first.
func (m affine) mul(n affine) affine {
	return affine{
		a: m.a * n.a,
		d: m.d * n.d,
		e: m.a*n.e + m.e,
		f: m.d*n.f + m.f,
	}
}

func (m affine) meanScale() float64 {
	return (math.Abs(m.a) + math.Abs(m.d)) / 2
}

func parseTransform(s string) affine {
	m := identity
	for _, op := range transformRe.FindAllStringSubmatch(s, -1) {
		args := parseNumbers(op[2])
		switch op[1] {
		case "translate":
			if len(args) == 0 {
				continue
			}
			ty := 0.0
			if len(args) > 1 {
				ty = args[1]
			}
			m = m.mul(affine{a: 1, d: 1, e: args[0], f: ty})
		case "scale":
			if len(args) == 0 {
				continue
			}
			sy := args[0]
			if len(args) > 1 {
				sy = args[1]
			}
			m = m.mul(affine{a: args[0], d: sy})
		case "matrix":
			if len(args) == 6 {
				m = m.mul(affine{a: args[0], d: args[3], e: args[4], f: args[5]})
			}
		}
	}
	return m
}

func parseNumbers(s string) []float64 {
	var out []float64
	for _, tok := range numberRe.FindAllString(s, -1) {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func numAttr(n *html.Node, key string, def float64) float64 {
	v, ok := Attr(n, key)
	if !ok {
		return def
	}
	nums := parseNumbers(v)
	if len(nums) == 0 {
		return def
	}
	return nums[0]
}

type point struct{ x, y float64 }

// ElementAt returns the topmost rendered element under the point (x, y) in
// root's user coordinates, or root itself when nothing is hit. It stands in
// for a browser's elementFromPoint over the mounted diagram.
//
// Shapes are tested with their attribute geometry only: strokes of path,
// line and polyline elements using stroke-width (default 1) unless stroke is
// "none", and interiors of circle, ellipse, rect, polygon, image and text
// boxes unless fill is "none". Elements with pointer-events="none",
// display="none" or visibility="hidden" are skipped; opacity is not.
func ElementAt(root *html.Node, x, y float64) *html.Node {
	var hit *html.Node
	var visit func(n *html.Node, m affine)
	visit = func(n *html.Node, m affine) {
		if n.Type != html.ElementNode {
			return
		}
		name := strings.ToLower(n.Data)
		if nonRendered[name] || AttrOr(n, "display", "") == "none" {
			return
		}
		if t, ok := Attr(n, "transform"); ok {
			m = m.mul(parseTransform(t))
		}
		if receivesPointer(n) && shapeContains(n, name, m, point{x, y}) {
			hit = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, m)
		}
	}
	if root == nil {
		return nil
	}
	visit(root, identity)
	if hit == nil {
		return root
	}
	return hit
}

func receivesPointer(n *html.Node) bool {
	if AttrOr(n, "pointer-events", "") == "none" {
		return false
	}
	return AttrOr(n, "visibility", "") != "hidden"
}

func shapeContains(n *html.Node, name string, m affine, p point) bool {
	stroked := AttrOr(n, "stroke", "") != "none"
	filled := AttrOr(n, "fill", "") != "none"
	half := math.Max(numAttr(n, "stroke-width", 1), 1) * m.meanScale() / 2

	switch name {
	case "line":
		a := pt(m, numAttr(n, "x1", 0), numAttr(n, "y1", 0))
		b := pt(m, numAttr(n, "x2", 0), numAttr(n, "y2", 0))
		return stroked && segmentDistance(p, a, b) <= half
	case "polyline", "polygon":
		pts := transformAll(m, pairs(parseNumbers(AttrOr(n, "points", ""))))
		if name == "polygon" && len(pts) > 2 {
			pts = append(pts, pts[0])
			if filled && polygonContains(pts, p) {
				return true
			}
		}
		return stroked && polylineDistance(pts, p) <= half
	case "path":
		for _, sub := range parsePath(AttrOr(n, "d", "")) {
			pts := transformAll(m, sub.points)
			if stroked && polylineDistance(pts, p) <= half {
				return true
			}
			if _, explicit := Attr(n, "fill"); explicit && filled && sub.closed && polygonContains(pts, p) {
				return true
			}
		}
		return false
	case "circle":
		c := pt(m, numAttr(n, "cx", 0), numAttr(n, "cy", 0))
		r := numAttr(n, "r", 0) * m.meanScale()
		d := math.Hypot(p.x-c.x, p.y-c.y)
		return (filled && d <= r) || (stroked && math.Abs(d-r) <= half)
	case "ellipse":
		c := pt(m, numAttr(n, "cx", 0), numAttr(n, "cy", 0))
		rx := numAttr(n, "rx", 0) * math.Abs(m.a)
		ry := numAttr(n, "ry", 0) * math.Abs(m.d)
		if rx == 0 || ry == 0 {
			return false
		}
		dx, dy := (p.x-c.x)/rx, (p.y-c.y)/ry
		return filled && dx*dx+dy*dy <= 1
	case "rect", "image", "use":
		x0, y0 := numAttr(n, "x", 0), numAttr(n, "y", 0)
		w, h := numAttr(n, "width", 0), numAttr(n, "height", 0)
		return (filled || name != "rect") && boxContains(m, x0, y0, x0+w, y0+h, p)
	case "text":
		size := numAttr(n, "font-size", 12)
		w := 0.6 * size * float64(utf8.RuneCountInString(strings.TrimSpace(Text(n))))
		x0, y0 := numAttr(n, "x", 0), numAttr(n, "y", 0)
		switch AttrOr(n, "text-anchor", "start") {
		case "middle":
			x0 -= w / 2
		case "end":
			x0 -= w
		}
		return w > 0 && boxContains(m, x0, y0-size, x0+w, y0+size*0.25, p)
	}
	return false
}

func pt(m affine, x, y float64) point {
	tx, ty := m.apply(x, y)
	return point{tx, ty}
}

func pairs(nums []float64) []point {
	var out []point
	for i := 0; i+1 < len(nums); i += 2 {
		out = append(out, point{nums[i], nums[i+1]})
	}
	return out
}

func transformAll(m affine, pts []point) []point {
	out := make([]point, len(pts))
	for i, q := range pts {
		out[i] = pt(m, q.x, q.y)
	}
	return out
}

func boxContains(m affine, x0, y0, x1, y1 float64, p point) bool {
	a, b := pt(m, x0, y0), pt(m, x1, y1)
	minX, maxX := math.Min(a.x, b.x), math.Max(a.x, b.x)
	minY, maxY := math.Min(a.y, b.y), math.Max(a.y, b.y)
	return p.x >= minX && p.x <= maxX && p.y >= minY && p.y <= maxY
}

func segmentDistance(p, a, b point) float64 {
	dx, dy := b.x-a.x, b.y-a.y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.x-a.x, p.y-a.y)
	}
	t := ((p.x-a.x)*dx + (p.y-a.y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.x-(a.x+t*dx), p.y-(a.y+t*dy))
}

func polylineDistance(pts []point, p point) float64 {
	best := math.Inf(1)
	if len(pts) == 1 {
		return math.Hypot(p.x-pts[0].x, p.y-pts[0].y)
	}
	for i := 0; i+1 < len(pts); i++ {
		best = math.Min(best, segmentDistance(p, pts[i], pts[i+1]))
	}
	return best
}

func polygonContains(pts []point, p point) bool {
	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.y > p.y) != (b.y > p.y) && p.x < (b.x-a.x)*(p.y-a.y)/(b.y-a.y)+a.x {
			inside = !inside
		}
	}
	return inside
}

type subpath struct {
	points []point
	closed bool
}

// curveSamples is how many segments a curve or arc is flattened into.
const curveSamples = 16

// parsePath flattens path data into polylines. Béziers and arcs are
// sampled at curveSamples points each.
func parsePath(d string) []subpath {
	tokens := pathTokenRe.FindAllString(d, -1)
	var (
		out      []subpath
		cur      *subpath
		cmd      byte
		x, y     float64
		startX   float64
		startY   float64
		i        int
		consumed bool
		// last control point of the previous curve, for S and T reflection
		ctrlX, ctrlY float64
		ctrlKind     byte
	)
	next := func(k int) ([]float64, bool) {
		if i+k > len(tokens) {
			return nil, false
		}
		vals := make([]float64, k)
		for j := 0; j < k; j++ {
			f, err := strconv.ParseFloat(tokens[i+j], 64)
			if err != nil {
				return nil, false
			}
			vals[j] = f
		}
		i += k
		return vals, true
	}
	lineTo := func(nx, ny float64) {
		if cur == nil {
			out = append(out, subpath{points: []point{{x, y}}})
			cur = &out[len(out)-1]
		}
		x, y = nx, ny
		cur.points = append(cur.points, point{x, y})
	}
	curveTo := func(pts []point) {
		for _, pt := range pts {
			lineTo(pt.x, pt.y)
		}
	}
	reflect := func(kind byte) (float64, float64) {
		if ctrlKind == kind {
			return 2*x - ctrlX, 2*y - ctrlY
		}
		return x, y
	}

	for i < len(tokens) {
		tok := tokens[i]
		if len(tok) == 1 && strings.ContainsAny(tok, "MmLlHhVvZzCcSsQqTtAa") {
			cmd = tok[0]
			i++
			consumed = false
			if cmd == 'Z' || cmd == 'z' {
				ctrlKind = 0
				if cur != nil {
					cur.closed = true
					x, y = startX, startY
					cur.points = append(cur.points, point{x, y})
					cur = nil
				}
				continue
			}
		} else if cmd == 0 {
			break
		}

		rel := cmd >= 'a'
		ox, oy := 0.0, 0.0
		if rel {
			ox, oy = x, y
		}
		kind := byte(0)
		switch cmd | 0x20 {
		case 'm':
			v, ok := next(2)
			if !ok {
				return out
			}
			if consumed {
				lineTo(ox+v[0], oy+v[1])
				ctrlKind = 0
				continue
			}
			x, y = ox+v[0], oy+v[1]
			startX, startY = x, y
			out = append(out, subpath{points: []point{{x, y}}})
			cur = &out[len(out)-1]
			consumed = true
		case 'l':
			v, ok := next(2)
			if !ok {
				return out
			}
			lineTo(ox+v[0], oy+v[1])
		case 't':
			v, ok := next(2)
			if !ok {
				return out
			}
			cx, cy := reflect('q')
			curveTo(quadratic(point{x, y}, point{cx, cy}, point{ox + v[0], oy + v[1]}))
			ctrlX, ctrlY, kind = cx, cy, 'q'
		case 'h':
			v, ok := next(1)
			if !ok {
				return out
			}
			lineTo(ox+v[0], y)
		case 'v':
			v, ok := next(1)
			if !ok {
				return out
			}
			lineTo(x, oy+v[0])
		case 'c':
			v, ok := next(6)
			if !ok {
				return out
			}
			c1, c2 := point{ox + v[0], oy + v[1]}, point{ox + v[2], oy + v[3]}
			curveTo(cubic(point{x, y}, c1, c2, point{ox + v[4], oy + v[5]}))
			ctrlX, ctrlY, kind = c2.x, c2.y, 'c'
		case 's':
			v, ok := next(4)
			if !ok {
				return out
			}
			cx, cy := reflect('c')
			c2 := point{ox + v[0], oy + v[1]}
			curveTo(cubic(point{x, y}, point{cx, cy}, c2, point{ox + v[2], oy + v[3]}))
			ctrlX, ctrlY, kind = c2.x, c2.y, 'c'
		case 'q':
			v, ok := next(4)
			if !ok {
				return out
			}
			c := point{ox + v[0], oy + v[1]}
			curveTo(quadratic(point{x, y}, c, point{ox + v[2], oy + v[3]}))
			ctrlX, ctrlY, kind = c.x, c.y, 'q'
		case 'a':
			v, ok := next(7)
			if !ok {
				return out
			}
			curveTo(arc(point{x, y}, v[0], v[1], v[2], v[3] != 0, v[4] != 0, point{ox + v[5], oy + v[6]}))
		default:
			i++
		}
		ctrlKind = kind
	}
	return out
}

func cubic(p0, p1, p2, p3 point) []point {
	pts := make([]point, 0, curveSamples)
	for k := 1; k <= curveSamples; k++ {
		t := float64(k) / curveSamples
		u := 1 - t
		a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
		pts = append(pts, point{
			a*p0.x + b*p1.x + c*p2.x + d*p3.x,
			a*p0.y + b*p1.y + c*p2.y + d*p3.y,
		})
	}
	return pts
}

func quadratic(p0, p1, p2 point) []point {
	pts := make([]point, 0, curveSamples)
	for k := 1; k <= curveSamples; k++ {
		t := float64(k) / curveSamples
		u := 1 - t
		a, b, c := u*u, 2*u*t, t*t
		pts = append(pts, point{a*p0.x + b*p1.x + c*p2.x, a*p0.y + b*p1.y + c*p2.y})
	}
	return pts
}

// arc samples an elliptical arc given in SVG endpoint form, converting it
// to center form first. Degenerate radii give a straight line.
func arc(p0 point, rx, ry, rotation float64, large, sweep bool, p1 point) []point {
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 || (p0.x == p1.x && p0.y == p1.y) {
		return []point{p1}
	}
	phi := rotation * math.Pi / 180
	sin, cos := math.Sincos(phi)

	dx, dy := (p0.x-p1.x)/2, (p0.y-p1.y)/2
	x1p := cos*dx + sin*dy
	y1p := -sin*dx + cos*dy

	if l := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry); l > 1 {
		s := math.Sqrt(l)
		rx, ry = rx*s, ry*s
	}

	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	coef := math.Sqrt(math.Max(0, num/den))
	if large == sweep {
		coef = -coef
	}
	cxp := coef * rx * y1p / ry
	cyp := -coef * ry * x1p / rx
	cx := cos*cxp - sin*cyp + (p0.x+p1.x)/2
	cy := sin*cxp + cos*cyp + (p0.y+p1.y)/2

	theta1 := math.Atan2((y1p-cyp)/ry, (x1p-cxp)/rx)
	theta2 := math.Atan2((-y1p-cyp)/ry, (-x1p-cxp)/rx)
	delta := theta2 - theta1
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	pts := make([]point, 0, curveSamples)
	for k := 1; k < curveSamples; k++ {
		a := theta1 + delta*float64(k)/curveSamples
		sa, ca := math.Sincos(a)
		pts = append(pts, point{
			cos*rx*ca - sin*ry*sa + cx,
			sin*rx*ca + cos*ry*sa + cy,
		})
	}
	return append(pts, p1)
}
