// Package viewport holds the pan/zoom transform applied to the mounted
// diagram.
package viewport

import (
	"fmt"
	"math"
)

const (
	MinScale = 0.5
	MaxScale = 4.0
)

// Transform is a 2D view transform: translate(X, Y) then scale(Scale).
type Transform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// Identity is the transform a freshly mounted diagram starts with.
var Identity = Transform{X: 0, Y: 0, Scale: 1}

// CSS renders the transform as a CSS transform value.
func (t Transform) CSS() string {
	return fmt.Sprintf("translate(%gpx, %gpx) scale(%g)", t.X, t.Y, t.Scale)
}

// Model owns the current transform. The zero value is not ready for use;
// call New.
type Model struct {
	t Transform
}

// New returns a model at the identity transform.
func New() *Model {
	return &Model{t: Identity}
}

// Transform returns a snapshot of the current transform.
func (m *Model) Transform() Transform { return m.t }

// Scale returns the current scale.
func (m *Model) Scale() float64 { return m.t.Scale }

// Offset returns the current translation.
func (m *Model) Offset() (x, y float64) { return m.t.X, m.t.Y }

// Zoom adds delta to the scale, clamps it and rounds it to two decimals so
// repeated wheel ticks do not accumulate float error.
func (m *Model) Zoom(delta float64) {
	if !finite(delta) {
		return
	}
	m.t.Scale = round2(clamp(m.t.Scale + delta))
}

// SetScale sets an absolute scale, clamped to [MinScale, MaxScale].
func (m *Model) SetScale(scale float64) {
	if !finite(scale) {
		return
	}
	m.t.Scale = clamp(scale)
}

// PanTo sets the absolute translation.
func (m *Model) PanTo(x, y float64) {
	if !finite(x) || !finite(y) {
		return
	}
	m.t.X, m.t.Y = x, y
}

// Reset restores the identity transform.
func (m *Model) Reset() { m.t = Identity }

// ToDiagram maps a point in viewport coordinates to diagram coordinates by
// inverting the current transform.
func (m *Model) ToDiagram(sx, sy float64) (x, y float64) {
	return (sx - m.t.X) / m.t.Scale, (sy - m.t.Y) / m.t.Scale
}

func clamp(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

func round2(s float64) float64 {
	return math.Round(s*100) / 100
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
