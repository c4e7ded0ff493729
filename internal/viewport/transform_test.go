package viewport

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNewStartsAtIdentity(t *testing.T) {
	m := New()
	assert.Equal(t, Identity, m.Transform())
	assert.Equal(t, "translate(0px, 0px) scale(1)", m.Transform().CSS())
}

func TestZoomSaturates(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Zoom(10)
	}
	assert.Equal(t, MaxScale, m.Scale())

	for i := 0; i < 10; i++ {
		m.Zoom(-10)
	}
	assert.Equal(t, MinScale, m.Scale())
}

func TestZoomRoundsSmallSteps(t *testing.T) {
	m := New()
	for i := 0; i < 7; i++ {
		m.Zoom(0.1)
	}
	assert.Equal(t, 1.7, m.Scale())

	for i := 0; i < 7; i++ {
		m.Zoom(-0.1)
	}
	assert.Equal(t, 1.0, m.Scale())
}

func TestSetScaleClamps(t *testing.T) {
	m := New()
	m.SetScale(2)
	assert.Equal(t, 2.0, m.Scale())
	m.SetScale(100)
	assert.Equal(t, MaxScale, m.Scale())
	m.SetScale(0.01)
	assert.Equal(t, MinScale, m.Scale())
	m.SetScale(math.NaN())
	assert.Equal(t, MinScale, m.Scale())
}

func TestPanToIsAbsolute(t *testing.T) {
	m := New()
	m.PanTo(10, 20)
	m.PanTo(15, -5)
	x, y := m.Offset()
	assert.Equal(t, 15.0, x)
	assert.Equal(t, -5.0, y)
}

func TestResetRestoresIdentity(t *testing.T) {
	m := New()
	m.PanTo(40, 40)
	m.Zoom(1.5)
	m.Reset()
	assert.Equal(t, Identity, m.Transform())
}

func TestToDiagramInvertsTransform(t *testing.T) {
	m := New()
	m.PanTo(100, 50)
	m.SetScale(2)

	x, y := m.ToDiagram(120, 70)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 10.0, y)
}

func TestCSS(t *testing.T) {
	tr := Transform{X: 12.5, Y: -3, Scale: 1.25}
	assert.Equal(t, "translate(12.5px, -3px) scale(1.25)", tr.CSS())
}

func TestScaleStaysInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("zoom sequences keep scale clamped", prop.ForAll(
		func(deltas []float64) bool {
			m := New()
			for _, d := range deltas {
				m.Zoom(d)
				if m.Scale() < MinScale || m.Scale() > MaxScale {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-20, 20)),
	))

	properties.Property("set scale keeps scale clamped", prop.ForAll(
		func(s float64) bool {
			m := New()
			m.SetScale(s)
			return m.Scale() >= MinScale && m.Scale() <= MaxScale
		},
		gen.Float64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}
