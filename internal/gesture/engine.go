// Package gesture turns pointer and wheel input into view transform changes,
// tooltips and selections.
package gesture

import (
	"math"
	"sort"
	"sync"

	"golang.org/x/net/html"

	"github.com/ziadkadry99/topoview/internal/diagram"
	"github.com/ziadkadry99/topoview/internal/hit"
	"github.com/ziadkadry99/topoview/internal/viewport"
)

// ControlsClass marks the strip holding the zoom and reset buttons.
const ControlsClass = "zoom-controls"

// Phase is the gesture state. It is derived from the tracked pointers, never
// stored, so "pinching while panning" cannot be represented.
type Phase int

const (
	Idle Phase = iota
	Panning
	Pinching
)

func (p Phase) String() string {
	switch p {
	case Panning:
		return "panning"
	case Pinching:
		return "pinching"
	default:
		return "idle"
	}
}

// PointerEvent is a pointerdown/move/up/cancel or click. X and Y are in
// viewport coordinates.
type PointerEvent struct {
	PointerID int
	X, Y      float64
	Target    *html.Node
}

// WheelEvent is a wheel tick. Positive DeltaY scrolls down.
type WheelEvent struct {
	DeltaY float64
	Target *html.Node
}

// Tooltip is the hover label state.
type Tooltip struct {
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Label   string  `json:"label,omitempty"`
}

// Selection receives click-to-select and back actions.
type Selection interface {
	Select(node string)
	Back()
}

// Options tunes the engine. Zero values fall back to the defaults.
type Options struct {
	PanThreshold float64
	WheelStep    float64
	ButtonStep   float64
	IsControl    func(*html.Node) bool
}

const (
	DefaultPanThreshold = 3
	DefaultWheelStep    = 0.1
	DefaultButtonStep   = 0.2
)

type pointerSample struct {
	id   int
	x, y float64
}

type pinchState struct {
	startDistance float64
	startScale    float64
}

// panState anchors a pan: new offset = pointer - start.
type panState struct {
	startX, startY   float64
	originX, originY float64
}

// Engine is the gesture state machine. Handlers run to completion under a
// mutex; transform listeners are called after it is released.
type Engine struct {
	mu        sync.Mutex
	model     *viewport.Model
	resolver  *hit.Resolver
	selection Selection
	opts      Options

	pointers map[int]pointerSample
	pinch    *pinchState
	pan      *panState
	panMoved bool
	tooltip  Tooltip

	listeners []func(viewport.Transform)
}

// New creates an engine driving model. selection may be nil.
func New(model *viewport.Model, selection Selection, opts Options) *Engine {
	if opts.PanThreshold <= 0 {
		opts.PanThreshold = DefaultPanThreshold
	}
	if opts.WheelStep <= 0 {
		opts.WheelStep = DefaultWheelStep
	}
	if opts.ButtonStep <= 0 {
		opts.ButtonStep = DefaultButtonStep
	}
	if opts.IsControl == nil {
		opts.IsControl = func(n *html.Node) bool { return diagram.ClosestWithClass(n, ControlsClass) != nil }
	}
	return &Engine{
		model:     model,
		selection: selection,
		opts:      opts,
		pointers:  make(map[int]pointerSample),
	}
}

// SetResolver points the engine at a newly mounted diagram.
func (e *Engine) SetResolver(r *hit.Resolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver = r
	e.tooltip = Tooltip{}
}

// OnTransform registers fn to be called with the transform after every
// change.
func (e *Engine) OnTransform(fn func(viewport.Transform)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// State returns the current gesture phase.
func (e *Engine) State() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase()
}

// Tooltip returns the current hover label.
func (e *Engine) Tooltip() Tooltip {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tooltip
}

// Transform returns the current view transform.
func (e *Engine) Transform() viewport.Transform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Transform()
}

func (e *Engine) phase() Phase {
	switch {
	case len(e.pointers) >= 2 && e.pinch != nil:
		return Pinching
	case len(e.pointers) == 1 && e.pan != nil:
		return Panning
	default:
		return Idle
	}
}

// run executes fn under the lock and notifies listeners when fn reports a
// transform change.
func (e *Engine) run(fn func() bool) {
	e.mu.Lock()
	changed := fn()
	t := e.model.Transform()
	listeners := append([]func(viewport.Transform){}, e.listeners...)
	e.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(t)
		}
	}
}

// PointerDown starts a pan with the first pointer and a pinch with the
// second. Presses on the control strip are ignored.
func (e *Engine) PointerDown(ev PointerEvent) {
	e.run(func() bool {
		if e.opts.IsControl(ev.Target) {
			return false
		}
		e.pointers[ev.PointerID] = pointerSample{id: ev.PointerID, x: ev.X, y: ev.Y}

		switch len(e.pointers) {
		case 1:
			e.anchorPan(ev.X, ev.Y)
			e.panMoved = false
		case 2:
			a, b := e.firstTwo()
			e.pinch = &pinchState{startDistance: distance(a, b), startScale: e.model.Scale()}
		}
		return false
	})
}

// PointerMove pinches, pans or hovers depending on the phase.
func (e *Engine) PointerMove(ev PointerEvent) {
	e.run(func() bool {
		_, tracked := e.pointers[ev.PointerID]
		if tracked {
			e.pointers[ev.PointerID] = pointerSample{id: ev.PointerID, x: ev.X, y: ev.Y}
		}

		switch e.phase() {
		case Pinching:
			if !tracked {
				return false
			}
			a, b := e.firstTwo()
			if e.pinch.startDistance <= 0 {
				return false
			}
			e.model.SetScale(e.pinch.startScale * distance(a, b) / e.pinch.startDistance)
			e.panMoved = true
			return true
		case Panning:
			if tracked && !e.opts.IsControl(ev.Target) {
				x, y := ev.X-e.pan.startX, ev.Y-e.pan.startY
				// Measured from where the pan began, so a slow drag in
				// sub-threshold steps still counts as moved.
				if math.Abs(x-e.pan.originX) > e.opts.PanThreshold || math.Abs(y-e.pan.originY) > e.opts.PanThreshold {
					e.panMoved = true
				}
				e.model.PanTo(x, y)
				return true
			}
		}

		e.hover(ev)
		return false
	})
}

// PointerUp releases a pointer.
func (e *Engine) PointerUp(ev PointerEvent) { e.release(ev) }

// PointerCancel releases a pointer the platform took away.
func (e *Engine) PointerCancel(ev PointerEvent) { e.release(ev) }

func (e *Engine) release(ev PointerEvent) {
	e.run(func() bool {
		if _, ok := e.pointers[ev.PointerID]; !ok {
			return false
		}
		delete(e.pointers, ev.PointerID)

		if len(e.pointers) < 2 && e.pinch != nil {
			e.pinch = nil
			for _, p := range e.pointers {
				e.anchorPan(p.x, p.y)
			}
		}
		if len(e.pointers) == 0 {
			e.pan = nil
		}
		return false
	})
}

// Wheel zooms by a fixed step per tick and reports whether the default
// scroll should be prevented, which is always.
func (e *Engine) Wheel(ev WheelEvent) bool {
	e.run(func() bool {
		switch {
		case ev.DeltaY > 0:
			e.model.Zoom(-e.opts.WheelStep)
		case ev.DeltaY < 0:
			e.model.Zoom(e.opts.WheelStep)
		default:
			return false
		}
		return true
	})
	return true
}

// Click selects the entity under the pointer. It is ignored on the control
// strip and right after a pan that moved. It returns the selected entity.
func (e *Engine) Click(ev PointerEvent) (string, bool) {
	var (
		name string
		ok   bool
	)
	e.run(func() bool {
		if e.opts.IsControl(ev.Target) {
			return false
		}
		if e.panMoved {
			e.panMoved = false
			return false
		}
		var el *html.Node
		el, name, ok = e.resolve(ev)
		if !ok {
			return false
		}
		hit.ClearSelection(e.resolver.Root())
		hit.MarkSelected(el)
		if e.selection != nil {
			e.selection.Select(name)
		}
		e.tooltip = Tooltip{}
		return false
	})
	return name, ok
}

// Back clears the selection markers and the selected node.
func (e *Engine) Back() {
	e.run(func() bool {
		if e.resolver != nil {
			hit.ClearSelection(e.resolver.Root())
		}
		if e.selection != nil {
			e.selection.Back()
		}
		return false
	})
}

// ZoomIn is the "+" button.
func (e *Engine) ZoomIn() {
	e.run(func() bool { e.model.Zoom(e.opts.ButtonStep); return true })
}

// ZoomOut is the "-" button.
func (e *Engine) ZoomOut() {
	e.run(func() bool { e.model.Zoom(-e.opts.ButtonStep); return true })
}

// ResetView is the reset button.
func (e *Engine) ResetView() {
	e.run(func() bool { e.model.Reset(); return true })
}

func (e *Engine) anchorPan(x, y float64) {
	ox, oy := e.model.Offset()
	e.pan = &panState{startX: x - ox, startY: y - oy, originX: ox, originY: oy}
}

func (e *Engine) hover(ev PointerEvent) {
	if _, name, ok := e.resolve(ev); ok {
		e.tooltip = Tooltip{Visible: true, X: ev.X, Y: ev.Y, Label: name}
		return
	}
	e.tooltip = Tooltip{}
}

func (e *Engine) resolve(ev PointerEvent) (*html.Node, string, bool) {
	if e.resolver == nil {
		return nil, "", false
	}
	root := e.resolver.Root()
	target := ev.Target
	if target != nil && !diagram.Contains(root, target) {
		target = root
	}
	x, y := e.model.ToDiagram(ev.X, ev.Y)
	return e.resolver.ResolveNode(hit.Event{Target: target, Container: root, X: x, Y: y})
}

// firstTwo returns the two tracked pointers with the lowest ids.
func (e *Engine) firstTwo() (pointerSample, pointerSample) {
	ids := make([]int, 0, len(e.pointers))
	for id := range e.pointers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return e.pointers[ids[0]], e.pointers[ids[1]]
}

func distance(a, b pointerSample) float64 {
	return math.Hypot(a.x-b.x, a.y-b.y)
}
