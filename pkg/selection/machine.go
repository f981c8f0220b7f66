// Package selection implements the crop selection state machine.
//
// The machine owns the selection rectangle in display space and the active
// ratio constraint. It advances on unified input events, so mouse and touch
// sources feed the same transitions.
package selection

import (
	"fmt"
	"math"

	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/types"
)

// DefaultMinExtent is the smallest width and height, in display pixels,
// that counts as a selection.
const DefaultMinExtent = 5.0

// State of the selection machine
type State int

const (
	// Idle has no active drag; the rectangle may hold a finished selection
	Idle State = iota
	// Drawing tracks a held pointer or touch
	Drawing
	// Cleared is Idle with a zero-size rectangle after an explicit reset
	Cleared
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Cleared:
		return "cleared"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind identifies a unified input transition
type EventKind int

const (
	Start EventKind = iota
	Move
	End
	Cancel
)

func (k EventKind) String() string {
	switch k {
	case Start:
		return "start"
	case Move:
		return "move"
	case End:
		return "end"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a single pointer or touch transition. Point is in the same absolute
// coordinate system as Box, the canvas position at the time of the event.
type Event struct {
	Kind  EventKind
	Point types.Point
	Box   geometry.Box
}

// Machine is the selection state machine. It is not safe for concurrent use;
// all input is expected on a single event loop.
type Machine struct {
	viewport  types.Viewport
	rect      types.SelectionRect
	ratio     float64
	state     State
	box       geometry.Box
	minExtent float64
}

// New creates a machine for the given viewport
func New(v types.Viewport) *Machine {
	return NewWithMinExtent(v, DefaultMinExtent)
}

// NewWithMinExtent creates a machine with a custom minimum selection extent
func NewWithMinExtent(v types.Viewport, minExtent float64) *Machine {
	if minExtent <= 0 {
		minExtent = DefaultMinExtent
	}
	return &Machine{
		viewport:  v,
		state:     Cleared,
		minExtent: minExtent,
	}
}

// Handle advances the machine. It reports whether the rectangle changed.
func (m *Machine) Handle(ev Event) bool {
	switch ev.Kind {
	case Start:
		m.box = ev.Box
		x, y := geometry.ToCanvasLocal(ev.Point.X, ev.Point.Y, m.box, m.viewport)
		m.rect = types.SelectionRect{StartX: x, StartY: y, EndX: x, EndY: y}
		m.state = Drawing
		return true
	case Move:
		if m.state != Drawing {
			return false
		}
		prev := m.rect
		m.moveTo(ev.Point)
		return m.rect != prev
	case End, Cancel:
		if m.state != Drawing {
			return false
		}
		m.state = Idle
		return false
	default:
		return false
	}
}

// moveTo updates the end point: raw clamp, ratio adjustment, then re-clamp.
// The re-clamp can break the ratio at the canvas edge; that is accepted.
func (m *Machine) moveTo(p types.Point) {
	endX, endY := geometry.ToCanvasLocal(p.X, p.Y, m.box, m.viewport)

	if m.ratio > 0 {
		height := math.Abs(endX-m.rect.StartX) / m.ratio
		if endY > m.rect.StartY {
			endY = m.rect.StartY + height
		} else {
			endY = m.rect.StartY - height
		}
		endY = geometry.Clamp(endY, 0, float64(m.viewport.DisplayHeight))
	}

	m.rect.EndX = endX
	m.rect.EndY = endY
}

// Clear resets the selection to a zero-size rectangle and stops any drag
func (m *Machine) Clear() {
	m.rect = types.SelectionRect{}
	m.state = Cleared
}

// SetRatio sets the ratio constraint used by subsequent moves. 0 is free-form.
func (m *Machine) SetRatio(ratio float64) error {
	if ratio < 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fmt.Errorf("invalid ratio constraint: %v", ratio)
	}
	m.ratio = ratio
	return nil
}

// Ratio returns the active ratio constraint
func (m *Machine) Ratio() float64 {
	return m.ratio
}

// Set replaces the rectangle, clamping every coordinate to the display area.
// Used to seed a selection from a suggestion.
func (m *Machine) Set(r types.SelectionRect) {
	w, h := float64(m.viewport.DisplayWidth), float64(m.viewport.DisplayHeight)
	m.rect = types.SelectionRect{
		StartX: geometry.Clamp(r.StartX, 0, w),
		StartY: geometry.Clamp(r.StartY, 0, h),
		EndX:   geometry.Clamp(r.EndX, 0, w),
		EndY:   geometry.Clamp(r.EndY, 0, h),
	}
	m.state = Idle
}

// Rect returns the raw selection rectangle
func (m *Machine) Rect() types.SelectionRect {
	return m.rect
}

// Normalized returns the ordered selection rectangle
func (m *Machine) Normalized() types.Rect {
	return m.rect.Normalized()
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Viewport returns the viewport the machine clamps against
func (m *Machine) Viewport() types.Viewport {
	return m.viewport
}

// MinExtent returns the minimum selection extent
func (m *Machine) MinExtent() float64 {
	return m.minExtent
}

// TooSmall reports whether the current selection is below the minimum extent
func (m *Machine) TooSmall() bool {
	return TooSmall(m.rect.Normalized(), m.minExtent)
}

// TooSmall reports whether r is narrower or shorter than minExtent
func TooSmall(r types.Rect, minExtent float64) bool {
	return r.Width < minExtent || r.Height < minExtent
}
