// Package input turns mouse and touch events into unified selection events.
package input

import (
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/types"
)

// MouseKind identifies a mouse transition
type MouseKind int

const (
	MouseDown MouseKind = iota
	MouseMove
	MouseUp
)

// MouseEvent is a mouse transition in absolute coordinates
type MouseEvent struct {
	Kind MouseKind
	X, Y float64
	Box  geometry.Box
}

// TouchKind identifies a touch transition
type TouchKind int

const (
	TouchStart TouchKind = iota
	TouchMove
	TouchEnd
	TouchCancel
)

// TouchEvent carries every active contact; only the first one is consulted
type TouchEvent struct {
	Kind    TouchKind
	Touches []types.Point
	Box     geometry.Box
}

// FromMouse converts a mouse event. The bool is false when the event has no
// selection meaning.
func FromMouse(e MouseEvent) (selection.Event, bool) {
	var kind selection.EventKind
	switch e.Kind {
	case MouseDown:
		kind = selection.Start
	case MouseMove:
		kind = selection.Move
	case MouseUp:
		kind = selection.End
	default:
		return selection.Event{}, false
	}
	return selection.Event{Kind: kind, Point: types.Point{X: e.X, Y: e.Y}, Box: e.Box}, true
}

// FromTouch converts a touch event using its primary contact. Start and move
// events without any contact are dropped; end and cancel need no contact.
func FromTouch(e TouchEvent) (selection.Event, bool) {
	var kind selection.EventKind
	switch e.Kind {
	case TouchStart:
		kind = selection.Start
	case TouchMove:
		kind = selection.Move
	case TouchEnd:
		kind = selection.End
	case TouchCancel:
		kind = selection.Cancel
	default:
		return selection.Event{}, false
	}

	var p types.Point
	if len(e.Touches) > 0 {
		p = e.Touches[0]
	} else if kind == selection.Start || kind == selection.Move {
		return selection.Event{}, false
	}
	return selection.Event{Kind: kind, Point: p, Box: e.Box}, true
}
