package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/types"
)

type MockBinder struct {
	mock.Mock
}

func (m *MockBinder) Bind()   { m.Called() }
func (m *MockBinder) Unbind() { m.Called() }

func TestFromMouse(t *testing.T) {
	box := geometry.Box{Left: 3, Top: 4}
	tests := []struct {
		kind MouseKind
		want selection.EventKind
	}{
		{MouseDown, selection.Start},
		{MouseMove, selection.Move},
		{MouseUp, selection.End},
	}

	for _, tt := range tests {
		got, ok := FromMouse(MouseEvent{Kind: tt.kind, X: 10, Y: 20, Box: box})
		assert.True(t, ok)
		assert.Equal(t, selection.Event{Kind: tt.want, Point: types.Point{X: 10, Y: 20}, Box: box}, got)
	}

	_, ok := FromMouse(MouseEvent{Kind: MouseKind(42)})
	assert.False(t, ok)
}

func TestFromTouchUsesFirstContact(t *testing.T) {
	got, ok := FromTouch(TouchEvent{
		Kind:    TouchMove,
		Touches: []types.Point{{X: 1, Y: 2}, {X: 99, Y: 99}},
	})
	assert.True(t, ok)
	assert.Equal(t, selection.Move, got.Kind)
	assert.Equal(t, types.Point{X: 1, Y: 2}, got.Point)
}

func TestFromTouchWithoutContacts(t *testing.T) {
	_, ok := FromTouch(TouchEvent{Kind: TouchStart})
	assert.False(t, ok)
	_, ok = FromTouch(TouchEvent{Kind: TouchMove})
	assert.False(t, ok)

	got, ok := FromTouch(TouchEvent{Kind: TouchEnd})
	assert.True(t, ok)
	assert.Equal(t, selection.End, got.Kind)

	got, ok = FromTouch(TouchEvent{Kind: TouchCancel})
	assert.True(t, ok)
	assert.Equal(t, selection.Cancel, got.Kind)

	_, ok = FromTouch(TouchEvent{Kind: TouchKind(9)})
	assert.False(t, ok)
}

func TestMouseAndTouchDriveTheSameMachine(t *testing.T) {
	v, err := geometry.NewViewport(1200, 800, 600, 400)
	assert.NoError(t, err)

	mouse := selection.New(v)
	for _, e := range []MouseEvent{
		{Kind: MouseDown, X: 100, Y: 100},
		{Kind: MouseMove, X: 300, Y: 200},
		{Kind: MouseUp},
	} {
		se, _ := FromMouse(e)
		mouse.Handle(se)
	}

	touch := selection.New(v)
	for _, e := range []TouchEvent{
		{Kind: TouchStart, Touches: []types.Point{{X: 100, Y: 100}}},
		{Kind: TouchMove, Touches: []types.Point{{X: 300, Y: 200}, {X: 5, Y: 5}}},
		{Kind: TouchEnd},
	} {
		if se, ok := FromTouch(e); ok {
			touch.Handle(se)
		}
	}

	assert.Equal(t, mouse.Rect(), touch.Rect())
}

func TestTrackerBindsOnceAndReleasesIdempotently(t *testing.T) {
	binder := new(MockBinder)
	binder.On("Bind").Return().Once()
	binder.On("Unbind").Return().Once()

	tr := NewTracker(binder)
	tr.Observe(selection.Event{Kind: selection.Start})
	tr.Observe(selection.Event{Kind: selection.Start})
	assert.True(t, tr.Bound())

	tr.Observe(selection.Event{Kind: selection.Move})
	assert.True(t, tr.Bound())

	tr.Observe(selection.Event{Kind: selection.End})
	assert.False(t, tr.Bound())

	tr.Release()
	tr.Release()
	binder.AssertExpectations(t)
}

func TestTrackerReleaseMidDrag(t *testing.T) {
	binder := new(MockBinder)
	binder.On("Bind").Return()
	binder.On("Unbind").Return()

	tr := NewTracker(binder)
	tr.Observe(selection.Event{Kind: selection.Start})
	tr.Release()
	tr.Release()

	binder.AssertNumberOfCalls(t, "Bind", 1)
	binder.AssertNumberOfCalls(t, "Unbind", 1)
}

func TestNilBinderDefaultsToNop(t *testing.T) {
	tr := NewTracker(nil)
	tr.Observe(selection.Event{Kind: selection.Start})
	assert.True(t, tr.Bound())
	tr.Release()
	assert.False(t, tr.Bound())
}
