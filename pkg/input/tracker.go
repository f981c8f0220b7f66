package input

import "github.com/menta2k/cropkit/pkg/selection"

// Binder attaches and detaches pointer tracking at a scope broader than the
// canvas (the whole window or document), so drags that leave the widget keep
// resolving.
type Binder interface {
	Bind()
	Unbind()
}

// NopBinder is used by hosts whose toolkit already keeps delivering drag
// events after the pointer leaves the widget.
type NopBinder struct{}

func (NopBinder) Bind()   {}
func (NopBinder) Unbind() {}

// Tracker owns the broad-scope binding for one dialog. Bind happens on a
// start event, Unbind on end or cancel, and Release tears down whatever is
// still bound. Every transition is idempotent.
type Tracker struct {
	binder Binder
	bound  bool
}

// NewTracker creates a tracker around binder; nil means NopBinder
func NewTracker(binder Binder) *Tracker {
	if binder == nil {
		binder = NopBinder{}
	}
	return &Tracker{binder: binder}
}

// Observe updates the binding for an event about to be handled
func (t *Tracker) Observe(ev selection.Event) {
	switch ev.Kind {
	case selection.Start:
		if !t.bound {
			t.binder.Bind()
			t.bound = true
		}
	case selection.End, selection.Cancel:
		t.Release()
	}
}

// Release unbinds if bound. Safe to call repeatedly.
func (t *Tracker) Release() {
	if t.bound {
		t.binder.Unbind()
		t.bound = false
	}
}

// Bound reports whether broad-scope tracking is active
func (t *Tracker) Bound() bool {
	return t.bound
}
