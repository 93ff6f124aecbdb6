// Package selection tracks the hovered and committed topological entity.
// Hit-testing belongs to the external viewport; the tracker owns only
// the state transitions and the highlight events derived from them.
package selection

import (
	"sync"

	"github.com/carvecad/carve/internal/event"
	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/refs"
)

// Picker is the viewport capability the tracker delegates hit-testing to.
type Picker interface {
	// Pick returns the entity under a screen point, if any.
	Pick(p geom.ScreenPoint, cam geom.Camera) (refs.Ref, bool)
}

// PickerFunc adapts a function to the Picker interface.
type PickerFunc func(p geom.ScreenPoint, cam geom.Camera) (refs.Ref, bool)

// Pick calls the function.
func (f PickerFunc) Pick(p geom.ScreenPoint, cam geom.Camera) (refs.Ref, bool) {
	return f(p, cam)
}

// Tracker holds hover and committed selection. The two are independent:
// clearing one never clears the other. At most one entity is committed
// at a time.
type Tracker struct {
	mu        sync.Mutex
	picker    Picker
	bus       *event.Bus
	hover     refs.Ref
	hasHover  bool
	committed refs.Ref
	hasSel    bool
}

// NewTracker creates a tracker delegating hit-tests to picker and
// publishing state changes on bus.
func NewTracker(picker Picker, bus *event.Bus) *Tracker {
	return &Tracker{picker: picker, bus: bus}
}

// Hover hit-tests the screen point and updates hover state. Highlight
// events fire only when the hovered entity actually changes.
func (t *Tracker) Hover(p geom.ScreenPoint, cam geom.Camera) (refs.Ref, bool) {
	ref, ok := t.picker.Pick(p, cam)

	t.mu.Lock()
	prev, hadPrev := t.hover, t.hasHover
	changed := hadPrev != ok || (ok && prev != ref)
	t.hover, t.hasHover = ref, ok
	committed, hasSel := t.committed, t.hasSel
	t.mu.Unlock()

	if !changed {
		return ref, ok
	}

	if hadPrev && (!hasSel || prev != committed) {
		t.publishHighlight(prev, event.HighlightNone)
	}
	if ok {
		t.publishHighlight(ref, event.HighlightHover)
	}
	t.bus.Publish(event.Event{
		Topic:   event.TopicSelectionHover,
		Payload: event.HoverChange{Ref: ref, Active: ok},
		Source:  "selection",
	})
	return ref, ok
}

// Commit promotes the current hover to the committed selection. Without
// a hover it reports false and changes nothing.
func (t *Tracker) Commit() (refs.Ref, bool) {
	t.mu.Lock()
	if !t.hasHover {
		t.mu.Unlock()
		return refs.Ref{}, false
	}
	prev, hadPrev := t.committed, t.hasSel
	t.committed, t.hasSel = t.hover, true
	ref := t.committed
	t.mu.Unlock()

	if hadPrev && prev != ref {
		t.publishHighlight(prev, event.HighlightNone)
	}
	t.publishHighlight(ref, event.HighlightSelected)
	t.bus.Publish(event.Event{
		Topic:   event.TopicSelectionCommitted,
		Payload: event.SelectionChange{Ref: ref, Active: true},
		Source:  "selection",
	})
	return ref, true
}

// ClearSelection drops the committed selection. Hover is untouched.
func (t *Tracker) ClearSelection() {
	t.mu.Lock()
	prev, had := t.committed, t.hasSel
	t.committed, t.hasSel = refs.Ref{}, false
	hover, hasHover := t.hover, t.hasHover
	t.mu.Unlock()

	if !had {
		return
	}
	if hasHover && hover == prev {
		t.publishHighlight(prev, event.HighlightHover)
	} else {
		t.publishHighlight(prev, event.HighlightNone)
	}
	t.bus.Publish(event.Event{
		Topic:   event.TopicSelectionCommitted,
		Payload: event.SelectionChange{Active: false},
		Source:  "selection",
	})
}

// ClearHover drops the hover state. The committed selection is untouched.
func (t *Tracker) ClearHover() {
	t.mu.Lock()
	prev, had := t.hover, t.hasHover
	t.hover, t.hasHover = refs.Ref{}, false
	committed, hasSel := t.committed, t.hasSel
	t.mu.Unlock()

	if !had {
		return
	}
	if !hasSel || prev != committed {
		t.publishHighlight(prev, event.HighlightNone)
	}
	t.bus.Publish(event.Event{
		Topic:   event.TopicSelectionHover,
		Payload: event.HoverChange{Active: false},
		Source:  "selection",
	})
}

// Selection returns the committed selection, if any.
func (t *Tracker) Selection() (refs.Ref, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed, t.hasSel
}

// Hovered returns the hovered entity, if any.
func (t *Tracker) Hovered() (refs.Ref, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hover, t.hasHover
}

func (t *Tracker) publishHighlight(ref refs.Ref, style event.HighlightStyle) {
	t.bus.Publish(event.Event{
		Topic:   event.TopicSelectionHighlight,
		Payload: event.Highlight{Ref: ref, Style: style},
		Source:  "selection",
	})
}
