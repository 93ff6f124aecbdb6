// Package dimension provides precise numeric entry during a drag. While a
// session is active the pointer no longer drives the edit parameter; the
// typed value does. The drag's target and edit kind remain authoritative.
package dimension

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/carvecad/carve/internal/edit"
)

var (
	// ErrInactive is returned when no entry session is in progress.
	ErrInactive = errors.New("dimension: no entry session active")
	// ErrEmptyValue is returned when submit is called with nothing typed.
	ErrEmptyValue = errors.New("dimension: no value entered")
	// ErrBadValue is returned when the typed text is not a usable number.
	ErrBadValue = errors.New("dimension: invalid value")
)

// Controller owns a single numeric entry session layered over a drag.
type Controller struct {
	active bool
	base   edit.Descriptor
	buf    []rune
}

func New() *Controller { return &Controller{} }

// Activate begins an entry session seeded from the drag's current proposal.
// Activating again replaces any earlier session.
func (c *Controller) Activate(base edit.Descriptor) {
	c.active = true
	c.base = base
	c.buf = c.buf[:0]
}

func (c *Controller) Active() bool { return c.active }

// Track absorbs a fresh gesture proposal while entry is active. The target
// and kind follow the drag; the proposed parameter is discarded.
func (c *Controller) Track(desc edit.Descriptor) {
	if !c.active {
		return
	}
	c.base.Kind = desc.Kind
	c.base.Target = desc.Target
}

// Type appends a character to the value buffer. Only characters that can
// appear in a decimal number are accepted; a minus sign only leads.
func (c *Controller) Type(r rune) bool {
	if !c.active {
		return false
	}
	switch {
	case r >= '0' && r <= '9':
	case r == '.':
	case r == '-' && len(c.buf) == 0:
	default:
		return false
	}
	c.buf = append(c.buf, r)
	return true
}

// Backspace removes the last typed character.
func (c *Controller) Backspace() bool {
	if !c.active || len(c.buf) == 0 {
		return false
	}
	c.buf = c.buf[:len(c.buf)-1]
	return true
}

// Buffer returns the text typed so far, for echo in the entry prompt.
func (c *Controller) Buffer() string { return string(c.buf) }

// Submit parses the typed value and closes the session. The returned
// descriptor carries the manual parameter in place of the drag's.
func (c *Controller) Submit() (edit.Descriptor, error) {
	if !c.active {
		return edit.Descriptor{}, ErrInactive
	}
	if len(c.buf) == 0 {
		return edit.Descriptor{}, ErrEmptyValue
	}
	v, err := strconv.ParseFloat(string(c.buf), 64)
	if err != nil {
		return edit.Descriptor{}, fmt.Errorf("%w: %q", ErrBadValue, string(c.buf))
	}
	return c.SubmitValue(v)
}

// SubmitValue applies an already-parsed value and closes the session.
// Push/pull accepts a signed distance; fillet and chamfer sizes must be
// positive since the edit kind already fixes the direction.
func (c *Controller) SubmitValue(v float64) (edit.Descriptor, error) {
	if !c.active {
		return edit.Descriptor{}, ErrInactive
	}
	if c.base.Kind != edit.PushPull && v < 0 {
		return edit.Descriptor{}, fmt.Errorf("%w: %s size must be positive, got %g", ErrBadValue, c.base.Kind, v)
	}
	desc := c.base
	desc.Parameter = v
	desc.Source = edit.SourceManual
	c.reset()
	return desc, nil
}

// Cancel abandons the entry session and hands drag control back to the
// pointer. The drag's own proposal is returned unchanged.
func (c *Controller) Cancel() (edit.Descriptor, bool) {
	if !c.active {
		return edit.Descriptor{}, false
	}
	base := c.base
	c.reset()
	return base, true
}

func (c *Controller) reset() {
	c.active = false
	c.base = edit.Descriptor{}
	c.buf = c.buf[:0]
}
