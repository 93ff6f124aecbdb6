package dimension

import (
	"errors"
	"testing"

	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/refs"
	"github.com/google/uuid"
)

func gestureProposal(kind edit.Kind, param float64) edit.Descriptor {
	return edit.Descriptor{
		Kind:      kind,
		Target:    refs.Ref{ID: uuid.New(), Kind: kindFor(kind)},
		Parameter: param,
		Source:    edit.SourceGesture,
	}
}

func kindFor(k edit.Kind) kernel.Kind {
	if k == edit.PushPull {
		return kernel.KindFace
	}
	return kernel.KindEdge
}

func TestSubmitOverridesParameter(t *testing.T) {
	c := New()
	base := gestureProposal(edit.PushPull, 1.37)
	c.Activate(base)

	for _, r := range "-2.5" {
		if !c.Type(r) {
			t.Fatalf("Type(%q) rejected", r)
		}
	}
	desc, err := c.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if desc.Parameter != -2.5 {
		t.Errorf("parameter = %g, want -2.5", desc.Parameter)
	}
	if desc.Source != edit.SourceManual {
		t.Errorf("source = %s, want manual", desc.Source)
	}
	if desc.Kind != base.Kind || desc.Target != base.Target {
		t.Errorf("target/kind changed: got %s, want %s target", desc, base.Kind)
	}
	if c.Active() {
		t.Error("controller still active after submit")
	}
}

func TestTrackKeepsGestureTargetIgnoresParameter(t *testing.T) {
	c := New()
	c.Activate(gestureProposal(edit.Fillet, 0.2))

	// The drag keeps moving while the prompt is open; only its target
	// and kind flow through.
	update := gestureProposal(edit.Chamfer, 9.9)
	c.Track(update)

	desc, err := c.SubmitValue(0.5)
	if err != nil {
		t.Fatalf("SubmitValue: %v", err)
	}
	if desc.Kind != edit.Chamfer || desc.Target != update.Target {
		t.Errorf("descriptor did not follow drag target: %s", desc)
	}
	if desc.Parameter != 0.5 {
		t.Errorf("parameter = %g, want typed 0.5 not dragged 9.9", desc.Parameter)
	}
}

func TestCancelResumesGestureValue(t *testing.T) {
	c := New()
	base := gestureProposal(edit.PushPull, 0.75)
	c.Activate(base)
	c.Type('4')

	got, ok := c.Cancel()
	if !ok {
		t.Fatal("Cancel reported no session")
	}
	if got != base {
		t.Errorf("Cancel returned %s, want the untouched proposal %s", got, base)
	}
	if c.Active() {
		t.Error("controller still active after cancel")
	}
	if _, ok := c.Cancel(); ok {
		t.Error("second Cancel reported an active session")
	}
}

func TestTypeFiltersInput(t *testing.T) {
	tests := []struct {
		name  string
		typed string
		want  string
	}{
		{"digits and dot", "12.5", "12.5"},
		{"leading minus", "-3", "-3"},
		{"minus mid-value rejected", "1-2", "12"},
		{"letters rejected", "1a2b", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Activate(gestureProposal(edit.PushPull, 0))
			for _, r := range tt.typed {
				c.Type(r)
			}
			if got := c.Buffer(); got != tt.want {
				t.Errorf("buffer = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBackspace(t *testing.T) {
	c := New()
	c.Activate(gestureProposal(edit.PushPull, 0))
	for _, r := range "10.5" {
		c.Type(r)
	}
	c.Backspace()
	c.Backspace()
	if got := c.Buffer(); got != "10" {
		t.Errorf("buffer = %q, want %q", got, "10")
	}
	c.Backspace()
	c.Backspace()
	if c.Backspace() {
		t.Error("Backspace on empty buffer reported success")
	}
}

func TestSubmitErrors(t *testing.T) {
	t.Run("inactive", func(t *testing.T) {
		c := New()
		if _, err := c.Submit(); !errors.Is(err, ErrInactive) {
			t.Errorf("err = %v, want ErrInactive", err)
		}
	})
	t.Run("empty buffer", func(t *testing.T) {
		c := New()
		c.Activate(gestureProposal(edit.PushPull, 1))
		if _, err := c.Submit(); !errors.Is(err, ErrEmptyValue) {
			t.Errorf("err = %v, want ErrEmptyValue", err)
		}
	})
	t.Run("unparseable", func(t *testing.T) {
		c := New()
		c.Activate(gestureProposal(edit.PushPull, 1))
		c.Type('-')
		c.Type('.')
		if _, err := c.Submit(); !errors.Is(err, ErrBadValue) {
			t.Errorf("err = %v, want ErrBadValue", err)
		}
	})
	t.Run("negative blend size", func(t *testing.T) {
		c := New()
		c.Activate(gestureProposal(edit.Fillet, 0.2))
		if _, err := c.SubmitValue(-0.3); !errors.Is(err, ErrBadValue) {
			t.Errorf("err = %v, want ErrBadValue", err)
		}
	})
}
