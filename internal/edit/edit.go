// Package edit defines the descriptor shared between the gesture
// interpreter, the dimension input controller and the edit operation
// engine: which entity to modify, how, and by how much.
package edit

import (
	"fmt"

	"github.com/carvecad/carve/internal/refs"
)

// Kind is the semantic edit operation.
type Kind uint8

const (
	// PushPull extrudes a face along its outward normal, additively for
	// positive parameters and subtractively for negative ones.
	PushPull Kind = iota
	// Fillet rounds an edge with the parameter as blend radius.
	Fillet
	// Chamfer cuts an edge flat with the parameter as cut distance.
	Chamfer
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case PushPull:
		return "push/pull"
	case Fillet:
		return "fillet"
	case Chamfer:
		return "chamfer"
	default:
		return "unknown"
	}
}

// Source records where the parameter value came from.
type Source uint8

const (
	// SourceGesture means the parameter was derived from pointer drag
	// displacement.
	SourceGesture Source = iota
	// SourceManual means the parameter was typed into the dimension
	// prompt, overriding the gesture value.
	SourceManual
)

// String returns the lowercase name of the source.
func (s Source) String() string {
	if s == SourceManual {
		return "manual"
	}
	return "gesture"
}

// Descriptor fully specifies one direct edit. Parameter is a signed
// distance for push/pull and a positive radius or cut distance for edge
// blends.
type Descriptor struct {
	Kind      Kind
	Target    refs.Ref
	Parameter float64
	Source    Source
}

// String renders the descriptor for status messages and logs.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s by %.4g (%s)", d.Kind, d.Target, d.Parameter, d.Source)
}
