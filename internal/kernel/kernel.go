// Package kernel defines the capability set the edit engine consumes from
// a geometry kernel. The kernel is an external collaborator: it owns
// boolean construction, fillet and chamfer building, STEP exchange, and
// validity checking. The engine only ever talks to these interfaces.
package kernel

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/carvecad/carve/internal/geom"
)

// Errors reported by kernel implementations.
var (
	// ErrNotFound indicates a tag or sub-shape could not be located in a
	// solid. Resolution failures are non-fatal by contract.
	ErrNotFound = errors.New("sub-shape not found")

	// ErrConstruction indicates the kernel rejected or failed an
	// operation (degenerate parameter, self-intersection, collapsed
	// topology).
	ErrConstruction = errors.New("kernel construction failed")

	// ErrIO indicates a STEP import or export failure.
	ErrIO = errors.New("step exchange failed")
)

// Kind identifies the topological class of a sub-shape.
type Kind uint8

const (
	// KindFace is a bounded surface of a solid.
	KindFace Kind = iota
	// KindEdge is a curve bounding two faces.
	KindEdge
	// KindVertex is a point bounding edges.
	KindVertex
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFace:
		return "face"
	case KindEdge:
		return "edge"
	case KindVertex:
		return "vertex"
	default:
		return "unknown"
	}
}

// Handle identifies a concrete sub-shape within a single build of a
// solid. Handles are ephemeral: any rebuild may renumber them, so they
// must never be stored across snapshot boundaries. Persistent identity
// lives in tags (see Tag and FindByTag).
type Handle struct {
	Kind  Kind
	Index int
}

// MassProps are kernel-computed mass properties of a solid.
type MassProps struct {
	Volume float64
	Center geom.Vec3
	Bounds geom.Box
}

// Solid is an immutable solid produced by the kernel. Every edit yields
// a new Solid with a higher generation; values are safe to share across
// goroutines once constructed.
type Solid interface {
	// Generation is a monotonic counter distinguishing successive builds.
	Generation() uint64

	// Mass returns the solid's mass properties.
	Mass() MassProps
}

// Frame is a local edit frame on a sub-shape: an anchor point plus the
// axis a drag is projected onto. For a face the axis is the outward
// normal at the anchor; for an edge it is the outward bisector of the
// two adjacent face normals.
type Frame struct {
	Origin geom.Vec3
	Axis   geom.Vec3
}

// ValidationReport is the kernel's verdict on a constructed solid.
type ValidationReport struct {
	Valid  bool
	Reason string
}

// Kernel is the full capability set consumed by the engine. Construction
// operations take a context because complex fillets and booleans can run
// for seconds; implementations should honor cancellation between
// sub-steps where they can.
type Kernel interface {
	// NewBox builds a primitive axis-aligned box solid with the given
	// extents, used to seed a fresh document.
	NewBox(dx, dy, dz float64) (Solid, error)

	// Extrude offsets a face along its outward normal by the signed
	// distance, fusing material for positive distances and cutting for
	// negative ones.
	Extrude(ctx context.Context, s Solid, face Handle, distance float64) (Solid, error)

	// Fillet replaces a sharp edge with a constant-radius blend.
	Fillet(ctx context.Context, s Solid, edge Handle, radius float64) (Solid, error)

	// Chamfer replaces a sharp edge with a flat cut of the given distance.
	Chamfer(ctx context.Context, s Solid, edge Handle, distance float64) (Solid, error)

	// Tag attaches a persistent id to a sub-shape. Tags propagate across
	// rebuilds along the kernel's construction history; a tag on a
	// consumed sub-shape is dropped, never remapped.
	Tag(s Solid, h Handle, tag uuid.UUID) error

	// FindByTag resolves a persistent id to the concrete handle in the
	// given build, or ErrNotFound if the sub-shape no longer exists.
	FindByTag(s Solid, tag uuid.UUID) (Handle, error)

	// FaceFrame returns the edit frame of a face: its center and outward
	// normal.
	FaceFrame(s Solid, face Handle) (Frame, error)

	// EdgeFrame returns the edit frame of an edge: its midpoint and the
	// outward bisector of the adjacent face normals.
	EdgeFrame(s Solid, edge Handle) (Frame, error)

	// Faces enumerates the live faces of a solid.
	Faces(s Solid) []Handle

	// Edges enumerates the live sharp edges of a solid. Edges consumed
	// by blends are not listed.
	Edges(s Solid) []Handle

	// Validate checks that a solid is a single closed valid manifold.
	Validate(s Solid) ValidationReport

	// ImportSTEP reads a solid from a STEP file.
	ImportSTEP(path string) (Solid, error)

	// ExportSTEP writes a solid to a STEP file.
	ExportSTEP(s Solid, path string) error
}
