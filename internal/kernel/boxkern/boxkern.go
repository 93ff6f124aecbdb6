// Package boxkern is an in-memory geometry kernel over axis-aligned box
// solids with per-edge fillet and chamfer records. It implements the
// full kernel capability set with analytic mass properties, so the edit
// engine, its tests, and the terminal front end can run without a native
// BRep kernel. A production kernel plugs in behind the same interfaces.
package boxkern

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel"
)

// minExtent is the smallest axis extent a rebuild may leave behind
// before the result is rejected as degenerate.
const minExtent = 1e-9

// Kernel implements kernel.Kernel over box solids.
type Kernel struct {
	gen atomic.Uint64
}

// New creates a box kernel.
func New() *Kernel {
	return &Kernel{}
}

func (k *Kernel) nextGen() uint64 {
	return k.gen.Add(1)
}

// NewBox builds a primitive box with one corner at the origin.
func (k *Kernel) NewBox(dx, dy, dz float64) (kernel.Solid, error) {
	if dx <= 0 || dy <= 0 || dz <= 0 {
		return nil, fmt.Errorf("%w: box extents must be positive", kernel.ErrConstruction)
	}
	s := &solid{
		gen:        k.nextGen(),
		treatments: map[int]treatment{},
		tags:       map[uuid.UUID]kernel.Handle{},
	}
	s.box.Max = geom.Vec3{X: dx, Y: dy, Z: dz}
	s.computeMass()
	return s, nil
}

// Extrude moves a face plane along its outward normal by the signed
// distance. Positive distances fuse material, negative distances cut.
func (k *Kernel) Extrude(ctx context.Context, in kernel.Solid, face kernel.Handle, distance float64) (kernel.Solid, error) {
	s, err := k.own(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if face.Kind != kernel.KindFace || !s.hasHandle(face) {
		return nil, fmt.Errorf("%w: extrude target %v", kernel.ErrNotFound, face)
	}

	next := s.derive(k.nextGen())
	switch face.Index {
	case faceXMin:
		next.box.Min.X -= distance
	case faceXMax:
		next.box.Max.X += distance
	case faceYMin:
		next.box.Min.Y -= distance
	case faceYMax:
		next.box.Max.Y += distance
	case faceZMin:
		next.box.Min.Z -= distance
	case faceZMax:
		next.box.Max.Z += distance
	}

	size := next.box.Size()
	if size.X < minExtent || size.Y < minExtent || size.Z < minExtent {
		return nil, fmt.Errorf("%w: extrude by %g collapses the solid", kernel.ErrConstruction, distance)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next.computeMass()
	return next, nil
}

// Fillet replaces a sharp edge with a constant-radius blend. The edge is
// consumed: its tag stops resolving in the result.
func (k *Kernel) Fillet(ctx context.Context, in kernel.Solid, edge kernel.Handle, radius float64) (kernel.Solid, error) {
	return k.treatEdge(ctx, in, edge, treatFillet, radius)
}

// Chamfer replaces a sharp edge with a flat cut of the given distance.
func (k *Kernel) Chamfer(ctx context.Context, in kernel.Solid, edge kernel.Handle, distance float64) (kernel.Solid, error) {
	return k.treatEdge(ctx, in, edge, treatChamfer, distance)
}

func (k *Kernel) treatEdge(ctx context.Context, in kernel.Solid, edge kernel.Handle, kind treatmentKind, value float64) (kernel.Solid, error) {
	s, err := k.own(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if edge.Kind != kernel.KindEdge || !s.hasHandle(edge) {
		return nil, fmt.Errorf("%w: edge target %v", kernel.ErrNotFound, edge)
	}
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: blend size %g is not positive", kernel.ErrConstruction, value)
	}
	if limit := s.minAdjacentExtent(edge.Index) / 2; value > limit {
		return nil, fmt.Errorf("%w: blend size %g exceeds adjacent extent limit %g", kernel.ErrConstruction, value, limit)
	}

	next := s.derive(k.nextGen())
	next.treatments[edge.Index] = treatment{kind: kind, value: value}

	// The sharp edge no longer exists; drop any tag bound to it rather
	// than remapping it onto the blend surface.
	for id, h := range next.tags {
		if h.Kind == kernel.KindEdge && h.Index == edge.Index {
			delete(next.tags, id)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next.computeMass()
	return next, nil
}

// Tag attaches a persistent id to a live sub-shape.
func (k *Kernel) Tag(in kernel.Solid, h kernel.Handle, tag uuid.UUID) error {
	s, err := k.own(in)
	if err != nil {
		return err
	}
	if !s.hasHandle(h) {
		return fmt.Errorf("%w: tag target %v", kernel.ErrNotFound, h)
	}
	s.tagMu.Lock()
	s.tags[tag] = h
	s.tagMu.Unlock()
	return nil
}

// FindByTag resolves a persistent id within a build.
func (k *Kernel) FindByTag(in kernel.Solid, tag uuid.UUID) (kernel.Handle, error) {
	s, err := k.own(in)
	if err != nil {
		return kernel.Handle{}, err
	}
	s.tagMu.RLock()
	h, ok := s.tags[tag]
	s.tagMu.RUnlock()
	if !ok || !s.hasHandle(h) {
		return kernel.Handle{}, fmt.Errorf("%w: tag %s", kernel.ErrNotFound, tag)
	}
	return h, nil
}

// FaceFrame returns the center and outward normal of a face.
func (k *Kernel) FaceFrame(in kernel.Solid, face kernel.Handle) (kernel.Frame, error) {
	s, err := k.own(in)
	if err != nil {
		return kernel.Frame{}, err
	}
	if face.Kind != kernel.KindFace || !s.hasHandle(face) {
		return kernel.Frame{}, fmt.Errorf("%w: face %v", kernel.ErrNotFound, face)
	}
	return kernel.Frame{
		Origin: s.faceCenter(face.Index),
		Axis:   faceNormals[face.Index],
	}, nil
}

// EdgeFrame returns the midpoint and outward bisector of a sharp edge.
func (k *Kernel) EdgeFrame(in kernel.Solid, edge kernel.Handle) (kernel.Frame, error) {
	s, err := k.own(in)
	if err != nil {
		return kernel.Frame{}, err
	}
	if edge.Kind != kernel.KindEdge || !s.hasHandle(edge) {
		return kernel.Frame{}, fmt.Errorf("%w: edge %v", kernel.ErrNotFound, edge)
	}
	return kernel.Frame{
		Origin: s.edgeMidpoint(edge.Index),
		Axis:   s.edgeBisector(edge.Index),
	}, nil
}

// Validate checks the solid is a single closed manifold whose blends fit.
func (k *Kernel) Validate(in kernel.Solid) kernel.ValidationReport {
	s, err := k.own(in)
	if err != nil {
		return kernel.ValidationReport{Reason: err.Error()}
	}
	if !s.box.IsValid() {
		return kernel.ValidationReport{Reason: "degenerate extents"}
	}
	for edge, t := range s.treatments {
		if limit := s.minAdjacentExtent(edge) / 2; t.value > limit {
			return kernel.ValidationReport{Reason: fmt.Sprintf("blend on edge %d no longer fits", edge)}
		}
	}
	if s.mass.Volume <= 0 {
		return kernel.ValidationReport{Reason: "non-positive volume"}
	}
	return kernel.ValidationReport{Valid: true}
}

// Faces returns all face handles of a solid, in stable order.
func (k *Kernel) Faces(in kernel.Solid) []kernel.Handle {
	handles := make([]kernel.Handle, 0, faceCount)
	for i := 0; i < faceCount; i++ {
		handles = append(handles, kernel.Handle{Kind: kernel.KindFace, Index: i})
	}
	return handles
}

// Edges returns the live (untreated) edge handles of a solid.
func (k *Kernel) Edges(in kernel.Solid) []kernel.Handle {
	s, err := k.own(in)
	if err != nil {
		return nil
	}
	handles := make([]kernel.Handle, 0, edgeCount)
	for i := 0; i < edgeCount; i++ {
		if _, consumed := s.treatments[i]; consumed {
			continue
		}
		handles = append(handles, kernel.Handle{Kind: kernel.KindEdge, Index: i})
	}
	return handles
}

// own asserts the solid was produced by a box kernel.
func (k *Kernel) own(in kernel.Solid) (*solid, error) {
	s, ok := in.(*solid)
	if !ok {
		return nil, fmt.Errorf("%w: foreign solid %T", kernel.ErrConstruction, in)
	}
	return s, nil
}
