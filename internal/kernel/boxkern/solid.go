package boxkern

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel"
)

// Face indices of an axis-aligned box.
const (
	faceXMin = iota
	faceXMax
	faceYMin
	faceYMax
	faceZMin
	faceZMax
	faceCount
)

const (
	edgeCount   = 12
	vertexCount = 8
)

// faceNormals maps face index to outward normal.
var faceNormals = [faceCount]geom.Vec3{
	{X: -1}, {X: 1},
	{Y: -1}, {Y: 1},
	{Z: -1}, {Z: 1},
}

// edgeFaces maps edge index to its two adjacent faces. Edges 0-3 run
// along X, 4-7 along Y, 8-11 along Z.
var edgeFaces = [edgeCount][2]int{
	{faceYMin, faceZMin}, {faceYMin, faceZMax}, {faceYMax, faceZMin}, {faceYMax, faceZMax},
	{faceXMin, faceZMin}, {faceXMin, faceZMax}, {faceXMax, faceZMin}, {faceXMax, faceZMax},
	{faceXMin, faceYMin}, {faceXMin, faceYMax}, {faceXMax, faceYMin}, {faceXMax, faceYMax},
}

// edgeAxis returns 0, 1 or 2 for the axis an edge runs along.
func edgeAxis(edge int) int {
	return edge / 4
}

type treatmentKind uint8

const (
	treatFillet treatmentKind = iota
	treatChamfer
)

// treatment records a fillet or chamfer applied to an edge. A treated
// edge is consumed: it no longer exists as a sharp edge in the topology.
type treatment struct {
	kind  treatmentKind
	value float64
}

// solid is an immutable box-derived solid. The tag table is the only
// mutable part; hover-time tagging can land while a worker derives a
// rebuild from the same snapshot, so it is guarded by its own lock.
type solid struct {
	gen        uint64
	box        geom.Box
	treatments map[int]treatment
	mass       kernel.MassProps

	tagMu sync.RWMutex
	tags  map[uuid.UUID]kernel.Handle
}

func (s *solid) Generation() uint64     { return s.gen }
func (s *solid) Mass() kernel.MassProps { return s.mass }

// axisExtent returns the box extent along axis 0, 1 or 2.
func (s *solid) axisExtent(axis int) float64 {
	size := s.box.Size()
	switch axis {
	case 0:
		return size.X
	case 1:
		return size.Y
	case 2:
		return size.Z
	}
	return 0
}

// minAdjacentExtent returns the smaller of the two extents perpendicular
// to an edge, which bounds how large a blend on that edge can be.
func (s *solid) minAdjacentExtent(edge int) float64 {
	min := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		if axis == edgeAxis(edge) {
			continue
		}
		if e := s.axisExtent(axis); e < min {
			min = e
		}
	}
	return min
}

// computeMass derives analytic mass properties: the raw box volume minus
// the material removed by each edge treatment.
func (s *solid) computeMass() {
	vol := s.box.Volume()
	for edge, t := range s.treatments {
		length := s.axisExtent(edgeAxis(edge))
		switch t.kind {
		case treatFillet:
			vol -= (1 - math.Pi/4) * t.value * t.value * length
		case treatChamfer:
			vol -= t.value * t.value / 2 * length
		}
	}
	s.mass = kernel.MassProps{
		Volume: vol,
		Center: s.box.Center(),
		Bounds: s.box,
	}
}

// derive builds the successor solid for a rebuild: same geometry, next
// generation, deep-copied treatment and tag tables. Tags whose sub-shape
// was consumed are dropped by the caller.
func (s *solid) derive(gen uint64) *solid {
	next := &solid{
		gen:        gen,
		box:        s.box,
		treatments: make(map[int]treatment, len(s.treatments)),
	}
	for e, t := range s.treatments {
		next.treatments[e] = t
	}
	s.tagMu.RLock()
	next.tags = make(map[uuid.UUID]kernel.Handle, len(s.tags))
	for id, h := range s.tags {
		next.tags[id] = h
	}
	s.tagMu.RUnlock()
	return next
}

// hasHandle reports whether a handle names a live sub-shape in this build.
func (s *solid) hasHandle(h kernel.Handle) bool {
	switch h.Kind {
	case kernel.KindFace:
		return h.Index >= 0 && h.Index < faceCount
	case kernel.KindEdge:
		if h.Index < 0 || h.Index >= edgeCount {
			return false
		}
		_, consumed := s.treatments[h.Index]
		return !consumed
	case kernel.KindVertex:
		return h.Index >= 0 && h.Index < vertexCount
	}
	return false
}

// faceCenter returns the centroid of a face rectangle.
func (s *solid) faceCenter(face int) geom.Vec3 {
	c := s.box.Center()
	switch face {
	case faceXMin:
		c.X = s.box.Min.X
	case faceXMax:
		c.X = s.box.Max.X
	case faceYMin:
		c.Y = s.box.Min.Y
	case faceYMax:
		c.Y = s.box.Max.Y
	case faceZMin:
		c.Z = s.box.Min.Z
	case faceZMax:
		c.Z = s.box.Max.Z
	}
	return c
}

// edgeMidpoint returns the midpoint of a sharp edge.
func (s *solid) edgeMidpoint(edge int) geom.Vec3 {
	p := s.box.Center()
	for _, face := range edgeFaces[edge] {
		switch face {
		case faceXMin:
			p.X = s.box.Min.X
		case faceXMax:
			p.X = s.box.Max.X
		case faceYMin:
			p.Y = s.box.Min.Y
		case faceYMax:
			p.Y = s.box.Max.Y
		case faceZMin:
			p.Z = s.box.Min.Z
		case faceZMax:
			p.Z = s.box.Max.Z
		}
	}
	return p
}

// edgeBisector returns the outward bisector of the two faces adjacent to
// an edge.
func (s *solid) edgeBisector(edge int) geom.Vec3 {
	pair := edgeFaces[edge]
	return faceNormals[pair[0]].Add(faceNormals[pair[1]]).Normalized()
}
