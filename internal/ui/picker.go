package ui

import (
	"sync"

	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/refs"
)

// DefaultPickRadius is the hit distance in screen cells.
const DefaultPickRadius = 2.0

// Picker hit-tests the pointer against projected face centers and edge
// midpoints of the current solid. It mints persistent references lazily
// and reuses them, so hovering does not grow the registry.
type Picker struct {
	kern    kernel.Kernel
	reg     *refs.Registry
	current func() kernel.Solid
	radius  float64

	mu     sync.Mutex
	cache  map[kernel.Handle]refs.Ref
	forced *refs.Ref
}

// NewPicker creates a picker. current must return the solid being
// rendered.
func NewPicker(kern kernel.Kernel, reg *refs.Registry, current func() kernel.Solid) *Picker {
	return &Picker{
		kern:    kern,
		reg:     reg,
		current: current,
		radius:  DefaultPickRadius,
		cache:   make(map[kernel.Handle]refs.Ref),
	}
}

// Force pins the pick result, for keyboard-driven entity cycling. The
// pointer position is ignored until Unforce.
func (p *Picker) Force(ref refs.Ref) {
	p.mu.Lock()
	p.forced = &ref
	p.mu.Unlock()
}

// Unforce returns the picker to pointer hit-testing.
func (p *Picker) Unforce() {
	p.mu.Lock()
	p.forced = nil
	p.mu.Unlock()
}

// Pick returns the entity nearest the point, if any is within the pick
// radius. Edges win ties against faces: they are smaller targets.
func (p *Picker) Pick(pt geom.ScreenPoint, cam geom.Camera) (refs.Ref, bool) {
	p.mu.Lock()
	forced := p.forced
	p.mu.Unlock()
	if forced != nil {
		return *forced, true
	}

	s := p.current()
	best := refs.Ref{}
	bestDist := p.radius
	found := false

	for _, h := range p.kern.Edges(s) {
		frame, err := p.kern.EdgeFrame(s, h)
		if err != nil {
			continue
		}
		if d, ok := p.distance(pt, cam, frame.Origin); ok && d <= bestDist {
			if ref, err := p.refFor(s, h); err == nil {
				best, bestDist, found = ref, d, true
			}
		}
	}
	for _, h := range p.kern.Faces(s) {
		frame, err := p.kern.FaceFrame(s, h)
		if err != nil {
			continue
		}
		if d, ok := p.distance(pt, cam, frame.Origin); ok && d < bestDist {
			if ref, err := p.refFor(s, h); err == nil {
				best, bestDist, found = ref, d, true
			}
		}
	}
	return best, found
}

// Handles lists pickable sub-shapes, faces first, for keyboard cycling.
func (p *Picker) Handles() []kernel.Handle {
	s := p.current()
	handles := p.kern.Faces(s)
	return append(handles, p.kern.Edges(s)...)
}

// RefFor returns the persistent reference for a handle on the current
// solid, minting one on first use.
func (p *Picker) RefFor(h kernel.Handle) (refs.Ref, error) {
	return p.refFor(p.current(), h)
}

func (p *Picker) refFor(s kernel.Solid, h kernel.Handle) (refs.Ref, error) {
	p.mu.Lock()
	ref, ok := p.cache[h]
	p.mu.Unlock()
	if ok {
		// Cached references can go stale when a blend consumed the
		// entity and a later undo brought an identically-numbered one
		// back. Re-resolve before trusting it.
		if _, err := p.reg.Resolve(ref, s); err == nil {
			return ref, nil
		}
	}

	ref, err := p.reg.Register(s, h)
	if err != nil {
		return refs.Ref{}, err
	}
	p.mu.Lock()
	p.cache[h] = ref
	p.mu.Unlock()
	return ref, nil
}

func (p *Picker) distance(pt geom.ScreenPoint, cam geom.Camera, world geom.Vec3) (float64, bool) {
	proj, ok := cam.Project(world)
	if !ok {
		return 0, false
	}
	return proj.Delta(pt).Len(), true
}
