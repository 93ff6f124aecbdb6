// Package refs implements persistent naming for topological entities.
// Kernel handles are ephemeral: every boolean or blend rebuild may
// renumber them. The registry mints stable ids, attaches them to the
// kernel's tag facility, and re-resolves on demand, so no raw handle is
// ever stored across a snapshot boundary.
package refs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/carvecad/carve/internal/kernel"
)

// Errors returned by registry operations.
var (
	// ErrNotFound indicates the referenced entity no longer exists in
	// the given build. Callers must treat this as reportable, not fatal.
	ErrNotFound = errors.New("reference does not resolve")

	// ErrKindMismatch indicates the kernel returned a handle of a
	// different topological kind than the reference was registered with.
	// Ambiguity resolves to an error, never to a guess.
	ErrKindMismatch = errors.New("reference kind mismatch")

	// ErrUnknownRef indicates a reference that was never registered.
	ErrUnknownRef = errors.New("unknown reference")
)

// Ref is a stable identity for a face, edge or vertex, valid across
// kernel rebuilds for as long as the underlying feature survives.
type Ref struct {
	ID   uuid.UUID
	Kind kernel.Kind
}

// String renders the ref for logs and status messages.
func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, shortID(r.ID))
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

type entry struct {
	kind     kernel.Kind
	lastSeen uint64
}

// Registry maps persistent ids to entity metadata and drives the
// kernel's tag facility. The internal map is mutated only on the owning
// goroutine; worker goroutines never touch it.
type Registry struct {
	mu      sync.Mutex
	kern    kernel.Kernel
	entries map[uuid.UUID]*entry
}

// NewRegistry creates a registry over the given kernel.
func NewRegistry(kern kernel.Kernel) *Registry {
	return &Registry{
		kern:    kern,
		entries: map[uuid.UUID]*entry{},
	}
}

// Register mints a persistent id for a concrete sub-shape of the given
// build and tags it in the kernel.
func (r *Registry) Register(s kernel.Solid, h kernel.Handle) (Ref, error) {
	id := uuid.New()
	if err := r.kern.Tag(s, h, id); err != nil {
		return Ref{}, fmt.Errorf("tag %v: %w", h, err)
	}

	r.mu.Lock()
	r.entries[id] = &entry{kind: h.Kind, lastSeen: s.Generation()}
	r.mu.Unlock()

	return Ref{ID: id, Kind: h.Kind}, nil
}

// Resolve maps a reference to the concrete handle in the given build.
// A reference resolves to exactly one handle or to ErrNotFound; a
// registered edge never resolves to a face.
func (r *Registry) Resolve(ref Ref, s kernel.Solid) (kernel.Handle, error) {
	r.mu.Lock()
	ent, ok := r.entries[ref.ID]
	r.mu.Unlock()
	if !ok {
		return kernel.Handle{}, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}

	h, err := r.kern.FindByTag(s, ref.ID)
	if err != nil {
		if errors.Is(err, kernel.ErrNotFound) {
			return kernel.Handle{}, fmt.Errorf("%w: %s in generation %d", ErrNotFound, ref, s.Generation())
		}
		return kernel.Handle{}, err
	}
	if h.Kind != ent.kind {
		return kernel.Handle{}, fmt.Errorf("%w: %s resolved to %s", ErrKindMismatch, ref, h.Kind)
	}

	r.mu.Lock()
	if gen := s.Generation(); gen > ent.lastSeen {
		ent.lastSeen = gen
	}
	r.mu.Unlock()

	return h, nil
}

// Rebind refreshes last-seen generations against a newly accepted build
// and reports how many references still resolve in it. Called on the
// owning goroutine after a worker result is accepted.
func (r *Registry) Rebind(s kernel.Solid) int {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	live := 0
	gen := s.Generation()
	for _, id := range ids {
		h, err := r.kern.FindByTag(s, id)
		if err != nil {
			continue
		}
		r.mu.Lock()
		if ent, ok := r.entries[id]; ok && ent.kind == h.Kind {
			if gen > ent.lastSeen {
				ent.lastSeen = gen
			}
			live++
		}
		r.mu.Unlock()
	}
	return live
}

// Forget discards a reference. Resolving it afterwards returns
// ErrUnknownRef.
func (r *Registry) Forget(ref Ref) {
	r.mu.Lock()
	delete(r.entries, ref.ID)
	r.mu.Unlock()
}

// Len returns the number of registered references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
