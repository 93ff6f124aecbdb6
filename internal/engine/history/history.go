// Package history maintains the linear undo/redo sequence of immutable
// solid snapshots. It is the single source of truth for which solid
// exists right now: every reader gets the current snapshot's solid,
// never a mutable handle into it.
package history

import (
	"sync"
	"time"

	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/kernel"
)

// DefaultMaxEntries bounds history length when no cap is configured.
const DefaultMaxEntries = 64

// Snapshot is one committed state: an immutable solid plus the edit that
// produced it. The descriptor is nil for the initial or imported solid.
// Snapshots are never mutated after creation.
type Snapshot struct {
	Solid kernel.Solid
	Edit  *edit.Descriptor
	Seq   uint64
	Taken time.Time
}

// History is an ordered sequence of snapshots with a cursor. Entries
// beyond the cursor form the redo branch and are discarded whenever a
// new snapshot is pushed from an earlier position.
type History struct {
	mu         sync.Mutex
	snaps      []*Snapshot
	cursor     int
	maxEntries int
	seq        uint64
}

// New seeds a history with the initial solid at length 1, cursor 0.
func New(initial kernel.Solid, maxEntries int) *History {
	if maxEntries <= 1 {
		maxEntries = DefaultMaxEntries
	}
	h := &History{maxEntries: maxEntries}
	h.snaps = []*Snapshot{h.newSnapshot(initial, nil)}
	return h
}

func (h *History) newSnapshot(s kernel.Solid, desc *edit.Descriptor) *Snapshot {
	snap := &Snapshot{
		Solid: s,
		Edit:  desc,
		Seq:   h.seq,
		Taken: time.Now(),
	}
	h.seq++
	return snap
}

// Push records a new snapshot produced by desc. Any redo branch beyond
// the cursor is truncated first; then the cursor advances to the new
// tail. When the cap is exceeded the oldest entry is evicted.
func (h *History) Push(s kernel.Solid, desc *edit.Descriptor) *Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.snaps = h.snaps[:h.cursor+1]
	snap := h.newSnapshot(s, desc)
	h.snaps = append(h.snaps, snap)
	h.cursor = len(h.snaps) - 1

	if len(h.snaps) > h.maxEntries {
		excess := len(h.snaps) - h.maxEntries
		h.snaps = append([]*Snapshot(nil), h.snaps[excess:]...)
		h.cursor -= excess
	}
	return snap
}

// Undo moves the cursor back one snapshot. At the first snapshot it is a
// no-op: the current snapshot is returned with moved == false.
func (h *History) Undo() (*Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor == 0 {
		return h.snaps[h.cursor], false
	}
	h.cursor--
	return h.snaps[h.cursor], true
}

// Redo moves the cursor forward one snapshot. At the tail it is a no-op.
func (h *History) Redo() (*Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor >= len(h.snaps)-1 {
		return h.snaps[h.cursor], false
	}
	h.cursor++
	return h.snaps[h.cursor], true
}

// Current returns the snapshot under the cursor.
func (h *History) Current() *Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snaps[h.cursor]
}

// Reset discards everything and reseeds with a new initial solid, as
// after a STEP import.
func (h *History) Reset(initial kernel.Solid) *Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := h.newSnapshot(initial, nil)
	h.snaps = []*Snapshot{snap}
	h.cursor = 0
	return snap
}

// Len returns the number of snapshots.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snaps)
}

// Cursor returns the current cursor index.
func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// CanUndo returns true if the cursor can move back.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanRedo returns true if a redo branch exists.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.snaps)-1
}
