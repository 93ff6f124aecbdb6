// Package gesture converts pointer drags into edit descriptors. A drag
// over a face becomes a signed push/pull distance along the face's
// outward normal; a drag over an edge becomes a fillet radius (away
// from the material) or a chamfer distance (into it), discriminated by
// the sign of the displacement along the edge's outward bisector.
package gesture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/refs"
)

// Errors returned by the interpreter.
var (
	// ErrNoDrag indicates Update or End was called without an active drag.
	ErrNoDrag = errors.New("no drag in progress")

	// ErrCancelled indicates the drag ended without leaving the dead
	// zone or was cancelled explicitly. No descriptor is produced and no
	// state is committed.
	ErrCancelled = errors.New("drag cancelled")

	// ErrUnsupportedTarget indicates the target kind has no drag
	// semantics (vertices, for now).
	ErrUnsupportedTarget = errors.New("unsupported drag target")
)

// Frames is the kernel capability the interpreter needs: local edit
// frames for the dragged entity.
type Frames interface {
	FaceFrame(s kernel.Solid, face kernel.Handle) (kernel.Frame, error)
	EdgeFrame(s kernel.Solid, edge kernel.Handle) (kernel.Frame, error)
}

// Resolver maps persistent references to concrete handles in a build.
// *refs.Registry satisfies it.
type Resolver interface {
	Resolve(ref refs.Ref, s kernel.Solid) (kernel.Handle, error)
}

// Config tunes drag interpretation.
type Config struct {
	// Sensitivity scales world-space displacement into the parameter.
	Sensitivity float64
	// DeadZonePx is the pixel radius the pointer must leave before the
	// drag arms. Releasing inside it cancels the gesture.
	DeadZonePx float64
	// PreviewDelta is the minimum parameter change before Update emits
	// a new provisional descriptor.
	PreviewDelta float64
}

// DefaultConfig returns drag tuning matched to a desktop viewport.
func DefaultConfig() Config {
	return Config{Sensitivity: 1.0, DeadZonePx: 3, PreviewDelta: 0.01}
}

type phase uint8

const (
	phaseIdle phase = iota
	// phasePressed means the pointer is down but still inside the dead
	// zone.
	phasePressed
	phaseDragging
)

// Interpreter is the drag state machine. One drag at a time.
type Interpreter struct {
	mu  sync.Mutex
	cfg Config

	frames   Frames
	resolver Resolver

	state  phase
	target refs.Ref
	anchor geom.ScreenPoint
	cam    geom.Camera
	frame  kernel.Frame
	// flip inverts the parameter when the dragged face points away from
	// the camera, so "drag up" still pulls material toward the viewer.
	flip bool

	lastEmitted float64
	hasEmitted  bool
	lastDesc    edit.Descriptor
}

// New creates an interpreter.
func New(cfg Config, frames Frames, resolver Resolver) *Interpreter {
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = 1
	}
	return &Interpreter{cfg: cfg, frames: frames, resolver: resolver}
}

// Begin starts a drag on the target entity at the anchor point. The
// entity's edit frame is resolved against the baseline solid once, up
// front; a stale target fails here rather than mid-drag.
func (in *Interpreter) Begin(target refs.Ref, baseline kernel.Solid, anchor geom.ScreenPoint, cam geom.Camera) error {
	handle, err := in.resolver.Resolve(target, baseline)
	if err != nil {
		return err
	}

	var frame kernel.Frame
	switch target.Kind {
	case kernel.KindFace:
		frame, err = in.frames.FaceFrame(baseline, handle)
	case kernel.KindEdge:
		frame, err = in.frames.EdgeFrame(baseline, handle)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedTarget, target.Kind)
	}
	if err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = phasePressed
	in.target = target
	in.anchor = anchor
	in.cam = cam
	in.frame = frame
	in.flip = target.Kind == kernel.KindFace && !cam.FacesViewer(frame.Origin, frame.Axis)
	in.lastEmitted = 0
	in.hasEmitted = false
	return nil
}

// Update advances the drag to a new pointer position. It returns a
// provisional descriptor and true when the preview should refresh:
// the drag has left the dead zone and the parameter moved by at least
// PreviewDelta since the last emission.
func (in *Interpreter) Update(p geom.ScreenPoint) (edit.Descriptor, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.state == phaseIdle {
		return edit.Descriptor{}, false
	}
	if in.state == phasePressed {
		if in.anchor.Delta(p).Len() < in.cfg.DeadZonePx {
			return edit.Descriptor{}, false
		}
		in.state = phaseDragging
	}

	desc := in.describe(p)
	if in.hasEmitted && abs(desc.Parameter-in.lastEmitted) < in.cfg.PreviewDelta {
		return edit.Descriptor{}, false
	}
	in.lastEmitted = desc.Parameter
	in.hasEmitted = true
	in.lastDesc = desc
	return desc, true
}

// Proposal returns the most recently emitted descriptor of the current
// drag. ok is false before the first emission.
func (in *Interpreter) Proposal() (edit.Descriptor, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state == phaseIdle || !in.hasEmitted {
		return edit.Descriptor{}, false
	}
	return in.lastDesc, true
}

// End finishes the drag. If the pointer never left the dead zone the
// gesture is cancelled and ErrCancelled is returned with no descriptor.
func (in *Interpreter) End(p geom.ScreenPoint) (edit.Descriptor, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch in.state {
	case phaseIdle:
		return edit.Descriptor{}, ErrNoDrag
	case phasePressed:
		in.reset()
		return edit.Descriptor{}, fmt.Errorf("%w: released inside dead zone", ErrCancelled)
	}

	desc := in.describe(p)
	in.reset()
	return desc, nil
}

// Cancel abandons the drag, leaving selection and history untouched.
func (in *Interpreter) Cancel() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.reset()
}

// Active returns true while a drag is in progress.
func (in *Interpreter) Active() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state != phaseIdle
}

// Target returns the entity being dragged, valid while Active.
func (in *Interpreter) Target() refs.Ref {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.target
}

func (in *Interpreter) reset() {
	in.state = phaseIdle
	in.target = refs.Ref{}
	in.frame = kernel.Frame{}
	in.flip = false
	in.lastEmitted = 0
	in.hasEmitted = false
	in.lastDesc = edit.Descriptor{}
}

// describe projects the current displacement onto the entity's edit
// axis. Sensitivity is applied after the view-distance scaling in the
// camera mapping, so screen-space feel stays constant across zoom.
func (in *Interpreter) describe(p geom.ScreenPoint) edit.Descriptor {
	world := in.cam.ScreenDeltaToWorld(in.anchor.Delta(p)).Scale(in.cfg.Sensitivity)
	along := world.Dot(in.frame.Axis)
	if in.flip {
		along = -along
	}

	desc := edit.Descriptor{
		Target: in.target,
		Source: edit.SourceGesture,
	}
	switch in.target.Kind {
	case kernel.KindEdge:
		// Away from the material selects fillet, into it chamfer; the
		// blend size is the magnitude either way.
		if along < 0 {
			desc.Kind = edit.Chamfer
			desc.Parameter = -along
		} else {
			desc.Kind = edit.Fillet
			desc.Parameter = along
		}
	default:
		desc.Kind = edit.PushPull
		desc.Parameter = along
	}
	return desc
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
