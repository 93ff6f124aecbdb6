// Package engine orchestrates direct edits: it resolves the target
// reference against the current snapshot, invokes the kernel operation on
// a worker goroutine, validates the result, and commits it to history.
// The registry and history are mutated only on the goroutine that calls
// Apply; the worker computes and hands back, nothing more.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/engine/history"
	"github.com/carvecad/carve/internal/event"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/logging"
	"github.com/carvecad/carve/internal/refs"
)

// Defaults used when no option overrides them.
const (
	DefaultMinMagnitude  = 1e-6
	DefaultKernelTimeout = 5 * time.Second
)

// State is the engine's position in the edit cycle.
type State uint8

const (
	// StateIdle means no entity is targeted and nothing is running.
	StateIdle State = iota
	// StateTargeting means an entity is hovered or selected.
	StateTargeting
	// StateProposing means a drag is in progress and descriptors are
	// being previewed.
	StateProposing
	// StateExecuting means a kernel invocation is in flight.
	StateExecuting
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTargeting:
		return "targeting"
	case StateProposing:
		return "proposing"
	case StateExecuting:
		return "executing"
	default:
		return "unknown"
	}
}

// Result is one finished kernel invocation, delivered on Results. A
// non-nil Err means the edit failed or was cancelled; Solid is nil then.
type Result struct {
	Edit  edit.Descriptor
	Solid kernel.Solid
	Err   error
}

// Engine owns the operation state machine. At most one kernel invocation
// is in flight; a second Execute while busy is rejected immediately.
// History and registry mutations happen only in Apply, Undo, Redo and
// Import, which the front end calls from its own single event goroutine.
type Engine struct {
	kern kernel.Kernel
	reg  *refs.Registry
	hist *history.History
	bus  *event.Bus
	log  *logging.Logger

	minMagnitude  float64
	kernelTimeout time.Duration
	historyLimit  int

	mu        sync.Mutex
	state     State
	busy      bool
	cancelled bool
	cancel    context.CancelFunc

	results chan Result
}

// New seeds an engine with the initial solid as the first snapshot.
func New(kern kernel.Kernel, initial kernel.Solid, opts ...Option) *Engine {
	e := &Engine{
		kern:          kern,
		bus:           event.NewBus(),
		log:           logging.Discard(),
		minMagnitude:  DefaultMinMagnitude,
		kernelTimeout: DefaultKernelTimeout,
		historyLimit:  history.DefaultMaxEntries,
		results:       make(chan Result, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reg == nil {
		e.reg = refs.NewRegistry(kern)
	}
	e.hist = history.New(initial, e.historyLimit)
	return e
}

// Registry returns the reference registry the engine resolves against.
func (e *Engine) Registry() *refs.Registry { return e.reg }

// History returns the snapshot history.
func (e *Engine) History() *history.History { return e.hist }

// Bus returns the event bus the engine publishes on.
func (e *Engine) Bus() *event.Bus { return e.bus }

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentSolid returns the solid under the history cursor, the one the
// viewport should render.
func (e *Engine) CurrentSolid() kernel.Solid {
	return e.hist.Current().Solid
}

// Targeting records that an entity is hovered or selected. Ignored while
// an edit is executing.
func (e *Engine) Targeting() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateExecuting {
		e.state = StateTargeting
	}
}

// Proposing records that a drag is previewing descriptors. Ignored while
// an edit is executing.
func (e *Engine) Proposing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateExecuting {
		e.state = StateProposing
	}
}

// Idle returns the state machine to idle, as when a drag is cancelled or
// the selection cleared. Ignored while an edit is executing.
func (e *Engine) Idle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateExecuting {
		e.state = StateIdle
	}
}

// Execute starts one edit against the current snapshot. It validates the
// descriptor, resolves the target, and hands the kernel invocation to a
// worker goroutine; the outcome arrives on Results and must be passed to
// Apply. While an edit is in flight further Execute, Undo, Redo and
// Import calls fail with ErrEngineBusy, which also pins the baseline
// snapshot for the worker's whole run.
func (e *Engine) Execute(ctx context.Context, desc edit.Descriptor) error {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return e.fail(desc, ErrEngineBusy)
	}

	if abs(desc.Parameter) < e.minMagnitude {
		e.state = StateIdle
		e.mu.Unlock()
		return e.fail(desc, fmt.Errorf("%w: %.3g", ErrTrivialEdit, desc.Parameter))
	}

	baseline := e.hist.Current().Solid
	handle, err := e.reg.Resolve(desc.Target, baseline)
	if err != nil {
		e.state = StateIdle
		e.mu.Unlock()
		return e.fail(desc, staleOr(err))
	}

	opCtx, cancel := context.WithTimeout(ctx, e.kernelTimeout)
	e.busy = true
	e.cancelled = false
	e.state = StateExecuting
	e.cancel = cancel
	e.mu.Unlock()

	e.log.Debug("executing %s", desc)
	go e.run(opCtx, cancel, desc, baseline, handle)
	return nil
}

func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, desc edit.Descriptor, baseline kernel.Solid, handle kernel.Handle) {
	defer cancel()

	solid, err := e.invoke(ctx, desc, baseline, handle)
	if err == nil {
		if report := e.kern.Validate(solid); !report.Valid {
			solid, err = nil, fmt.Errorf("%w: %s", ErrInvalidGeometry, report.Reason)
		}
	}
	e.results <- Result{Edit: desc, Solid: solid, Err: err}
}

func (e *Engine) invoke(ctx context.Context, desc edit.Descriptor, baseline kernel.Solid, handle kernel.Handle) (kernel.Solid, error) {
	var (
		solid kernel.Solid
		err   error
	)
	switch desc.Kind {
	case edit.PushPull:
		solid, err = e.kern.Extrude(ctx, baseline, handle, desc.Parameter)
	case edit.Fillet:
		solid, err = e.kern.Fillet(ctx, baseline, handle, desc.Parameter)
	case edit.Chamfer:
		solid, err = e.kern.Chamfer(ctx, baseline, handle, desc.Parameter)
	default:
		return nil, fmt.Errorf("%w: unknown edit kind %d", ErrKernel, desc.Kind)
	}
	if err == nil {
		return solid, nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: timed out after %s", ErrKernel, e.kernelTimeout)
	case errors.Is(err, context.Canceled):
		return nil, ErrCancelled
	case errors.Is(err, kernel.ErrConstruction):
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrKernel, err)
	}
}

// Results delivers finished invocations. The channel holds one result;
// the front end's event loop receives from it and calls Apply.
func (e *Engine) Results() <-chan Result {
	return e.results
}

// Apply commits a worker result on the owning goroutine. A successful
// result becomes the new current snapshot and the registry rebinds to it.
// Failed or cancelled results leave history untouched; a result computed
// under an interaction the user cancelled is discarded even when the
// kernel finished before the cancellation landed.
func (e *Engine) Apply(res Result) (*history.Snapshot, error) {
	e.mu.Lock()
	cancelled := e.cancelled
	e.busy = false
	e.cancelled = false
	e.cancel = nil
	e.state = StateIdle
	e.mu.Unlock()

	if res.Err == nil && cancelled {
		res.Solid, res.Err = nil, ErrCancelled
	}
	if res.Err != nil {
		return nil, e.fail(res.Edit, res.Err)
	}

	desc := res.Edit
	snap := e.hist.Push(res.Solid, &desc)
	live := e.reg.Rebind(res.Solid)
	e.log.Info("applied %s, generation %d, %d refs live", desc, res.Solid.Generation(), live)

	e.bus.Publish(event.Event{
		Topic: event.TopicEditExecuted,
		Payload: event.EditApplied{
			Edit:       desc,
			Generation: res.Solid.Generation(),
			Volume:     res.Solid.Mass().Volume,
		},
		Source: "engine",
	})
	e.publishHistoryMoved()
	e.status(fmt.Sprintf("Applied %s.", desc))
	return snap, nil
}

// ExecuteSync runs one edit to completion: Execute, wait for the worker,
// Apply. Intended for scripting and tests; the interactive front end uses
// the asynchronous pair instead.
func (e *Engine) ExecuteSync(ctx context.Context, desc edit.Descriptor) (*history.Snapshot, error) {
	if err := e.Execute(ctx, desc); err != nil {
		return nil, err
	}
	return e.Apply(<-e.results)
}

// Cancel aborts the in-flight edit, if any. The worker's result still
// arrives on Results and is discarded by Apply, whether the kernel call
// observed the cancellation or had already completed.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	cancel := e.cancel
	if cancel != nil {
		e.cancelled = true
	}
	e.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Undo moves back one snapshot. At the first snapshot it is a no-op.
func (e *Engine) Undo() (*history.Snapshot, bool, error) {
	if err := e.requireIdle(); err != nil {
		return nil, false, err
	}
	snap, moved := e.hist.Undo()
	if moved {
		e.reg.Rebind(snap.Solid)
		e.publishHistoryMoved()
		e.status("Undo.")
	}
	return snap, moved, nil
}

// Redo moves forward one snapshot. At the tail it is a no-op.
func (e *Engine) Redo() (*history.Snapshot, bool, error) {
	if err := e.requireIdle(); err != nil {
		return nil, false, err
	}
	snap, moved := e.hist.Redo()
	if moved {
		e.reg.Rebind(snap.Solid)
		e.publishHistoryMoved()
		e.status("Redo.")
	}
	return snap, moved, nil
}

// Import replaces the document with a solid read from a STEP file.
// History is reseeded; references registered against the old document
// stop resolving.
func (e *Engine) Import(path string) (kernel.Solid, error) {
	if err := e.requireIdle(); err != nil {
		return nil, err
	}
	solid, err := e.kern.ImportSTEP(path)
	if err != nil {
		wrapped := fmt.Errorf("%w: import %s: %v", ErrIO, path, err)
		e.status(Describe(wrapped))
		return nil, wrapped
	}
	e.hist.Reset(solid)
	e.reg.Rebind(solid)
	e.publishHistoryMoved()
	e.status(fmt.Sprintf("Imported %s.", path))
	return solid, nil
}

// Export writes the current solid to a STEP file.
func (e *Engine) Export(path string) error {
	if err := e.kern.ExportSTEP(e.CurrentSolid(), path); err != nil {
		wrapped := fmt.Errorf("%w: export %s: %v", ErrIO, path, err)
		e.status(Describe(wrapped))
		return wrapped
	}
	e.status(fmt.Sprintf("Exported %s.", path))
	return nil
}

func (e *Engine) requireIdle() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrEngineBusy
	}
	return nil
}

// fail reports a recoverable edit failure and returns the error.
func (e *Engine) fail(desc edit.Descriptor, err error) error {
	msg := Describe(err)
	if errors.Is(err, ErrCancelled) {
		e.log.Debug("edit cancelled: %s", desc)
	} else {
		e.log.Warn("edit failed: %s: %v", desc, err)
	}
	e.bus.Publish(event.Event{
		Topic:   event.TopicEditFailed,
		Payload: event.EditFailure{Edit: desc, Message: msg},
		Source:  "engine",
	})
	e.status(msg)
	return err
}

func (e *Engine) publishHistoryMoved() {
	e.bus.Publish(event.Event{
		Topic: event.TopicHistoryMoved,
		Payload: event.HistoryMove{
			Cursor: e.hist.Cursor(),
			Length: e.hist.Len(),
		},
		Source: "engine",
	})
}

func (e *Engine) status(msg string) {
	e.bus.Publish(event.Event{
		Topic:   event.TopicStatus,
		Payload: event.Status{Message: msg},
		Source:  "engine",
	})
}

// staleOr maps registry resolution failures onto the engine taxonomy.
func staleOr(err error) error {
	if errors.Is(err, refs.ErrNotFound) || errors.Is(err, refs.ErrUnknownRef) || errors.Is(err, refs.ErrKindMismatch) {
		return fmt.Errorf("%w: %v", ErrStaleReference, err)
	}
	return fmt.Errorf("%w: %v", ErrKernel, err)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
