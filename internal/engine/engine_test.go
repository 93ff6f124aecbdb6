package engine

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/event"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/kernel/boxkern"
	"github.com/carvecad/carve/internal/refs"
)

const volEps = 1e-9

type fixture struct {
	eng  *Engine
	cube kernel.Solid
	top  refs.Ref
	edge refs.Ref
}

// newFixture builds an engine over a unit cube with the top face and one
// top edge registered. A non-nil kern wraps or replaces the box kernel.
func newFixture(t *testing.T, kern kernel.Kernel) *fixture {
	t.Helper()
	inner := boxkern.New()
	if kern == nil {
		kern = inner
	}
	cube, err := inner.NewBox(1, 1, 1)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	eng := New(kern, cube)

	top, err := eng.Registry().Register(cube, kernel.Handle{Kind: kernel.KindFace, Index: 5})
	if err != nil {
		t.Fatalf("register face: %v", err)
	}
	edge, err := eng.Registry().Register(cube, kernel.Handle{Kind: kernel.KindEdge, Index: 3})
	if err != nil {
		t.Fatalf("register edge: %v", err)
	}
	return &fixture{eng: eng, cube: cube, top: top, edge: edge}
}

func pushPull(target refs.Ref, dist float64) edit.Descriptor {
	return edit.Descriptor{Kind: edit.PushPull, Target: target, Parameter: dist}
}

func TestPushPullUndoRedo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	snap, err := f.eng.ExecuteSync(ctx, pushPull(f.top, 2))
	if err != nil {
		t.Fatalf("ExecuteSync: %v", err)
	}
	if vol := snap.Solid.Mass().Volume; math.Abs(vol-3) > volEps {
		t.Errorf("volume after pull = %g, want 3", vol)
	}
	if got := f.eng.CurrentSolid(); got != snap.Solid {
		t.Error("CurrentSolid is not the applied snapshot's solid")
	}

	undone, moved, err := f.eng.Undo()
	if err != nil || !moved {
		t.Fatalf("Undo: moved=%v err=%v", moved, err)
	}
	if vol := undone.Solid.Mass().Volume; math.Abs(vol-1) > volEps {
		t.Errorf("volume after undo = %g, want 1", vol)
	}

	redone, moved, err := f.eng.Redo()
	if err != nil || !moved {
		t.Fatalf("Redo: moved=%v err=%v", moved, err)
	}
	if vol := redone.Solid.Mass().Volume; math.Abs(vol-3) > volEps {
		t.Errorf("volume after redo = %g, want 3", vol)
	}
}

func TestTrivialEditLeavesHistoryUnchanged(t *testing.T) {
	f := newFixture(t, nil)

	var failures atomic.Int64
	f.eng.Bus().Subscribe(event.TopicEditFailed, func(event.Event) {
		failures.Add(1)
	})

	err := f.eng.Execute(context.Background(), pushPull(f.top, 1e-9))
	if !errors.Is(err, ErrTrivialEdit) {
		t.Fatalf("err = %v, want ErrTrivialEdit", err)
	}
	if got := f.eng.History().Len(); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
	if failures.Load() != 1 {
		t.Errorf("edit failure events = %d, want 1", failures.Load())
	}
	if got := f.eng.State(); got != StateIdle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestStaleReferenceAfterEdgeConsumed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// A fillet consumes the sharp edge; the reference must stop
	// resolving rather than remap to the blend.
	if _, err := f.eng.ExecuteSync(ctx, edit.Descriptor{Kind: edit.Fillet, Target: f.edge, Parameter: 0.2}); err != nil {
		t.Fatalf("fillet: %v", err)
	}
	lenBefore := f.eng.History().Len()

	err := f.eng.Execute(ctx, edit.Descriptor{Kind: edit.Chamfer, Target: f.edge, Parameter: 0.1})
	if !errors.Is(err, ErrStaleReference) {
		t.Fatalf("err = %v, want ErrStaleReference", err)
	}
	if got := f.eng.History().Len(); got != lenBefore {
		t.Errorf("history length = %d, want unchanged %d", got, lenBefore)
	}
}

func TestInvalidGeometryRejected(t *testing.T) {
	f := newFixture(t, nil)

	// Pushing the top face down past the bottom collapses the solid.
	_, err := f.eng.ExecuteSync(context.Background(), pushPull(f.top, -1.5))
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("err = %v, want ErrInvalidGeometry", err)
	}
	if got := f.eng.History().Len(); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
	if msg := Describe(err); msg == "" {
		t.Error("Describe returned empty message")
	}
}

func TestValidationFailureRejected(t *testing.T) {
	f := newFixture(t, &invalidatingKernel{Kernel: boxkern.New()})

	_, err := f.eng.ExecuteSync(context.Background(), pushPull(f.top, 1))
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("err = %v, want ErrInvalidGeometry", err)
	}
}

func TestRedoBranchTruncatedByNewEdit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.eng.ExecuteSync(ctx, pushPull(f.top, 1)); err != nil {
		t.Fatalf("first edit: %v", err)
	}
	if _, err := f.eng.ExecuteSync(ctx, pushPull(f.top, 1)); err != nil {
		t.Fatalf("second edit: %v", err)
	}
	if _, _, err := f.eng.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !f.eng.History().CanRedo() {
		t.Fatal("expected a redo branch before the new edit")
	}

	if _, err := f.eng.ExecuteSync(ctx, pushPull(f.top, -0.25)); err != nil {
		t.Fatalf("branching edit: %v", err)
	}
	if f.eng.History().CanRedo() {
		t.Error("redo branch survived a new edit")
	}
	if got := f.eng.History().Len(); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
}

func TestEngineBusyRejectsConcurrentWork(t *testing.T) {
	gate := &gateKernel{Kernel: boxkern.New(), gate: make(chan struct{})}
	f := newFixture(t, gate)
	ctx := context.Background()

	if err := f.eng.Execute(ctx, pushPull(f.top, 1)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := f.eng.State(); got != StateExecuting {
		t.Errorf("state = %s, want executing", got)
	}

	if err := f.eng.Execute(ctx, pushPull(f.top, 2)); !errors.Is(err, ErrEngineBusy) {
		t.Errorf("second Execute err = %v, want ErrEngineBusy", err)
	}
	if _, _, err := f.eng.Undo(); !errors.Is(err, ErrEngineBusy) {
		t.Errorf("Undo err = %v, want ErrEngineBusy", err)
	}

	close(gate.gate)
	snap, err := f.eng.Apply(<-f.eng.Results())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if vol := snap.Solid.Mass().Volume; math.Abs(vol-2) > volEps {
		t.Errorf("volume = %g, want 2", vol)
	}
	if got := f.eng.State(); got != StateIdle {
		t.Errorf("state = %s, want idle after apply", got)
	}
}

func TestCancelDiscardsInFlightResult(t *testing.T) {
	gate := &gateKernel{Kernel: boxkern.New(), gate: make(chan struct{})}
	f := newFixture(t, gate)

	if err := f.eng.Execute(context.Background(), pushPull(f.top, 1)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !f.eng.Cancel() {
		t.Fatal("Cancel reported nothing in flight")
	}

	_, err := f.eng.Apply(<-f.eng.Results())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Apply err = %v, want ErrCancelled", err)
	}
	if got := f.eng.History().Len(); got != 1 {
		t.Errorf("history length = %d, want 1 (cancelled result pushed)", got)
	}
	if f.eng.Cancel() {
		t.Error("Cancel reported work in flight after apply")
	}
}

func TestHoverRegistrationDuringExecute(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Hovering keeps minting references against the current snapshot
	// while the worker rebuilds from that same snapshot. Run a batch of
	// edits under the churn; the race detector flags an unguarded tag
	// table.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			handle := kernel.Handle{Kind: kernel.KindFace, Index: i % 6}
			if _, err := f.eng.Registry().Register(f.eng.CurrentSolid(), handle); err != nil {
				t.Errorf("register during edit: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 25; i++ {
		if _, err := f.eng.ExecuteSync(ctx, pushPull(f.top, 0.01)); err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
	}
	close(stop)
	<-done
}

func TestCancelAfterKernelCompletionDiscards(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.eng.Execute(context.Background(), pushPull(f.top, 1)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Receiving the result proves the kernel call already finished when
	// the user cancels. The snapshot must still be thrown away.
	res := <-f.eng.Results()
	if res.Err != nil {
		t.Fatalf("worker err = %v", res.Err)
	}
	if !f.eng.Cancel() {
		t.Fatal("Cancel reported nothing in flight")
	}

	_, err := f.eng.Apply(res)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Apply err = %v, want ErrCancelled", err)
	}
	if got := f.eng.History().Len(); got != 1 {
		t.Errorf("history length = %d, want 1 (cancelled result pushed)", got)
	}
	if vol := f.eng.CurrentSolid().Mass().Volume; math.Abs(vol-1) > volEps {
		t.Errorf("volume = %g, want 1", vol)
	}

	// The next edit starts from a clean slate.
	snap, err := f.eng.ExecuteSync(context.Background(), pushPull(f.top, 0.5))
	if err != nil {
		t.Fatalf("ExecuteSync after cancel: %v", err)
	}
	if vol := snap.Solid.Mass().Volume; math.Abs(vol-1.5) > volEps {
		t.Errorf("volume = %g, want 1.5", vol)
	}
}

func TestApplyPublishesEvents(t *testing.T) {
	f := newFixture(t, nil)

	var applied, moved atomic.Int64
	f.eng.Bus().Subscribe(event.TopicEditExecuted, func(ev event.Event) {
		p := ev.Payload.(event.EditApplied)
		if p.Volume <= 0 {
			t.Errorf("applied volume = %g, want positive", p.Volume)
		}
		applied.Add(1)
	})
	f.eng.Bus().Subscribe(event.TopicHistoryMoved, func(event.Event) {
		moved.Add(1)
	})

	if _, err := f.eng.ExecuteSync(context.Background(), pushPull(f.top, 1)); err != nil {
		t.Fatalf("ExecuteSync: %v", err)
	}
	if applied.Load() != 1 {
		t.Errorf("edit.executed events = %d, want 1", applied.Load())
	}
	if moved.Load() != 1 {
		t.Errorf("history.moved events = %d, want 1", moved.Load())
	}
}

func TestStateTransitions(t *testing.T) {
	f := newFixture(t, nil)

	f.eng.Targeting()
	if got := f.eng.State(); got != StateTargeting {
		t.Errorf("state = %s, want targeting", got)
	}
	f.eng.Proposing()
	if got := f.eng.State(); got != StateProposing {
		t.Errorf("state = %s, want proposing", got)
	}
	if _, err := f.eng.ExecuteSync(context.Background(), pushPull(f.top, 1)); err != nil {
		t.Fatalf("ExecuteSync: %v", err)
	}
	if got := f.eng.State(); got != StateIdle {
		t.Errorf("state = %s, want idle after success", got)
	}
}

// gateKernel blocks Extrude until the gate opens, or until the operation
// context is cancelled.
type gateKernel struct {
	kernel.Kernel
	gate chan struct{}
}

func (g *gateKernel) Extrude(ctx context.Context, s kernel.Solid, face kernel.Handle, dist float64) (kernel.Solid, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Kernel.Extrude(ctx, s, face, dist)
}

// invalidatingKernel builds normally but reports every solid as invalid.
type invalidatingKernel struct {
	kernel.Kernel
}

func (k *invalidatingKernel) Validate(kernel.Solid) kernel.ValidationReport {
	return kernel.ValidationReport{Valid: false, Reason: "self-intersecting shell"}
}
