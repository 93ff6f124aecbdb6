// Package app assembles the editor: kernel, reference registry, history,
// selection, gesture interpretation, dimension entry, scripting and the
// import watcher, behind one facade the front end drives. All methods are
// called from the front end's single event goroutine; worker results
// arrive on Results and are handed back through Apply.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/carvecad/carve/internal/config"
	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/engine"
	"github.com/carvecad/carve/internal/event"
	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/input/dimension"
	"github.com/carvecad/carve/internal/input/gesture"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/logging"
	"github.com/carvecad/carve/internal/project/watcher"
	"github.com/carvecad/carve/internal/refs"
	"github.com/carvecad/carve/internal/script"
	"github.com/carvecad/carve/internal/selection"
)

// ErrNoSelection is returned when a drag starts without a target.
var ErrNoSelection = errors.New("nothing selected")

// App is the assembled editor.
type App struct {
	cfg config.Config
	log *logging.Logger
	bus *event.Bus

	kern    kernel.Kernel
	eng     *engine.Engine
	tracker *selection.Tracker
	drag    *gesture.Interpreter
	dim     *dimension.Controller
	scripts *script.Runner
	watch   *watcher.Watcher

	// pending holds a drag proposal whose execution is deferred because
	// the dimension prompt was open when the drag ended.
	pending *edit.Descriptor

	// filePath is the STEP file backing the document, if any.
	filePath string
}

// New assembles an app over the given kernel and hit-tester. The initial
// document is a cube of the configured default size.
func New(cfg config.Config, kern kernel.Kernel, picker selection.Picker, log *logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}

	size := cfg.Project.DefaultBoxSize
	seed, err := kern.NewBox(size, size, size)
	if err != nil {
		return nil, fmt.Errorf("seeding document: %w", err)
	}

	bus := event.NewBus()
	eng := engine.New(kern, seed,
		engine.WithLogger(log),
		engine.WithBus(bus),
		engine.WithMinMagnitude(cfg.Engine.MinMagnitude),
		engine.WithKernelTimeout(cfg.Engine.KernelTimeout),
		engine.WithHistoryLimit(cfg.History.MaxEntries),
	)

	a := &App{
		cfg:     cfg,
		log:     log.WithComponent("app"),
		bus:     bus,
		kern:    kern,
		eng:     eng,
		tracker: selection.NewTracker(picker, bus),
		drag: gesture.New(gesture.Config{
			Sensitivity:  cfg.Gesture.Sensitivity,
			DeadZonePx:   cfg.Gesture.DeadZonePx,
			PreviewDelta: cfg.Gesture.PreviewDelta,
		}, kern, eng.Registry()),
		dim:     dimension.New(),
		scripts: script.NewRunner(eng, script.WithLogger(log)),
	}

	if cfg.Project.WatchImports {
		w, err := watcher.New(bus, watcher.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("starting import watcher: %w", err)
		}
		a.watch = w
	}
	return a, nil
}

// Close releases background resources.
func (a *App) Close() error {
	if a.watch != nil {
		return a.watch.Close()
	}
	return nil
}

// Bus returns the event bus the front end subscribes on.
func (a *App) Bus() *event.Bus { return a.bus }

// Engine returns the edit engine, for direct access to history and
// worker results.
func (a *App) Engine() *engine.Engine { return a.eng }

// Registry returns the reference registry.
func (a *App) Registry() *refs.Registry { return a.eng.Registry() }

// CurrentSolid returns the solid the viewport should render.
func (a *App) CurrentSolid() kernel.Solid { return a.eng.CurrentSolid() }

// Results delivers finished kernel invocations; pass each to Apply.
func (a *App) Results() <-chan engine.Result { return a.eng.Results() }

// Apply commits a worker result.
func (a *App) Apply(res engine.Result) error {
	_, err := a.eng.Apply(res)
	return err
}

// Hover updates the hovered entity from the pointer position.
func (a *App) Hover(p geom.ScreenPoint, cam geom.Camera) (refs.Ref, bool) {
	ref, ok := a.tracker.Hover(p, cam)
	if ok {
		a.eng.Targeting()
	}
	return ref, ok
}

// CommitSelection promotes the hover to the committed selection.
func (a *App) CommitSelection() (refs.Ref, bool) {
	ref, ok := a.tracker.Commit()
	if ok {
		a.eng.Targeting()
	}
	return ref, ok
}

// ClearSelection drops the committed selection.
func (a *App) ClearSelection() {
	a.tracker.ClearSelection()
	a.eng.Idle()
}

// Selection returns the committed selection, if any.
func (a *App) Selection() (refs.Ref, bool) { return a.tracker.Selection() }

// Hovered returns the hovered entity, if any.
func (a *App) Hovered() (refs.Ref, bool) { return a.tracker.Hovered() }

// BeginDrag starts a direct edit drag on the committed selection, or on
// the hovered entity when nothing is committed.
func (a *App) BeginDrag(p geom.ScreenPoint, cam geom.Camera) error {
	target, ok := a.tracker.Selection()
	if !ok {
		if target, ok = a.tracker.Hovered(); !ok {
			return ErrNoSelection
		}
	}
	if err := a.drag.Begin(target, a.eng.CurrentSolid(), p, cam); err != nil {
		return err
	}
	a.eng.Proposing()
	return nil
}

// UpdateDrag feeds a pointer move into the drag. The returned descriptor
// is the current preview proposal; ok is false inside the dead zone or
// below the preview threshold. While the dimension prompt is open the
// proposal's parameter is ignored.
func (a *App) UpdateDrag(p geom.ScreenPoint) (edit.Descriptor, bool) {
	desc, ok := a.drag.Update(p)
	if ok && a.dim.Active() {
		a.dim.Track(desc)
	}
	return desc, ok
}

// EndDrag finishes the drag. With the dimension prompt closed the final
// proposal goes straight to execution; with it open, execution waits for
// SubmitDimension or CancelDimension. A drag released inside the dead
// zone is dropped silently.
func (a *App) EndDrag(ctx context.Context, p geom.ScreenPoint) error {
	desc, err := a.drag.End(p)
	if err != nil {
		a.dimReset()
		a.eng.Idle()
		if errors.Is(err, gesture.ErrCancelled) {
			return nil
		}
		return err
	}
	if a.dim.Active() {
		a.dim.Track(desc)
		a.pending = &desc
		return nil
	}
	return a.eng.Execute(ctx, desc)
}

// CancelDrag abandons the drag and any open dimension entry.
func (a *App) CancelDrag() {
	a.drag.Cancel()
	a.dimReset()
	a.eng.Idle()
}

// OpenDimensionEntry starts numeric entry for the active drag, seeded
// with the drag's current proposal.
func (a *App) OpenDimensionEntry() bool {
	if !a.drag.Active() {
		return false
	}
	base, ok := a.drag.Proposal()
	if !ok {
		// No proposal yet (still inside the dead zone): default to the
		// only kind the target can take. Edges blend, faces extrude.
		target := a.drag.Target()
		kind := edit.PushPull
		if target.Kind == kernel.KindEdge {
			kind = edit.Fillet
		}
		base = edit.Descriptor{Kind: kind, Target: target}
	}
	a.dim.Activate(base)
	return true
}

// DimensionActive reports whether the numeric prompt is open.
func (a *App) DimensionActive() bool { return a.dim.Active() }

// DimensionBuffer returns the typed value for prompt echo.
func (a *App) DimensionBuffer() string { return a.dim.Buffer() }

// TypeDimension feeds one typed character into the prompt.
func (a *App) TypeDimension(r rune) bool { return a.dim.Type(r) }

// BackspaceDimension removes the last typed character.
func (a *App) BackspaceDimension() bool { return a.dim.Backspace() }

// SubmitDimension executes the edit with the typed value in place of the
// drag displacement. The drag must already have ended.
func (a *App) SubmitDimension(ctx context.Context) error {
	desc, err := a.dim.Submit()
	if err != nil {
		return err
	}
	if a.drag.Active() {
		// Pointer still down: the manual value decides, the drag is over.
		a.drag.Cancel()
	}
	a.pending = nil
	return a.eng.Execute(ctx, desc)
}

// SetManualDimension executes an edit with an explicit value, bypassing
// the typed buffer.
func (a *App) SetManualDimension(ctx context.Context, value float64) error {
	if !a.dim.Active() {
		return dimension.ErrInactive
	}
	desc, err := a.dim.SubmitValue(value)
	if err != nil {
		return err
	}
	if a.drag.Active() {
		a.drag.Cancel()
	}
	a.pending = nil
	return a.eng.Execute(ctx, desc)
}

// CancelDimension closes the prompt. A drag that already ended resumes
// its gesture-driven value and executes; an active drag just continues.
func (a *App) CancelDimension(ctx context.Context) error {
	if _, ok := a.dim.Cancel(); !ok {
		return nil
	}
	if a.pending != nil {
		desc := *a.pending
		a.pending = nil
		return a.eng.Execute(ctx, desc)
	}
	return nil
}

func (a *App) dimReset() {
	a.dim.Cancel()
	a.pending = nil
}

// Undo steps back one snapshot.
func (a *App) Undo() (bool, error) {
	_, moved, err := a.eng.Undo()
	return moved, err
}

// Redo steps forward one snapshot.
func (a *App) Redo() (bool, error) {
	_, moved, err := a.eng.Redo()
	return moved, err
}

// Import replaces the document with a STEP file and starts watching it
// for external changes.
func (a *App) Import(path string) error {
	if _, err := a.eng.Import(path); err != nil {
		return err
	}
	if a.watch != nil {
		if a.filePath != "" {
			_ = a.watch.Unwatch(a.filePath)
		}
		if err := a.watch.Watch(path); err != nil {
			a.log.Warn("cannot watch %s: %v", path, err)
		}
	}
	a.filePath = path
	return nil
}

// Reload re-imports the backing file after an external change.
func (a *App) Reload() error {
	if a.filePath == "" {
		return fmt.Errorf("%w: no file to reload", engine.ErrIO)
	}
	_, err := a.eng.Import(a.filePath)
	return err
}

// Export writes the current solid to a STEP file. An empty path reuses
// the file the document was imported from.
func (a *App) Export(path string) error {
	if path == "" {
		path = a.filePath
	}
	if path == "" {
		return fmt.Errorf("%w: no export path", engine.ErrIO)
	}
	if err := a.eng.Export(path); err != nil {
		return err
	}
	a.filePath = path
	return nil
}

// FilePath returns the STEP file backing the document, if any.
func (a *App) FilePath() string { return a.filePath }

// RunScript executes a Lua script file against the engine.
func (a *App) RunScript(ctx context.Context, path string) error {
	return a.scripts.RunFile(ctx, path)
}
