// Package script embeds a sandboxed Lua interpreter that drives the edit
// engine, for batch edits and scripted regression models. Scripts see a
// single preloaded `carve` module; file loading and the unsafe parts of
// the Lua standard library are stripped.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/carvecad/carve/internal/edit"
	"github.com/carvecad/carve/internal/engine"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/logging"
	"github.com/carvecad/carve/internal/refs"
)

// ErrScript wraps any failure raised while running a script.
var ErrScript = errors.New("script failed")

// DefaultTimeout bounds one script run.
const DefaultTimeout = 30 * time.Second

// Runner executes Lua sources against an engine. Each run gets a fresh
// interpreter state; references minted by one run stay valid in the
// engine's registry afterwards.
type Runner struct {
	eng     *engine.Engine
	log     *logging.Logger
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log.WithComponent("script")
		}
	}
}

// WithTimeout bounds one script run.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRunner creates a runner over the engine.
func NewRunner(eng *engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		eng:     eng,
		log:     logging.Discard(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one Lua source string.
func (r *Runner) Run(ctx context.Context, source string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	r.restrict(L)
	L.PreloadModule("carve", r.loader(ctx))

	if err := L.DoString(source); err != nil {
		r.log.Warn("script error: %v", err)
		return fmt.Errorf("%w: %v", ErrScript, err)
	}
	return nil
}

// RunFile executes a Lua script from disk.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScript, err)
	}
	r.log.Info("running %s", path)
	return r.Run(ctx, string(src))
}

// restrict removes the escape hatches: no loading code from disk, no
// module search path. Scripts get the base, string, table and math
// libraries plus the preloaded carve module, nothing else.
func (r *Runner) restrict(L *lua.LState) {
	unsafe := []string{"dofile", "loadfile", "load", "loadstring", "io", "os", "debug"}
	for _, name := range unsafe {
		L.SetGlobal(name, lua.LNil)
	}
	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
		if loaded, ok := L.GetField(pkg, "loaded").(*lua.LTable); ok {
			for _, name := range []string{"io", "os", "debug"} {
				loaded.RawSetString(name, lua.LNil)
			}
		}
	}
}

// loader builds the carve module table.
func (r *Runner) loader(ctx context.Context) lua.LGFunction {
	return func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"face":      r.luaPick(kernel.KindFace),
			"edge":      r.luaPick(kernel.KindEdge),
			"push_pull": r.luaEdit(ctx, edit.PushPull),
			"fillet":    r.luaEdit(ctx, edit.Fillet),
			"chamfer":   r.luaEdit(ctx, edit.Chamfer),
			"undo":      r.luaUndo,
			"redo":      r.luaRedo,
			"volume":    r.luaVolume,
			"export":    r.luaExport,
			"import":    r.luaImport,
		})
		L.Push(mod)
		return 1
	}
}

// luaPick registers `face(index)` / `edge(index)`: mints a persistent
// reference for a sub-shape of the current solid and returns its id.
func (r *Runner) luaPick(kind kernel.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		idx := L.CheckInt(1)
		ref, err := r.eng.Registry().Register(r.eng.CurrentSolid(), kernel.Handle{Kind: kind, Index: idx})
		if err != nil {
			L.RaiseError("%s %d: %v", kind, idx, err)
			return 0
		}
		L.Push(lua.LString(ref.ID.String()))
		return 1
	}
}

// luaEdit registers `push_pull(ref, value)` and friends. Failures become
// Lua errors carrying the message-panel description.
func (r *Runner) luaEdit(ctx context.Context, kind edit.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		ref, err := r.parseRef(L.CheckString(1), kind)
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		value := float64(L.CheckNumber(2))

		snap, err := r.eng.ExecuteSync(ctx, edit.Descriptor{
			Kind:      kind,
			Target:    ref,
			Parameter: value,
			Source:    edit.SourceManual,
		})
		if err != nil {
			L.RaiseError("%s: %s", kind, engine.Describe(err))
			return 0
		}
		L.Push(lua.LNumber(snap.Solid.Mass().Volume))
		return 1
	}
}

func (r *Runner) parseRef(id string, kind edit.Kind) (refs.Ref, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return refs.Ref{}, fmt.Errorf("bad reference %q: %w", id, err)
	}
	k := kernel.KindEdge
	if kind == edit.PushPull {
		k = kernel.KindFace
	}
	return refs.Ref{ID: u, Kind: k}, nil
}

func (r *Runner) luaUndo(L *lua.LState) int {
	_, moved, err := r.eng.Undo()
	if err != nil {
		L.RaiseError("undo: %v", err)
		return 0
	}
	L.Push(lua.LBool(moved))
	return 1
}

func (r *Runner) luaRedo(L *lua.LState) int {
	_, moved, err := r.eng.Redo()
	if err != nil {
		L.RaiseError("redo: %v", err)
		return 0
	}
	L.Push(lua.LBool(moved))
	return 1
}

func (r *Runner) luaVolume(L *lua.LState) int {
	L.Push(lua.LNumber(r.eng.CurrentSolid().Mass().Volume))
	return 1
}

func (r *Runner) luaExport(L *lua.LState) int {
	path := L.CheckString(1)
	if err := r.eng.Export(path); err != nil {
		L.RaiseError("export: %s", engine.Describe(err))
		return 0
	}
	return 0
}

func (r *Runner) luaImport(L *lua.LState) int {
	path := L.CheckString(1)
	if _, err := r.eng.Import(path); err != nil {
		L.RaiseError("import: %s", engine.Describe(err))
		return 0
	}
	return 0
}
