package script

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carvecad/carve/internal/engine"
	"github.com/carvecad/carve/internal/kernel/boxkern"
)

func newRunner(t *testing.T) (*Runner, *engine.Engine) {
	t.Helper()
	kern := boxkern.New()
	cube, err := kern.NewBox(1, 1, 1)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	eng := engine.New(kern, cube)
	return NewRunner(eng), eng
}

func TestScriptDrivesEdits(t *testing.T) {
	r, eng := newRunner(t)

	src := `
local carve = require("carve")
local top = carve.face(5)
carve.push_pull(top, 2)
assert(math.abs(carve.volume() - 3) < 1e-9, "volume after pull")

local e = carve.edge(3)
carve.fillet(e, 0.2)
`
	if err := r.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := 3 - (1-math.Pi/4)*0.2*0.2
	if vol := eng.CurrentSolid().Mass().Volume; math.Abs(vol-want) > 1e-9 {
		t.Errorf("volume = %g, want %g", vol, want)
	}
	if got := eng.History().Len(); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
}

func TestScriptUndoRedo(t *testing.T) {
	r, eng := newRunner(t)

	src := `
local carve = require("carve")
carve.push_pull(carve.face(5), 1)
assert(carve.undo(), "undo should move")
assert(math.abs(carve.volume() - 1) < 1e-9, "volume after undo")
assert(carve.redo(), "redo should move")
assert(not carve.redo(), "redo at tail is a no-op")
`
	if err := r.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if vol := eng.CurrentSolid().Mass().Volume; math.Abs(vol-2) > 1e-9 {
		t.Errorf("volume = %g, want 2", vol)
	}
}

func TestScriptEditFailureSurfacesMessage(t *testing.T) {
	r, _ := newRunner(t)

	// A fillet radius beyond half the adjacent extent is rejected.
	src := `
local carve = require("carve")
carve.fillet(carve.edge(3), 10)
`
	err := r.Run(context.Background(), src)
	if !errors.Is(err, ErrScript) {
		t.Fatalf("err = %v, want ErrScript", err)
	}
	if !strings.Contains(err.Error(), "fillet") {
		t.Errorf("error %q does not name the failing operation", err)
	}
}

func TestScriptBadReferenceRejected(t *testing.T) {
	r, _ := newRunner(t)
	err := r.Run(context.Background(), `require("carve").push_pull("not-a-ref", 1)`)
	if !errors.Is(err, ErrScript) {
		t.Fatalf("err = %v, want ErrScript", err)
	}
}

func TestSandboxBlocksCodeLoading(t *testing.T) {
	r, _ := newRunner(t)
	tests := []struct {
		name string
		src  string
	}{
		{"dofile removed", `dofile("/etc/hostname")`},
		{"loadfile removed", `loadfile("/etc/hostname")`},
		{"load removed", `load("return 1")`},
		{"io unavailable", `require("io")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Run(context.Background(), tt.src); !errors.Is(err, ErrScript) {
				t.Errorf("err = %v, want ErrScript", err)
			}
		})
	}
}

func TestRunFileExportsModel(t *testing.T) {
	r, eng := newRunner(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "model.step")
	scriptPath := filepath.Join(dir, "build.lua")

	src := `
local carve = require("carve")
carve.push_pull(carve.face(5), 0.5)
carve.export("` + out + `")
`
	if err := os.WriteFile(scriptPath, []byte(src), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if err := r.RunFile(context.Background(), scriptPath); err != nil {
		t.Fatalf("RunFile: %v", err)
	}

	imported, err := eng.Import(out)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if vol := imported.Mass().Volume; math.Abs(vol-1.5) > 1e-9 {
		t.Errorf("round-tripped volume = %g, want 1.5", vol)
	}
}

func TestRunFileMissing(t *testing.T) {
	r, _ := newRunner(t)
	if err := r.RunFile(context.Background(), "/does/not/exist.lua"); !errors.Is(err, ErrScript) {
		t.Errorf("err = %v, want ErrScript", err)
	}
}
