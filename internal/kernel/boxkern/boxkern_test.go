package boxkern

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/carvecad/carve/internal/kernel"
)

const volEps = 1e-9

func newUnitCube(t *testing.T, k *Kernel) kernel.Solid {
	t.Helper()
	s, err := k.NewBox(1, 1, 1)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	return s
}

func TestNewBoxMass(t *testing.T) {
	k := New()
	s, err := k.NewBox(2, 3, 4)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	if got := s.Mass().Volume; math.Abs(got-24) > volEps {
		t.Errorf("volume = %g, want 24", got)
	}
	if !k.Validate(s).Valid {
		t.Error("fresh box should validate")
	}
}

func TestNewBoxRejectsDegenerate(t *testing.T) {
	k := New()
	if _, err := k.NewBox(0, 1, 1); !errors.Is(err, kernel.ErrConstruction) {
		t.Errorf("err = %v, want ErrConstruction", err)
	}
}

func TestExtrude(t *testing.T) {
	tests := []struct {
		name     string
		face     int
		distance float64
		wantVol  float64
	}{
		{"pull top face outward", faceZMax, 2, 3},
		{"push top face inward", faceZMax, -0.5, 0.5},
		{"pull side face", faceXMin, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := New()
			base := newUnitCube(t, k)
			got, err := k.Extrude(context.Background(), base, kernel.Handle{Kind: kernel.KindFace, Index: tt.face}, tt.distance)
			if err != nil {
				t.Fatalf("Extrude: %v", err)
			}
			if vol := got.Mass().Volume; math.Abs(vol-tt.wantVol) > volEps {
				t.Errorf("volume = %g, want %g", vol, tt.wantVol)
			}
			if got.Generation() <= base.Generation() {
				t.Error("generation should advance")
			}
			// The baseline solid must be untouched.
			if vol := base.Mass().Volume; math.Abs(vol-1) > volEps {
				t.Errorf("baseline volume changed to %g", vol)
			}
		})
	}
}

func TestExtrudeCollapseRejected(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)
	_, err := k.Extrude(context.Background(), s, kernel.Handle{Kind: kernel.KindFace, Index: faceZMax}, -1.5)
	if !errors.Is(err, kernel.ErrConstruction) {
		t.Errorf("err = %v, want ErrConstruction", err)
	}
}

func TestFilletVolumeAndConsumption(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)
	edge := kernel.Handle{Kind: kernel.KindEdge, Index: 0}

	tag := uuid.New()
	if err := k.Tag(s, edge, tag); err != nil {
		t.Fatalf("Tag: %v", err)
	}

	r := 0.3
	got, err := k.Fillet(context.Background(), s, edge, r)
	if err != nil {
		t.Fatalf("Fillet: %v", err)
	}
	want := 1 - (1-math.Pi/4)*r*r
	if vol := got.Mass().Volume; math.Abs(vol-want) > volEps {
		t.Errorf("volume = %g, want %g", vol, want)
	}
	if rep := k.Validate(got); !rep.Valid {
		t.Errorf("fillet result invalid: %s", rep.Reason)
	}

	// The sharp edge is consumed; its tag must stop resolving.
	if _, err := k.FindByTag(got, tag); !errors.Is(err, kernel.ErrNotFound) {
		t.Errorf("FindByTag after fillet = %v, want ErrNotFound", err)
	}
	// It still resolves in the baseline build.
	if _, err := k.FindByTag(s, tag); err != nil {
		t.Errorf("FindByTag in baseline: %v", err)
	}
}

func TestChamferVolume(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)
	d := 0.3
	got, err := k.Chamfer(context.Background(), s, kernel.Handle{Kind: kernel.KindEdge, Index: 5}, d)
	if err != nil {
		t.Fatalf("Chamfer: %v", err)
	}
	want := 1 - d*d/2
	if vol := got.Mass().Volume; math.Abs(vol-want) > volEps {
		t.Errorf("volume = %g, want %g", vol, want)
	}
}

func TestTreatEdgeRejects(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)
	edge := kernel.Handle{Kind: kernel.KindEdge, Index: 2}

	t.Run("zero size", func(t *testing.T) {
		if _, err := k.Fillet(context.Background(), s, edge, 0); !errors.Is(err, kernel.ErrConstruction) {
			t.Errorf("err = %v, want ErrConstruction", err)
		}
	})
	t.Run("oversized blend", func(t *testing.T) {
		if _, err := k.Fillet(context.Background(), s, edge, 0.9); !errors.Is(err, kernel.ErrConstruction) {
			t.Errorf("err = %v, want ErrConstruction", err)
		}
	})
	t.Run("treated edge is gone", func(t *testing.T) {
		filleted, err := k.Fillet(context.Background(), s, edge, 0.2)
		if err != nil {
			t.Fatalf("Fillet: %v", err)
		}
		if _, err := k.Fillet(context.Background(), filleted, edge, 0.2); !errors.Is(err, kernel.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestTagPropagationAcrossRebuilds(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)
	top := kernel.Handle{Kind: kernel.KindFace, Index: faceZMax}
	tag := uuid.New()
	if err := k.Tag(s, top, tag); err != nil {
		t.Fatalf("Tag: %v", err)
	}

	// Two chained rebuilds; the tag must survive both.
	s2, err := k.Extrude(context.Background(), s, top, 1)
	if err != nil {
		t.Fatalf("Extrude: %v", err)
	}
	s3, err := k.Fillet(context.Background(), s2, kernel.Handle{Kind: kernel.KindEdge, Index: 0}, 0.2)
	if err != nil {
		t.Fatalf("Fillet: %v", err)
	}
	h, err := k.FindByTag(s3, tag)
	if err != nil {
		t.Fatalf("FindByTag after two rebuilds: %v", err)
	}
	if h != top {
		t.Errorf("resolved handle = %v, want %v", h, top)
	}
}

func TestFrames(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)

	t.Run("face frame", func(t *testing.T) {
		f, err := k.FaceFrame(s, kernel.Handle{Kind: kernel.KindFace, Index: faceZMax})
		if err != nil {
			t.Fatalf("FaceFrame: %v", err)
		}
		if f.Axis.Z != 1 || f.Axis.X != 0 || f.Axis.Y != 0 {
			t.Errorf("top face normal = %+v, want +Z", f.Axis)
		}
		if f.Origin.Z != 1 {
			t.Errorf("top face center z = %g, want 1", f.Origin.Z)
		}
	})

	t.Run("edge frame bisector", func(t *testing.T) {
		// Edge 3 is adjacent to YMax and ZMax.
		f, err := k.EdgeFrame(s, kernel.Handle{Kind: kernel.KindEdge, Index: 3})
		if err != nil {
			t.Fatalf("EdgeFrame: %v", err)
		}
		inv := 1 / math.Sqrt2
		if math.Abs(f.Axis.Y-inv) > volEps || math.Abs(f.Axis.Z-inv) > volEps || f.Axis.X != 0 {
			t.Errorf("bisector = %+v, want (0, %g, %g)", f.Axis, inv, inv)
		}
	})
}

func TestSTEPRoundTrip(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)
	s2, err := k.Chamfer(context.Background(), s, kernel.Handle{Kind: kernel.KindEdge, Index: 7}, 0.25)
	if err != nil {
		t.Fatalf("Chamfer: %v", err)
	}

	path := filepath.Join(t.TempDir(), "part.step")
	if err := k.ExportSTEP(s2, path); err != nil {
		t.Fatalf("ExportSTEP: %v", err)
	}
	back, err := k.ImportSTEP(path)
	if err != nil {
		t.Fatalf("ImportSTEP: %v", err)
	}

	// Validation is idempotent across a round trip of a valid solid.
	if rep := k.Validate(back); !rep.Valid {
		t.Errorf("reimported solid invalid: %s", rep.Reason)
	}
	if math.Abs(back.Mass().Volume-s2.Mass().Volume) > volEps {
		t.Errorf("volume drifted: %g vs %g", back.Mass().Volume, s2.Mass().Volume)
	}
}

func TestImportSTEPRejectsGarbage(t *testing.T) {
	k := New()
	if _, err := k.ImportSTEP(filepath.Join(t.TempDir(), "missing.step")); !errors.Is(err, kernel.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestExtrudeHonorsCancellation(t *testing.T) {
	k := New()
	s := newUnitCube(t, k)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := k.Extrude(ctx, s, kernel.Handle{Kind: kernel.KindFace, Index: faceZMax}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
