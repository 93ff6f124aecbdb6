package geom

import (
	"math"
	"testing"
)

const eps = 1e-12

func vecNear(a, b Vec3) bool {
	return a.Sub(b).Len() < eps
}

func TestVecArithmetic(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, -5, 6}

	if got := a.Add(b); !vecNear(got, Vec3{5, -3, 9}) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); !vecNear(got, Vec3{-3, 7, -3}) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Scale(-2); !vecNear(got, Vec3{-2, -4, -6}) {
		t.Errorf("Scale = %v", got)
	}
	if got := a.Dot(b); math.Abs(got-12) > eps {
		t.Errorf("Dot = %g, want 12", got)
	}
}

func TestCrossIsOrthogonal(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, -5, 6}
	c := a.Cross(b)

	if math.Abs(c.Dot(a)) > eps || math.Abs(c.Dot(b)) > eps {
		t.Errorf("cross %v not orthogonal to inputs", c)
	}
	if got := (Vec3{X: 1}).Cross(Vec3{Y: 1}); !vecNear(got, Vec3{Z: 1}) {
		t.Errorf("x cross y = %v, want z", got)
	}
}

func TestNormalized(t *testing.T) {
	v := Vec3{3, 4, 0}.Normalized()
	if math.Abs(v.Len()-1) > eps {
		t.Errorf("length = %g, want 1", v.Len())
	}
	if !vecNear(v, Vec3{0.6, 0.8, 0}) {
		t.Errorf("direction = %v", v)
	}

	var zero Vec3
	if got := zero.Normalized(); !got.IsZero() {
		t.Errorf("zero normalized = %v, want zero", got)
	}
}

func TestBoxProperties(t *testing.T) {
	b := Box{Min: Vec3{-1, 0, 2}, Max: Vec3{1, 3, 4}}

	if got := b.Size(); !vecNear(got, Vec3{2, 3, 2}) {
		t.Errorf("Size = %v", got)
	}
	if got := b.Center(); !vecNear(got, Vec3{0, 1.5, 3}) {
		t.Errorf("Center = %v", got)
	}
	if got := b.Volume(); math.Abs(got-12) > eps {
		t.Errorf("Volume = %g, want 12", got)
	}
	if !b.IsValid() {
		t.Error("box should be valid")
	}

	flat := Box{Min: Vec3{}, Max: Vec3{1, 1, 0}}
	if flat.IsValid() {
		t.Error("flat box should be invalid")
	}
}
