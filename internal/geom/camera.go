package geom

// ScreenPoint is a pointer position in viewport pixels. Y grows downward,
// matching windowing conventions.
type ScreenPoint struct {
	X, Y float64
}

// ScreenDelta is the displacement between two screen points in pixels.
type ScreenDelta struct {
	DX, DY float64
}

// Delta returns the displacement from p to other.
func (p ScreenPoint) Delta(other ScreenPoint) ScreenDelta {
	return ScreenDelta{DX: other.X - p.X, DY: other.Y - p.Y}
}

// Len returns the Euclidean magnitude of the delta in pixels.
func (d ScreenDelta) Len() float64 {
	return Vec3{X: d.DX, Y: d.DY}.Len()
}

// Camera describes the view through which a drag gesture is interpreted.
// The engine never renders; it only needs enough view state to map screen
// displacement back into model space at a stable sensitivity.
type Camera struct {
	// Eye is the camera position in model space.
	Eye Vec3

	// Dir is the unit view direction (eye toward scene).
	Dir Vec3

	// Up is the unit up vector of the view.
	Up Vec3

	// ViewHeight is the height of the visible model-space window at the
	// focus depth.
	ViewHeight float64

	// ScreenHeight is the viewport height in pixels.
	ScreenHeight int

	// ScreenWidth is the viewport width in pixels. Only projection needs
	// it; drag mapping works from height alone.
	ScreenWidth int
}

// Right returns the camera's unit right vector.
func (c Camera) Right() Vec3 {
	return c.Dir.Cross(c.Up).Normalized()
}

// WorldPerPixel returns the model-space distance covered by one screen
// pixel. The ratio is held constant across zoom levels by deriving it
// from the view height rather than from any fixed scale.
func (c Camera) WorldPerPixel() float64 {
	if c.ScreenHeight <= 0 || c.ViewHeight <= 0 {
		return 0
	}
	return c.ViewHeight / float64(c.ScreenHeight)
}

// ScreenDeltaToWorld maps a pixel displacement into a model-space
// displacement in the camera's view plane. Screen Y points down, so a
// downward drag maps to motion along -Up.
func (c Camera) ScreenDeltaToWorld(d ScreenDelta) Vec3 {
	wpp := c.WorldPerPixel()
	right := c.Right().Scale(d.DX * wpp)
	up := c.Up.Normalized().Scale(-d.DY * wpp)
	return right.Add(up)
}

// Project maps a model-space point onto the viewport with the same
// orthographic view the drag mapping assumes. The eye axis lands at the
// viewport center. ok is false when the camera is degenerate.
func (c Camera) Project(w Vec3) (ScreenPoint, bool) {
	wpp := c.WorldPerPixel()
	if wpp == 0 {
		return ScreenPoint{}, false
	}
	rel := w.Sub(c.Eye)
	return ScreenPoint{
		X: float64(c.ScreenWidth)/2 + rel.Dot(c.Right())/wpp,
		Y: float64(c.ScreenHeight)/2 - rel.Dot(c.Up.Normalized())/wpp,
	}, true
}

// FacesViewer reports whether a surface normal at the given point is
// oriented toward the camera. Used to keep drag direction intuitive when
// pulling a face that points away from the viewer.
func (c Camera) FacesViewer(point, normal Vec3) bool {
	toEye := c.Eye.Sub(point).Normalized()
	return normal.Dot(toEye) >= 0
}
