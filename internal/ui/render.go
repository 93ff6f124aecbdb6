package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel"
)

var (
	styleDefault   = tcell.StyleDefault
	styleDim       = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHover     = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleSelected  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleStatus    = tcell.StyleDefault.Reverse(true)
	stylePrompt    = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleMsg       = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleMsgNewest = tcell.StyleDefault
)

// messagePanelRows is the height of the message panel above the status
// line.
const messagePanelRows = 4

// draw renders one frame: header, wireframe viewport, message panel and
// status or prompt line.
func (u *UI) draw() {
	u.screen.Clear()
	w, h := u.screen.Size()
	if w < 10 || h < messagePanelRows+3 {
		u.screen.Show()
		return
	}

	u.drawHeader(w)
	u.drawViewport(w, h)
	u.drawMessages(w, h)
	u.drawStatusLine(w, h)
	u.screen.Show()
}

func (u *UI) drawHeader(w int) {
	solid := u.app.CurrentSolid()
	mass := solid.Mass()
	file := u.app.FilePath()
	if file == "" {
		file = "[new document]"
	}
	hist := u.app.Engine().History()
	line := fmt.Sprintf(" carve  %s  vol %.4g  gen %d  history %d/%d",
		file, mass.Volume, solid.Generation(), hist.Cursor()+1, hist.Len())
	u.putLine(0, 0, w, line, styleStatus)
}

// drawViewport projects the solid's bounding box into the cell grid and
// draws its wireframe plus pickable markers for faces and edges.
func (u *UI) drawViewport(w, h int) {
	cam := u.camera(w, h)
	solid := u.app.CurrentSolid()
	bounds := solid.Mass().Bounds

	corners := boxCorners(bounds)
	var pts [8]geom.ScreenPoint
	for i, c := range corners {
		p, ok := cam.Project(c)
		if !ok {
			return
		}
		pts[i] = p
	}
	for _, e := range boxWires {
		u.drawSegment(pts[e[0]], pts[e[1]], h)
	}

	hovered, hasHover := u.app.Hovered()
	selected, hasSel := u.app.Selection()

	for _, handle := range u.picker.Handles() {
		frame, err := u.frameFor(solid, handle)
		if err != nil {
			continue
		}
		p, ok := cam.Project(frame.Origin)
		if !ok {
			continue
		}

		marker := 'o'
		if handle.Kind == kernel.KindEdge {
			marker = '+'
		}
		style := styleDefault
		if ref, err := u.picker.RefFor(handle); err == nil {
			if hasSel && ref == selected {
				marker, style = '@', styleSelected
			} else if hasHover && ref == hovered {
				style = styleHover
			}
		}
		u.putMarker(p, h, marker, style)
	}
}

func (u *UI) frameFor(s kernel.Solid, h kernel.Handle) (kernel.Frame, error) {
	if h.Kind == kernel.KindEdge {
		return u.kern.EdgeFrame(s, h)
	}
	return u.kern.FaceFrame(s, h)
}

func (u *UI) drawMessages(w, h int) {
	top := h - 1 - messagePanelRows
	u.putLine(0, top, w, "messages", styleDim)
	msgs := u.recentMessages()
	for i, msg := range msgs {
		style := styleMsg
		if i == len(msgs)-1 {
			style = styleMsgNewest
		}
		u.putLine(1, top+1+i, w-1, msg, style)
	}
}

func (u *UI) drawStatusLine(w, h int) {
	if u.app.DimensionActive() {
		u.putLine(0, h-1, w, " value: "+u.app.DimensionBuffer()+"_", stylePrompt)
		return
	}

	state := u.app.Engine().State().String()
	target := "none"
	if ref, ok := u.app.Selection(); ok {
		target = ref.String()
	} else if ref, ok := u.app.Hovered(); ok {
		target = ref.String() + "?"
	}
	line := fmt.Sprintf(" %s  target %s  [tab]cycle [enter]select [drag/arrows]edit [d]value [u]undo [r]redo [x]export [q]quit",
		state, target)
	u.putLine(0, h-1, w, line, styleStatus)
}

// putLine writes a string, clipped and padded to width.
func (u *UI) putLine(x, y, width int, s string, style tcell.Style) {
	col := x
	for _, r := range s {
		if col >= x+width {
			return
		}
		u.screen.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < x+width; col++ {
		u.screen.SetContent(col, y, ' ', nil, style)
	}
}

// putMarker places a single marker rune inside the viewport rows.
func (u *UI) putMarker(p geom.ScreenPoint, screenH int, r rune, style tcell.Style) {
	x, y := int(p.X+0.5), int(p.Y+0.5)
	if y < 1 || y >= screenH-1-messagePanelRows {
		return
	}
	u.screen.SetContent(x, y, r, nil, style)
}

// drawSegment draws a wireframe line between two projected points.
func (u *UI) drawSegment(a, b geom.ScreenPoint, screenH int) {
	x0, y0 := int(a.X+0.5), int(a.Y+0.5)
	x1, y1 := int(b.X+0.5), int(b.Y+0.5)

	dx, dy := absInt(x1-x0), -absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if y0 >= 1 && y0 < screenH-1-messagePanelRows && x0 >= 0 {
			u.screen.SetContent(x0, y0, '·', nil, styleDim)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// boxCorners enumerates the corners of a bounding box in a fixed order.
func boxCorners(b geom.Box) [8]geom.Vec3 {
	return [8]geom.Vec3{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}

// boxWires pairs corner indices into the 12 wireframe segments.
var boxWires = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
