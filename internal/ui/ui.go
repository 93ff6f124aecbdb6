// Package ui is the terminal front end. It renders the current solid as
// an orthographic wireframe with pickable face and edge markers, and
// translates mouse and keyboard input into hover, selection, drag and
// dimension-entry calls on the app facade.
package ui

import (
	"context"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/carvecad/carve/internal/app"
	"github.com/carvecad/carve/internal/event"
	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel"
	"github.com/carvecad/carve/internal/logging"
)

// arrowStepPx is how far one arrow key press moves the synthetic drag
// pointer.
const arrowStepPx = 5

// clickSlopPx is the release distance below which a press counts as a
// click (select) instead of a drag.
const clickSlopPx = 3

// UI owns the terminal screen and the input loop.
type UI struct {
	screen tcell.Screen
	app    *app.App
	kern   kernel.Kernel
	picker *Picker
	log    *logging.Logger

	viewHeight float64

	// Pointer drag bookkeeping.
	pressed bool
	pressPt geom.ScreenPoint

	// Keyboard drag bookkeeping.
	kbdDragging bool
	kbdPt       geom.ScreenPoint

	cycle int

	mu       sync.Mutex
	messages []string

	quit bool
}

// New wires a UI over the app. The screen must not be initialized yet.
func New(a *app.App, kern kernel.Kernel, picker *Picker, screen tcell.Screen, log *logging.Logger) *UI {
	if log == nil {
		log = logging.Discard()
	}
	u := &UI{
		screen:     screen,
		app:        a,
		kern:       kern,
		picker:     picker,
		log:        log.WithComponent("ui"),
		viewHeight: 6,
	}
	a.Bus().Subscribe(event.TopicStatus, func(ev event.Event) {
		if p, ok := ev.Payload.(event.Status); ok {
			u.note(p.Message)
		}
	})
	a.Bus().Subscribe(event.TopicFileChanged, func(ev event.Event) {
		if p, ok := ev.Payload.(event.FileChange); ok {
			u.note("changed on disk: " + p.Path + "  (press g to reload)")
		}
	})
	return u
}

// Run initializes the screen and blocks in the input loop until quit.
func (u *UI) Run(ctx context.Context) error {
	if err := u.screen.Init(); err != nil {
		return err
	}
	defer u.screen.Fini()
	u.screen.EnableMouse()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go u.screen.ChannelEvents(events, quit)

	u.draw()
	for !u.quit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-u.app.Results():
			// Failures surface through the status panel; nothing else
			// to do here.
			_ = u.app.Apply(res)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			u.handleEvent(ctx, ev)
		}
		u.draw()
	}
	return nil
}

// camera builds the frame's view: a front view pitched down toward the
// solid's center, Z up. The pitch keeps face markers from landing on
// top of edge markers, and the small offset along Up seats the model
// just below the viewport center.
func (u *UI) camera(w, h int) geom.Camera {
	center := u.app.CurrentSolid().Mass().Center
	dir := geom.Vec3{Y: -2, Z: -1}.Normalized()
	up := geom.Vec3{Y: -1, Z: 2}.Normalized()
	return geom.Camera{
		Eye:          center.Sub(dir.Scale(10)).Add(up.Scale(0.75)),
		Dir:          dir,
		Up:           up,
		ViewHeight:   u.viewHeight,
		ScreenHeight: h,
		ScreenWidth:  w,
	}
}

func (u *UI) currentCamera() geom.Camera {
	w, h := u.screen.Size()
	return u.camera(w, h)
}

func (u *UI) handleEvent(ctx context.Context, ev tcell.Event) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		u.handleKey(ctx, e)
	case *tcell.EventMouse:
		u.handleMouse(ctx, e)
	case *tcell.EventResize:
		u.screen.Sync()
	}
}

func (u *UI) handleKey(ctx context.Context, ev *tcell.EventKey) {
	if u.app.DimensionActive() {
		u.handlePromptKey(ctx, ev)
		return
	}

	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		u.escape()
	case tcell.KeyTab:
		u.cycleHover()
	case tcell.KeyEnter:
		u.enter(ctx)
	case tcell.KeyUp:
		u.arrow(ctx, 0, -arrowStepPx)
	case tcell.KeyDown:
		u.arrow(ctx, 0, arrowStepPx)
	case tcell.KeyLeft:
		u.arrow(ctx, -arrowStepPx, 0)
	case tcell.KeyRight:
		u.arrow(ctx, arrowStepPx, 0)
	case tcell.KeyRune:
		u.handleRune(ctx, ev.Rune())
	}
}

func (u *UI) handleRune(ctx context.Context, r rune) {
	switch r {
	case 'q':
		u.quit = true
	case 'u':
		if _, err := u.app.Undo(); err != nil {
			u.note(err.Error())
		}
	case 'r':
		if _, err := u.app.Redo(); err != nil {
			u.note(err.Error())
		}
	case 'd':
		if !u.app.OpenDimensionEntry() {
			u.note("start a drag before entering a value")
		}
	case 'x':
		if err := u.app.Export(u.exportPath()); err != nil {
			u.log.Warn("export: %v", err)
		}
	case 'g':
		if err := u.app.Reload(); err != nil {
			u.log.Warn("reload: %v", err)
		}
	case '+', '=':
		u.viewHeight *= 0.8
	case '-':
		u.viewHeight *= 1.25
	}
}

// handlePromptKey routes keys into the dimension prompt while it is open.
func (u *UI) handlePromptKey(ctx context.Context, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEnter:
		if err := u.app.SubmitDimension(ctx); err != nil {
			u.note(err.Error())
		}
	case tcell.KeyEscape:
		if err := u.app.CancelDimension(ctx); err != nil {
			u.note(err.Error())
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		u.app.BackspaceDimension()
	case tcell.KeyRune:
		u.app.TypeDimension(ev.Rune())
	}
}

// escape unwinds the innermost active mode: drag, then selection.
func (u *UI) escape() {
	switch {
	case u.kbdDragging:
		u.kbdDragging = false
		u.app.CancelDrag()
	case u.pressed:
		u.pressed = false
		u.app.CancelDrag()
	default:
		u.app.ClearSelection()
		u.picker.Unforce()
	}
}

// cycleHover steps keyboard hover through the pickable entities.
func (u *UI) cycleHover() {
	handles := u.picker.Handles()
	if len(handles) == 0 {
		return
	}
	u.cycle = (u.cycle + 1) % len(handles)
	ref, err := u.picker.RefFor(handles[u.cycle])
	if err != nil {
		u.note(err.Error())
		return
	}
	u.picker.Force(ref)
	u.app.Hover(geom.ScreenPoint{}, u.currentCamera())
}

// enter commits the hover, or finishes a keyboard drag.
func (u *UI) enter(ctx context.Context) {
	if u.kbdDragging {
		u.kbdDragging = false
		if err := u.app.EndDrag(ctx, u.kbdPt); err != nil {
			u.note(err.Error())
		}
		return
	}
	if _, ok := u.app.CommitSelection(); !ok {
		u.note("nothing hovered")
	}
}

// arrow drives a synthetic drag from the keyboard. The first press
// starts the drag at the viewport center.
func (u *UI) arrow(ctx context.Context, dx, dy float64) {
	cam := u.currentCamera()
	if !u.kbdDragging {
		w, h := u.screen.Size()
		u.kbdPt = geom.ScreenPoint{X: float64(w) / 2, Y: float64(h) / 2}
		if err := u.app.BeginDrag(u.kbdPt, cam); err != nil {
			u.note(err.Error())
			return
		}
		u.kbdDragging = true
	}
	u.kbdPt = geom.ScreenPoint{X: u.kbdPt.X + dx, Y: u.kbdPt.Y + dy}
	u.app.UpdateDrag(u.kbdPt)
}

func (u *UI) handleMouse(ctx context.Context, ev *tcell.EventMouse) {
	x, y := ev.Position()
	pt := geom.ScreenPoint{X: float64(x), Y: float64(y)}
	cam := u.currentCamera()
	left := ev.Buttons()&tcell.Button1 != 0

	switch {
	case left && !u.pressed:
		u.pressed = true
		u.pressPt = pt
		u.picker.Unforce()
		u.app.Hover(pt, cam)
		if err := u.app.BeginDrag(pt, cam); err != nil {
			u.pressed = false
		}
	case left && u.pressed:
		u.app.UpdateDrag(pt)
	case !left && u.pressed:
		u.pressed = false
		if u.pressPt.Delta(pt).Len() < clickSlopPx {
			// A click, not a drag: select instead of editing.
			u.app.CancelDrag()
			u.app.CommitSelection()
			return
		}
		if err := u.app.EndDrag(ctx, pt); err != nil {
			u.note(err.Error())
		}
	default:
		u.picker.Unforce()
		u.app.Hover(pt, cam)
	}
}

func (u *UI) exportPath() string {
	if p := u.app.FilePath(); p != "" {
		return p
	}
	return "model.step"
}

// note appends a message to the panel, keeping the newest few.
func (u *UI) note(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.messages = append(u.messages, msg)
	if len(u.messages) > messagePanelRows-1 {
		u.messages = u.messages[len(u.messages)-(messagePanelRows-1):]
	}
}

func (u *UI) recentMessages() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.messages))
	copy(out, u.messages)
	return out
}
