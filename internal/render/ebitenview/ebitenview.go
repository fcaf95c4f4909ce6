// Package ebitenview hosts the session in an Ebiten window: it feeds input to
// the controls and paints the draw list.
package ebitenview

import (
	"image/color"
	"log/slog"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/galaxycore/galaxyview/internal/controls"
	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/internal/render"
	"github.com/galaxycore/galaxyview/internal/session"
)

var background = color.RGBA{R: 0x08, G: 0x0a, B: 0x14, A: 0xff}

// Game implements ebiten.Game.
type Game struct {
	s      *session.Session
	ctl    *controls.Controller
	logger *slog.Logger

	// Layout may run off the update goroutine; Update applies the size.
	width, height atomic.Int64
	appliedW      int64
	appliedH      int64

	quit atomic.Bool
}

// New creates a game hosting s.
func New(s *session.Session, ctl *controls.Controller, logger *slog.Logger) *Game {
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{s: s, ctl: ctl, logger: logger}
}

// Run opens the window and blocks until it is closed.
func Run(g *Game, title string, width, height int) error {
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	g.logger.Info("Opening window", "width", width, "height", height)
	return ebiten.RunGame(g)
}

// Quit closes the window on the next tick. Safe from any goroutine.
func (g *Game) Quit() { g.quit.Store(true) }

// Update runs once per tick.
func (g *Game) Update() error {
	if g.quit.Load() {
		return ebiten.Termination
	}
	if w, h := g.width.Load(), g.height.Load(); w > 0 && h > 0 && (w != g.appliedW || h != g.appliedH) {
		g.s.Resize(float64(w), float64(h))
		g.appliedW, g.appliedH = w, h
	}
	g.s.Update()
	g.ctl.Handle(readInput())
	return nil
}

// Draw paints the current frame.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	f := g.s.Frame()
	if f.Budget != nil {
		f.Budget.Selected = g.ctl.Row()
	}
	for _, op := range render.Build(f).Ops {
		paint(screen, op)
	}
}

// Layout uses the window size one to one as the logical screen.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.width.Store(int64(outsideWidth))
	g.height.Store(int64(outsideHeight))
	return outsideWidth, outsideHeight
}

func paint(dst *ebiten.Image, op render.Op) {
	x, y := float32(op.From.X), float32(op.From.Y)
	switch op.Kind {
	case render.FillCircle:
		vector.DrawFilledCircle(dst, x, y, float32(op.Radius), op.Color, true)
	case render.StrokeCircle:
		vector.StrokeCircle(dst, x, y, float32(op.Radius), float32(op.Width), op.Color, true)
	case render.Line:
		vector.StrokeLine(dst, x, y, float32(op.To.X), float32(op.To.Y), float32(op.Width), op.Color, true)
	case render.FillRect:
		vector.DrawFilledRect(dst, x, y, float32(op.To.X), float32(op.To.Y), op.Color, false)
	case render.Label:
		// the debug font is white only
		ebitenutil.DebugPrintAt(dst, op.Text, int(x), int(y))
	}
}

var keymap = []struct {
	key ebiten.Key
	to  controls.Key
}{
	{ebiten.KeyEscape, controls.KeyCancel},
	{ebiten.KeyS, controls.KeySend},
	{ebiten.KeyD, controls.KeyDispatch},
	{ebiten.KeyC, controls.KeyCenter},
	{ebiten.KeyT, controls.KeyTechBudget},
	{ebiten.KeyE, controls.KeyEconomyBudget},
	{ebiten.KeyEnter, controls.KeyCommit},
	{ebiten.KeyX, controls.KeyDisband},
	{ebiten.KeyN, controls.KeyCreate},
	{ebiten.KeyTab, controls.KeyNextRow},
	{ebiten.KeyBracketRight, controls.KeyIncrease},
	{ebiten.KeyBracketLeft, controls.KeyDecrease},
	{ebiten.KeyEqual, controls.KeyZoomIn},
	{ebiten.KeyNumpadAdd, controls.KeyZoomIn},
	{ebiten.KeyMinus, controls.KeyZoomOut},
	{ebiten.KeyNumpadSubtract, controls.KeyZoomOut},
}

var digits = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6,
	ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

func readInput() controls.Input {
	mx, my := ebiten.CursorPosition()
	_, wheelY := ebiten.Wheel()

	in := controls.Input{
		Cursor:       geo.Pt(float64(mx), float64(my)),
		LeftPressed:  inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		LeftHeld:     ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		LeftReleased: inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft),
		RightPressed: inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight),
		WheelY:       wheelY,
		Shift:        ebiten.IsKeyPressed(ebiten.KeyShift),
	}

	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		in.Pan.X--
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		in.Pan.X++
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		in.Pan.Y--
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		in.Pan.Y++
	}

	for _, m := range keymap {
		if inpututil.IsKeyJustPressed(m.key) {
			in.Keys = append(in.Keys, m.to)
		}
	}
	for i, k := range digits {
		if inpututil.IsKeyJustPressed(k) {
			in.Digits = append(in.Digits, i+1)
		}
	}
	return in
}
