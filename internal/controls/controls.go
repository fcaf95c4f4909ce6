// Package controls turns one frame of raw pointer and keyboard input into
// session actions. It knows nothing about the windowing backend.
package controls

import (
	"sort"

	"github.com/galaxycore/galaxyview/internal/budget"
	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/internal/selection"
	"github.com/galaxycore/galaxyview/internal/session"
	"github.com/galaxycore/galaxyview/pkg/core"
)

// Key is a logical key, already mapped from the physical layout.
type Key int

const (
	KeyCancel Key = iota + 1
	KeySend
	KeyDispatch
	KeyCenter
	KeyTechBudget
	KeyEconomyBudget
	KeyCommit
	KeyDisband
	KeyCreate
	KeyNextRow
	KeyIncrease
	KeyDecrease
	KeyZoomIn
	KeyZoomOut
)

// Input is what happened during one frame.
type Input struct {
	Cursor geo.Point

	LeftPressed  bool
	LeftHeld     bool
	LeftReleased bool
	RightPressed bool

	WheelY float64

	// Pan is a held-key pan direction, each component in -1..1.
	Pan geo.Point

	Keys   []Key
	Digits []int // 1..9, pressed this frame
	Shift  bool
}

// Target is the session surface the controls drive.
type Target interface {
	MoveCursor(p geo.Point)
	Click(p geo.Point) error
	BeginDrag(p geo.Point) bool
	EndDrag(p geo.Point) error
	PanBy(dx, dy float64)
	ZoomAt(factor float64, anchor geo.Point)
	CenterOnSelection()
	Cancel()

	Selection() selection.State
	Send() error
	Dispatch() error
	AvailableShips() map[core.ShipClass]int
	Picked() map[core.ShipClass]int
	Pick(class core.ShipClass, n int)
	ConfirmShipsAt(p geo.Point, name string) error
	DisbandFleet() error
	CreateFleet(name string) error

	OpenTechBudget() error
	OpenEconomyBudget() error
	Budget() (session.Panel, budget.Allocation, bool)
	SetAllocation(key string, value int) error
	CommitBudget() error
}

// Settings tune gestures.
type Settings struct {
	DragThresholdPx float64
	PanStepPx       float64
	ZoomStep        float64
	BudgetStep      int
	NewFleetName    string
}

// DefaultSettings returns stock gesture tuning.
func DefaultSettings() Settings {
	return Settings{
		DragThresholdPx: 4,
		PanStepPx:       12,
		ZoomStep:        1.1,
		BudgetStep:      5,
		NewFleetName:    "New Fleet",
	}
}

// Controller keeps gesture state across frames.
type Controller struct {
	t   Target
	cfg Settings

	down     bool
	pressAt  geo.Point
	last     geo.Point
	dragging bool
	panning  bool

	row int // highlighted budget row
}

// New creates a controller driving t.
func New(t Target, cfg Settings) *Controller {
	def := DefaultSettings()
	if cfg.DragThresholdPx <= 0 {
		cfg.DragThresholdPx = def.DragThresholdPx
	}
	if cfg.PanStepPx <= 0 {
		cfg.PanStepPx = def.PanStepPx
	}
	if cfg.ZoomStep <= 1 {
		cfg.ZoomStep = def.ZoomStep
	}
	if cfg.BudgetStep <= 0 {
		cfg.BudgetStep = def.BudgetStep
	}
	if cfg.NewFleetName == "" {
		cfg.NewFleetName = def.NewFleetName
	}
	return &Controller{t: t, cfg: cfg}
}

// Row returns the highlighted budget row.
func (c *Controller) Row() int { return c.row }

// Handle applies one frame of input. Action errors are reported by the
// session as notices, so they are not returned here.
func (c *Controller) Handle(in Input) {
	c.t.MoveCursor(in.Cursor)
	c.pointer(in)

	if in.WheelY != 0 {
		factor := c.cfg.ZoomStep
		if in.WheelY < 0 {
			factor = 1 / factor
		}
		c.t.ZoomAt(factor, in.Cursor)
	}
	if in.Pan != (geo.Point{}) {
		c.t.PanBy(-in.Pan.X*c.cfg.PanStepPx, -in.Pan.Y*c.cfg.PanStepPx)
	}

	for _, k := range in.Keys {
		c.key(k, in)
	}
	for _, d := range in.Digits {
		c.digit(d, in.Shift)
	}
}

// pointer handles the left button as click, fleet drag or map pan. A press
// only becomes a gesture once it moves past the drag threshold: starting on
// one of the viewer's fleets it drags that fleet, anywhere else it pans.
func (c *Controller) pointer(in Input) {
	if in.RightPressed {
		if c.t.Selection().Mode() == selection.AwaitingShipSelection {
			_ = c.t.ConfirmShipsAt(in.Cursor, "")
		} else {
			c.t.Cancel()
		}
	}

	if in.LeftPressed {
		c.down = true
		c.pressAt, c.last = in.Cursor, in.Cursor
		c.dragging, c.panning = false, false
	}

	if c.down && in.LeftHeld && !c.dragging && !c.panning &&
		c.pressAt.Dist(in.Cursor) > c.cfg.DragThresholdPx {
		c.dragging = c.t.BeginDrag(c.pressAt)
		c.panning = !c.dragging
	}
	if c.panning && in.LeftHeld {
		d := in.Cursor.Sub(c.last)
		c.t.PanBy(d.X, d.Y)
	}
	c.last = in.Cursor

	if in.LeftReleased && c.down {
		switch {
		case c.dragging:
			_ = c.t.EndDrag(in.Cursor)
		case !c.panning:
			_ = c.t.Click(in.Cursor)
		}
		c.down, c.dragging, c.panning = false, false, false
	}
}

func (c *Controller) key(k Key, in Input) {
	switch k {
	case KeyCancel:
		c.t.Cancel()
		c.row = 0
	case KeySend:
		_ = c.t.Send()
	case KeyDispatch:
		_ = c.t.Dispatch()
	case KeyCenter:
		c.t.CenterOnSelection()
	case KeyTechBudget:
		c.row = 0
		_ = c.t.OpenTechBudget()
	case KeyEconomyBudget:
		c.row = 0
		_ = c.t.OpenEconomyBudget()
	case KeyCommit:
		_ = c.t.CommitBudget()
	case KeyDisband:
		_ = c.t.DisbandFleet()
	case KeyCreate:
		_ = c.t.CreateFleet(c.cfg.NewFleetName)
	case KeyNextRow:
		if _, alloc, ok := c.t.Budget(); ok {
			c.row = (c.row + 1) % len(alloc.Keys())
		}
	case KeyIncrease, KeyDecrease:
		_, alloc, ok := c.t.Budget()
		if !ok {
			return
		}
		keys := alloc.Keys()
		c.row = min(c.row, len(keys)-1)
		step := c.cfg.BudgetStep
		if k == KeyDecrease {
			step = -step
		}
		_ = c.t.SetAllocation(keys[c.row], alloc.Get(keys[c.row])+step)
	case KeyZoomIn:
		c.t.ZoomAt(c.cfg.ZoomStep, in.Cursor)
	case KeyZoomOut:
		c.t.ZoomAt(1/c.cfg.ZoomStep, in.Cursor)
	}
}

// digit adds (or with shift removes) one ship of the d-th class, in name
// order, to the open ship picker. Counts wrap to zero past what is available.
func (c *Controller) digit(d int, shift bool) {
	if c.t.Selection().Mode() != selection.AwaitingShipSelection {
		return
	}
	avail := c.t.AvailableShips()
	classes := make([]string, 0, len(avail))
	for class := range avail {
		classes = append(classes, string(class))
	}
	sort.Strings(classes)
	if d < 1 || d > len(classes) {
		return
	}
	class := core.ShipClass(classes[d-1])
	n := c.t.Picked()[class]
	if shift {
		n = max(0, n-1)
	} else if n++; n > avail[class] {
		n = 0
	}
	c.t.Pick(class, n)
}
