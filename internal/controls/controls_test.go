package controls

import (
	"fmt"
	"testing"

	"github.com/galaxycore/galaxyview/internal/budget"
	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/internal/selection"
	"github.com/galaxycore/galaxyview/internal/session"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	calls     []string
	sel       selection.State
	draggable bool
	avail     map[core.ShipClass]int
	picked    map[core.ShipClass]int
	alloc     *budget.Allocation
	pan       geo.Point
}

func (f *fakeTarget) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeTarget) MoveCursor(geo.Point)          {}
func (f *fakeTarget) Click(p geo.Point) error       { f.record("click %v,%v", p.X, p.Y); return nil }
func (f *fakeTarget) EndDrag(p geo.Point) error     { f.record("drop %v,%v", p.X, p.Y); return nil }
func (f *fakeTarget) PanBy(dx, dy float64)          { f.pan = f.pan.Add(geo.Pt(dx, dy)) }
func (f *fakeTarget) CenterOnSelection()            { f.record("center") }
func (f *fakeTarget) Cancel()                       { f.record("cancel") }
func (f *fakeTarget) Selection() selection.State    { return f.sel }
func (f *fakeTarget) Send() error                   { f.record("send"); return nil }
func (f *fakeTarget) Dispatch() error               { f.record("dispatch"); return nil }
func (f *fakeTarget) DisbandFleet() error           { f.record("disband"); return nil }
func (f *fakeTarget) CreateFleet(name string) error { f.record("create %s", name); return nil }
func (f *fakeTarget) OpenTechBudget() error         { f.record("tech"); return nil }
func (f *fakeTarget) OpenEconomyBudget() error      { f.record("economy"); return nil }
func (f *fakeTarget) CommitBudget() error           { f.record("commit"); return nil }

func (f *fakeTarget) BeginDrag(p geo.Point) bool {
	f.record("drag %v,%v", p.X, p.Y)
	return f.draggable
}

func (f *fakeTarget) ZoomAt(factor float64, anchor geo.Point) {
	f.record("zoom %.3f at %v,%v", factor, anchor.X, anchor.Y)
}

func (f *fakeTarget) AvailableShips() map[core.ShipClass]int { return f.avail }

func (f *fakeTarget) Picked() map[core.ShipClass]int { return f.picked }

func (f *fakeTarget) Pick(class core.ShipClass, n int) {
	if f.picked == nil {
		f.picked = map[core.ShipClass]int{}
	}
	f.picked[class] = n
}

func (f *fakeTarget) ConfirmShipsAt(p geo.Point, name string) error {
	f.record("confirm %v,%v", p.X, p.Y)
	return nil
}

func (f *fakeTarget) Budget() (session.Panel, budget.Allocation, bool) {
	if f.alloc == nil {
		return session.NoPanel, budget.Allocation{}, false
	}
	return session.TechPanel, *f.alloc, true
}

func (f *fakeTarget) SetAllocation(key string, value int) error {
	next, err := f.alloc.Set(key, value)
	if err != nil {
		return err
	}
	*f.alloc = next
	f.record("set %s=%d", key, value)
	return nil
}

func TestController_ClickWithoutMovement(t *testing.T) {
	f := &fakeTarget{draggable: true}
	c := New(f, Settings{})

	c.Handle(Input{Cursor: geo.Pt(10, 10), LeftPressed: true, LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(12, 11), LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(12, 11), LeftReleased: true})

	assert.Equal(t, []string{"click 12,11"}, f.calls, "small jitter stays a click")
}

func TestController_DragFleet(t *testing.T) {
	f := &fakeTarget{draggable: true}
	c := New(f, Settings{})

	c.Handle(Input{Cursor: geo.Pt(10, 10), LeftPressed: true, LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(40, 10), LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(90, 60), LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(90, 60), LeftReleased: true})

	assert.Equal(t, []string{"drag 10,10", "drop 90,60"}, f.calls)
	assert.Equal(t, geo.Point{}, f.pan, "a fleet drag never pans")
}

func TestController_DragEmptyPans(t *testing.T) {
	f := &fakeTarget{}
	c := New(f, Settings{})

	c.Handle(Input{Cursor: geo.Pt(10, 10), LeftPressed: true, LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(30, 10), LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(30, 50), LeftHeld: true})
	c.Handle(Input{Cursor: geo.Pt(30, 50), LeftReleased: true})

	assert.Equal(t, []string{"drag 10,10"}, f.calls, "no click after a pan")
	assert.Equal(t, geo.Pt(20, 40), f.pan)
}

func TestController_WheelZoomsAtCursor(t *testing.T) {
	f := &fakeTarget{}
	c := New(f, Settings{ZoomStep: 1.25})

	c.Handle(Input{Cursor: geo.Pt(5, 6), WheelY: 1})
	c.Handle(Input{Cursor: geo.Pt(5, 6), WheelY: -3})

	assert.Equal(t, []string{"zoom 1.250 at 5,6", "zoom 0.800 at 5,6"}, f.calls)
}

func TestController_KeyPan(t *testing.T) {
	f := &fakeTarget{}
	c := New(f, Settings{PanStepPx: 10})
	c.Handle(Input{Pan: geo.Pt(1, -1)})
	assert.Equal(t, geo.Pt(-10, 10), f.pan)
}

func TestController_RightClick(t *testing.T) {
	f := &fakeTarget{}
	c := New(f, Settings{})

	c.Handle(Input{Cursor: geo.Pt(1, 2), RightPressed: true})
	assert.Equal(t, []string{"cancel"}, f.calls)

	f.calls = nil
	f.sel = pickerState(t)
	c.Handle(Input{Cursor: geo.Pt(1, 2), RightPressed: true})
	assert.Equal(t, []string{"confirm 1,2"}, f.calls)
}

func TestController_Keys(t *testing.T) {
	f := &fakeTarget{}
	c := New(f, Settings{})

	c.Handle(Input{Keys: []Key{KeySend, KeyDispatch, KeyCenter, KeyDisband, KeyCreate, KeyCancel}})
	assert.Equal(t, []string{"send", "dispatch", "center", "disband", "create New Fleet", "cancel"}, f.calls)
}

func TestController_BudgetRows(t *testing.T) {
	alloc, err := budget.New([]string{"a", "b", "c"}, map[string]int{"a": 50, "b": 30, "c": 20})
	require.NoError(t, err)
	f := &fakeTarget{alloc: &alloc}
	c := New(f, Settings{BudgetStep: 10})

	c.Handle(Input{Keys: []Key{KeyNextRow, KeyIncrease}})
	assert.Equal(t, 1, c.Row())
	assert.Equal(t, 40, f.alloc.Get("b"))
	assert.Equal(t, 100, f.alloc.Sum())

	c.Handle(Input{Keys: []Key{KeyNextRow, KeyNextRow, KeyDecrease, KeyCommit}})
	assert.Equal(t, 0, c.Row())
	// a went to 43 when b grew, then down one step
	assert.Equal(t, 33, f.alloc.Get("a"))
	assert.Equal(t, 100, f.alloc.Sum())
	assert.Equal(t, "commit", f.calls[len(f.calls)-1])

	f.alloc = nil
	c.Handle(Input{Keys: []Key{KeyIncrease, KeyNextRow}})
	assert.Equal(t, 0, c.Row())
}

func TestController_DigitsPickShips(t *testing.T) {
	f := &fakeTarget{
		sel:   pickerState(t),
		avail: map[core.ShipClass]int{"frigate": 1, "fighter": 2},
	}
	c := New(f, Settings{})

	// classes in name order: 1 = fighter, 2 = frigate
	c.Handle(Input{Digits: []int{1, 1, 2}})
	assert.Equal(t, map[core.ShipClass]int{"fighter": 2, "frigate": 1}, f.picked)

	c.Handle(Input{Digits: []int{1}})
	assert.Equal(t, 0, f.picked["fighter"], "wraps past what is available")

	c.Handle(Input{Digits: []int{2}, Shift: true})
	assert.Equal(t, 0, f.picked["frigate"])

	c.Handle(Input{Digits: []int{7}})
	assert.Len(t, f.picked, 2)
}

func pickerState(t *testing.T) selection.State {
	t.Helper()
	ix := core.NewIndex(&core.Snapshot{
		ViewerID: "p1",
		Players:  []core.Player{{ID: "p1"}},
		Bodies:   []core.Body{{ID: "sol", OwnerID: "p1", State: core.BodyColonized}},
		Fleets:   []core.Fleet{{ID: "f1", OwnerID: "p1", StationedAt: "sol", Ships: map[core.ShipClass]int{"fighter": 1}}},
	})
	s, err := selection.SelectBody("sol").InvokeDispatch(ix)
	require.NoError(t, err)
	return s
}
