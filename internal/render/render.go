// Package render turns viewport, selection and snapshot into a flat list of
// draw operations. It has no rendering backend dependency, so everything it
// produces can be asserted on in tests.
package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/internal/layout"
	"github.com/galaxycore/galaxyview/internal/notice"
	"github.com/galaxycore/galaxyview/internal/selection"
	"github.com/galaxycore/galaxyview/internal/snapshot"
	"github.com/galaxycore/galaxyview/internal/trajectory"
	"github.com/galaxycore/galaxyview/internal/viewport"
	"github.com/galaxycore/galaxyview/pkg/core"
)

// OpKind is a draw primitive.
type OpKind int

const (
	FillCircle OpKind = iota
	StrokeCircle
	Line
	FillRect
	Label
)

// Op is one draw instruction in screen space. Line uses From/To, FillRect uses
// From as the corner and To as the size, circles use From and Radius, Label
// uses From as the top-left of Text.
type Op struct {
	Kind   OpKind
	From   geo.Point
	To     geo.Point
	Radius float64
	Width  float64
	Color  color.RGBA
	Text   string
	Tag    string // entity id or HUD element, for tests and debugging
}

// DrawList is the output of Build, in painter's order.
type DrawList struct {
	Ops []Op
}

// Find returns the ops carrying tag.
func (d DrawList) Find(tag string) []Op {
	var out []Op
	for _, op := range d.Ops {
		if op.Tag == tag {
			out = append(out, op)
		}
	}
	return out
}

func (d *DrawList) add(op Op) { d.Ops = append(d.Ops, op) }

// Frame is everything a frame depends on.
type Frame struct {
	Viewport        viewport.Viewport
	Selection       selection.State
	Index           *core.Index
	Status          snapshot.Status
	Layout          layout.Config
	Placed          []layout.Placed // from layout.Layout; computed when nil
	Cursor          geo.Point
	Notices         []notice.Notice
	CullMarginPx    float64
	PickerShipsText string
	Budget          *BudgetPanel
}

// BudgetPanel is an open allocation editor.
type BudgetPanel struct {
	Title    string
	Rows     []BudgetRow
	Sum      int
	Selected int // highlighted row
}

// BudgetRow is one allocation with its displayed effectiveness.
type BudgetRow struct {
	Key       string
	Nominal   int
	Effective float64
}

const (
	hudLine      = 14.0
	labelOffset  = 8.0
	markerPx     = 2.0
	arrowPx      = 7.0
	enemyFade    = 0.45
	unexplFade   = 0.35
	selectRingPx = 5.0
)

// Build produces the draw list for one frame.
func Build(f Frame) DrawList {
	var d DrawList
	if f.Index == nil {
		drawHUD(&d, f)
		return d
	}
	placed := f.Placed
	if placed == nil {
		placed = layout.Layout(f.Index.Snapshot(), f.Viewport, f.Layout)
	}
	margin := f.CullMarginPx
	if margin <= 0 {
		margin = 64
	}

	drawTrajectories(&d, f)
	drawPreview(&d, f, placed)

	lod := f.Viewport.LOD()
	viewer := f.Index.Viewer()
	selBody, _ := f.Selection.Body()
	selFleet, _ := f.Selection.Fleet()

	for _, p := range placed {
		if !f.Viewport.Visible(p.World, margin) {
			continue
		}
		c := HexOr(f.Index.ColorOf(p.Owner, ""), Neutral)
		switch p.Kind {
		case layout.KindBody:
			b, _ := f.Index.Body(p.BodyID())
			if b.State == core.BodyUnexplored {
				c = Fade(c, unexplFade)
			}
			d.add(Op{Kind: FillCircle, From: p.Screen, Radius: p.RadiusPx, Color: c, Tag: p.ID})
			if p.BodyID() == selBody && f.Selection.Mode() != selection.FleetSelected {
				d.add(Op{Kind: StrokeCircle, From: p.Screen, Radius: p.RadiusPx + selectRingPx, Width: 2, Color: Highlight, Tag: p.ID})
			}
			if lod == viewport.Fine && b.Name != "" {
				d.add(Op{Kind: Label, From: p.Screen.Add(geo.Pt(labelOffset, -labelOffset)), Text: b.Name, Color: Text, Tag: p.ID})
			}
		case layout.KindFleet:
			if p.Owner != viewer {
				c = Fade(c, 0.8)
			}
			s := p.RadiusPx
			d.add(Op{Kind: FillRect, From: p.Screen.Sub(geo.Pt(s, s)), To: geo.Pt(2*s, 2*s), Color: c, Tag: p.ID})
			if p.FleetID() == selFleet {
				d.add(Op{Kind: StrokeCircle, From: p.Screen, Radius: s + selectRingPx, Width: 2, Color: Highlight, Tag: p.ID})
			}
		}
	}

	drawHUD(&d, f)
	return d
}

func drawTrajectories(d *DrawList, f Frame) {
	snap := f.Index.Snapshot()
	positions := layout.BodyPositions(snap, f.Layout)
	viewer := f.Index.Viewer()
	fine := f.Viewport.LOD() == viewport.Fine

	fleets := append([]core.Fleet(nil), snap.Fleets...)
	sort.Slice(fleets, func(i, j int) bool { return fleets[i].ID < fleets[j].ID })

	for _, fl := range fleets {
		if fl.Transit == nil || fl.Disbanded() {
			continue
		}
		origin, okO := positions[fl.Transit.Origin]
		dest, okD := positions[fl.Transit.Destination]
		if !okO || !okD {
			continue
		}
		owned := fl.OwnerID == viewer
		path := trajectory.ProjectFleet(origin, dest, *fl.Transit, snap.Turn, trajectory.Options{
			Owned:           owned,
			PerTurnDistance: perTurn(fl, f.Layout),
		})
		c := HexOr(f.Index.ColorOf(fl.OwnerID, ""), Neutral)
		if path.Emphasis == trajectory.Reduced {
			c = Fade(c, enemyFade)
		}
		tag := string(fl.ID)
		drawPath(d, f.Viewport, path, c, tag)

		if owned && fine && path.Current != nil {
			at := f.Viewport.WorldToScreen(*path.Current).Add(geo.Pt(labelOffset, labelOffset))
			d.add(Op{Kind: Label, From: at, Text: fmt.Sprintf("ETA %d", path.ETA), Color: Text, Tag: tag})
		}
	}
}

func drawPath(d *DrawList, v viewport.Viewport, path trajectory.Path, c color.RGBA, tag string) {
	from := v.WorldToScreen(path.Origin)
	to := v.WorldToScreen(path.Destination)
	d.add(Op{Kind: Line, From: from, To: to, Width: 1, Color: c, Tag: tag})

	for _, m := range path.Markers {
		d.add(Op{Kind: FillCircle, From: v.WorldToScreen(m), Radius: markerPx, Color: c, Tag: tag})
	}

	tip := v.WorldToScreen(path.Arrow.Position)
	for _, side := range []float64{-1, 1} {
		wing := geo.Polar(tip, arrowPx, path.Arrow.Angle+math.Pi+side*math.Pi/6)
		d.add(Op{Kind: Line, From: tip, To: wing, Width: 1.5, Color: c, Tag: tag})
	}
}

// drawPreview shows where a fleet awaiting a destination would go: a line to
// the cursor, or a projected path when hovering a body.
func drawPreview(d *DrawList, f Frame, placed []layout.Placed) {
	if f.Selection.Mode() != selection.AwaitingDestination {
		return
	}
	id, _ := f.Selection.Fleet()
	fl, ok := f.Index.Fleet(id)
	if !ok {
		return
	}
	station, ok := f.Index.Body(fl.Location())
	if !ok {
		return
	}
	origin := layout.BodyPositions(f.Index.Snapshot(), f.Layout)[station.ID]

	hit, hovering := layout.HitTest(placed, f.Cursor, f.Layout.HitTolerancePx, f.Viewport, layout.Bodies)
	if !hovering || hit.BodyID() == station.ID {
		d.add(Op{Kind: Line, From: f.Viewport.WorldToScreen(origin), To: f.Cursor, Width: 1, Color: Fade(Preview, 0.6), Tag: "preview"})
		return
	}

	step := perTurn(fl, f.Layout)
	path := trajectory.Project(origin, hit.World, trajectory.Options{Owned: true, PerTurnDistance: step})
	drawPath(d, f.Viewport, path, Preview, "preview")
	turns := int(math.Ceil(path.Length / step))
	d.add(Op{
		Kind:  Label,
		From:  hit.Screen.Add(geo.Pt(labelOffset, labelOffset)),
		Text:  fmt.Sprintf("%.0f ly, ~%d turns", path.Length, turns),
		Color: Preview,
		Tag:   "preview",
	})
}

func perTurn(fl core.Fleet, cfg layout.Config) float64 {
	if fl.Stats.Speed > 0 {
		return fl.Stats.Speed
	}
	if cfg.PerTurnDistance > 0 {
		return cfg.PerTurnDistance
	}
	return layout.DefaultConfig().PerTurnDistance
}

func drawHUD(d *DrawList, f Frame) {
	y := 4.0
	line := func(text string, c color.RGBA, tag string) {
		d.add(Op{Kind: Label, From: geo.Pt(4, y), Text: text, Color: c, Tag: tag})
		y += hudLine
	}

	if f.Index == nil {
		if f.Status.Stale && f.Status.LastError != nil {
			line("Cannot reach server, retrying", Warning, "stale")
		} else {
			line("Loading galaxy...", Text, "status")
		}
	} else {
		snap := f.Index.Snapshot()
		e := snap.Economy
		line(fmt.Sprintf("Turn %d  Money %d  Metal %d  Income %+d  Debt %d", snap.Turn, e.Money, e.Metal, e.Income, e.Debt), Text, "economy")
		if f.Status.Stale {
			since := ""
			if !f.Status.LastSuccess.IsZero() {
				since = " since " + f.Status.LastSuccess.Format("15:04:05")
			}
			line("Data may be out of date"+since, Warning, "stale")
		}
	}

	line(selectionText(f), Highlight, "selection")
	if f.PickerShipsText != "" {
		line(f.PickerShipsText, Text, "picker")
	}
	if b := f.Budget; b != nil {
		line(b.Title, Highlight, "budget")
		for i, r := range b.Rows {
			mark, c := "  ", Text
			if i == b.Selected {
				mark, c = "> ", Highlight
			}
			line(fmt.Sprintf("%s%-13s %3d%%  %3.0f%% effective", mark, r.Key, r.Nominal, r.Effective), c, "budget")
		}
		if b.Sum != 100 {
			line(fmt.Sprintf("Allocations sum to %d, must be 100", b.Sum), Warning, "budget")
		}
	}

	for _, n := range f.Notices {
		c := Text
		switch n.Level {
		case notice.Validation, notice.Stale:
			c = Warning
		case notice.Rejected, notice.Failure:
			c = Danger
		}
		line(n.Message, c, "notice")
	}
}

func selectionText(f Frame) string {
	s := f.Selection
	switch s.Mode() {
	case selection.BodySelected:
		id, _ := s.Body()
		return "Selected " + bodyName(f.Index, id)
	case selection.FleetSelected:
		id, _ := s.Fleet()
		return "Selected fleet " + fleetName(f.Index, id)
	case selection.AwaitingDestination:
		id, _ := s.Fleet()
		return "Choose a destination for " + fleetName(f.Index, id) + " (Esc to cancel)"
	case selection.AwaitingShipSelection:
		id, _ := s.Body()
		return "Choose ships to dispatch from " + bodyName(f.Index, id)
	default:
		return ""
	}
}

func bodyName(ix *core.Index, id core.BodyID) string {
	if ix != nil {
		if b, ok := ix.Body(id); ok && b.Name != "" {
			return b.Name
		}
	}
	return string(id)
}

func fleetName(ix *core.Index, id core.FleetID) string {
	if ix != nil {
		if f, ok := ix.Fleet(id); ok && f.Name != "" {
			return f.Name
		}
	}
	return string(id)
}
