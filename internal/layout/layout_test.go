package layout

import (
	"math"
	"testing"

	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/internal/viewport"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *core.Snapshot {
	return &core.Snapshot{
		Turn:     12,
		ViewerID: "p1",
		World:    core.World{Width: 1000, Height: 1000},
		Players:  []core.Player{{ID: "p1", Color: "#ff0000"}, {ID: "p2", Color: "#0000ff"}},
		Bodies: []core.Body{
			{ID: "sol", Position: core.Position2D{X: 100, Y: 200}, OwnerID: "p1", State: core.BodyColonized, Satellites: []core.BodyID{"luna"}},
			{ID: "luna", Position: core.Position2D{X: 0, Y: 0}, State: core.BodyExplored},
			{ID: "vega", Position: core.Position2D{X: 300, Y: 600}, OwnerID: "p2", State: core.BodyUnexplored},
		},
		Fleets: []core.Fleet{
			{ID: "f1", OwnerID: "p1", StationedAt: "sol", Ships: map[core.ShipClass]int{"fighter": 3}},
			{ID: "f2", OwnerID: "p1", StationedAt: "sol", Ships: map[core.ShipClass]int{"frigate": 1}},
			{ID: "f3", OwnerID: "p2", Ships: map[core.ShipClass]int{"fighter": 2},
				Transit: &core.Transit{Origin: "sol", Destination: "vega", DepartureTurn: 10, ArrivalTurn: 14}},
			{ID: "dead", OwnerID: "p1", StationedAt: "sol", Ships: map[core.ShipClass]int{}},
		},
	}
}

func find(placed []Placed, kind Kind, id string) (Placed, bool) {
	for _, p := range placed {
		if p.Kind == kind && p.ID == id {
			return p, true
		}
	}
	return Placed{}, false
}

func TestHashAngle_StableAndInRange(t *testing.T) {
	for _, id := range []string{"", "sol", "vega", "a-very-long-body-identifier"} {
		a := HashAngle(id)
		assert.Equal(t, a, HashAngle(id))
		assert.GreaterOrEqual(t, a, 0.0)
		assert.LessOrEqual(t, a, 2*math.Pi)
	}
	assert.NotEqual(t, HashAngle("sol"), HashAngle("vega"))
}

func TestOrbitPlacement_RingsAndSpacing(t *testing.T) {
	anchor := geo.Pt(50, 50)

	for i := range 4 {
		p := OrbitPlacement(anchor, "sol", i, 4, 10, 5)
		assert.InDelta(t, 10+float64(i)*5, anchor.Dist(p), 1e-9)
		assert.Equal(t, p, OrbitPlacement(anchor, "sol", i, 4, 10, 5))
	}

	a0 := OrbitPlacement(anchor, "sol", 0, 4, 10, 0).Sub(anchor).Angle()
	a1 := OrbitPlacement(anchor, "sol", 1, 4, 10, 0).Sub(anchor).Angle()
	diff := math.Mod(a1-a0+2*math.Pi, 2*math.Pi)
	assert.InDelta(t, math.Pi/2, diff, 1e-9)

	assert.Equal(t, anchor, OrbitPlacement(anchor, "sol", 0, 0, 10, 5))
}

func TestLayout_Medium(t *testing.T) {
	snap := testSnapshot()
	v := viewport.New(viewport.DefaultConfig(), 800, 600)
	require.Equal(t, viewport.Medium, v.LOD())

	placed := Layout(snap, v, DefaultConfig())

	luna, ok := find(placed, KindBody, "luna")
	require.True(t, ok, "satellite placed at medium detail")
	assert.Equal(t, core.BodyID("sol"), luna.Parent)
	assert.InDelta(t, DefaultConfig().SatelliteRadius, luna.World.Dist(geo.Pt(100, 200)), 1e-9)

	vega, ok := find(placed, KindBody, "vega")
	require.True(t, ok)
	assert.Empty(t, vega.Owner, "unexplored body exposes no owner")

	_, ok = find(placed, KindFleet, "f1")
	assert.True(t, ok)
	_, ok = find(placed, KindFleet, "f2")
	assert.True(t, ok)
	_, ok = find(placed, KindFleet, "dead")
	assert.False(t, ok, "disbanded fleet is not drawn")

	f3, ok := find(placed, KindFleet, "f3")
	require.True(t, ok)
	assert.Equal(t, geo.Pt(200, 400), f3.World)
}

func TestLayout_StationedFleetsStayOnScreenRings(t *testing.T) {
	snap := testSnapshot()
	cfg := DefaultConfig()

	for _, zoom := range []float64{1, 4, 8} {
		v, _ := viewport.New(viewport.DefaultConfig(), 800, 600).SetZoom(zoom)
		placed := Layout(snap, v, cfg)
		anchor := v.WorldToScreen(geo.Pt(100, 200))

		f1, ok := find(placed, KindFleet, "f1")
		require.True(t, ok)
		f2, ok := find(placed, KindFleet, "f2")
		require.True(t, ok)

		assert.InDelta(t, cfg.FleetRingPx, anchor.Dist(f1.Screen), 1e-6, "zoom %v", zoom)
		assert.InDelta(t, cfg.FleetRingPx+cfg.FleetRingStepPx, anchor.Dist(f2.Screen), 1e-6, "zoom %v", zoom)
	}
}

func TestLayout_CoarseHidesDetail(t *testing.T) {
	snap := testSnapshot()
	v, _ := viewport.New(viewport.DefaultConfig(), 800, 600).SetZoom(0.5)
	require.Equal(t, viewport.Coarse, v.LOD())

	placed := Layout(snap, v, DefaultConfig())

	_, ok := find(placed, KindBody, "luna")
	assert.False(t, ok)
	_, ok = find(placed, KindFleet, "f1")
	assert.False(t, ok)
	_, ok = find(placed, KindBody, "sol")
	assert.True(t, ok)
	_, ok = find(placed, KindFleet, "f3")
	assert.True(t, ok, "fleets in transit stay visible at coarse detail")
}

func TestLayout_NilSnapshot(t *testing.T) {
	assert.Nil(t, Layout(nil, viewport.New(viewport.DefaultConfig(), 10, 10), DefaultConfig()))
}

func TestHitTest_ToleranceDoesNotScaleWithZoom(t *testing.T) {
	snap := testSnapshot()
	cfg := DefaultConfig()

	for _, zoom := range []float64{0.25, 0.5, 1, 3, 8} {
		v, _ := viewport.New(viewport.DefaultConfig(), 800, 600).SetZoom(zoom)
		v, _ = v.CenterOn(geo.Pt(300, 600))
		placed := Layout(snap, v, cfg)

		center := v.WorldToScreen(geo.Pt(300, 600))
		hit, ok := HitTest(placed, center.Add(geo.Pt(cfg.HitTolerancePx-1, 0)), cfg.HitTolerancePx, v, Bodies)
		require.True(t, ok, "zoom %v", zoom)
		assert.Equal(t, "vega", hit.ID)
	}
}

func TestHitTest_Miss(t *testing.T) {
	snap := testSnapshot()
	v := viewport.New(viewport.DefaultConfig(), 800, 600)
	placed := Layout(snap, v, DefaultConfig())

	_, ok := HitTest(placed, geo.Pt(700, 50), 12, v, nil)
	if ok {
		t.Errorf("expected no hit in empty space")
	}
}

func TestHitTest_TieBreaking(t *testing.T) {
	v := viewport.New(viewport.DefaultConfig(), 800, 600)
	placed := []Placed{
		{Kind: KindBody, ID: "b", Screen: geo.Pt(10, 0), World: geo.Pt(10, 0)},
		{Kind: KindBody, ID: "a", Screen: geo.Pt(-10, 0), World: geo.Pt(-10, 0)},
		{Kind: KindBody, ID: "c", Screen: geo.Pt(0, 10), World: geo.Pt(0, 50)},
	}

	hit, ok := HitTest(placed, geo.Pt(0, 0), 12, v, nil)
	require.True(t, ok)
	assert.Equal(t, "a", hit.ID, "equal distances resolve to smaller id")

	placed[0].World = geo.Pt(1, 0)
	hit, _ = HitTest(placed, geo.Pt(0, 0), 12, v, nil)
	assert.Equal(t, "b", hit.ID, "smaller world distance wins a screen tie")
}

func TestHitTest_FilterRestrictsKind(t *testing.T) {
	v := viewport.New(viewport.DefaultConfig(), 800, 600)
	placed := []Placed{
		{Kind: KindFleet, ID: "f", Screen: geo.Pt(1, 0)},
		{Kind: KindBody, ID: "b", Screen: geo.Pt(5, 0)},
	}

	hit, _ := HitTest(placed, geo.Pt(0, 0), 12, v, nil)
	assert.Equal(t, KindFleet, hit.Kind)
	hit, _ = HitTest(placed, geo.Pt(0, 0), 12, v, Bodies)
	assert.Equal(t, "b", hit.ID)
	hit, _ = HitTest(placed, geo.Pt(0, 0), 12, v, Fleets)
	assert.Equal(t, core.FleetID("f"), hit.FleetID())
}
