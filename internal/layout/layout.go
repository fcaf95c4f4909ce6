// Package layout derives screen positions for bodies and fleets from a snapshot.
// Placement is recomputed from scratch on every call; nothing is cached.
package layout

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/internal/trajectory"
	"github.com/galaxycore/galaxyview/internal/viewport"
	"github.com/galaxycore/galaxyview/pkg/core"
	"lukechampine.com/blake3"
)

// Kind distinguishes placed entities.
type Kind int

const (
	KindBody Kind = iota
	KindFleet
)

func (k Kind) String() string {
	if k == KindFleet {
		return "fleet"
	}
	return "body"
}

// Config sizes rings and markers. Satellite distances are world units; fleet
// ring distances and marker sizes are pixels.
type Config struct {
	SatelliteRadius float64 `json:"satelliteRadius" mapstructure:"satelliteRadius"`
	SatelliteStep   float64 `json:"satelliteStep" mapstructure:"satelliteStep"`
	FleetRingPx     float64 `json:"fleetRingPx" mapstructure:"fleetRingPx"`
	FleetRingStepPx float64 `json:"fleetRingStepPx" mapstructure:"fleetRingStepPx"`
	BodyRadius      float64 `json:"bodyRadius" mapstructure:"bodyRadius"`
	MinMarkerPx     float64 `json:"minMarkerPx" mapstructure:"minMarkerPx"`
	FleetMarkerPx   float64 `json:"fleetMarkerPx" mapstructure:"fleetMarkerPx"`
	HitTolerancePx  float64 `json:"hitTolerancePx" mapstructure:"hitTolerancePx"`
	PerTurnDistance float64 `json:"perTurnDistance" mapstructure:"perTurnDistance"`
}

// DefaultConfig returns stock layout sizes.
func DefaultConfig() Config {
	return Config{
		SatelliteRadius: 12,
		SatelliteStep:   6,
		FleetRingPx:     18,
		FleetRingStepPx: 8,
		BodyRadius:      5,
		MinMarkerPx:     3,
		FleetMarkerPx:   4,
		HitTolerancePx:  12,
		PerTurnDistance: 40,
	}
}

// Placed is an entity with resolved world and screen positions.
type Placed struct {
	Kind     Kind
	ID       string
	Owner    core.PlayerID
	Parent   core.BodyID // orbited body, if any
	World    geo.Point
	Screen   geo.Point
	RadiusPx float64
}

// BodyID returns the id as a body id. Only meaningful for KindBody.
func (p Placed) BodyID() core.BodyID { return core.BodyID(p.ID) }

// FleetID returns the id as a fleet id. Only meaningful for KindFleet.
func (p Placed) FleetID() core.FleetID { return core.FleetID(p.ID) }

// HashAngle maps an id to a stable angle in [0, 2π) using blake3.
func HashAngle(id string) float64 {
	sum := blake3.Sum256([]byte(id))
	v := binary.BigEndian.Uint64(sum[:8])
	return float64(v) / float64(math.MaxUint64) * 2 * math.Pi
}

// OrbitPlacement returns the position of the index-th of total entities on
// concentric rings around anchor: radius grows by step per index, angles are
// 2π·i/total rotated by a stable offset derived from anchorID.
func OrbitPlacement(anchor geo.Point, anchorID string, index, total int, radius, step float64) geo.Point {
	if total <= 0 {
		return anchor
	}
	angle := 2*math.Pi*float64(index)/float64(total) + HashAngle(anchorID)
	return geo.Polar(anchor, radius+float64(index)*step, angle)
}

// BodyPositions resolves each body's world position. Satellites are placed on
// rings around their parent instead of at their declared position.
func BodyPositions(snap *core.Snapshot, cfg Config) map[core.BodyID]geo.Point {
	pos := make(map[core.BodyID]geo.Point, len(snap.Bodies))
	for _, b := range snap.Bodies {
		pos[b.ID] = geo.FromCore(b.Position)
	}
	for _, b := range snap.Bodies {
		anchor := geo.FromCore(b.Position)
		for i, sat := range b.Satellites {
			pos[sat] = OrbitPlacement(anchor, string(b.ID), i, len(b.Satellites), cfg.SatelliteRadius, cfg.SatelliteStep)
		}
	}
	return pos
}

func satelliteParents(snap *core.Snapshot) map[core.BodyID]core.BodyID {
	parents := make(map[core.BodyID]core.BodyID)
	for _, b := range snap.Bodies {
		for _, sat := range b.Satellites {
			parents[sat] = b.ID
		}
	}
	return parents
}

// Layout places every renderable entity for the current viewport. Disbanded
// fleets are skipped. Satellites and stationed fleet markers appear only at
// medium detail or finer; coarse shows primary bodies and fleets in transit.
func Layout(snap *core.Snapshot, v viewport.Viewport, cfg Config) []Placed {
	if snap == nil {
		return nil
	}
	lod := v.LOD()
	positions := BodyPositions(snap, cfg)
	parents := satelliteParents(snap)
	bodyPx := math.Max(cfg.MinMarkerPx, v.WorldLength(cfg.BodyRadius))

	out := make([]Placed, 0, len(snap.Bodies)+len(snap.Fleets))
	for _, b := range snap.Bodies {
		parent, isSatellite := parents[b.ID]
		if isSatellite && !lod.AtLeast(viewport.Medium) {
			continue
		}
		w := positions[b.ID]
		r := bodyPx
		if isSatellite {
			r = math.Max(cfg.MinMarkerPx, r/2)
		}
		out = append(out, Placed{
			Kind:     KindBody,
			ID:       string(b.ID),
			Owner:    b.Redacted().OwnerID,
			Parent:   parent,
			World:    w,
			Screen:   v.WorldToScreen(w),
			RadiusPx: r,
		})
	}

	stationed := make(map[core.BodyID][]core.Fleet)
	for _, f := range snap.Fleets {
		if f.Disbanded() {
			continue
		}
		if f.Transit == nil {
			stationed[f.StationedAt] = append(stationed[f.StationedAt], f)
			continue
		}
		origin, okO := positions[f.Transit.Origin]
		dest, okD := positions[f.Transit.Destination]
		if !okO || !okD {
			continue
		}
		progress := trajectory.Progress(snap.Turn, f.Transit.DepartureTurn, f.Transit.ArrivalTurn)
		w := trajectory.Interpolate(origin, dest, progress)
		out = append(out, Placed{
			Kind:     KindFleet,
			ID:       string(f.ID),
			Owner:    f.OwnerID,
			World:    w,
			Screen:   v.WorldToScreen(w),
			RadiusPx: cfg.FleetMarkerPx,
		})
	}

	if lod.AtLeast(viewport.Medium) {
		bodies := make([]core.BodyID, 0, len(stationed))
		for id := range stationed {
			bodies = append(bodies, id)
		}
		sort.Slice(bodies, func(i, j int) bool { return bodies[i] < bodies[j] })

		for _, bodyID := range bodies {
			anchorWorld, ok := positions[bodyID]
			if !ok {
				continue
			}
			fleets := stationed[bodyID]
			sort.Slice(fleets, func(i, j int) bool { return fleets[i].ID < fleets[j].ID })
			anchor := v.WorldToScreen(anchorWorld)
			for i, f := range fleets {
				s := OrbitPlacement(anchor, string(bodyID), i, len(fleets), cfg.FleetRingPx, cfg.FleetRingStepPx)
				out = append(out, Placed{
					Kind:     KindFleet,
					ID:       string(f.ID),
					Owner:    f.OwnerID,
					Parent:   bodyID,
					World:    v.ScreenToWorld(s),
					Screen:   s,
					RadiusPx: cfg.FleetMarkerPx,
				})
			}
		}
	}
	return out
}

// Filter selects which placed entities a hit test considers.
type Filter func(Placed) bool

// Bodies matches only bodies.
func Bodies(p Placed) bool { return p.Kind == KindBody }

// Fleets matches only fleets.
func Fleets(p Placed) bool { return p.Kind == KindFleet }

// HitTest returns the entity nearest to the screen point within the hit radius:
// the larger of tolerancePx and the entity's own marker radius, so the target
// area never shrinks below tolerancePx however far the view is zoomed out. Ties
// on screen distance go to the smaller world distance, then the smaller id.
func HitTest(placed []Placed, screen geo.Point, tolerancePx float64, v viewport.Viewport, filter Filter) (Placed, bool) {
	world := v.ScreenToWorld(screen)
	var (
		best      Placed
		bestScr   = math.Inf(1)
		bestWorld = math.Inf(1)
		found     bool
	)
	for _, p := range placed {
		if filter != nil && !filter(p) {
			continue
		}
		d := p.Screen.Dist(screen)
		if d > math.Max(tolerancePx, p.RadiusPx) {
			continue
		}
		wd := p.World.Dist(world)
		better := !found ||
			d < bestScr ||
			(d == bestScr && wd < bestWorld) ||
			(d == bestScr && wd == bestWorld && p.ID < best.ID)
		if better {
			best, bestScr, bestWorld, found = p, d, wd, true
		}
	}
	return best, found
}
