package trajectory

import (
	"math"

	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/galaxycore/galaxyview/pkg/core"
)

// ArrowFraction is how far along the path the direction arrow sits.
const ArrowFraction = 0.8

// MinMarkers is the marker floor so zero-length and short hops still draw a path.
const MinMarkers = 2

// Emphasis controls how prominently a path is drawn.
type Emphasis int

const (
	Full Emphasis = iota
	Reduced
)

// Options configures a projection.
type Options struct {
	// Owned paths get turn markers and a current-position indicator.
	Owned bool
	// PerTurnDistance is the world distance a fleet covers in one turn.
	PerTurnDistance float64
}

// Arrow is a direction indicator on the path.
type Arrow struct {
	Position geo.Point
	Angle    float64 // radians from +X along the path tangent
}

// Path is a projected straight-line trajectory in world space.
type Path struct {
	Origin      geo.Point
	Destination geo.Point
	Length      float64
	Markers     []geo.Point
	Arrow       Arrow
	Emphasis    Emphasis

	// Set only by ProjectFleet for owned fleets in transit.
	Current  *geo.Point
	Progress float64
	ETA      int
}

// MarkerCount returns max(MinMarkers, ceil(length/perTurn)).
func MarkerCount(length, perTurn float64) int {
	if !(perTurn > 0) || !geo.Finite(length) || length <= 0 {
		return MinMarkers
	}
	n := int(math.Ceil(length / perTurn))
	if n < MinMarkers {
		return MinMarkers
	}
	return n
}

// Project computes the path between two world points.
func Project(origin, dest geo.Point, opts Options) Path {
	p := Path{
		Origin:      origin,
		Destination: dest,
		Length:      geo.PathLength(origin, dest),
		Arrow: Arrow{
			Position: geo.Lerp(origin, dest, ArrowFraction),
			Angle:    dest.Sub(origin).Angle(),
		},
		Emphasis: Reduced,
	}
	if !opts.Owned {
		return p
	}

	p.Emphasis = Full
	n := MarkerCount(p.Length, opts.PerTurnDistance)
	p.Markers = make([]geo.Point, n)
	for i := range n {
		p.Markers[i] = geo.Lerp(origin, dest, float64(i)/float64(n-1))
	}
	return p
}

// Progress returns how far through its transit a fleet is at currentTurn,
// clamped to [0, 1]. A transit with no duration counts as complete.
func Progress(currentTurn, departureTurn, arrivalTurn int) float64 {
	span := arrivalTurn - departureTurn
	if span <= 0 {
		return 1
	}
	t := float64(currentTurn-departureTurn) / float64(span)
	return math.Max(0, math.Min(1, t))
}

// Interpolate returns origin + (dest-origin)*progress.
func Interpolate(origin, dest geo.Point, progress float64) geo.Point {
	return geo.Lerp(origin, dest, progress)
}

// TurnsRemaining is the number of turns until arrival, never negative.
func TurnsRemaining(currentTurn int, t core.Transit) int {
	if r := t.ArrivalTurn - currentTurn; r > 0 {
		return r
	}
	return 0
}

// ProjectFleet projects a fleet's transit. Owned fleets additionally get their
// interpolated current position, progress and ETA.
func ProjectFleet(origin, dest geo.Point, t core.Transit, currentTurn int, opts Options) Path {
	p := Project(origin, dest, opts)
	if !opts.Owned {
		return p
	}
	p.Progress = Progress(currentTurn, t.DepartureTurn, t.ArrivalTurn)
	cur := Interpolate(origin, dest, p.Progress)
	p.Current = &cur
	p.ETA = TurnsRemaining(currentTurn, t)
	return p
}
