package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/galaxycore/galaxyview/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Points live either in world space (logical galaxy units) or screen space (pixels).
// The type does not distinguish them; callers name their variables accordingly.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Point is a 2D vector.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// FromCore converts a world position from the snapshot.
func FromCore(p core.Position2D) Point {
	return Point{X: p.X, Y: p.Y}
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

// Len is the Euclidean norm.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Dist is the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return q.Sub(p).Len() }

// Angle is the direction of p in radians, measured from +X.
func (p Point) Angle() float64 { return math.Atan2(p.Y, p.X) }

// Finite reports whether both components are neither NaN nor infinite.
func (p Point) Finite() bool {
	return Finite(p.X) && Finite(p.Y)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Lerp returns a + (b-a)*t.
func Lerp(a, b Point, t float64) Point {
	return a.Add(b.Sub(a).Scale(t))
}

// Polar returns the point at the given radius and angle around center.
func Polar(center Point, radius, angle float64) Point {
	return Point{
		X: center.X + radius*math.Cos(angle),
		Y: center.Y + radius*math.Sin(angle),
	}
}

// PointFromString parses "x,y" into a Point.
func PointFromString(coords string) (Point, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return Point{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return Point{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return Point{}, ErrInvalidCoordinates
	}
	p := Point{X: x, Y: y}
	if !p.Finite() {
		return Point{}, ErrInvalidCoordinates
	}
	return p, nil
}

// LineString builds a simplefeatures line through the given points.
func LineString(points ...Point) geom.LineString {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// PathLength is the total length of the polyline through points.
// Fewer than two points yield zero.
func PathLength(points ...Point) float64 {
	if len(points) < 2 {
		return 0
	}
	return LineString(points...).Length()
}
