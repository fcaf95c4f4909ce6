// Package viewport maps the fixed logical galaxy onto a pannable, zoomable screen.
//
// A Viewport is a value: every mutator returns the new state and a success flag,
// leaving the receiver untouched. Non-finite requests are rejected and the
// previous state is returned with ok == false.
package viewport

import (
	"github.com/galaxycore/galaxyview/internal/geo"
)

// LOD is the rendering-detail tier derived from zoom.
type LOD int

const (
	Coarse LOD = iota
	Medium
	Fine
)

func (l LOD) String() string {
	switch l {
	case Coarse:
		return "coarse"
	case Medium:
		return "medium"
	case Fine:
		return "fine"
	default:
		return "unknown"
	}
}

// AtLeast reports whether l is as detailed as other.
func (l LOD) AtLeast(other LOD) bool {
	return l >= other
}

// Config holds zoom bounds and LOD thresholds. Thresholds are compared against
// zoom: zoom >= FineThreshold is Fine, zoom >= MediumThreshold is Medium.
type Config struct {
	MinZoom         float64 `json:"minZoom" mapstructure:"minZoom"`
	MaxZoom         float64 `json:"maxZoom" mapstructure:"maxZoom"`
	MediumThreshold float64 `json:"mediumThreshold" mapstructure:"mediumThreshold"`
	FineThreshold   float64 `json:"fineThreshold" mapstructure:"fineThreshold"`
}

// DefaultConfig returns the stock zoom bounds.
func DefaultConfig() Config {
	return Config{
		MinZoom:         0.25,
		MaxZoom:         8,
		MediumThreshold: 1,
		FineThreshold:   3,
	}
}

func (c Config) valid() bool {
	return geo.Finite(c.MinZoom) && geo.Finite(c.MaxZoom) &&
		c.MinZoom > 0 && c.MaxZoom >= c.MinZoom
}

// Viewport is the zoom factor and pan offset over a screen of a given size.
type Viewport struct {
	cfg    Config
	zoom   float64
	pan    geo.Point // screen-space offset of world origin
	screen geo.Point // screen width, height
}

// New creates a viewport at zoom 1 (clamped into bounds) with no pan.
// An invalid config falls back to DefaultConfig.
func New(cfg Config, screenW, screenH float64) Viewport {
	if !cfg.valid() {
		cfg = DefaultConfig()
	}
	v := Viewport{cfg: cfg, zoom: 1, screen: geo.Pt(screenW, screenH)}
	v.zoom = v.clamp(v.zoom)
	return v
}

// Config returns the viewport's bounds and thresholds.
func (v Viewport) Config() Config { return v.cfg }

// Zoom returns the current zoom factor.
func (v Viewport) Zoom() float64 { return v.zoom }

// Pan returns the current pan offset in screen units.
func (v Viewport) Pan() geo.Point { return v.pan }

// Size returns the screen size.
func (v Viewport) Size() geo.Point { return v.screen }

// Center returns the screen-space center of the viewport.
func (v Viewport) Center() geo.Point { return v.screen.Scale(0.5) }

func (v Viewport) clamp(z float64) float64 {
	if z < v.cfg.MinZoom {
		return v.cfg.MinZoom
	}
	if z > v.cfg.MaxZoom {
		return v.cfg.MaxZoom
	}
	return z
}

// WorldToScreen maps a world point to screen space.
func (v Viewport) WorldToScreen(w geo.Point) geo.Point {
	return w.Scale(v.zoom).Add(v.pan)
}

// ScreenToWorld maps a screen point to world space. Exact inverse of WorldToScreen
// up to floating-point error.
func (v Viewport) ScreenToWorld(s geo.Point) geo.Point {
	return s.Sub(v.pan).Scale(1 / v.zoom)
}

// WorldLength converts a world distance to pixels.
func (v Viewport) WorldLength(d float64) float64 { return d * v.zoom }

// ScreenLength converts a pixel distance to world units.
func (v Viewport) ScreenLength(px float64) float64 { return px / v.zoom }

// SetZoom sets the zoom factor, clamped to bounds. Pan is unchanged.
func (v Viewport) SetZoom(z float64) (Viewport, bool) {
	if !geo.Finite(z) {
		return v, false
	}
	v.zoom = v.clamp(z)
	return v, true
}

// ZoomBy multiplies the zoom factor and clamps. The multiplier must be positive.
func (v Viewport) ZoomBy(m float64) (Viewport, bool) {
	if !geo.Finite(m) || m <= 0 {
		return v, false
	}
	return v.SetZoom(v.zoom * m)
}

// ZoomAt zooms by m while keeping the world point under the screen anchor fixed.
func (v Viewport) ZoomAt(m float64, anchor geo.Point) (Viewport, bool) {
	if !anchor.Finite() {
		return v, false
	}
	world := v.ScreenToWorld(anchor)
	next, ok := v.ZoomBy(m)
	if !ok {
		return v, false
	}
	next.pan = anchor.Sub(world.Scale(next.zoom))
	return next, true
}

// PanBy shifts the view by a screen-space delta. Pan is not bounded.
func (v Viewport) PanBy(dx, dy float64) (Viewport, bool) {
	d := geo.Pt(dx, dy)
	if !d.Finite() {
		return v, false
	}
	next := v.pan.Add(d)
	if !next.Finite() {
		return v, false
	}
	v.pan = next
	return v, true
}

// CenterOn recomputes pan so that world maps to the viewport center.
func (v Viewport) CenterOn(world geo.Point) (Viewport, bool) {
	if !world.Finite() {
		return v, false
	}
	pan := v.Center().Sub(world.Scale(v.zoom))
	if !pan.Finite() {
		return v, false
	}
	v.pan = pan
	return v, true
}

// Resize changes the screen size, keeping the world point at the old center centered.
func (v Viewport) Resize(w, h float64) (Viewport, bool) {
	size := geo.Pt(w, h)
	if !size.Finite() || w <= 0 || h <= 0 {
		return v, false
	}
	focus := v.ScreenToWorld(v.Center())
	v.screen = size
	return v.CenterOn(focus)
}

// LOD returns the detail tier for the current zoom.
func (v Viewport) LOD() LOD {
	switch {
	case v.zoom >= v.cfg.FineThreshold:
		return Fine
	case v.zoom >= v.cfg.MediumThreshold:
		return Medium
	default:
		return Coarse
	}
}

// Visible reports whether the world point falls on screen, allowing marginPx of slack.
func (v Viewport) Visible(world geo.Point, marginPx float64) bool {
	s := v.WorldToScreen(world)
	return s.X >= -marginPx && s.Y >= -marginPx &&
		s.X <= v.screen.X+marginPx && s.Y <= v.screen.Y+marginPx
}
