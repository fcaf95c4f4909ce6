package viewport

import (
	"math"
	"testing"

	"github.com/galaxycore/galaxyview/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func newTestViewport() Viewport {
	return New(DefaultConfig(), 800, 600)
}

func TestNew_InvalidConfigFallsBack(t *testing.T) {
	v := New(Config{MinZoom: 2, MaxZoom: 1}, 800, 600)
	assert.Equal(t, DefaultConfig(), v.Config())
	assert.Equal(t, 1.0, v.Zoom())
}

func TestWorldScreen_InverseProperty(t *testing.T) {
	zooms := []float64{0.25, 0.3, 1, 2.5, 7.9, 8}
	pans := []geo.Point{{}, geo.Pt(100, -50), geo.Pt(-12345.5, 9876.25), geo.Pt(1e6, 1e6)}
	worlds := []geo.Point{{}, geo.Pt(1, 1), geo.Pt(500, 250), geo.Pt(-40, 1e4), geo.Pt(0.001, 999.999)}

	for _, z := range zooms {
		for _, p := range pans {
			v, ok := newTestViewport().SetZoom(z)
			require.True(t, ok)
			v, ok = v.PanBy(p.X, p.Y)
			require.True(t, ok)

			for _, w := range worlds {
				back := v.ScreenToWorld(v.WorldToScreen(w))
				tol := eps * math.Max(1, math.Max(math.Abs(p.X), math.Abs(p.Y)))
				assert.InDelta(t, w.X, back.X, tol, "zoom=%v pan=%v world=%v", z, p, w)
				assert.InDelta(t, w.Y, back.Y, tol, "zoom=%v pan=%v world=%v", z, p, w)
			}
		}
	}
}

func TestSetZoom_ClampIdempotence(t *testing.T) {
	v := newTestViewport()

	once, ok := v.SetZoom(3.3)
	require.True(t, ok)
	twice, ok := once.SetZoom(3.3)
	require.True(t, ok)
	assert.Equal(t, once, twice)

	low, _ := v.SetZoom(0.0001)
	assert.Equal(t, 0.25, low.Zoom())
	high, _ := v.SetZoom(1000)
	assert.Equal(t, 8.0, high.Zoom())
	neg, _ := v.SetZoom(-4)
	assert.Equal(t, 0.25, neg.Zoom())
}

func TestSetZoom_RejectsNonFinite(t *testing.T) {
	v, _ := newTestViewport().SetZoom(2)

	for _, z := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		got, ok := v.SetZoom(z)
		assert.False(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestZoomBy_InOutReturnsToOriginal(t *testing.T) {
	v, _ := newTestViewport().SetZoom(1.7)

	in, ok := v.ZoomBy(1.25)
	require.True(t, ok)
	out, ok := in.ZoomBy(1 / 1.25)
	require.True(t, ok)
	assert.InDelta(t, 1.7, out.Zoom(), eps)

	a, _ := v.ZoomBy(1.1)
	a, _ = a.ZoomBy(1.2)
	b, _ := v.ZoomBy(1.1 * 1.2)
	assert.InDelta(t, a.Zoom(), b.Zoom(), eps)
}

func TestZoomBy_RejectsInvalidMultiplier(t *testing.T) {
	v := newTestViewport()
	for _, m := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		got, ok := v.ZoomBy(m)
		assert.False(t, ok, "multiplier %v", m)
		assert.Equal(t, v, got)
	}
}

func TestZoomAt_KeepsAnchorFixed(t *testing.T) {
	v, _ := newTestViewport().PanBy(37, -12)
	anchor := geo.Pt(200, 150)
	before := v.ScreenToWorld(anchor)

	z, ok := v.ZoomAt(2, anchor)
	require.True(t, ok)
	after := z.ScreenToWorld(anchor)

	assert.InDelta(t, before.X, after.X, eps)
	assert.InDelta(t, before.Y, after.Y, eps)
	assert.Equal(t, 2.0, z.Zoom())
}

func TestPanBy_AccumulatesUnbounded(t *testing.T) {
	v := newTestViewport()
	for i := 0; i < 100; i++ {
		v, _ = v.PanBy(1000, -1000)
	}
	assert.Equal(t, geo.Pt(100000, -100000), v.Pan())

	got, ok := v.PanBy(math.NaN(), 0)
	assert.False(t, ok)
	assert.Equal(t, v, got)
}

func TestCenterOn(t *testing.T) {
	v, _ := newTestViewport().SetZoom(2.5)
	target := geo.Pt(1234.5, 678.9)

	c, ok := v.CenterOn(target)
	require.True(t, ok)

	s := c.WorldToScreen(target)
	assert.InDelta(t, 400, s.X, eps)
	assert.InDelta(t, 300, s.Y, eps)

	_, ok = v.CenterOn(geo.Pt(math.Inf(1), 0))
	assert.False(t, ok)
}

func TestResize_KeepsFocus(t *testing.T) {
	v, _ := newTestViewport().CenterOn(geo.Pt(50, 60))

	r, ok := v.Resize(1024, 768)
	require.True(t, ok)
	s := r.WorldToScreen(geo.Pt(50, 60))
	assert.InDelta(t, 512, s.X, eps)
	assert.InDelta(t, 384, s.Y, eps)

	_, ok = v.Resize(0, 10)
	assert.False(t, ok)
}

func TestLOD(t *testing.T) {
	tests := []struct {
		zoom float64
		want LOD
	}{
		{0.25, Coarse},
		{0.99, Coarse},
		{1, Medium},
		{2.99, Medium},
		{3, Fine},
		{8, Fine},
	}
	for _, tt := range tests {
		v, _ := newTestViewport().SetZoom(tt.zoom)
		assert.Equal(t, tt.want, v.LOD(), "zoom %v", tt.zoom)
	}
	assert.True(t, Fine.AtLeast(Medium))
	assert.False(t, Coarse.AtLeast(Medium))
	assert.Equal(t, "medium", Medium.String())
}

func TestVisible(t *testing.T) {
	v := newTestViewport()
	assert.True(t, v.Visible(geo.Pt(10, 10), 0))
	assert.False(t, v.Visible(geo.Pt(-10, 10), 0))
	assert.True(t, v.Visible(geo.Pt(-10, 10), 20))
	assert.False(t, v.Visible(geo.Pt(801, 10), 0))
}
