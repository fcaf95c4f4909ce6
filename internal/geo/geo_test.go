package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointFromString_Valid(t *testing.T) {
	p, err := PointFromString("100.5,200.25")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.X != 100.5 {
		t.Errorf("expected X=100.5, got %f", p.X)
	}
	if p.Y != 200.25 {
		t.Errorf("expected Y=200.25, got %f", p.Y)
	}
}

func TestPointFromString_Whitespace(t *testing.T) {
	p, err := PointFromString(" -3 , 4 ")
	require.NoError(t, err)
	assert.Equal(t, Pt(-3, 4), p)
}

func TestPointFromString_Invalid(t *testing.T) {
	for _, in := range []string{"", "1", "1,2,3", "a,2", "1,b", "NaN,1", "1,+Inf"} {
		_, err := PointFromString(in)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", in, err)
		}
	}
}

func TestPointArithmetic(t *testing.T) {
	a := Pt(1, 2)
	b := Pt(4, 6)

	assert.Equal(t, Pt(5, 8), a.Add(b))
	assert.Equal(t, Pt(3, 4), b.Sub(a))
	assert.Equal(t, Pt(2, 4), a.Scale(2))
	assert.Equal(t, 5.0, a.Dist(b))
	assert.Equal(t, Pt(2.5, 4), Lerp(a, b, 0.5))
}

func TestPolar(t *testing.T) {
	p := Polar(Pt(10, 10), 5, math.Pi/2)
	assert.InDelta(t, 10, p.X, 1e-9)
	assert.InDelta(t, 15, p.Y, 1e-9)
}

func TestFinite(t *testing.T) {
	assert.True(t, Pt(1, 2).Finite())
	assert.False(t, Pt(math.NaN(), 2).Finite())
	assert.False(t, Pt(1, math.Inf(-1)).Finite())
}

func TestPathLength(t *testing.T) {
	assert.Equal(t, 0.0, PathLength())
	assert.Equal(t, 0.0, PathLength(Pt(1, 1)))
	assert.InDelta(t, 5.0, PathLength(Pt(0, 0), Pt(3, 4)), 1e-9)
	assert.InDelta(t, 10.0, PathLength(Pt(0, 0), Pt(3, 4), Pt(6, 8)), 1e-9)
	assert.InDelta(t, 0.0, PathLength(Pt(2, 2), Pt(2, 2)), 1e-9)
}
