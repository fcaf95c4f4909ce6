package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Palette used for entities without an owner color and for UI chrome.
var (
	Neutral   = color.RGBA{R: 0x9a, G: 0x9a, B: 0x9a, A: 0xff}
	Highlight = color.RGBA{R: 0xff, G: 0xe0, B: 0x60, A: 0xff}
	Preview   = color.RGBA{R: 0x80, G: 0xd0, B: 0xff, A: 0xff}
	Warning   = color.RGBA{R: 0xff, G: 0x90, B: 0x40, A: 0xff}
	Danger    = color.RGBA{R: 0xff, G: 0x50, B: 0x50, A: 0xff}
	Text      = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
)

// ParseHex parses a #rrggbb color.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// HexOr parses s, returning fallback when it is not a valid #rrggbb color.
func HexOr(s string, fallback color.RGBA) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		return fallback
	}
	return c
}

// Fade scales the alpha channel. Color channels are premultiplied, so they
// are scaled with it.
func Fade(c color.RGBA, f float64) color.RGBA {
	f = max(0, min(1, f))
	return color.RGBA{
		R: uint8(float64(c.R) * f),
		G: uint8(float64(c.G) * f),
		B: uint8(float64(c.B) * f),
		A: uint8(float64(c.A) * f),
	}
}
