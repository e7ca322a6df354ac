// Package core provides shared value types for the renderer subsystem.
// This package breaks import cycles between buffer, compositor and backend.
package core

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBA is a color with straight (non-premultiplied) alpha.
// All components are in the range [0, 1].
type RGBA struct {
	R, G, B, A float64
}

// Common colors.
var (
	Transparent = RGBA{}
	Black       = RGBA{0, 0, 0, 1}
	White       = RGBA{1, 1, 1, 1}
	Red         = RGBA{1, 0, 0, 1}
	Green       = RGBA{0, 1, 0, 1}
	Blue        = RGBA{0, 0, 1, 1}
	Yellow      = RGBA{1, 1, 0, 1}
	Cyan        = RGBA{0, 1, 1, 1}
	Magenta     = RGBA{1, 0, 1, 1}
	Gray        = RGBA{0.5, 0.5, 0.5, 1}
)

// DefaultFg is the foreground assigned to cleared cells.
var DefaultFg = White

// NewRGBA creates a color from float components, clamping each to [0, 1].
func NewRGBA(r, g, b, a float64) RGBA {
	return RGBA{R: clamp01(r), G: clamp01(g), B: clamp01(b), A: clamp01(a)}
}

// RGB255 creates an opaque color from 8-bit components.
func RGB255(r, g, b uint8) RGBA {
	return RGBA{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255, A: 1}
}

// RGBA255 creates a color from 8-bit components including alpha.
func RGBA255(r, g, b, a uint8) RGBA {
	c := RGB255(r, g, b)
	c.A = float64(a) / 255
	return c
}

// ParseHex creates a color from a hex string.
// Supports "#RGB", "#RRGGBB" and "#RRGGBBAA", with or without the leading #.
func ParseHex(hex string) (RGBA, error) {
	s := strings.TrimPrefix(hex, "#")

	alpha := 1.0
	switch len(s) {
	case 3, 6:
	case 8:
		a, err := strconv.ParseUint(s[6:8], 16, 8)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid hex color: %s", hex)
		}
		alpha = float64(a) / 255
		s = s[:6]
	default:
		return RGBA{}, fmt.Errorf("invalid hex color length: %s", hex)
	}

	c, err := colorful.Hex("#" + s)
	if err != nil {
		return RGBA{}, fmt.Errorf("invalid hex color: %s", hex)
	}
	r, g, b := c.RGB255()
	return RGBA{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255, A: alpha}, nil
}

// MustParseHex is like ParseHex but panics on malformed input.
// Intended for package-level color tables.
func MustParseHex(hex string) RGBA {
	c, err := ParseHex(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// To8Bit returns the color channels scaled to 0-255 with rounding.
func (c RGBA) To8Bit() (r, g, b, a uint8) {
	r, g, b = c.colorful().Clamped().RGB255()
	a = uint8(clamp01(c.A)*255 + 0.5)
	return r, g, b, a
}

// Hex returns the "#RRGGBB" form, or "#RRGGBBAA" for non-opaque colors.
func (c RGBA) Hex() string {
	r, g, b, a := c.To8Bit()
	if a == 255 {
		return fmt.Sprintf("#%02X%02X%02X", r, g, b)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", r, g, b, a)
}

// String returns a string representation of the color.
func (c RGBA) String() string {
	return c.Hex()
}

// IsOpaque returns true if the color fully covers what is beneath it.
func (c RGBA) IsOpaque() bool {
	return c.A >= 1
}

// IsTransparent returns true if the color has no coverage at all.
func (c RGBA) IsTransparent() bool {
	return c.A <= 0
}

// WithAlpha returns the color with its alpha replaced.
func (c RGBA) WithAlpha(a float64) RGBA {
	c.A = clamp01(a)
	return c
}

// Over composites c on top of dst using the standard "over" operator:
//
//	out.rgb = src.rgb*src.a + dst.rgb*(1-src.a)
//	out.a   = src.a + dst.a*(1-src.a)
func (c RGBA) Over(dst RGBA) RGBA {
	sa := clamp01(c.A)
	inv := 1 - sa
	return RGBA{
		R: c.R*sa + dst.R*inv,
		G: c.G*sa + dst.G*inv,
		B: c.B*sa + dst.B*inv,
		A: sa + dst.A*inv,
	}
}

// Lerp blends two colors. Amount 0.0 = c, 1.0 = other.
func (c RGBA) Lerp(other RGBA, amount float64) RGBA {
	t := clamp01(amount)
	mixed := c.colorful().BlendRgb(other.colorful(), t)
	return RGBA{R: mixed.R, G: mixed.G, B: mixed.B, A: c.A*(1-t) + other.A*t}
}

// Lighten returns a lighter version of the color.
// Amount should be 0.0 to 1.0.
func (c RGBA) Lighten(amount float64) RGBA {
	return c.Lerp(White.WithAlpha(c.A), amount)
}

// Darken returns a darker version of the color.
// Amount should be 0.0 to 1.0.
func (c RGBA) Darken(amount float64) RGBA {
	return c.Lerp(Black.WithAlpha(c.A), amount)
}

// DistanceRGB returns the euclidean distance between the rgb parts of two colors.
func (c RGBA) DistanceRGB(other RGBA) float64 {
	return c.colorful().DistanceRgb(other.colorful())
}

func (c RGBA) colorful() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
