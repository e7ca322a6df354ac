package compositor

import (
	"fmt"
	"strings"

	"github.com/dshills/termframe/internal/renderer/core"
)

// ColorMode selects how RGBA values are encoded in SGR sequences.
type ColorMode uint8

const (
	ColorModeTrueColor ColorMode = iota // 38;2;r;g;b
	ColorMode256                        // 38;5;n
)

// String returns the config name of the mode.
func (m ColorMode) String() string {
	switch m {
	case ColorModeTrueColor:
		return "truecolor"
	case ColorMode256:
		return "256"
	default:
		return "unknown"
	}
}

// ParseColorMode parses "truecolor", "256" or "auto". Auto resolves with
// DetectColorMode using the given environment lookup.
func ParseColorMode(s string, getenv func(string) string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "truecolor", "24bit":
		return ColorModeTrueColor, nil
	case "256":
		return ColorMode256, nil
	case "", "auto":
		return DetectColorMode(getenv), nil
	default:
		return ColorModeTrueColor, fmt.Errorf("unknown color mode: %q", s)
	}
}

// DetectColorMode inspects COLORTERM and TERM. Unknown terminals get 256 colors.
func DetectColorMode(getenv func(string) string) ColorMode {
	if getenv == nil {
		return ColorMode256
	}
	switch getenv("COLORTERM") {
	case "truecolor", "24bit":
		return ColorModeTrueColor
	}
	for _, key := range []string{"KITTY_WINDOW_ID", "ITERM_SESSION_ID", "WEZTERM_PANE", "ALACRITTY_WINDOW_ID"} {
		if getenv(key) != "" {
			return ColorModeTrueColor
		}
	}
	term := strings.ToLower(getenv("TERM"))
	if strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "direct") {
		return ColorModeTrueColor
	}
	return ColorMode256
}

// xterm cube levels for palette indices 16-231.
var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

func nearestCubeLevel(v uint8) uint8 {
	best := uint8(0)
	bestDist := 256
	for i, l := range cubeLevels {
		d := int(v) - int(l)
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist = d
			best = uint8(i)
		}
	}
	return best
}

// To256 returns the nearest xterm 256-palette index for c, choosing
// between the 6x6x6 cube and the 24-step gray ramp.
func To256(c core.RGBA) uint8 {
	r, g, b, _ := c.To8Bit()

	cr, cg, cb := nearestCubeLevel(r), nearestCubeLevel(g), nearestCubeLevel(b)
	cubeIdx := 16 + 36*cr + 6*cg + cb
	cube := core.RGB255(cubeLevels[cr], cubeLevels[cg], cubeLevels[cb])

	avg := (int(r) + int(g) + int(b)) / 3
	step := (avg - 8 + 5) / 10
	step = max(0, min(23, step))
	level := uint8(8 + step*10)
	gray := core.RGB255(level, level, level)

	opaque := core.RGB255(r, g, b)
	if opaque.DistanceRGB(gray) < opaque.DistanceRGB(cube) {
		return uint8(232 + step)
	}
	return cubeIdx
}
