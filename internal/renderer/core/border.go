package core

// BorderStyle selects the glyph set used for rectangle outlines.
type BorderStyle uint8

const (
	BorderSingle BorderStyle = iota
	BorderDouble
	BorderRounded
	BorderHeavy
	BorderASCII
)

// BorderChars holds the glyphs for one border style.
type BorderChars struct {
	TopLeft, TopRight, BottomLeft, BottomRight string
	Horizontal, Vertical                       string
}

var borderSets = map[BorderStyle]BorderChars{
	BorderSingle:  {"┌", "┐", "└", "┘", "─", "│"},
	BorderDouble:  {"╔", "╗", "╚", "╝", "═", "║"},
	BorderRounded: {"╭", "╮", "╰", "╯", "─", "│"},
	BorderHeavy:   {"┏", "┓", "┗", "┛", "━", "┃"},
	BorderASCII:   {"+", "+", "+", "+", "-", "|"},
}

// Chars returns the glyph set for the style.
// Unknown styles fall back to BorderSingle.
func (s BorderStyle) Chars() BorderChars {
	if c, ok := borderSets[s]; ok {
		return c
	}
	return borderSets[BorderSingle]
}

// String returns the style name.
func (s BorderStyle) String() string {
	switch s {
	case BorderSingle:
		return "single"
	case BorderDouble:
		return "double"
	case BorderRounded:
		return "rounded"
	case BorderHeavy:
		return "heavy"
	case BorderASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// ParseBorderStyle parses a style name. Unknown names yield BorderSingle and false.
func ParseBorderStyle(name string) (BorderStyle, bool) {
	switch name {
	case "single":
		return BorderSingle, true
	case "double":
		return BorderDouble, true
	case "rounded":
		return BorderRounded, true
	case "heavy":
		return BorderHeavy, true
	case "ascii":
		return BorderASCII, true
	default:
		return BorderSingle, false
	}
}
