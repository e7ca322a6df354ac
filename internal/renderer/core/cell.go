package core

import (
	"strings"
	"unicode"
)

// Attribute represents text attributes (bold, italic, etc.).
type Attribute uint16

// Text attribute flags.
const (
	AttrNone          Attribute = 0
	AttrBold          Attribute = 1 << iota
	AttrDim                     // Faint/dim text
	AttrItalic                  // Italic text
	AttrUnderline               // Underlined text
	AttrBlink                   // Blinking text (rarely supported)
	AttrInverse                 // Reverse video (swap fg/bg)
	AttrStrikethrough           // Strikethrough text
)

// Has returns true if the attribute set contains the given attribute.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr != 0
}

// With returns a new attribute set with the given attribute added.
func (a Attribute) With(attr Attribute) Attribute {
	return a | attr
}

// Without returns a new attribute set with the given attribute removed.
func (a Attribute) Without(attr Attribute) Attribute {
	return a &^ attr
}

// Cell is a single addressable terminal cell.
// Cells are plain values; two cells are equal when all fields are equal.
type Cell struct {
	// Char is one grapheme cluster. The empty string means the cell
	// carries no glyph and renders as a space painted with Bg only.
	Char string

	Fg    RGBA
	Bg    RGBA
	Attrs Attribute
}

// EmptyCell returns a cleared cell with the given background.
func EmptyCell(bg RGBA) Cell {
	return Cell{Fg: DefaultFg, Bg: bg}
}

// NewCell creates a cell with the given glyph and colors.
func NewCell(char string, fg, bg RGBA) Cell {
	return Cell{Char: char, Fg: fg, Bg: bg}
}

// WithAttrs returns a copy of the cell with the attributes replaced.
func (c Cell) WithAttrs(attrs Attribute) Cell {
	c.Attrs = attrs
	return c
}

// WithChar returns a copy of the cell with the glyph replaced.
func (c Cell) WithChar(char string) Cell {
	c.Char = char
	return c
}

// IsEmpty returns true if the cell has no glyph.
func (c Cell) IsEmpty() bool {
	return c.Char == ""
}

// Glyph returns the text to emit for this cell. Cells without a glyph or
// with a control character render as a space.
func (c Cell) Glyph() string {
	if c.Char == "" || HasControl(c.Char) {
		return " "
	}
	return c.Char
}

// HasControl reports whether s contains a C0, DEL or C1 control character.
func HasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// SameStyle reports whether two cells would be emitted with identical SGR state.
func (c Cell) SameStyle(other Cell) bool {
	return c.Fg == other.Fg && c.Bg == other.Bg && c.Attrs == other.Attrs
}
