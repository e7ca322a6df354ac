// Package buffer provides the OptimizedBuffer cell grid and its bulk
// drawing operations.
//
// All draw calls clip silently: coordinates outside the buffer (or outside
// the active clip rectangle) are ignored rather than reported. Callers never
// need to bounds-check before drawing.
package buffer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/termframe/internal/renderer/core"
)

// ErrInvalidDimensions is returned when a buffer is created or resized with
// a non-positive width or height.
var ErrInvalidDimensions = errors.New("invalid buffer dimensions")

// OptimizedBuffer is a row-major grid of cells.
// len(cells) == width*height holds at all times.
type OptimizedBuffer struct {
	id            string
	width, height int
	cells         []core.Cell

	defaultBg    core.RGBA
	respectAlpha bool

	clips []core.Rect

	// rowDirty[y] is set when a write changes any cell in row y.
	rowDirty []bool
}

// Option configures an OptimizedBuffer.
type Option func(*OptimizedBuffer)

// WithBackground sets the background used to fill the grid on creation and resize.
func WithBackground(bg core.RGBA) Option {
	return func(b *OptimizedBuffer) {
		b.defaultBg = bg
	}
}

// WithRespectAlpha makes fills and blits blend translucent colors instead of
// overwriting.
func WithRespectAlpha(respect bool) Option {
	return func(b *OptimizedBuffer) {
		b.respectAlpha = respect
	}
}

// WithID overrides the generated buffer id.
func WithID(id string) Option {
	return func(b *OptimizedBuffer) {
		b.id = id
	}
}

// New creates a buffer with the given dimensions.
func New(width, height int, opts ...Option) (*OptimizedBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	b := &OptimizedBuffer{
		id:        uuid.NewString(),
		defaultBg: core.Black,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.allocate(width, height)
	return b, nil
}

// MustNew is like New but panics on invalid dimensions.
func MustNew(width, height int, opts ...Option) *OptimizedBuffer {
	b, err := New(width, height, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// allocate creates the cell grid filled with the default background.
func (b *OptimizedBuffer) allocate(width, height int) {
	b.width = width
	b.height = height
	b.cells = make([]core.Cell, width*height)
	b.rowDirty = make([]bool, height)

	empty := core.EmptyCell(b.defaultBg)
	for i := range b.cells {
		b.cells[i] = empty
	}
	for y := range b.rowDirty {
		b.rowDirty[y] = true
	}
}

// ID returns the buffer's unique id.
func (b *OptimizedBuffer) ID() string {
	return b.id
}

// Width returns the buffer width in cells.
func (b *OptimizedBuffer) Width() int {
	return b.width
}

// Height returns the buffer height in cells.
func (b *OptimizedBuffer) Height() int {
	return b.height
}

// Size returns the buffer dimensions.
func (b *OptimizedBuffer) Size() (width, height int) {
	return b.width, b.height
}

// Len returns the number of cells.
func (b *OptimizedBuffer) Len() int {
	return len(b.cells)
}

// DefaultBackground returns the fill used on resize.
func (b *OptimizedBuffer) DefaultBackground() core.RGBA {
	return b.defaultBg
}

// RespectAlpha reports whether translucent writes are blended.
func (b *OptimizedBuffer) RespectAlpha() bool {
	return b.respectAlpha
}

// SetRespectAlpha toggles alpha blending for fills and blits.
func (b *OptimizedBuffer) SetRespectAlpha(respect bool) {
	b.respectAlpha = respect
}

// Resize reallocates the grid. Prior contents are discarded and every cell
// is filled with the default background. Invalid dimensions leave the
// buffer untouched.
func (b *OptimizedBuffer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	b.allocate(width, height)
	b.clips = b.clips[:0]
	return nil
}

// Clear fills every cell with an empty cell on the given background.
func (b *OptimizedBuffer) Clear(bg core.RGBA) {
	empty := core.EmptyCell(bg)
	for y := 0; y < b.height; y++ {
		row := b.cells[y*b.width : (y+1)*b.width]
		for x := range row {
			if row[x] != empty {
				row[x] = empty
				b.rowDirty[y] = true
			}
		}
	}
}

// inBounds returns true if (x, y) is within the buffer.
func (b *OptimizedBuffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// writable returns true if (x, y) is within the buffer and the clip rect.
func (b *OptimizedBuffer) writable(x, y int) bool {
	if !b.inBounds(x, y) {
		return false
	}
	if len(b.clips) > 0 {
		return b.clips[len(b.clips)-1].Contains(x, y)
	}
	return true
}

// put stores a cell, flagging the row when the value changes.
// Caller must have checked writable.
func (b *OptimizedBuffer) put(x, y int, c core.Cell) {
	idx := y*b.width + x
	if b.cells[idx] != c {
		b.cells[idx] = c
		b.rowDirty[y] = true
	}
}

// GetCell returns the cell at (x, y). ok is false outside the buffer.
func (b *OptimizedBuffer) GetCell(x, y int) (cell core.Cell, ok bool) {
	if !b.inBounds(x, y) {
		return core.Cell{}, false
	}
	return b.cells[y*b.width+x], true
}

// SetCell overwrites the cell at (x, y). A glyph containing control
// characters is stored as an empty glyph.
func (b *OptimizedBuffer) SetCell(x, y int, c core.Cell) {
	if !b.writable(x, y) {
		return
	}
	b.put(x, y, sanitize(c))
}

func sanitize(c core.Cell) core.Cell {
	if core.HasControl(c.Char) {
		c.Char = ""
	}
	return c
}

// SetCellWithAlphaBlending composites c over the existing cell.
// The background is blended with "over"; an empty incoming glyph keeps the
// existing glyph, foreground and attributes.
func (b *OptimizedBuffer) SetCellWithAlphaBlending(x, y int, c core.Cell) {
	if !b.writable(x, y) {
		return
	}
	dst := b.cells[y*b.width+x]
	b.put(x, y, blendCell(sanitize(c), dst))
}

// blendCell composites src over dst.
func blendCell(src, dst core.Cell) core.Cell {
	out := dst
	out.Bg = src.Bg.Over(dst.Bg)
	if src.Char == "" {
		return out
	}
	out.Char = src.Char
	out.Attrs = src.Attrs
	if src.Fg.IsOpaque() {
		out.Fg = src.Fg
	} else {
		out.Fg = src.Fg.Over(out.Bg)
	}
	return out
}

// BlendColor composites rgba over the background of the cell at (x, y).
func (b *OptimizedBuffer) BlendColor(x, y int, rgba core.RGBA) {
	if !b.writable(x, y) {
		return
	}
	c := b.cells[y*b.width+x]
	c.Bg = rgba.Over(c.Bg)
	b.put(x, y, c)
}

// Row returns row y. The slice aliases the buffer's storage and must be
// treated as read-only; it is invalidated by Resize.
func (b *OptimizedBuffer) Row(y int) []core.Cell {
	if y < 0 || y >= b.height {
		return nil
	}
	return b.cells[y*b.width : (y+1)*b.width]
}

// RowDirty reports whether row y changed since the last ResetDirtyRows.
func (b *OptimizedBuffer) RowDirty(y int) bool {
	if y < 0 || y >= b.height {
		return false
	}
	return b.rowDirty[y]
}

// ResetDirtyRows clears all row change flags.
func (b *OptimizedBuffer) ResetDirtyRows() {
	for y := range b.rowDirty {
		b.rowDirty[y] = false
	}
}

// Equal returns true if other has the same dimensions and identical cells.
func (b *OptimizedBuffer) Equal(other *OptimizedBuffer) bool {
	if other == nil || b.width != other.width || b.height != other.height {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy with a fresh id.
func (b *OptimizedBuffer) Clone() *OptimizedBuffer {
	c := &OptimizedBuffer{
		id:           uuid.NewString(),
		width:        b.width,
		height:       b.height,
		cells:        make([]core.Cell, len(b.cells)),
		defaultBg:    b.defaultBg,
		respectAlpha: b.respectAlpha,
		rowDirty:     make([]bool, len(b.rowDirty)),
	}
	copy(c.cells, b.cells)
	copy(c.rowDirty, b.rowDirty)
	return c
}

// String renders the glyphs row by row, empty cells as spaces.
func (b *OptimizedBuffer) String() string {
	var sb strings.Builder
	for y := 0; y < b.height; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for _, c := range b.Row(y) {
			sb.WriteString(c.Glyph())
		}
	}
	return sb.String()
}
