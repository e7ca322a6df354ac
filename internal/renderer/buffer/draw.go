package buffer

import (
	"github.com/rivo/uniseg"

	"github.com/dshills/termframe/internal/renderer/core"
)

// TitleAlign positions a box title on the top border.
type TitleAlign uint8

const (
	TitleLeft TitleAlign = iota
	TitleCenter
	TitleRight
)

// BoxOptions configures DrawBox.
type BoxOptions struct {
	Rect   core.Rect
	Style  core.BorderStyle
	Fg, Bg core.RGBA

	// Fill, when set, paints the interior with this background.
	Fill *core.RGBA

	Title      string
	TitleAlign TitleAlign
}

// PushClip narrows the active clip to the intersection of r and the
// current clip. Pushing the same rect twice has no further effect.
func (b *OptimizedBuffer) PushClip(r core.Rect) {
	cur := core.NewRect(0, 0, b.width, b.height)
	if len(b.clips) > 0 {
		cur = b.clips[len(b.clips)-1]
	}
	b.clips = append(b.clips, cur.Intersection(r))
}

// PopClip restores the previous clip. Popping an empty stack is a no-op.
func (b *OptimizedBuffer) PopClip() {
	if len(b.clips) == 0 {
		return
	}
	b.clips = b.clips[:len(b.clips)-1]
}

// ClipDepth returns the number of pushed clips.
func (b *OptimizedBuffer) ClipDepth() int {
	return len(b.clips)
}

// RestoreClip pops clips until at most depth remain.
func (b *OptimizedBuffer) RestoreClip(depth int) {
	if depth < 0 {
		depth = 0
	}
	if depth < len(b.clips) {
		b.clips = b.clips[:depth]
	}
}

// ClipRect returns the active clip, or the full buffer when none is pushed.
func (b *OptimizedBuffer) ClipRect() core.Rect {
	if len(b.clips) == 0 {
		return core.NewRect(0, 0, b.width, b.height)
	}
	return b.clips[len(b.clips)-1]
}

// visible returns the part of r that draw calls may touch.
func (b *OptimizedBuffer) visible(r core.Rect) core.Rect {
	return b.ClipRect().Intersection(r)
}

// DrawText writes text starting at (x, y), one cell per grapheme cluster.
// A nil bg keeps each cell's existing background. Control characters are
// dropped. It returns the number of cells the text advanced, including
// cells that were clipped.
func (b *OptimizedBuffer) DrawText(text string, x, y int, fg core.RGBA, bg *core.RGBA, attrs core.Attribute) int {
	col := x
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		cluster := g.Str()
		if isControl(cluster) {
			continue
		}
		if b.writable(col, y) {
			b.drawGlyph(col, y, cluster, fg, bg, attrs)
		}
		col++
	}
	return col - x
}

func (b *OptimizedBuffer) drawGlyph(x, y int, cluster string, fg core.RGBA, bg *core.RGBA, attrs core.Attribute) {
	c := b.cells[y*b.width+x]
	if bg != nil {
		if b.respectAlpha && !bg.IsOpaque() {
			c.Bg = bg.Over(c.Bg)
		} else {
			c.Bg = *bg
		}
	}
	if b.respectAlpha && !fg.IsOpaque() {
		c.Fg = fg.Over(c.Bg)
	} else {
		c.Fg = fg
	}
	c.Char = cluster
	c.Attrs = attrs
	b.put(x, y, c)
}

func isControl(cluster string) bool {
	return cluster == "" || core.HasControl(cluster)
}

// FillRect paints the background of a rectangle and clears its glyphs.
// With alpha respect and a translucent bg the existing cells are blended
// and keep their glyphs.
func (b *OptimizedBuffer) FillRect(x, y, w, h int, bg core.RGBA) {
	r := b.visible(core.NewRect(x, y, w, h))
	if r.IsEmpty() {
		return
	}

	blend := b.respectAlpha && !bg.IsOpaque()
	empty := core.EmptyCell(bg)
	for row := r.Y; row < r.Bottom(); row++ {
		for col := r.X; col < r.Right(); col++ {
			if blend {
				c := b.cells[row*b.width+col]
				c.Bg = bg.Over(c.Bg)
				b.put(col, row, c)
				continue
			}
			b.put(col, row, empty)
		}
	}
}

// DrawRect draws the outline of a rectangle with the given border style.
// The interior is left untouched.
func (b *OptimizedBuffer) DrawRect(x, y, w, h int, style core.BorderStyle, fg, bg core.RGBA) {
	if w <= 0 || h <= 0 {
		return
	}
	chars := style.Chars()
	right := x + w - 1
	bottom := y + h - 1

	edge := func(cx, cy int, glyph string) {
		if b.writable(cx, cy) {
			b.put(cx, cy, core.Cell{Char: glyph, Fg: fg, Bg: bg})
		}
	}

	for cx := x + 1; cx < right; cx++ {
		edge(cx, y, chars.Horizontal)
		edge(cx, bottom, chars.Horizontal)
	}
	for cy := y + 1; cy < bottom; cy++ {
		edge(x, cy, chars.Vertical)
		edge(right, cy, chars.Vertical)
	}

	switch {
	case w == 1 && h == 1:
		edge(x, y, chars.TopLeft)
	case h == 1:
		edge(x, y, chars.Horizontal)
		edge(right, y, chars.Horizontal)
	case w == 1:
		edge(x, y, chars.Vertical)
		edge(x, bottom, chars.Vertical)
	default:
		edge(x, y, chars.TopLeft)
		edge(right, y, chars.TopRight)
		edge(x, bottom, chars.BottomLeft)
		edge(right, bottom, chars.BottomRight)
	}
}

// DrawBox draws a bordered box with an optional interior fill and title.
func (b *OptimizedBuffer) DrawBox(opts BoxOptions) {
	r := opts.Rect
	if r.IsEmpty() {
		return
	}
	if opts.Fill != nil && r.W > 2 && r.H > 2 {
		inner := r.Inset(1)
		b.FillRect(inner.X, inner.Y, inner.W, inner.H, *opts.Fill)
	}
	b.DrawRect(r.X, r.Y, r.W, r.H, opts.Style, opts.Fg, opts.Bg)

	if opts.Title == "" || r.W < 3 {
		return
	}
	avail := r.W - 2
	title := truncateClusters(opts.Title, avail)
	n := uniseg.GraphemeClusterCount(title)

	tx := r.X + 1
	switch opts.TitleAlign {
	case TitleCenter:
		tx += (avail - n) / 2
	case TitleRight:
		tx += avail - n
	}

	bg := opts.Bg
	b.DrawText(title, tx, r.Y, opts.Fg, &bg, core.AttrNone)
}

// truncateClusters returns at most n grapheme clusters of s.
func truncateClusters(s string, n int) string {
	if n <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(s)
	end := 0
	count := 0
	for g.Next() {
		if count == n {
			break
		}
		_, end = g.Positions()
		count++
	}
	return s[:end]
}

// DrawFrameBuffer copies all of src onto b with its top-left at (x, y).
func (b *OptimizedBuffer) DrawFrameBuffer(x, y int, src *OptimizedBuffer) {
	if src == nil {
		return
	}
	b.DrawFrameBufferRegion(x, y, src, core.NewRect(0, 0, src.width, src.height))
}

// DrawFrameBufferRegion copies the srcRect region of src onto b with its
// top-left at (x, y). When src respects alpha, fully transparent source
// cells are skipped and translucent ones are blended.
func (b *OptimizedBuffer) DrawFrameBufferRegion(x, y int, src *OptimizedBuffer, srcRect core.Rect) {
	if src == nil || src == b {
		return
	}
	sr := srcRect.Intersection(core.NewRect(0, 0, src.width, src.height))
	if sr.IsEmpty() {
		return
	}

	for sy := sr.Y; sy < sr.Bottom(); sy++ {
		dy := y + sy - sr.Y
		for sx := sr.X; sx < sr.Right(); sx++ {
			dx := x + sx - sr.X
			if !b.writable(dx, dy) {
				continue
			}
			c := src.cells[sy*src.width+sx]
			if !src.respectAlpha || c.Bg.IsOpaque() {
				b.put(dx, dy, c)
				continue
			}
			if c.Bg.IsTransparent() && c.Char == "" {
				continue
			}
			b.put(dx, dy, blendCell(c, b.cells[dy*b.width+dx]))
		}
	}
}
