package renderable

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

// Box paints a bordered, optionally filled rectangle the size of its node.
type Box struct {
	node *Node

	Style      core.BorderStyle
	Fg, Bg     core.RGBA
	Fill       *core.RGBA
	Title      string
	TitleAlign buffer.TitleAlign
}

// NewBoxNode creates a node painted by a Box.
func NewBoxNode(x, y, width, height int, box Box) (*Node, *Box) {
	b := &box
	n := New(b)
	n.SetPosition(x, y).SetSize(width, height)
	b.node = n
	return n, b
}

// PaintSelf implements Painter.
func (b *Box) PaintSelf(buf *buffer.OptimizedBuffer, x, y int) error {
	w, h := b.node.Size()
	buf.DrawBox(buffer.BoxOptions{
		Rect:       core.NewRect(x, y, w, h),
		Style:      b.Style,
		Fg:         b.Fg,
		Bg:         b.Bg,
		Fill:       b.Fill,
		Title:      b.Title,
		TitleAlign: b.TitleAlign,
	})
	return nil
}

// Text paints lines of text starting at the node origin. Its node is sized
// to the widest line in grapheme clusters.
type Text struct {
	node *Node

	lines []string

	Fg    core.RGBA
	Bg    *core.RGBA
	Attrs core.Attribute
}

// NewTextNode creates a node painted by a Text.
func NewTextNode(x, y int, content string, fg core.RGBA) (*Node, *Text) {
	t := &Text{Fg: fg}
	n := New(t)
	n.SetPosition(x, y)
	t.node = n
	t.SetContent(content)
	return n, t
}

// Content returns the text joined by newlines.
func (t *Text) Content() string {
	return strings.Join(t.lines, "\n")
}

// SetContent replaces the text and resizes the node.
func (t *Text) SetContent(content string) {
	t.lines = strings.Split(content, "\n")
	width := 0
	for _, l := range t.lines {
		width = max(width, uniseg.GraphemeClusterCount(l))
	}
	t.node.SetSize(width, len(t.lines))
}

// PaintSelf implements Painter.
func (t *Text) PaintSelf(buf *buffer.OptimizedBuffer, x, y int) error {
	for i, line := range t.lines {
		buf.DrawText(line, x, y+i, t.Fg, t.Bg, t.Attrs)
	}
	return nil
}

// Fill paints a solid background over its node's area.
type Fill struct {
	node *Node
	Bg   core.RGBA

	// Stretch makes the node follow the terminal size.
	Stretch bool
}

// NewFillNode creates a node painted by a Fill.
func NewFillNode(x, y, width, height int, bg core.RGBA) (*Node, *Fill) {
	f := &Fill{Bg: bg}
	n := New(f)
	n.SetPosition(x, y).SetSize(width, height)
	f.node = n
	return n, f
}

// PaintSelf implements Painter.
func (f *Fill) PaintSelf(buf *buffer.OptimizedBuffer, x, y int) error {
	w, h := f.node.Size()
	buf.FillRect(x, y, w, h, f.Bg)
	return nil
}

// OnResize implements Resizer.
func (f *Fill) OnResize(n *Node, width, height int) {
	if f.Stretch {
		x, y := n.Position()
		n.SetSize(width-x, height-y)
	}
}
