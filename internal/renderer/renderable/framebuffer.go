package renderable

import (
	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

// FrameBuffer is a painter backed by its own OptimizedBuffer. Callers draw
// into Buffer() at any time between frames; each paint blits it into the
// target with alpha.
type FrameBuffer struct {
	node *Node
	buf  *buffer.OptimizedBuffer

	// fill makes the buffer track the terminal size on resize.
	fill bool

	// OnResized is called after the buffer was reallocated.
	OnResized func(fb *FrameBuffer)
}

// NewFrameBufferNode creates a node with a transparent, alpha-respecting
// buffer of the given size. With fill set, the node and buffer follow the
// terminal size.
func NewFrameBufferNode(width, height int, fill bool) (*Node, *FrameBuffer, error) {
	buf, err := buffer.New(width, height,
		buffer.WithBackground(core.Transparent),
		buffer.WithRespectAlpha(true),
	)
	if err != nil {
		return nil, nil, err
	}
	fb := &FrameBuffer{buf: buf, fill: fill}
	n := New(fb)
	n.SetSize(width, height)
	fb.node = n
	return n, fb, nil
}

// Buffer returns the backing buffer.
func (f *FrameBuffer) Buffer() *buffer.OptimizedBuffer {
	return f.buf
}

// Node returns the node painted by this frame buffer.
func (f *FrameBuffer) Node() *Node {
	return f.node
}

// PaintSelf implements Painter.
func (f *FrameBuffer) PaintSelf(dst *buffer.OptimizedBuffer, x, y int) error {
	dst.DrawFrameBuffer(x, y, f.buf)
	return nil
}

// OnResize implements Resizer.
func (f *FrameBuffer) OnResize(n *Node, width, height int) {
	if !f.fill {
		return
	}
	if bw, bh := f.buf.Size(); bw == width && bh == height {
		return
	}
	if err := f.buf.Resize(width, height); err != nil {
		return
	}
	n.SetSize(width, height)
	if f.OnResized != nil {
		f.OnResized(f)
	}
}
