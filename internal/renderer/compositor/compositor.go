// Package compositor implements double-buffered damage diffing.
//
// The paint side draws into the back buffer. DiffAndFlush compares it with
// the front buffer (what the terminal currently shows), hands the changed
// runs to a Flusher and swaps the two buffers by pointer. Cells are never
// copied between the buffers on swap.
package compositor

import (
	"fmt"
	"slices"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

// Run is a maximal horizontal span of changed cells in one row.
type Run struct {
	Y     int
	X     int
	Cells []core.Cell
}

// Frame is one flush worth of output.
type Frame struct {
	Width, Height int

	// Full is set when every cell is reported, on the first frame and
	// after a resize or failed flush.
	Full bool

	Runs []Run
}

// Flusher transmits a frame's changed runs to an output device.
type Flusher interface {
	Flush(frame Frame) error
}

// FlusherFunc adapts a function to the Flusher interface.
type FlusherFunc func(frame Frame) error

// Flush calls f(frame).
func (f FlusherFunc) Flush(frame Frame) error {
	return f(frame)
}

// FlushError wraps a flusher failure. The buffers were swapped regardless
// and the next frame is a full repaint.
type FlushError struct {
	Frame uint64
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush frame %d: %v", e.Frame, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithDirtyRows enables the dirty-row index. Rows that matched on the
// previous diff and were not written since are skipped.
func WithDirtyRows(enabled bool) Option {
	return func(c *Compositor) {
		c.dirtyIndex = enabled
	}
}

// Compositor owns a front and back buffer of identical dimensions.
type Compositor struct {
	front, back *buffer.OptimizedBuffer
	bg          core.RGBA

	forceFull bool

	dirtyIndex bool
	cleanRows  []bool

	frames uint64
}

// New creates a compositor with both buffers filled with bg.
func New(width, height int, bg core.RGBA, opts ...Option) (*Compositor, error) {
	front, err := buffer.New(width, height, buffer.WithBackground(bg))
	if err != nil {
		return nil, err
	}
	back, err := buffer.New(width, height, buffer.WithBackground(bg))
	if err != nil {
		return nil, err
	}

	c := &Compositor{
		front:     front,
		back:      back,
		bg:        bg,
		forceFull: true,
		cleanRows: make([]bool, height),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Back returns the buffer the paint side draws into.
func (c *Compositor) Back() *buffer.OptimizedBuffer {
	return c.back
}

// Front returns the buffer matching the last flushed frame.
func (c *Compositor) Front() *buffer.OptimizedBuffer {
	return c.front
}

// Size returns the dimensions shared by both buffers.
func (c *Compositor) Size() (width, height int) {
	return c.back.Size()
}

// Background returns the fill color used on resize.
func (c *Compositor) Background() core.RGBA {
	return c.bg
}

// Frames returns the number of completed DiffAndFlush calls.
func (c *Compositor) Frames() uint64 {
	return c.frames
}

// DirtyRows reports whether the dirty-row index is enabled.
func (c *Compositor) DirtyRows() bool {
	return c.dirtyIndex
}

// ForceFull makes the next diff report every cell.
func (c *Compositor) ForceFull() {
	c.forceFull = true
}

// Diff returns the runs where back differs from front, in row-major
// order. It does not modify either buffer.
func (c *Compositor) Diff() []Run {
	runs, _ := c.diff()
	return runs
}

// diff computes the runs and which rows contained changes.
func (c *Compositor) diff() ([]Run, []bool) {
	width, height := c.back.Size()
	changed := make([]bool, height)
	var runs []Run

	for y := 0; y < height; y++ {
		if !c.forceFull && c.dirtyIndex && c.cleanRows[y] && !c.back.RowDirty(y) {
			continue
		}

		brow := c.back.Row(y)
		frow := c.front.Row(y)

		x := 0
		for x < width {
			if !c.forceFull && brow[x] == frow[x] {
				x++
				continue
			}
			start := x
			for x < width && (c.forceFull || brow[x] != frow[x]) {
				x++
			}
			runs = append(runs, Run{
				Y:     y,
				X:     start,
				Cells: slices.Clone(brow[start:x]),
			})
			changed[y] = true
		}
	}
	return runs, changed
}

// DiffAndFlush diffs, hands the frame to f and swaps the buffers.
// The swap happens even when f fails; the failure is returned as a
// *FlushError and the next frame is forced to a full repaint.
// A nil f only diffs and swaps.
func (c *Compositor) DiffAndFlush(f Flusher) error {
	runs, changed := c.diff()
	width, height := c.back.Size()

	var err error
	if f != nil {
		err = f.Flush(Frame{
			Width:  width,
			Height: height,
			Full:   c.forceFull,
			Runs:   runs,
		})
	}

	for y := range c.cleanRows {
		c.cleanRows[y] = !changed[y]
	}
	c.front, c.back = c.back, c.front
	c.back.ResetDirtyRows()
	c.forceFull = false
	c.frames++

	if err != nil {
		c.forceFull = true
		return &FlushError{Frame: c.frames, Err: err}
	}
	return nil
}

// Resize reallocates both buffers and forces a full repaint.
// Invalid dimensions leave the compositor untouched.
func (c *Compositor) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", buffer.ErrInvalidDimensions, width, height)
	}
	if err := c.front.Resize(width, height); err != nil {
		return err
	}
	if err := c.back.Resize(width, height); err != nil {
		return err
	}
	c.cleanRows = make([]bool, height)
	c.forceFull = true
	return nil
}

// Apply writes runs onto dst. Cells outside dst are dropped.
func Apply(dst *buffer.OptimizedBuffer, runs []Run) {
	for _, run := range runs {
		for i, cell := range run.Cells {
			dst.SetCell(run.X+i, run.Y, cell)
		}
	}
}

// CellCount returns the total number of cells across runs.
func CellCount(runs []Run) int {
	n := 0
	for _, r := range runs {
		n += len(r.Cells)
	}
	return n
}
