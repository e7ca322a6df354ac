package renderable

import (
	"fmt"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

// PaintError reports a painter failure. Panic is set when the painter
// panicked rather than returning an error.
type PaintError struct {
	NodeID string
	Panic  bool
	Err    error
}

func (e *PaintError) Error() string {
	if e.Panic {
		return fmt.Sprintf("paint node %s: panic: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("paint node %s: %v", e.NodeID, e.Err)
}

func (e *PaintError) Unwrap() error {
	return e.Err
}

// PaintStats summarizes one paint pass.
type PaintStats struct {
	Painted int
	Pruned  int
	Failed  int
}

// Paint draws n's subtree into buf. Failures are passed to sink (which may
// be nil) and do not stop the traversal.
func (n *Node) Paint(buf *buffer.OptimizedBuffer, sink func(error)) PaintStats {
	var stats PaintStats
	px, py := 0, 0
	if n.parent != nil {
		px, py = n.parent.AbsolutePosition()
	}
	n.paint(buf, px, py, sink, &stats)
	return stats
}

func (n *Node) paint(buf *buffer.OptimizedBuffer, ox, oy int, sink func(error), stats *PaintStats) {
	if n.state == StateDestroyed {
		return
	}
	if !n.visible {
		stats.Pruned++
		return
	}

	x, y := ox+n.x, oy+n.y
	if n.painter != nil {
		depth := buf.ClipDepth()
		err := paintSafe(n.painter, buf, x, y)
		// clips left pushed by the painter must not reach its siblings
		buf.RestoreClip(depth)
		if err != nil {
			stats.Failed++
			if sink != nil {
				sink(&PaintError{NodeID: n.id, Err: err, Panic: isPanic(err)})
			}
		} else {
			stats.Painted++
		}
	}

	if len(n.children) == 0 {
		return
	}
	if n.clipChildren {
		buf.PushClip(core.NewRect(x, y, n.width, n.height))
		defer buf.PopClip()
	}
	n.sortChildren()
	for _, c := range n.children {
		c.paint(buf, x, y, sink, stats)
	}
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprint(p.value)
}

func isPanic(err error) bool {
	_, ok := err.(panicError)
	return ok
}

// paintSafe runs the painter, converting a panic into an error.
func paintSafe(p Painter, buf *buffer.OptimizedBuffer, x, y int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return p.PaintSelf(buf, x, y)
}

// HitTest returns the top-most visible node containing the screen point
// (px, py), searching in reverse paint order. A node is hit only if it has
// a non-zero size.
func (n *Node) HitTest(px, py int) *Node {
	ox, oy := 0, 0
	if n.parent != nil {
		ox, oy = n.parent.AbsolutePosition()
	}
	return n.hitTest(ox, oy, px, py)
}

func (n *Node) hitTest(ox, oy, px, py int) *Node {
	if n.state == StateDestroyed || !n.visible {
		return nil
	}
	x, y := ox+n.x, oy+n.y
	inside := core.NewRect(x, y, n.width, n.height).Contains(px, py)
	if n.clipChildren && !inside {
		return nil
	}

	n.sortChildren()
	for i := len(n.children) - 1; i >= 0; i-- {
		if hit := n.children[i].hitTest(x, y, px, py); hit != nil {
			return hit
		}
	}
	if inside {
		return n
	}
	return nil
}

// Resize delivers a terminal resize to every node whose painter
// implements Resizer, parents first.
func (n *Node) Resize(width, height int) {
	n.Walk(func(c *Node) bool {
		if c.state == StateDestroyed {
			return false
		}
		if r, ok := c.painter.(Resizer); ok {
			r.OnResize(c, width, height)
		}
		return true
	})
}
