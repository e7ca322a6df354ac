// Package renderable implements the scene tree painted each frame.
//
// A Node has a position relative to its parent, a size used for
// hit-testing, a z-index and an optional Painter. Children paint after
// their parent in ascending z order; equal z values keep insertion order.
//
// The tree is not safe for concurrent use. The renderer serializes all
// tree access on its frame loop.
package renderable

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

// ErrCycle is returned when adding a node would make it its own ancestor.
var ErrCycle = errors.New("renderable: node cannot be added to its own subtree")

// State is a node's lifecycle state.
type State uint8

const (
	StateDetached State = iota
	StateAttached
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttached:
		return "attached"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Painter draws a node into the target buffer at an absolute origin.
type Painter interface {
	PaintSelf(buf *buffer.OptimizedBuffer, x, y int) error
}

// PainterFunc adapts a function to the Painter interface.
type PainterFunc func(buf *buffer.OptimizedBuffer, x, y int) error

// PaintSelf calls f.
func (f PainterFunc) PaintSelf(buf *buffer.OptimizedBuffer, x, y int) error {
	return f(buf, x, y)
}

// Attacher is implemented by painters that want to know when their node
// joins an attached tree.
type Attacher interface {
	OnAttach(n *Node)
}

// Detacher is implemented by painters that want to know when their node
// leaves an attached tree.
type Detacher interface {
	OnDetach(n *Node)
}

// Resizer is implemented by painters that react to terminal resizes.
type Resizer interface {
	OnResize(n *Node, width, height int)
}

// MouseHandler is implemented by painters that handle pointer events.
type MouseHandler interface {
	HandleMouse(n *Node, ev *MouseEvent)
}

// KeyHandler handles a key event. Returning true stops propagation.
type KeyHandler func(n *Node, ev core.KeyEvent) bool

// Node is an element of the scene tree.
type Node struct {
	id    string
	name  string
	state State

	x, y          int
	width, height int
	z             int
	visible       bool

	parent    *Node
	children  []*Node
	seq       uint64 // insertion order among siblings
	nextSeq   uint64
	needsSort bool

	painter      Painter
	clipChildren bool

	mouseHandlers []func(*MouseEvent)
	keyHandlers   []KeyHandler
}

// New creates a detached, visible node with the given painter (may be nil).
func New(painter Painter) *Node {
	return &Node{
		id:      uuid.NewString(),
		visible: true,
		painter: painter,
	}
}

// ID returns the node's unique id.
func (n *Node) ID() string {
	return n.id
}

// Name returns the debug name.
func (n *Node) Name() string {
	return n.name
}

// SetName sets a debug name.
func (n *Node) SetName(name string) *Node {
	n.name = name
	return n
}

func (n *Node) String() string {
	if n.name != "" {
		return fmt.Sprintf("%s(%s)", n.name, n.id[:8])
	}
	return n.id
}

// State returns the lifecycle state.
func (n *Node) State() State {
	return n.state
}

// Painter returns the node's painter.
func (n *Node) Painter() Painter {
	return n.painter
}

// SetPainter replaces the node's painter.
func (n *Node) SetPainter(p Painter) {
	if n.state == StateDestroyed {
		return
	}
	n.painter = p
}

// Position returns the offset relative to the parent.
func (n *Node) Position() (x, y int) {
	return n.x, n.y
}

// SetPosition moves the node relative to its parent.
func (n *Node) SetPosition(x, y int) *Node {
	if n.state != StateDestroyed {
		n.x, n.y = x, y
	}
	return n
}

// Size returns the node's hit-test size.
func (n *Node) Size() (width, height int) {
	return n.width, n.height
}

// SetSize sets the node's hit-test size. Negative values become zero.
func (n *Node) SetSize(width, height int) *Node {
	if n.state != StateDestroyed {
		n.width, n.height = max(0, width), max(0, height)
	}
	return n
}

// ZIndex returns the paint order key among siblings.
func (n *Node) ZIndex() int {
	return n.z
}

// SetZIndex changes the paint order key among siblings.
func (n *Node) SetZIndex(z int) *Node {
	if n.state == StateDestroyed || n.z == z {
		return n
	}
	n.z = z
	if n.parent != nil {
		n.parent.needsSort = true
	}
	return n
}

// Visible reports whether the node and its subtree are painted.
func (n *Node) Visible() bool {
	return n.visible
}

// SetVisible shows or hides the node and its subtree.
func (n *Node) SetVisible(v bool) *Node {
	if n.state != StateDestroyed {
		n.visible = v
	}
	return n
}

// SetClipChildren restricts children's drawing to this node's bounds.
func (n *Node) SetClipChildren(clip bool) *Node {
	n.clipChildren = clip
	return n
}

// Bounds returns the node rectangle relative to the parent.
func (n *Node) Bounds() core.Rect {
	return core.NewRect(n.x, n.y, n.width, n.height)
}

// AbsolutePosition returns the node origin in screen cells.
func (n *Node) AbsolutePosition() (x, y int) {
	for cur := n; cur != nil; cur = cur.parent {
		x += cur.x
		y += cur.y
	}
	return x, y
}

// AbsoluteBounds returns the node rectangle in screen cells.
func (n *Node) AbsoluteBounds() core.Rect {
	x, y := n.AbsolutePosition()
	return core.NewRect(x, y, n.width, n.height)
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Root returns the top-most ancestor.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	for cur := other.parent; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// Children returns the children in paint order. The slice is a copy.
func (n *Node) Children() []*Node {
	n.sortChildren()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int {
	return len(n.children)
}

// Add appends child to n. A child with another parent is moved. Adding n
// itself or one of its ancestors fails with ErrCycle. Calls involving a
// destroyed node do nothing.
func (n *Node) Add(child *Node) error {
	if child == nil || n.state == StateDestroyed || child.state == StateDestroyed {
		return nil
	}
	if child == n || child.IsAncestorOf(n) {
		return ErrCycle
	}
	if child.parent == n {
		return nil
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}

	child.parent = n
	child.seq = n.nextSeq
	n.nextSeq++
	n.children = append(n.children, child)
	n.needsSort = true

	if n.state == StateAttached {
		child.setAttached(true)
	}
	return nil
}

// Remove detaches child from n. It reports whether child was a direct child.
func (n *Node) Remove(child *Node) bool {
	if child == nil || child.parent != n {
		return false
	}
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	child.parent = nil
	if child.state == StateAttached {
		child.setAttached(false)
	}
	return true
}

// RemoveAll detaches every child.
func (n *Node) RemoveAll() {
	for len(n.children) > 0 {
		n.Remove(n.children[len(n.children)-1])
	}
}

// Destroy removes n from its parent and marks the whole subtree destroyed.
// Detach hooks fire first if the subtree was attached.
func (n *Node) Destroy() {
	if n.state == StateDestroyed {
		return
	}
	if n.parent != nil {
		n.parent.Remove(n)
	} else if n.state == StateAttached {
		n.setAttached(false)
	}
	n.Walk(func(c *Node) bool {
		c.state = StateDestroyed
		c.mouseHandlers = nil
		c.keyHandlers = nil
		return true
	})
}

// Mount marks a root node and its subtree attached, firing attach hooks.
// It does nothing for nodes with a parent.
func (n *Node) Mount() {
	if n.parent != nil || n.state != StateDetached {
		return
	}
	n.setAttached(true)
}

// Unmount reverses Mount.
func (n *Node) Unmount() {
	if n.parent != nil || n.state != StateAttached {
		return
	}
	n.setAttached(false)
}

// setAttached transitions the subtree, parents before children.
func (n *Node) setAttached(attached bool) {
	if attached {
		n.state = StateAttached
		if a, ok := n.painter.(Attacher); ok {
			a.OnAttach(n)
		}
	} else {
		n.state = StateDetached
		if d, ok := n.painter.(Detacher); ok {
			d.OnDetach(n)
		}
	}
	for _, c := range n.children {
		c.setAttached(attached)
	}
}

// Walk visits n and its descendants depth-first in paint order. Returning
// false from fn skips that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	n.sortChildren()
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Find returns the node with the given id in n's subtree.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.id == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// sortChildren restores (z, insertion) order when it may have changed.
func (n *Node) sortChildren() {
	if !n.needsSort {
		return
	}
	sort.SliceStable(n.children, func(i, j int) bool {
		a, b := n.children[i], n.children[j]
		if a.z != b.z {
			return a.z < b.z
		}
		return a.seq < b.seq
	})
	n.needsSort = false
}

// OnMouse registers a pointer event handler on the node.
func (n *Node) OnMouse(fn func(*MouseEvent)) {
	if n.state == StateDestroyed || fn == nil {
		return
	}
	n.mouseHandlers = append(n.mouseHandlers, fn)
}

// OnKey registers a key handler, used when the node or a descendant has focus.
func (n *Node) OnKey(fn KeyHandler) {
	if n.state == StateDestroyed || fn == nil {
		return
	}
	n.keyHandlers = append(n.keyHandlers, fn)
}
