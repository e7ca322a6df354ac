package renderable

import (
	"github.com/dshills/termframe/internal/renderer/core"
)

// MouseEventType is the kind of routed pointer event.
type MouseEventType uint8

const (
	MouseDown MouseEventType = iota
	MouseUp
	MouseMove
	MouseDrag
	MouseOver
	MouseOut
	MouseDrop
	MouseScroll
)

// String returns the event name.
func (t MouseEventType) String() string {
	switch t {
	case MouseDown:
		return "down"
	case MouseUp:
		return "up"
	case MouseMove:
		return "move"
	case MouseDrag:
		return "drag"
	case MouseOver:
		return "over"
	case MouseOut:
		return "out"
	case MouseDrop:
		return "drop"
	case MouseScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// MouseEvent is a pointer event routed through the tree.
type MouseEvent struct {
	Type   MouseEventType
	Button core.MouseButton

	// X and Y are screen coordinates.
	X, Y int

	// LocalX and LocalY are relative to the node currently handling the
	// event and are updated while bubbling.
	LocalX, LocalY int

	// Target is the node the event was dispatched to.
	Target *Node

	// Source is the drag source for drag, up and drop events.
	Source *Node

	Ctrl, Shift, Alt bool

	stopped bool
}

// StopPropagation prevents the event from reaching further ancestors.
func (e *MouseEvent) StopPropagation() {
	e.stopped = true
}

// Stopped reports whether propagation was stopped.
func (e *MouseEvent) Stopped() bool {
	return e.stopped
}

// dispatchMouse bubbles ev from target to the root.
func dispatchMouse(target *Node, ev *MouseEvent) {
	ev.Target = target
	for cur := target; cur != nil; cur = cur.parent {
		if cur.state == StateDestroyed {
			return
		}
		ax, ay := cur.AbsolutePosition()
		ev.LocalX, ev.LocalY = ev.X-ax, ev.Y-ay

		if h, ok := cur.painter.(MouseHandler); ok {
			h.HandleMouse(cur, ev)
		}
		for _, fn := range cur.mouseHandlers {
			fn(ev)
		}
		if ev.stopped {
			return
		}
	}
}

// Router turns raw pointer and key input into routed tree events. It
// tracks hover, the drag source and keyboard focus.
type Router struct {
	root *Node

	hovered    *Node
	dragSource *Node
	pressed    core.MouseButton
	focused    *Node
}

// NewRouter creates a router for the tree rooted at root.
func NewRouter(root *Node) *Router {
	return &Router{root: root}
}

// Hovered returns the node under the pointer after the last event.
func (r *Router) Hovered() *Node {
	return r.live(r.hovered)
}

// DragSource returns the node that received the current button press.
func (r *Router) DragSource() *Node {
	return r.live(r.dragSource)
}

// live filters out nodes that left the tree.
func (r *Router) live(n *Node) *Node {
	if n == nil || n.state == StateDestroyed || n.Root() != r.root {
		return nil
	}
	return n
}

// DispatchMouse routes one raw pointer report and returns the hit node.
func (r *Router) DispatchMouse(in core.MouseInput) *Node {
	target := r.root.HitTest(in.X, in.Y)

	newEvent := func(t MouseEventType) *MouseEvent {
		return &MouseEvent{
			Type:   t,
			Button: in.Button,
			X:      in.X,
			Y:      in.Y,
			Ctrl:   in.Ctrl,
			Shift:  in.Shift,
			Alt:    in.Alt,
		}
	}

	switch {
	case in.Button.IsWheel():
		r.updateHover(target, newEvent)
		if target != nil {
			dispatchMouse(target, newEvent(MouseScroll))
		}

	case in.Action == core.MousePress:
		r.updateHover(target, newEvent)
		r.pressed = in.Button
		r.dragSource = target
		if target != nil {
			dispatchMouse(target, newEvent(MouseDown))
		}

	case in.Action == core.MouseMotion:
		source := r.live(r.dragSource)
		if r.pressed != core.ButtonNone && source != nil {
			ev := newEvent(MouseDrag)
			ev.Button = r.pressed
			ev.Source = source
			dispatchMouse(source, ev)
			r.updateHover(target, newEvent)
			break
		}
		r.updateHover(target, newEvent)
		if target != nil {
			dispatchMouse(target, newEvent(MouseMove))
		}

	case in.Action == core.MouseRelease:
		source := r.live(r.dragSource)
		button := r.pressed
		r.pressed = core.ButtonNone
		r.dragSource = nil

		r.updateHover(target, newEvent)
		if target == nil {
			break
		}
		up := newEvent(MouseUp)
		if up.Button == core.ButtonNone {
			up.Button = button
		}
		up.Source = source
		dispatchMouse(target, up)

		if source != nil && source != target {
			drop := newEvent(MouseDrop)
			drop.Button = up.Button
			drop.Source = source
			dispatchMouse(target, drop)
		}
	}
	return target
}

// updateHover emits out/over when the hovered node changes.
func (r *Router) updateHover(target *Node, newEvent func(MouseEventType) *MouseEvent) {
	prev := r.live(r.hovered)
	if prev == target {
		r.hovered = target
		return
	}
	if prev != nil {
		dispatchMouse(prev, newEvent(MouseOut))
	}
	r.hovered = target
	if target != nil {
		dispatchMouse(target, newEvent(MouseOver))
	}
}

// Focus gives keyboard focus to n. A nil node clears focus.
func (r *Router) Focus(n *Node) {
	r.focused = n
}

// Focused returns the focused node, if it is still in the tree.
func (r *Router) Focused() *Node {
	return r.live(r.focused)
}

// DispatchKey delivers ev to the focused node and its ancestors. It
// reports whether a handler stopped propagation.
func (r *Router) DispatchKey(ev core.KeyEvent) bool {
	for cur := r.Focused(); cur != nil; cur = cur.parent {
		for _, h := range cur.keyHandlers {
			if h(cur, ev) {
				return true
			}
		}
	}
	return false
}
