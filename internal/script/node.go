package script

import (
	"fmt"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
	"github.com/dshills/termframe/internal/renderer/renderable"
)

// Painter is a renderable painter driven by a Lua script.
type Painter struct {
	name  string
	state *State
	node  *renderable.Node

	// fill makes the node follow the terminal size.
	fill bool

	// onError receives failures from hooks that cannot return one.
	onError func(error)
}

// NodeOption configures a scripted node.
type NodeOption func(*Painter)

// WithFill makes the node track the terminal size.
func WithFill() NodeOption {
	return func(p *Painter) {
		p.fill = true
	}
}

// WithErrorHandler receives errors raised by on_key, on_mouse and
// on_resize. Without it they are dropped.
func WithErrorHandler(fn func(error)) NodeOption {
	return func(p *Painter) {
		p.onError = fn
	}
}

// WithState runs the script in an existing state instead of a new one.
// Hooks are globals, so a state holds one script.
func WithState(s *State) NodeOption {
	return func(p *Painter) {
		p.state = s
	}
}

// NewNode loads source and returns a node painted by it. name identifies
// the script in errors.
func NewNode(name, source string, opts ...NodeOption) (*renderable.Node, *Painter, error) {
	return newNode(name, opts, func(s *State) error { return s.DoString(source) })
}

// LoadFile loads the script at path and returns a node painted by it.
func LoadFile(path string, opts ...NodeOption) (*renderable.Node, *Painter, error) {
	return newNode(filepath.Base(path), opts, func(s *State) error { return s.DoFile(path) })
}

func newNode(name string, opts []NodeOption, load func(*State) error) (*renderable.Node, *Painter, error) {
	p := &Painter{name: name}
	for _, opt := range opts {
		opt(p)
	}
	if p.state == nil {
		p.state = NewState()
	}
	registerBufferType(p.state.L)

	if err := load(p.state); err != nil {
		p.state.Close()
		return nil, nil, &ScriptError{Script: name, Err: err}
	}
	if !p.state.HasFunc("paint") {
		p.state.Close()
		return nil, nil, &ScriptError{Script: name, Err: ErrNoPaint}
	}

	n := renderable.New(p).SetName(name)
	n.OnKey(p.handleKey)
	p.node = n
	return n, p, nil
}

// Node returns the node this painter draws.
func (p *Painter) Node() *renderable.Node {
	return p.node
}

// State returns the script's Lua state.
func (p *Painter) State() *State {
	return p.state
}

// Close releases the Lua state.
func (p *Painter) Close() error {
	return p.state.Close()
}

func (p *Painter) wrap(fn string, err error) error {
	if err == nil {
		return nil
	}
	return &ScriptError{Script: p.name, Func: fn, Err: err}
}

// report hands a hook failure to the error handler.
func (p *Painter) report(fn string, err error) {
	if err != nil && p.onError != nil {
		p.onError(p.wrap(fn, err))
	}
}

// PaintSelf implements renderable.Painter.
func (p *Painter) PaintSelf(buf *buffer.OptimizedBuffer, x, y int) error {
	if p.state.IsClosed() {
		return p.wrap("paint", ErrStateClosed)
	}
	t := &target{buf: buf}
	defer func() { t.buf = nil }()

	ud := newBufferHandle(p.state.L, t)
	_, err := p.state.Call("paint", ud, lua.LNumber(x), lua.LNumber(y))
	return p.wrap("paint", err)
}

// Update calls the script's update hook with dt in seconds. It has the
// shape of a scheduler callback.
func (p *Painter) Update(dt time.Duration) error {
	_, err := p.state.Call("update", lua.LNumber(dt.Seconds()))
	return p.wrap("update", err)
}

// handleKey calls on_key with the key string; a true result stops
// propagation.
func (p *Painter) handleKey(_ *renderable.Node, ev core.KeyEvent) bool {
	ret, err := p.state.Call("on_key", lua.LString(ev.String()))
	if err != nil {
		p.report("on_key", err)
		return false
	}
	return lua.LVAsBool(ret)
}

// HandleMouse implements renderable.MouseHandler. On error the event keeps
// bubbling.
func (p *Painter) HandleMouse(_ *renderable.Node, ev *renderable.MouseEvent) {
	ret, err := p.state.Call("on_mouse",
		lua.LString(ev.Type.String()),
		lua.LNumber(ev.LocalX),
		lua.LNumber(ev.LocalY),
		lua.LString(ev.Button.String()),
	)
	if err != nil {
		p.report("on_mouse", err)
		return
	}
	if lua.LVAsBool(ret) {
		ev.StopPropagation()
	}
}

// OnResize implements renderable.Resizer.
func (p *Painter) OnResize(n *renderable.Node, width, height int) {
	if p.fill {
		x, y := n.Position()
		n.SetSize(max(width-x, 0), max(height-y, 0))
	}
	_, err := p.state.Call("on_resize", lua.LNumber(width), lua.LNumber(height))
	p.report("on_resize", err)
}

// String returns a description for logs.
func (p *Painter) String() string {
	return fmt.Sprintf("script(%s)", p.name)
}
