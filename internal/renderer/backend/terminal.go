package backend

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/termframe/internal/renderer/compositor"
	"github.com/dshills/termframe/internal/renderer/core"
)

// TcellBackend implements Backend using tcell for terminal output.
// Compositor runs are applied with SetContent; a full frame triggers Sync.
type TcellBackend struct {
	screen        tcell.Screen
	resizeHandler func(width, height int)
	mu            sync.Mutex

	// last reported button mask, used to derive press/release/motion
	buttons tcell.ButtonMask
}

// NewTcellBackend creates a backend on the controlling terminal.
func NewTcellBackend() (*TcellBackend, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, &InitError{Backend: "tcell", Err: err}
	}
	return &TcellBackend{screen: screen}, nil
}

// NewTcellBackendWithScreen wraps an existing screen, such as a
// simulation screen in tests.
func NewTcellBackendWithScreen(screen tcell.Screen) *TcellBackend {
	return &TcellBackend{screen: screen}
}

func (t *TcellBackend) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return &InitError{Backend: "tcell", Err: err}
	}
	t.screen.HideCursor()
	return nil
}

func (t *TcellBackend) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fini()
}

func (t *TcellBackend) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

func (t *TcellBackend) OnResize(callback func(width, height int)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resizeHandler = callback
}

// Flush writes the frame's runs to the screen and shows them.
func (t *TcellBackend) Flush(frame compositor.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, run := range frame.Runs {
		for i, c := range run.Cells {
			mainc, combc := splitGlyph(c)
			t.screen.SetContent(run.X+i, run.Y, mainc, combc, convertStyle(c))
		}
	}
	if frame.Full {
		t.screen.Sync()
	} else {
		t.screen.Show()
	}
	return nil
}

// splitGlyph breaks a grapheme cluster into tcell's main and combining runes.
func splitGlyph(c core.Cell) (rune, []rune) {
	runes := []rune(c.Glyph())
	if len(runes) == 1 {
		return runes[0], nil
	}
	return runes[0], runes[1:]
}

func (t *TcellBackend) ShowCursor(x, y int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.ShowCursor(x, y)
}

func (t *TcellBackend) HideCursor() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.HideCursor()
}

// PollEvent returns the next key, mouse or resize event. Other tcell events
// are skipped. After Shutdown it returns EventClosed.
func (t *TcellBackend) PollEvent() Event {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return Event{Type: EventClosed}
		}
		if out, ok := t.convertEvent(ev); ok {
			return out
		}
	}
}

// PostEvent queues ev as a tcell interrupt carrying the event.
func (t *TcellBackend) PostEvent(event Event) bool {
	return t.screen.PostEvent(tcell.NewEventInterrupt(event)) == nil
}

func (t *TcellBackend) HasTrueColor() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Colors() >= 1<<24
}

func (t *TcellBackend) Beep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	_ = t.screen.Beep()
}

func (t *TcellBackend) EnableMouse() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.EnableMouse()
}

func (t *TcellBackend) DisableMouse() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.DisableMouse()
}

// convertColor converts an RGBA to a tcell color. Alpha is dropped; cells
// reaching the backend have already been composited.
func convertColor(c core.RGBA) tcell.Color {
	r, g, b, _ := c.To8Bit()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// convertStyle converts a cell's colors and attributes to a tcell.Style.
func convertStyle(c core.Cell) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(convertColor(c.Fg)).
		Background(convertColor(c.Bg))

	a := c.Attrs
	if a.Has(core.AttrBold) {
		style = style.Bold(true)
	}
	if a.Has(core.AttrDim) {
		style = style.Dim(true)
	}
	if a.Has(core.AttrItalic) {
		style = style.Italic(true)
	}
	if a.Has(core.AttrUnderline) {
		style = style.Underline(true)
	}
	if a.Has(core.AttrBlink) {
		style = style.Blink(true)
	}
	if a.Has(core.AttrInverse) {
		style = style.Reverse(true)
	}
	if a.Has(core.AttrStrikethrough) {
		style = style.StrikeThrough(true)
	}
	return style
}

// convertEvent converts tcell events to our Event type.
func (t *TcellBackend) convertEvent(ev tcell.Event) (Event, bool) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return KeyEventOf(convertKey(e)), true

	case *tcell.EventMouse:
		return MouseEventOf(t.convertMouse(e)), true

	case *tcell.EventResize:
		w, h := e.Size()
		t.mu.Lock()
		handler := t.resizeHandler
		t.mu.Unlock()
		if handler != nil {
			handler(w, h)
		}
		return Event{Type: EventResize, Width: w, Height: h}, true

	case *tcell.EventInterrupt:
		if posted, ok := e.Data().(Event); ok {
			return posted, true
		}
	}
	return Event{}, false
}

// tcellKeyNames maps special keys to our key names.
var tcellKeyNames = map[tcell.Key]string{
	tcell.KeyEscape:     "Escape",
	tcell.KeyEnter:      "Enter",
	tcell.KeyTab:        "Tab",
	tcell.KeyBacktab:    "Tab",
	tcell.KeyBackspace:  "Backspace",
	tcell.KeyBackspace2: "Backspace",
	tcell.KeyDelete:     "Delete",
	tcell.KeyInsert:     "Insert",
	tcell.KeyHome:       "Home",
	tcell.KeyEnd:        "End",
	tcell.KeyPgUp:       "PageUp",
	tcell.KeyPgDn:       "PageDown",
	tcell.KeyUp:         "Up",
	tcell.KeyDown:       "Down",
	tcell.KeyLeft:       "Left",
	tcell.KeyRight:      "Right",
	tcell.KeyF1:         "F1",
	tcell.KeyF2:         "F2",
	tcell.KeyF3:         "F3",
	tcell.KeyF4:         "F4",
	tcell.KeyF5:         "F5",
	tcell.KeyF6:         "F6",
	tcell.KeyF7:         "F7",
	tcell.KeyF8:         "F8",
	tcell.KeyF9:         "F9",
	tcell.KeyF10:        "F10",
	tcell.KeyF11:        "F11",
	tcell.KeyF12:        "F12",
}

// convertKey converts a tcell key event to a KeyEvent.
func convertKey(e *tcell.EventKey) core.KeyEvent {
	mod := e.Modifiers()
	k := core.KeyEvent{
		Ctrl:  mod&tcell.ModCtrl != 0,
		Shift: mod&tcell.ModShift != 0,
		Alt:   mod&(tcell.ModAlt|tcell.ModMeta) != 0,
	}

	key := e.Key()
	switch {
	case key == tcell.KeyRune:
		k.Rune = e.Rune()
		k.Name = string(k.Rune)
		if k.Rune == ' ' {
			k.Name = "Space"
		}
		// the character already reflects shift
		k.Shift = false
		return k

	case key == tcell.KeyBacktab:
		k.Name = "Tab"
		k.Shift = true
		return k
	}

	if name, ok := tcellKeyNames[key]; ok {
		k.Name = name
		return k
	}

	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ {
		k.Name = string(rune('a' + int(key-tcell.KeyCtrlA)))
		k.Ctrl = true
		return k
	}
	if key == tcell.KeyCtrlSpace {
		k.Name = "Space"
		k.Ctrl = true
		return k
	}

	k.Name = e.Name()
	return k
}

// convertMouse derives a press, release or motion from tcell's button
// state, which only reports which buttons are currently held.
func (t *TcellBackend) convertMouse(e *tcell.EventMouse) core.MouseInput {
	x, y := e.Position()
	mod := e.Modifiers()
	m := core.MouseInput{
		X:     x,
		Y:     y,
		Ctrl:  mod&tcell.ModCtrl != 0,
		Shift: mod&tcell.ModShift != 0,
		Alt:   mod&tcell.ModAlt != 0,
	}

	btns := e.Buttons()
	switch {
	case btns&tcell.WheelUp != 0:
		m.Button = core.WheelUp
		m.Action = core.MousePress
		return m
	case btns&tcell.WheelDown != 0:
		m.Button = core.WheelDown
		m.Action = core.MousePress
		return m
	}

	held := btns & (tcell.Button1 | tcell.Button2 | tcell.Button3)

	t.mu.Lock()
	prev := t.buttons
	t.buttons = held
	t.mu.Unlock()

	switch {
	case prev == 0 && held != 0:
		m.Action = core.MousePress
		m.Button = convertMouseButton(held)
	case prev != 0 && held == 0:
		m.Action = core.MouseRelease
		m.Button = convertMouseButton(prev)
	default:
		m.Action = core.MouseMotion
		m.Button = convertMouseButton(held)
	}
	return m
}

// convertMouseButton converts a tcell button mask to a MouseButton.
// tcell numbers the right button 2 and the middle button 3.
func convertMouseButton(b tcell.ButtonMask) core.MouseButton {
	switch {
	case b&tcell.Button1 != 0:
		return core.ButtonLeft
	case b&tcell.Button2 != 0:
		return core.ButtonRight
	case b&tcell.Button3 != 0:
		return core.ButtonMiddle
	default:
		return core.ButtonNone
	}
}
