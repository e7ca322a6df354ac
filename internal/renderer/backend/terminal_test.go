package backend

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/termframe/internal/renderer/compositor"
	"github.com/dshills/termframe/internal/renderer/core"
)

func newSimBackend(t *testing.T) (*TcellBackend, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	b := NewTcellBackendWithScreen(screen)
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	screen.SetSize(10, 3)
	t.Cleanup(b.Shutdown)
	return b, screen
}

func TestTcellFlush(t *testing.T) {
	b, screen := newSimBackend(t)

	cell := core.NewCell("Z", core.Red, core.Blue).WithAttrs(core.AttrBold)
	err := b.Flush(compositor.Frame{
		Width:  10,
		Height: 3,
		Runs:   []compositor.Run{{Y: 1, X: 3, Cells: []core.Cell{cell, core.EmptyCell(core.Black)}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	//nolint:staticcheck // GetContent is the simplest way to inspect the simulation
	mainc, _, style, _ := screen.GetContent(3, 1)
	if mainc != 'Z' {
		t.Errorf("expected Z, got %q", mainc)
	}
	fg, bg, attrs := style.Decompose()
	if r, g, bl := fg.RGB(); r != 255 || g != 0 || bl != 0 {
		t.Errorf("expected red fg, got %d,%d,%d", r, g, bl)
	}
	if r, g, bl := bg.RGB(); r != 0 || g != 0 || bl != 255 {
		t.Errorf("expected blue bg, got %d,%d,%d", r, g, bl)
	}
	if attrs&tcell.AttrBold == 0 {
		t.Error("expected bold")
	}

	//nolint:staticcheck
	mainc, _, _, _ = screen.GetContent(4, 1)
	if mainc != ' ' {
		t.Errorf("empty cell should be a space, got %q", mainc)
	}
}

func TestConvertKey(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want string
	}{
		{"rune", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), "q"},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), "Space"},
		{"enter", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), "Enter"},
		{"ctrl c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), "Ctrl+c"},
		{"shift up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModShift), "Shift+Up"},
		{"alt rune", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModAlt), "Alt+x"},
		{"backtab", tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone), "Shift+Tab"},
		{"f12", tcell.NewEventKey(tcell.KeyF12, 0, tcell.ModNone), "F12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convertKey(tt.ev).String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConvertMouseActions(t *testing.T) {
	b := NewTcellBackendWithScreen(tcell.NewSimulationScreen("UTF-8"))

	steps := []struct {
		btn    tcell.ButtonMask
		action core.MouseAction
		button core.MouseButton
	}{
		{tcell.ButtonNone, core.MouseMotion, core.ButtonNone},
		{tcell.Button1, core.MousePress, core.ButtonLeft},
		{tcell.Button1, core.MouseMotion, core.ButtonLeft},
		{tcell.ButtonNone, core.MouseRelease, core.ButtonLeft},
		{tcell.Button2, core.MousePress, core.ButtonRight},
		{tcell.ButtonNone, core.MouseRelease, core.ButtonRight},
		{tcell.WheelDown, core.MousePress, core.WheelDown},
	}

	for i, s := range steps {
		m := b.convertMouse(tcell.NewEventMouse(4, 2, s.btn, tcell.ModNone))
		if m.Action != s.action || m.Button != s.button {
			t.Errorf("step %d: expected %s %s, got %s %s", i, s.action, s.button, m.Action, m.Button)
		}
		if m.X != 4 || m.Y != 2 {
			t.Errorf("step %d: unexpected position (%d,%d)", i, m.X, m.Y)
		}
	}
}

func TestTcellResizeEvent(t *testing.T) {
	b := NewTcellBackendWithScreen(tcell.NewSimulationScreen("UTF-8"))

	var gotW, gotH int
	b.OnResize(func(w, h int) { gotW, gotH = w, h })

	ev, ok := b.convertEvent(tcell.NewEventResize(30, 12))
	if !ok || ev.Type != EventResize || ev.Width != 30 || ev.Height != 12 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if gotW != 30 || gotH != 12 {
		t.Errorf("resize handler got (%d, %d)", gotW, gotH)
	}
}

func TestTcellPostEvent(t *testing.T) {
	b, _ := newSimBackend(t)

	want := KeyEventOf(core.KeyEvent{Name: "F5"})
	if !b.PostEvent(want) {
		t.Fatal("post failed")
	}
	for {
		ev := b.PollEvent()
		if ev.Type == EventResize {
			continue
		}
		if ev.Type != EventKey || ev.Key.Name != "F5" {
			t.Errorf("expected posted F5, got %+v", ev)
		}
		break
	}
}
