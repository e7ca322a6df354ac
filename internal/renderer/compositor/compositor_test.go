package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

// recordingFlusher keeps every frame it receives.
type recordingFlusher struct {
	frames []Frame
	err    error
}

func (r *recordingFlusher) Flush(f Frame) error {
	r.frames = append(r.frames, f)
	return r.err
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func paintScene(b *buffer.OptimizedBuffer, label string) {
	b.Clear(core.Black)
	b.FillRect(1, 1, 3, 2, core.Blue)
	b.DrawText(label, 0, 0, core.White, nil, core.AttrNone)
}

func mustNew(t *testing.T, w, h int, opts ...Option) *Compositor {
	t.Helper()
	c, err := New(w, h, core.Black, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(0, 3, core.Black); !errors.Is(err, buffer.ErrInvalidDimensions) {
		t.Errorf("expected ErrInvalidDimensions, got %v", err)
	}
}

func TestFirstFrameIsFull(t *testing.T) {
	c := mustNew(t, 3, 2)

	runs := c.Diff()
	if len(runs) != 2 {
		t.Fatalf("expected one run per row, got %d", len(runs))
	}
	if CellCount(runs) != 6 {
		t.Errorf("expected all 6 cells, got %d", CellCount(runs))
	}
	for i, r := range runs {
		if r.Y != i || r.X != 0 || len(r.Cells) != 3 {
			t.Errorf("unexpected run %d: %+v", i, r)
		}
	}
}

func TestDiffRoundTrip(t *testing.T) {
	c := mustNew(t, 8, 4)
	if err := c.DiffAndFlush(nil); err != nil {
		t.Fatal(err)
	}

	paintScene(c.Back(), "hello")
	c.Back().SetCell(7, 3, core.NewCell("z", core.Red, core.Green))

	reconstructed := c.Front().Clone()
	Apply(reconstructed, c.Diff())

	if !reconstructed.Equal(c.Back()) {
		t.Errorf("front + diff should equal back\nwant:\n%s\ngot:\n%s", c.Back(), reconstructed)
	}
}

func TestDiffRunsAreMaximal(t *testing.T) {
	c := mustNew(t, 6, 1)
	c.DiffAndFlush(nil)

	c.Back().SetCell(1, 0, core.NewCell("a", core.White, core.Black))
	c.Back().SetCell(2, 0, core.NewCell("b", core.White, core.Black))
	c.Back().SetCell(4, 0, core.NewCell("c", core.White, core.Black))

	runs := c.Diff()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %+v", runs)
	}
	if runs[0].X != 1 || len(runs[0].Cells) != 2 {
		t.Errorf("unexpected first run %+v", runs[0])
	}
	if runs[1].X != 4 || len(runs[1].Cells) != 1 {
		t.Errorf("unexpected second run %+v", runs[1])
	}
}

func TestDiffDoesNotAlias(t *testing.T) {
	c := mustNew(t, 2, 1)
	runs := c.Diff()

	c.Back().SetCell(0, 0, core.NewCell("x", core.White, core.Black))
	if runs[0].Cells[0].Char == "x" {
		t.Error("run cells must not alias the back buffer")
	}
}

func TestSwapSymmetry(t *testing.T) {
	c := mustNew(t, 4, 2)
	a, b := c.Back(), c.Front()

	c.DiffAndFlush(nil)
	if c.Front() != a || c.Back() != b {
		t.Fatal("first flush should swap buffers")
	}
	c.DiffAndFlush(nil)
	if c.Front() != b || c.Back() != a {
		t.Fatal("second flush should swap back")
	}
}

func TestRepaintSameSceneIsEmpty(t *testing.T) {
	c := mustNew(t, 6, 3)
	paintScene(c.Back(), "ab")
	c.DiffAndFlush(nil)

	paintScene(c.Back(), "ab")
	if runs := c.Diff(); len(runs) != 0 {
		t.Errorf("expected no changes, got %+v", runs)
	}

	paintScene(c.Back(), "ac")
	runs := c.Diff()
	if len(runs) != 1 || runs[0].X != 1 || runs[0].Cells[0].Char != "c" {
		t.Errorf("expected single changed cell, got %+v", runs)
	}
}

func TestResizeForcesFullRepaint(t *testing.T) {
	c := mustNew(t, 3, 3)
	rec := &recordingFlusher{}
	c.DiffAndFlush(rec)
	c.DiffAndFlush(rec)

	if err := c.Resize(4, 5); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if w, h := c.Size(); w != 4 || h != 5 {
		t.Fatalf("expected 4x5, got %dx%d", w, h)
	}
	if fw, fh := c.Front().Size(); fw != 4 || fh != 5 {
		t.Fatalf("front should be resized too, got %dx%d", fw, fh)
	}

	c.DiffAndFlush(rec)
	last := rec.frames[len(rec.frames)-1]
	if !last.Full || CellCount(last.Runs) != 20 {
		t.Errorf("expected full frame of 20 cells, got full=%v cells=%d", last.Full, CellCount(last.Runs))
	}
	if rec.frames[1].Full || len(rec.frames[1].Runs) != 0 {
		t.Errorf("steady state frame should be empty: %+v", rec.frames[1])
	}
}

func TestResizeInvalid(t *testing.T) {
	c := mustNew(t, 3, 3)
	if err := c.Resize(-1, 2); !errors.Is(err, buffer.ErrInvalidDimensions) {
		t.Fatalf("expected ErrInvalidDimensions, got %v", err)
	}
	if w, h := c.Size(); w != 3 || h != 3 {
		t.Errorf("failed resize must not mutate, got %dx%d", w, h)
	}
}

func TestFlushErrorStillSwaps(t *testing.T) {
	c := mustNew(t, 3, 1)
	enc := NewANSIEncoder(failingWriter{}, ColorModeTrueColor)
	painted := c.Back()

	err := c.DiffAndFlush(enc)

	var fe *FlushError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FlushError, got %v", err)
	}
	if fe.Frame != 1 {
		t.Errorf("expected frame 1, got %d", fe.Frame)
	}
	if c.Front() != painted {
		t.Error("buffers must be swapped even when the flush fails")
	}
	if CellCount(c.Diff()) != 3 {
		t.Error("a failed flush should force a full repaint")
	}
}

func TestDirtyRowIndexMatchesFullScan(t *testing.T) {
	plain := mustNew(t, 10, 6)
	indexed := mustNew(t, 10, 6, WithDirtyRows(true))

	frames := []func(b *buffer.OptimizedBuffer){
		func(b *buffer.OptimizedBuffer) { paintScene(b, "one") },
		func(b *buffer.OptimizedBuffer) { paintScene(b, "one") },
		func(b *buffer.OptimizedBuffer) { paintScene(b, "two"); b.DrawText("x", 4, 5, core.Red, nil, core.AttrBold) },
		func(b *buffer.OptimizedBuffer) { paintScene(b, "two") },
		func(b *buffer.OptimizedBuffer) { b.Clear(core.Black) },
		func(b *buffer.OptimizedBuffer) { b.Clear(core.Black) },
	}

	for i, paint := range frames {
		paint(plain.Back())
		paint(indexed.Back())

		want, got := plain.Diff(), indexed.Diff()
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("frame %d: indexed diff differs\nwant %+v\ngot  %+v", i, want, got)
		}
		plain.DiffAndFlush(nil)
		indexed.DiffAndFlush(nil)
		if !plain.Front().Equal(indexed.Front()) {
			t.Fatalf("frame %d: fronts diverged", i)
		}
	}
}

func TestANSIEncoderDeterministic(t *testing.T) {
	c := mustNew(t, 3, 1)
	c.Back().SetCell(0, 0, core.NewCell("a", core.White, core.Black))
	c.Back().SetCell(1, 0, core.NewCell("b", core.Red, core.Black))
	c.Back().SetCell(2, 0, core.NewCell("c", core.Red, core.Black).WithAttrs(core.AttrBold))

	var out bytes.Buffer
	enc := NewANSIEncoder(&out, ColorModeTrueColor)
	if err := c.DiffAndFlush(enc); err != nil {
		t.Fatal(err)
	}

	want := "\x1b[1;1H" +
		"\x1b[0;38;2;255;255;255;48;2;0;0;0ma" +
		"\x1b[38;2;255;0;0mb" +
		"\x1b[0;1;38;2;255;0;0;48;2;0;0;0mc" +
		"\x1b[0m"
	if got := out.String(); got != want {
		t.Errorf("unexpected output\nwant %q\ngot  %q", want, got)
	}

	// Same input must produce the same bytes.
	c2 := mustNew(t, 3, 1)
	c2.Back().SetCell(0, 0, core.NewCell("a", core.White, core.Black))
	c2.Back().SetCell(1, 0, core.NewCell("b", core.Red, core.Black))
	c2.Back().SetCell(2, 0, core.NewCell("c", core.Red, core.Black).WithAttrs(core.AttrBold))
	var out2 bytes.Buffer
	c2.DiffAndFlush(NewANSIEncoder(&out2, ColorModeTrueColor))
	if out2.String() != want {
		t.Error("encoding should be deterministic")
	}
}

func TestANSIEncoderCursorPerRun(t *testing.T) {
	c := mustNew(t, 5, 3)
	c.DiffAndFlush(nil)
	c.Back().SetCell(2, 1, core.NewCell("x", core.White, core.Black))
	c.Back().SetCell(4, 2, core.NewCell("y", core.White, core.Black))

	var out bytes.Buffer
	c.DiffAndFlush(NewANSIEncoder(&out, ColorModeTrueColor))

	// style carries across runs within a frame
	want := "\x1b[2;3H\x1b[0;38;2;255;255;255;48;2;0;0;0mx" +
		"\x1b[3;5Hy\x1b[0m"
	if got := out.String(); got != want {
		t.Errorf("unexpected output\nwant %q\ngot  %q", want, got)
	}
}

func TestANSIEncoderNeverWritesControlGlyphs(t *testing.T) {
	var cells []core.Cell
	for _, r := range "\x1b]0;title\a\x9b" {
		cells = append(cells, core.NewCell(string(r), core.White, core.Black))
	}
	frame := Frame{Width: len(cells), Height: 1, Runs: []Run{{X: 0, Y: 0, Cells: cells}}}

	var out bytes.Buffer
	if err := NewANSIEncoder(&out, ColorModeTrueColor).Flush(frame); err != nil {
		t.Fatal(err)
	}

	want := "\x1b[1;1H\x1b[0;38;2;255;255;255;48;2;0;0;0m" +
		" ]0;title  \x1b[0m"
	if got := out.String(); got != want {
		t.Errorf("unexpected output\nwant %q\ngot  %q", want, got)
	}
}

func TestANSIEncoderEmptyFrameWritesNothing(t *testing.T) {
	var out bytes.Buffer
	enc := NewANSIEncoder(&out, ColorModeTrueColor)
	if err := enc.Flush(Frame{Width: 2, Height: 2}); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestANSIEncoder256(t *testing.T) {
	var out bytes.Buffer
	enc := NewANSIEncoder(&out, ColorMode256)
	err := enc.Flush(Frame{Width: 1, Height: 1, Runs: []Run{{
		Cells: []core.Cell{core.EmptyCell(core.Red)},
	}}})
	if err != nil {
		t.Fatal(err)
	}

	want := "\x1b[1;1H\x1b[0;38;5;231;48;5;196m \x1b[0m"
	if got := out.String(); got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestTo256(t *testing.T) {
	tests := []struct {
		c    core.RGBA
		want uint8
	}{
		{core.Black, 16},
		{core.White, 231},
		{core.Red, 196},
		{core.RGB255(0, 255, 0), 46},
		{core.RGB255(128, 128, 128), 244},
		{core.RGB255(95, 135, 175), 67},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.c), func(t *testing.T) {
			if got := To256(tt.c); got != tt.want {
				t.Errorf("To256(%s) = %d, want %d", tt.c, got, tt.want)
			}
		})
	}
}

func TestParseColorMode(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}

	tests := []struct {
		in      string
		env     map[string]string
		want    ColorMode
		wantErr bool
	}{
		{"truecolor", nil, ColorModeTrueColor, false},
		{"256", nil, ColorMode256, false},
		{"auto", map[string]string{"COLORTERM": "truecolor"}, ColorModeTrueColor, false},
		{"auto", map[string]string{"TERM": "xterm-256color"}, ColorMode256, false},
		{"", map[string]string{"TERM": "xterm-direct"}, ColorModeTrueColor, false},
		{"sixteen", nil, ColorModeTrueColor, true},
	}

	for _, tt := range tests {
		got, err := ParseColorMode(tt.in, env(tt.env))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColorMode(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseColorMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
