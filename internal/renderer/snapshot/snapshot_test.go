package snapshot

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

func sampleBuffer(t *testing.T) *buffer.OptimizedBuffer {
	t.Helper()
	buf, err := buffer.New(6, 2)
	if err != nil {
		t.Fatal(err)
	}
	buf.DrawText("hi", 1, 0, core.RGB255(255, 200, 0), nil, core.AttrBold)
	buf.FillRect(4, 1, 2, 1, core.RGB255(0, 0, 255))
	return buf
}

func TestEncodeLayout(t *testing.T) {
	data, err := Encode(sampleBuffer(t))
	if err != nil {
		t.Fatal(err)
	}
	snap, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	if w, h := snap.Size(); w != 6 || h != 2 {
		t.Errorf("expected 6x2, got %dx%d", w, h)
	}
	lines := snap.Lines()
	if len(lines) != 2 || lines[0] != " hi   " || lines[1] != "      " {
		t.Errorf("unexpected lines %q", lines)
	}
	if got := snap.Line(0); got != " hi   " {
		t.Errorf("unexpected line 0 %q", got)
	}
	if got := snap.Line(5); got != "" {
		t.Errorf("missing line should be empty, got %q", got)
	}

	// two glyphs and two filled cells
	if n := snap.Query("cells.#").Int(); n != 4 {
		t.Errorf("expected 4 recorded cells, got %d", n)
	}
	if got := snap.Query(`cells.#(char=="i").x`).Int(); got != 2 {
		t.Errorf("expected 'i' at x=2, got %d", got)
	}
	if got := snap.Query("background").String(); got != "#000000" {
		t.Errorf("unexpected background %q", got)
	}
}

func TestCellLookup(t *testing.T) {
	data, err := Encode(sampleBuffer(t))
	if err != nil {
		t.Fatal(err)
	}
	snap, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		x, y int
		want core.Cell
		ok   bool
	}{
		{"glyph", 1, 0, core.NewCell("h", core.RGB255(255, 200, 0), core.Black).WithAttrs(core.AttrBold), true},
		{"fill", 5, 1, core.EmptyCell(core.RGB255(0, 0, 255)), true},
		{"unrecorded", 0, 1, core.EmptyCell(core.Black), true},
		{"outside", 6, 0, core.Cell{}, false},
		{"negative", -1, 0, core.Cell{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := snap.Cell(tt.x, tt.y)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Cell(%d, %d) = %+v, %v; expected %+v, %v", tt.x, tt.y, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestBufferRebuild(t *testing.T) {
	orig := sampleBuffer(t)
	data, err := Encode(orig)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := snap.Buffer()
	if err != nil {
		t.Fatal(err)
	}
	if !rebuilt.Equal(orig) {
		t.Errorf("rebuilt buffer differs:\n%s\nvs\n%s", rebuilt, orig)
	}
}

func TestParseRejects(t *testing.T) {
	for _, doc := range []string{
		`not json`,
		`{"width": 0, "height": 2, "lines": []}`,
		`{"width": 2, "height": 2}`,
	} {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidSnapshot) {
			t.Errorf("Parse(%s): expected ErrInvalidSnapshot, got %v", doc, err)
		}
	}
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.json")
	if err := WriteFile(path, sampleBuffer(t)); err != nil {
		t.Fatal(err)
	}
	snap, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := snap.Line(0); got != " hi   " {
		t.Errorf("unexpected line %q", got)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
