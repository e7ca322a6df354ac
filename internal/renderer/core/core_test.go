package core

import (
	"testing"
)

func TestRGB255(t *testing.T) {
	c := RGB255(255, 128, 0)

	r, g, b, a := c.To8Bit()
	if r != 255 || g != 128 || b != 0 || a != 255 {
		t.Errorf("expected (255,128,0,255), got (%d,%d,%d,%d)", r, g, b, a)
	}
	if !c.IsOpaque() {
		t.Error("RGB255 color should be opaque")
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		hex        string
		r, g, b, a uint8
		wantErr    bool
	}{
		{"#FF8040", 255, 128, 64, 255, false},
		{"#ff8040", 255, 128, 64, 255, false},
		{"FF8040", 255, 128, 64, 255, false},
		{"#FFF", 255, 255, 255, 255, false},
		{"#000", 0, 0, 0, 255, false},
		{"#FF804080", 255, 128, 64, 128, false},
		{"invalid", 0, 0, 0, 0, true},
		{"#GGG", 0, 0, 0, 0, true},
		{"#12345", 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			c, err := ParseHex(tt.hex)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.hex)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			r, g, b, a := c.To8Bit()
			if r != tt.r || g != tt.g || b != tt.b || a != tt.a {
				t.Errorf("expected (%d,%d,%d,%d), got (%d,%d,%d,%d)", tt.r, tt.g, tt.b, tt.a, r, g, b, a)
			}
		})
	}
}

func TestRGBAHex(t *testing.T) {
	if got := RGB255(1, 2, 3).Hex(); got != "#010203" {
		t.Errorf("expected #010203, got %s", got)
	}
	if got := RGBA255(1, 2, 3, 4).Hex(); got != "#01020304" {
		t.Errorf("expected #01020304, got %s", got)
	}
}

func TestOverOpaqueReplaces(t *testing.T) {
	src := RGBA{R: 0.2, G: 0.4, B: 0.6, A: 1}
	dst := RGBA{R: 0.9, G: 0.9, B: 0.9, A: 1}

	got := src.Over(dst)
	if got != src {
		t.Errorf("opaque over should replace: got %+v", got)
	}
}

func TestOverTransparentKeeps(t *testing.T) {
	src := RGBA{R: 0.2, G: 0.4, B: 0.6, A: 0}
	dst := RGBA{R: 0.9, G: 0.1, B: 0.3, A: 0.5}

	got := src.Over(dst)
	if got != dst {
		t.Errorf("transparent over should keep dst: got %+v", got)
	}
}

func TestOverHalf(t *testing.T) {
	src := RGBA{R: 1, G: 0, B: 0, A: 0.5}
	dst := RGBA{R: 0, G: 0, B: 1, A: 1}

	got := src.Over(dst)
	if got.R != 0.5 || got.G != 0 || got.B != 0.5 || got.A != 1 {
		t.Errorf("unexpected blend result %+v", got)
	}
}

func TestLerp(t *testing.T) {
	got := Black.Lerp(White, 0.5)
	r, g, b, _ := got.To8Bit()
	if r != 128 || g != 128 || b != 128 {
		t.Errorf("expected mid gray, got (%d,%d,%d)", r, g, b)
	}
	if Black.Lerp(White, 0) != Black {
		t.Error("lerp 0 should return the receiver")
	}
}

func TestAttribute(t *testing.T) {
	a := AttrNone.With(AttrBold).With(AttrInverse)
	if !a.Has(AttrBold) || !a.Has(AttrInverse) {
		t.Error("expected bold and inverse")
	}
	if a.Has(AttrItalic) {
		t.Error("italic should not be set")
	}
	a = a.Without(AttrBold)
	if a.Has(AttrBold) {
		t.Error("bold should be removed")
	}
}

func TestCellEquality(t *testing.T) {
	a := NewCell("x", White, Black).WithAttrs(AttrBold)
	b := NewCell("x", White, Black).WithAttrs(AttrBold)
	if a != b {
		t.Error("structurally equal cells should compare equal")
	}
	if a == b.WithChar("y") {
		t.Error("cells with different chars should differ")
	}
}

func TestEmptyCellGlyph(t *testing.T) {
	c := EmptyCell(Blue)
	if !c.IsEmpty() {
		t.Error("EmptyCell should be empty")
	}
	if c.Glyph() != " " {
		t.Errorf("empty cell should render as space, got %q", c.Glyph())
	}
	if c.Fg != DefaultFg || c.Bg != Blue {
		t.Errorf("unexpected colors %+v", c)
	}
}

func TestRectIntersection(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{"overlap", NewRect(0, 0, 10, 10), NewRect(5, 5, 10, 10), NewRect(5, 5, 5, 5)},
		{"contained", NewRect(0, 0, 10, 10), NewRect(2, 3, 2, 2), NewRect(2, 3, 2, 2)},
		{"disjoint", NewRect(0, 0, 2, 2), NewRect(5, 5, 2, 2), Rect{}},
		{"empty", NewRect(0, 0, 0, 5), NewRect(0, 0, 5, 5), Rect{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersection(tt.b); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestRectContains(t *testing.T) {
	r := NewRect(2, 2, 3, 3)
	if !r.Contains(2, 2) || !r.Contains(4, 4) {
		t.Error("corners should be inside")
	}
	if r.Contains(5, 2) || r.Contains(2, 5) || r.Contains(1, 2) {
		t.Error("exclusive edges should be outside")
	}
}

func TestRectUnion(t *testing.T) {
	got := NewRect(0, 0, 2, 2).Union(NewRect(4, 4, 2, 2))
	if got != NewRect(0, 0, 6, 6) {
		t.Errorf("unexpected union %+v", got)
	}
	if got := (Rect{}).Union(NewRect(1, 1, 1, 1)); got != NewRect(1, 1, 1, 1) {
		t.Errorf("union with empty should return other, got %+v", got)
	}
}

func TestBorderStyles(t *testing.T) {
	for _, name := range []string{"single", "double", "rounded", "heavy", "ascii"} {
		style, ok := ParseBorderStyle(name)
		if !ok {
			t.Errorf("expected %q to parse", name)
		}
		if style.String() != name {
			t.Errorf("round trip mismatch for %q: %q", name, style.String())
		}
		if style.Chars().Horizontal == "" {
			t.Errorf("style %q has no glyphs", name)
		}
	}
	if _, ok := ParseBorderStyle("dotted"); ok {
		t.Error("unknown style should not parse")
	}
	if BorderStyle(99).Chars() != BorderSingle.Chars() {
		t.Error("unknown style should fall back to single")
	}
}

func TestControlGlyphs(t *testing.T) {
	tests := []struct {
		char string
		want bool
	}{
		{"a", false},
		{"é", false},
		{"👍🏽", false},
		{"\x1b", true},
		{"\x7f", true},
		{"\u009b", true},
		{"a\x07", true},
	}
	for _, tt := range tests {
		if got := HasControl(tt.char); got != tt.want {
			t.Errorf("HasControl(%q) = %v", tt.char, got)
		}
		c := NewCell(tt.char, White, Black)
		if tt.want && c.Glyph() != " " {
			t.Errorf("%q should render as a space, got %q", tt.char, c.Glyph())
		}
	}
}
