// Package snapshot dumps cell buffers to JSON and queries the dumps.
//
// A snapshot records the buffer size, its default background, the text of
// every row and each cell that differs from an empty background cell:
//
//	{
//	  "width": 10, "height": 2, "background": "#000000",
//	  "lines": ["hi        ", "          "],
//	  "cells": [{"x": 0, "y": 0, "char": "h", "fg": "#FFFFFF", "bg": "#000000", "attrs": 0}]
//	}
//
// Documents are built with sjson and read back with gjson, so callers can
// run ad hoc gjson queries against a frame in tests or when debugging.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

// ErrInvalidSnapshot is returned when a document is not a frame snapshot.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Encode serializes buf.
func Encode(buf *buffer.OptimizedBuffer) ([]byte, error) {
	width, height := buf.Size()
	bg := buf.DefaultBackground()
	empty := core.EmptyCell(bg)

	doc := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, value)
		}
	}

	set("width", width)
	set("height", height)
	set("background", bg.Hex())
	set("lines", []string{})
	set("cells", []any{})

	n := 0
	for y := 0; y < height; y++ {
		row := buf.Row(y)
		line := make([]byte, 0, len(row))
		for _, c := range row {
			line = append(line, c.Glyph()...)
		}
		set("lines."+strconv.Itoa(y), string(line))

		for x, c := range row {
			if c == empty {
				continue
			}
			prefix := "cells." + strconv.Itoa(n) + "."
			set(prefix+"x", x)
			set(prefix+"y", y)
			set(prefix+"char", c.Char)
			set(prefix+"fg", c.Fg.Hex())
			set(prefix+"bg", c.Bg.Hex())
			set(prefix+"attrs", int(c.Attrs))
			n++
		}
	}
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return doc, nil
}

// WriteFile encodes buf into the file at path.
func WriteFile(path string, buf *buffer.OptimizedBuffer) error {
	data, err := Encode(buf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Snapshot is a parsed frame dump.
type Snapshot struct {
	data []byte
}

// Parse validates data as a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidSnapshot)
	}
	res := gjson.GetManyBytes(data, "width", "height", "lines")
	if res[0].Int() <= 0 || res[1].Int() <= 0 || !res[2].IsArray() {
		return nil, fmt.Errorf("%w: missing size or lines", ErrInvalidSnapshot)
	}
	return &Snapshot{data: data}, nil
}

// ReadFile parses the snapshot stored at path.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data)
}

// Bytes returns the raw document.
func (s *Snapshot) Bytes() []byte {
	return s.data
}

// Size returns the recorded buffer size.
func (s *Snapshot) Size() (width, height int) {
	res := gjson.GetManyBytes(s.data, "width", "height")
	return int(res[0].Int()), int(res[1].Int())
}

// Line returns the text of row y, or "" outside the buffer.
func (s *Snapshot) Line(y int) string {
	return gjson.GetBytes(s.data, "lines."+strconv.Itoa(y)).String()
}

// Lines returns the text of every row.
func (s *Snapshot) Lines() []string {
	var lines []string
	gjson.GetBytes(s.data, "lines").ForEach(func(_, v gjson.Result) bool {
		lines = append(lines, v.String())
		return true
	})
	return lines
}

// Query runs a gjson path against the document.
func (s *Snapshot) Query(path string) gjson.Result {
	return gjson.GetBytes(s.data, path)
}

// Cell returns the cell at (x, y). Cells not recorded in the snapshot are
// empty background cells; ok is false outside the buffer.
func (s *Snapshot) Cell(x, y int) (core.Cell, bool) {
	w, h := s.Size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return core.Cell{}, false
	}
	var (
		found core.Cell
		ok    = true
		hit   bool
	)
	s.Query("cells.#(y==" + strconv.Itoa(y) + ")#").ForEach(func(_, v gjson.Result) bool {
		if int(v.Get("x").Int()) != x {
			return true
		}
		c, err := decodeCell(v)
		found, ok, hit = c, err == nil, true
		return false
	})
	if !hit {
		return core.EmptyCell(s.background()), true
	}
	return found, ok
}

func (s *Snapshot) background() core.RGBA {
	bg, err := core.ParseHex(gjson.GetBytes(s.data, "background").String())
	if err != nil {
		return core.Black
	}
	return bg
}

func decodeCell(res gjson.Result) (core.Cell, error) {
	fields := res.Get(`[char,fg,bg,attrs]`).Array()
	if len(fields) != 4 {
		return core.Cell{}, ErrInvalidSnapshot
	}
	fg, err := core.ParseHex(fields[1].String())
	if err != nil {
		return core.Cell{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	bg, err := core.ParseHex(fields[2].String())
	if err != nil {
		return core.Cell{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return core.Cell{
		Char:  fields[0].String(),
		Fg:    fg,
		Bg:    bg,
		Attrs: core.Attribute(fields[3].Uint()),
	}, nil
}

// Buffer rebuilds a buffer from the snapshot.
func (s *Snapshot) Buffer() (*buffer.OptimizedBuffer, error) {
	w, h := s.Size()
	buf, err := buffer.New(w, h, buffer.WithBackground(s.background()))
	if err != nil {
		return nil, err
	}
	var cellErr error
	gjson.GetBytes(s.data, "cells").ForEach(func(_, v gjson.Result) bool {
		c, err := decodeCell(v)
		if err != nil {
			cellErr = err
			return false
		}
		buf.SetCell(int(v.Get("x").Int()), int(v.Get("y").Int()), c)
		return true
	})
	if cellErr != nil {
		return nil, cellErr
	}
	buf.ResetDirtyRows()
	return buf, nil
}
