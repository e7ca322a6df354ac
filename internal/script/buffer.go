package script

import (
	"strings"

	"github.com/rivo/uniseg"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termframe/internal/renderer/buffer"
	"github.com/dshills/termframe/internal/renderer/core"
)

const bufferTypeName = "termframe.buffer"

// target is the Go side of a Lua buffer handle. buf is cleared when the
// paint call returns.
type target struct {
	buf *buffer.OptimizedBuffer
}

var bufferMethods = map[string]lua.LGFunction{
	"size":     bufSize,
	"drawText": bufDrawText,
	"fillRect": bufFillRect,
	"setCell":  bufSetCell,
	"drawBox":  bufDrawBox,
	"blend":    bufBlend,
}

// registerBufferType installs the buffer metatable and the termframe
// helper module.
func registerBufferType(L *lua.LState) {
	mt := L.NewTypeMetatable(bufferTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), bufferMethods))

	L.SetGlobal("termframe", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"width": strWidth,
		"rgb":   rgbHex,
	}))
}

func newBufferHandle(L *lua.LState, t *target) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = t
	L.SetMetatable(ud, L.GetTypeMetatable(bufferTypeName))
	return ud
}

func checkBuffer(L *lua.LState) *buffer.OptimizedBuffer {
	ud := L.CheckUserData(1)
	t, ok := ud.Value.(*target)
	if !ok {
		L.ArgError(1, "buffer expected")
		return nil
	}
	if t.buf == nil {
		L.RaiseError("%v", ErrBufferExpired)
		return nil
	}
	return t.buf
}

func checkColor(L *lua.LState, n int) core.RGBA {
	c, err := core.ParseHex(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return c
}

// optColor returns nil when argument n is absent or nil.
func optColor(L *lua.LState, n int) *core.RGBA {
	if L.Get(n) == lua.LNil {
		return nil
	}
	c := checkColor(L, n)
	return &c
}

var attrNames = map[string]core.Attribute{
	"bold":          core.AttrBold,
	"dim":           core.AttrDim,
	"italic":        core.AttrItalic,
	"underline":     core.AttrUnderline,
	"blink":         core.AttrBlink,
	"inverse":       core.AttrInverse,
	"strikethrough": core.AttrStrikethrough,
}

// optAttrs parses a comma separated attribute list such as "bold,italic".
func optAttrs(L *lua.LState, n int) core.Attribute {
	var attrs core.Attribute
	spec := L.OptString(n, "")
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		a, ok := attrNames[name]
		if !ok {
			L.ArgError(n, "unknown attribute "+name)
		}
		attrs |= a
	}
	return attrs
}

// buf:size() -> width, height
func bufSize(L *lua.LState) int {
	buf := checkBuffer(L)
	w, h := buf.Size()
	L.Push(lua.LNumber(w))
	L.Push(lua.LNumber(h))
	return 2
}

// buf:drawText(text, x, y, fg [, bg [, attrs]]) -> cells written
func bufDrawText(L *lua.LState) int {
	buf := checkBuffer(L)
	text := L.CheckString(2)
	x, y := L.CheckInt(3), L.CheckInt(4)
	fg := checkColor(L, 5)
	bg := optColor(L, 6)
	attrs := optAttrs(L, 7)
	L.Push(lua.LNumber(buf.DrawText(text, x, y, fg, bg, attrs)))
	return 1
}

// buf:fillRect(x, y, w, h, bg)
func bufFillRect(L *lua.LState) int {
	buf := checkBuffer(L)
	x, y := L.CheckInt(2), L.CheckInt(3)
	w, h := L.CheckInt(4), L.CheckInt(5)
	buf.FillRect(x, y, w, h, checkColor(L, 6))
	return 0
}

// buf:setCell(x, y, char, fg, bg [, attrs])
func bufSetCell(L *lua.LState) int {
	buf := checkBuffer(L)
	x, y := L.CheckInt(2), L.CheckInt(3)
	char := L.CheckString(4)
	if uniseg.GraphemeClusterCount(char) > 1 {
		L.ArgError(4, "one grapheme cluster expected")
	}
	if core.HasControl(char) {
		L.ArgError(4, "control characters are not allowed")
	}
	c := core.NewCell(char, checkColor(L, 5), checkColor(L, 6)).WithAttrs(optAttrs(L, 7))
	if buf.RespectAlpha() {
		buf.SetCellWithAlphaBlending(x, y, c)
	} else {
		buf.SetCell(x, y, c)
	}
	return 0
}

// buf:drawBox(x, y, w, h, fg, bg [, style [, title]])
func bufDrawBox(L *lua.LState) int {
	buf := checkBuffer(L)
	opts := buffer.BoxOptions{
		Rect: core.NewRect(L.CheckInt(2), L.CheckInt(3), L.CheckInt(4), L.CheckInt(5)),
		Fg:   checkColor(L, 6),
		Bg:   checkColor(L, 7),
	}
	if name := L.OptString(8, ""); name != "" {
		style, ok := core.ParseBorderStyle(name)
		if !ok {
			L.ArgError(8, "unknown border style "+name)
		}
		opts.Style = style
	}
	opts.Title = L.OptString(9, "")
	buf.DrawBox(opts)
	return 0
}

// buf:blend(x, y, color)
func bufBlend(L *lua.LState) int {
	buf := checkBuffer(L)
	buf.BlendColor(L.CheckInt(2), L.CheckInt(3), checkColor(L, 4))
	return 0
}

// termframe.width(s) -> grapheme clusters in s
func strWidth(L *lua.LState) int {
	L.Push(lua.LNumber(uniseg.GraphemeClusterCount(L.CheckString(1))))
	return 1
}

// termframe.rgb(r, g, b [, a]) -> hex color string
func rgbHex(L *lua.LState) int {
	c := core.RGBA255(channel(L, 1), channel(L, 2), channel(L, 3), uint8(L.OptInt(4, 255)))
	L.Push(lua.LString(c.Hex()))
	return 1
}

func channel(L *lua.LState, n int) uint8 {
	v := L.CheckInt(n)
	if v < 0 || v > 255 {
		L.ArgError(n, "channel out of range")
	}
	return uint8(v)
}
