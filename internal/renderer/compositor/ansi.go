package compositor

import (
	"bufio"
	"io"
	"sync"

	"github.com/dshills/termframe/internal/renderer/core"
)

// Pre-allocated sequence fragments.
var (
	csi      = []byte("\x1b[")
	csiReset = []byte("\x1b[0m")
	fgRGB    = []byte("38;2;")
	bgRGB    = []byte("48;2;")
	fg256    = []byte("38;5;")
	bg256    = []byte("48;5;")
)

// sgrAttrs maps attributes to their SGR parameter, in emission order.
var sgrAttrs = []struct {
	attr core.Attribute
	code byte
}{
	{core.AttrBold, '1'},
	{core.AttrDim, '2'},
	{core.AttrItalic, '3'},
	{core.AttrUnderline, '4'},
	{core.AttrBlink, '5'},
	{core.AttrInverse, '7'},
	{core.AttrStrikethrough, '9'},
}

// ANSIEncoder writes frames as VT escape sequences.
// Each run gets one absolute cursor move; SGR is emitted only when the
// style differs from the previously written cell. Every frame ends with
// an SGR reset so the terminal is left in a known state.
type ANSIEncoder struct {
	mu   sync.Mutex
	out  io.Writer
	w    *bufio.Writer
	mode ColorMode

	lastFg, lastBg core.RGBA
	lastAttrs      core.Attribute
	lastValid      bool
}

// NewANSIEncoder creates an encoder writing to w.
func NewANSIEncoder(w io.Writer, mode ColorMode) *ANSIEncoder {
	return &ANSIEncoder{
		out:  w,
		w:    bufio.NewWriterSize(w, 128*1024),
		mode: mode,
	}
}

// Mode returns the color mode.
func (e *ANSIEncoder) Mode() ColorMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode changes the color mode for subsequent frames.
func (e *ANSIEncoder) SetMode(mode ColorMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
}

// Flush implements Flusher.
func (e *ANSIEncoder) Flush(frame Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(frame.Runs) == 0 {
		return nil
	}

	e.lastValid = false
	w := e.w
	for _, run := range frame.Runs {
		writeCursorPos(w, run.X, run.Y)
		for _, c := range run.Cells {
			e.writeStyle(w, c)
			w.WriteString(c.Glyph())
		}
	}
	w.Write(csiReset)
	e.lastValid = false

	if err := w.Flush(); err != nil {
		// bufio keeps the first error forever; start clean next frame
		w.Reset(e.out)
		return err
	}
	return nil
}

// writeStyle emits the SGR needed to move from the last style to c's.
func (e *ANSIEncoder) writeStyle(w *bufio.Writer, c core.Cell) {
	fgChanged := !e.lastValid || c.Fg != e.lastFg
	bgChanged := !e.lastValid || c.Bg != e.lastBg
	attrChanged := !e.lastValid || c.Attrs != e.lastAttrs

	if !fgChanged && !bgChanged && !attrChanged {
		return
	}

	w.Write(csi)
	if attrChanged {
		// attributes can only be cleared by a reset
		w.WriteByte('0')
		for _, a := range sgrAttrs {
			if c.Attrs.Has(a.attr) {
				w.WriteByte(';')
				w.WriteByte(a.code)
			}
		}
		w.WriteByte(';')
		e.writeColor(w, c.Fg, true)
		w.WriteByte(';')
		e.writeColor(w, c.Bg, false)
	} else {
		if fgChanged {
			e.writeColor(w, c.Fg, true)
		}
		if fgChanged && bgChanged {
			w.WriteByte(';')
		}
		if bgChanged {
			e.writeColor(w, c.Bg, false)
		}
	}
	w.WriteByte('m')

	e.lastFg = c.Fg
	e.lastBg = c.Bg
	e.lastAttrs = c.Attrs
	e.lastValid = true
}

// writeColor writes color parameters without CSI prefix or 'm' suffix.
func (e *ANSIEncoder) writeColor(w *bufio.Writer, c core.RGBA, fg bool) {
	if e.mode == ColorMode256 {
		if fg {
			w.Write(fg256)
		} else {
			w.Write(bg256)
		}
		writeInt(w, int(To256(c)))
		return
	}

	if fg {
		w.Write(fgRGB)
	} else {
		w.Write(bgRGB)
	}
	r, g, b, _ := c.To8Bit()
	writeInt(w, int(r))
	w.WriteByte(';')
	writeInt(w, int(g))
	w.WriteByte(';')
	writeInt(w, int(b))
}

// writeInt writes a non-negative integer without allocating.
func writeInt(w *bufio.Writer, n int) {
	if n < 0 {
		n = 0
	}
	if n < 10 {
		w.WriteByte(byte(n) + '0')
		return
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte(n%10) + '0'
		n /= 10
	}
	w.Write(buf[i:])
}

// writeCursorPos writes CSI row;col H for a 0-indexed position.
func writeCursorPos(w *bufio.Writer, x, y int) {
	w.Write(csi)
	writeInt(w, y+1)
	w.WriteByte(';')
	writeInt(w, x+1)
	w.WriteByte('H')
}
