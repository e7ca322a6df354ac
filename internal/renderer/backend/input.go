package backend

import (
	"strconv"
	"unicode/utf8"

	"github.com/dshills/termframe/internal/renderer/core"
)

// maxSequenceLen bounds how far a CSI sequence is scanned for its final
// byte before the bytes are discarded as garbage.
const maxSequenceLen = 32

// Decoder turns raw terminal input bytes into key and mouse events.
// Incomplete sequences are held until more bytes arrive. A Decoder is not
// safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends data to the pending input and returns every event that can
// be fully decoded.
func (d *Decoder) Feed(data []byte) []Event {
	d.buf = append(d.buf, data...)

	var out []Event
	i := 0
	for i < len(d.buf) {
		n, ev, ok := decode(d.buf[i:])
		if n == 0 {
			break
		}
		if ok {
			out = append(out, ev)
		}
		i += n
	}
	d.buf = append(d.buf[:0], d.buf[i:]...)
	return out
}

// Pending reports whether an incomplete sequence is buffered.
func (d *Decoder) Pending() bool {
	return len(d.buf) > 0
}

// Flush resolves buffered input after the escape timeout. A lone ESC is
// reported as the Escape key; anything else still incomplete is dropped.
func (d *Decoder) Flush() []Event {
	if len(d.buf) == 0 {
		return nil
	}
	var out []Event
	if d.buf[0] == 0x1b {
		out = append(out, KeyEventOf(core.KeyEvent{Name: "Escape", Raw: "\x1b"}))
		rest := append([]byte(nil), d.buf[1:]...)
		d.buf = d.buf[:0]
		out = append(out, d.Feed(rest)...)
	}
	d.buf = d.buf[:0]
	return out
}

// decode decodes one event from the front of b. n is the number of bytes
// consumed (0 means more input is needed); ok is false for consumed bytes
// that produce no event.
func decode(b []byte) (n int, ev Event, ok bool) {
	c := b[0]
	switch {
	case c == 0x1b:
		return decodeEscape(b)
	case c < 0x20:
		return 1, KeyEventOf(controlKey(c)), true
	case c == 0x7f:
		return 1, KeyEventOf(core.KeyEvent{Name: "Backspace", Raw: "\x7f"}), true
	case c < 0x80:
		return 1, KeyEventOf(runeKey(rune(c))), true
	}

	if !utf8.FullRune(b) {
		return 0, Event{}, false
	}
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError && size <= 1 {
		return 1, Event{}, false
	}
	k := runeKey(r)
	k.Raw = string(b[:size])
	return size, KeyEventOf(k), true
}

func runeKey(r rune) core.KeyEvent {
	k := core.KeyEvent{Name: string(r), Rune: r, Raw: string(r)}
	if r == ' ' {
		k.Name = "Space"
	}
	return k
}

// controlKey maps C0 control bytes to keys.
func controlKey(c byte) core.KeyEvent {
	raw := string([]byte{c})
	switch c {
	case 0x00:
		return core.KeyEvent{Name: "Space", Ctrl: true, Raw: raw}
	case 0x08:
		return core.KeyEvent{Name: "Backspace", Raw: raw}
	case 0x09:
		return core.KeyEvent{Name: "Tab", Raw: raw}
	case 0x0a, 0x0d:
		return core.KeyEvent{Name: "Enter", Raw: raw}
	case 0x1b:
		return core.KeyEvent{Name: "Escape", Raw: raw}
	case 0x1c:
		return core.KeyEvent{Name: "\\", Ctrl: true, Raw: raw}
	case 0x1d:
		return core.KeyEvent{Name: "]", Ctrl: true, Raw: raw}
	case 0x1e:
		return core.KeyEvent{Name: "^", Ctrl: true, Raw: raw}
	case 0x1f:
		return core.KeyEvent{Name: "_", Ctrl: true, Raw: raw}
	}
	return core.KeyEvent{Name: string(rune('a' + c - 1)), Ctrl: true, Raw: raw}
}

func decodeEscape(b []byte) (int, Event, bool) {
	if len(b) < 2 {
		return 0, Event{}, false
	}
	switch b[1] {
	case '[':
		return decodeCSI(b)
	case 'O':
		return decodeSS3(b)
	case 0x1b:
		return 2, KeyEventOf(core.KeyEvent{Name: "Escape", Alt: true, Raw: "\x1b\x1b"}), true
	}

	// ESC prefix is Alt on the following key
	n, ev, ok := decode(b[1:])
	if n == 0 || !ok {
		return n + boolInt(n > 0), ev, false
	}
	ev.Key.Alt = true
	ev.Key.Raw = string(b[:n+1])
	return n + 1, ev, true
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// csiFinal maps CSI final bytes to key names.
var csiFinal = map[byte]string{
	'A': "Up",
	'B': "Down",
	'C': "Right",
	'D': "Left",
	'H': "Home",
	'F': "End",
	'P': "F1",
	'Q': "F2",
	'R': "F3",
	'S': "F4",
}

// csiTilde maps "CSI n ~" parameters to key names.
var csiTilde = map[int]string{
	1:  "Home",
	2:  "Insert",
	3:  "Delete",
	4:  "End",
	5:  "PageUp",
	6:  "PageDown",
	7:  "Home",
	8:  "End",
	11: "F1",
	12: "F2",
	13: "F3",
	14: "F4",
	15: "F5",
	17: "F6",
	18: "F7",
	19: "F8",
	20: "F9",
	21: "F10",
	23: "F11",
	24: "F12",
}

func decodeCSI(b []byte) (int, Event, bool) {
	if len(b) < 3 {
		return 0, Event{}, false
	}
	if b[2] == '<' {
		return decodeSGRMouse(b)
	}

	end := -1
	for i := 2; i < len(b) && i < maxSequenceLen; i++ {
		c := b[i]
		if c >= 0x40 && c <= 0x7e {
			end = i
			break
		}
		if c < 0x20 || c > 0x3f {
			// not a CSI parameter byte: drop what we have
			return i, Event{}, false
		}
	}
	if end < 0 {
		if len(b) >= maxSequenceLen {
			return maxSequenceLen, Event{}, false
		}
		return 0, Event{}, false
	}

	params := parseParams(b[2:end])
	final := b[end]
	raw := string(b[:end+1])

	var name string
	switch {
	case final == '~' && len(params) > 0:
		name = csiTilde[params[0]]
	case final == 'Z':
		return end + 1, KeyEventOf(core.KeyEvent{Name: "Tab", Shift: true, Raw: raw}), true
	default:
		name = csiFinal[final]
	}
	if name == "" {
		return end + 1, Event{}, false
	}

	k := core.KeyEvent{Name: name, Raw: raw}
	if len(params) > 1 {
		applyModifier(&k, params[1])
	}
	return end + 1, KeyEventOf(k), true
}

func decodeSS3(b []byte) (int, Event, bool) {
	if len(b) < 3 {
		return 0, Event{}, false
	}
	name := csiFinal[b[2]]
	if name == "" {
		return 3, Event{}, false
	}
	return 3, KeyEventOf(core.KeyEvent{Name: name, Raw: string(b[:3])}), true
}

// applyModifier decodes an xterm modifier parameter (1 + bitmask).
func applyModifier(k *core.KeyEvent, param int) {
	m := param - 1
	if m <= 0 {
		return
	}
	k.Shift = m&1 != 0
	k.Alt = m&2 != 0
	k.Ctrl = m&4 != 0
}

// parseParams splits "1;5" style parameters. Empty fields are 0.
func parseParams(b []byte) []int {
	if len(b) == 0 {
		return nil
	}
	var out []int
	start := 0
	for i := 0; i <= len(b); i++ {
		if i == len(b) || b[i] == ';' {
			v, _ := strconv.Atoi(string(b[start:i]))
			out = append(out, v)
			start = i + 1
		}
	}
	return out
}

// decodeSGRMouse decodes "ESC [ < btn ; x ; y M|m".
func decodeSGRMouse(b []byte) (int, Event, bool) {
	end := -1
	for i := 3; i < len(b) && i < maxSequenceLen; i++ {
		if b[i] == 'M' || b[i] == 'm' {
			end = i
			break
		}
		if (b[i] < '0' || b[i] > '9') && b[i] != ';' {
			return i, Event{}, false
		}
	}
	if end < 0 {
		if len(b) >= maxSequenceLen {
			return maxSequenceLen, Event{}, false
		}
		return 0, Event{}, false
	}

	params := parseParams(b[3:end])
	if len(params) != 3 {
		return end + 1, Event{}, false
	}
	code, x, y := params[0], params[1], params[2]

	m := core.MouseInput{
		X:     x - 1,
		Y:     y - 1,
		Shift: code&4 != 0,
		Alt:   code&8 != 0,
		Ctrl:  code&16 != 0,
	}

	motion := code&32 != 0
	wheel := code&64 != 0
	id := code & 3

	switch {
	case wheel:
		if id == 0 {
			m.Button = core.WheelUp
		} else {
			m.Button = core.WheelDown
		}
		m.Action = core.MousePress
	default:
		switch id {
		case 0:
			m.Button = core.ButtonLeft
		case 1:
			m.Button = core.ButtonMiddle
		case 2:
			m.Button = core.ButtonRight
		}
		switch {
		case b[end] == 'm':
			m.Action = core.MouseRelease
		case motion:
			m.Action = core.MouseMotion
		default:
			m.Action = core.MousePress
		}
	}
	return end + 1, MouseEventOf(m), true
}
