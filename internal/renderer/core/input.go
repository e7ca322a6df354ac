package core

import "strings"

// KeyEvent is a decoded key press.
type KeyEvent struct {
	// Name is a normalized key name such as "a", "Enter", "Up" or "F5".
	Name string

	// Rune is the typed character for printable keys, 0 otherwise.
	Rune rune

	// Raw holds the input bytes the event was decoded from, if known.
	Raw string

	Ctrl, Shift, Alt bool
}

// String returns the key with modifiers, e.g. "Ctrl+Shift+Up".
func (k KeyEvent) String() string {
	var sb strings.Builder
	if k.Ctrl {
		sb.WriteString("Ctrl+")
	}
	if k.Alt {
		sb.WriteString("Alt+")
	}
	if k.Shift {
		sb.WriteString("Shift+")
	}
	sb.WriteString(k.Name)
	return sb.String()
}

// Is reports whether the event matches a key string like "Ctrl+c" or "q".
func (k KeyEvent) Is(s string) bool {
	return strings.EqualFold(k.String(), s)
}

// MouseButton identifies a mouse button.
type MouseButton uint8

const (
	ButtonNone MouseButton = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
	WheelUp
	WheelDown
)

// IsWheel reports whether the button is a scroll wheel direction.
func (b MouseButton) IsWheel() bool {
	return b == WheelUp || b == WheelDown
}

// String returns the button name.
func (b MouseButton) String() string {
	switch b {
	case ButtonLeft:
		return "Left"
	case ButtonMiddle:
		return "Middle"
	case ButtonRight:
		return "Right"
	case WheelUp:
		return "WheelUp"
	case WheelDown:
		return "WheelDown"
	default:
		return "None"
	}
}

// MouseAction is the raw pointer action reported by a backend.
type MouseAction uint8

const (
	MousePress MouseAction = iota
	MouseRelease
	MouseMotion
)

// String returns the action name.
func (a MouseAction) String() string {
	switch a {
	case MousePress:
		return "Press"
	case MouseRelease:
		return "Release"
	case MouseMotion:
		return "Motion"
	default:
		return "Unknown"
	}
}

// MouseInput is a raw pointer report in screen cells (0-indexed).
type MouseInput struct {
	X, Y   int
	Button MouseButton
	Action MouseAction

	Ctrl, Shift, Alt bool
}
