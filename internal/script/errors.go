package script

import (
	"errors"
	"fmt"
)

// Errors for script operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNoPaint is returned when a script does not define paint.
	ErrNoPaint = errors.New("script does not define paint")

	// ErrBufferExpired is raised when a script keeps a buffer handle past
	// the paint call it was given to.
	ErrBufferExpired = errors.New("buffer used outside paint")
)

// ScriptError wraps a Lua failure with the script it came from.
type ScriptError struct {
	Script string
	Func   string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("script %s: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("script %s: %s: %v", e.Script, e.Func, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
