//go:build !unix

package backend

import (
	"errors"
	"os"
	"time"

	"golang.org/x/term"
)

func platformCheck() error {
	return errors.ErrUnsupported
}

func terminalSize(fd int) (int, int, error) {
	return term.GetSize(fd)
}

func readInput(int, []byte, time.Duration, <-chan struct{}) (int, error) {
	return 0, errors.ErrUnsupported
}

func resizeSignals() (<-chan os.Signal, func()) {
	return nil, func() {}
}
