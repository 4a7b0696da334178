package rawterm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// GetWindowSize reads the current terminal size of fd via TIOCGWINSZ.
func GetWindowSize(fd int) (rows, cols uint16, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, fmt.Errorf("rawterm: get window size: %w", err)
	}
	return ws.Row, ws.Col, nil
}

// SetWindowSize applies rows/cols to fd via TIOCSWINSZ, used to propagate a
// local terminal resize to a remote pty's slave.
func SetWindowSize(fd int, rows, cols uint16) error {
	ws := &unix.Winsize{Row: rows, Col: cols}
	if err := unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, ws); err != nil {
		return fmt.Errorf("rawterm: set window size: %w", err)
	}
	return nil
}
