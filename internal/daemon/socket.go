package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrAlreadyRunning is returned by Listen when another daemon is already
// bound to and actively accepting on the socket path.
var ErrAlreadyRunning = errors.New("daemon: another daemon is already listening on this socket")

// Listen binds a unix socket at path, first reclaiming it if it is a stale
// leftover from a daemon that crashed without cleaning up: a socket path
// that exists but refuses connections belongs to no live process and is
// safe to unlink. A socket path that exists and *accepts* a connection means
// a daemon is genuinely running there already, which is a fatal condition,
// not something to clean up around.
func Listen(path string) (net.Listener, error) {
	if fi, err := os.Stat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("daemon: %s exists and is not a socket", path)
		}
		if probeConnect(path) {
			return nil, ErrAlreadyRunning
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("daemon: remove stale socket %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("daemon: stat %s: %w", path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("daemon: listen on %s: %w", path, err)
	}
	return ln, nil
}

// probeConnect reports whether path currently has a live listener accepting
// connections. ECONNREFUSED on a unix socket means the file exists but
// nothing is bound to it (or its listener died); any other outcome, success
// included, means something is actually there.
func probeConnect(path string) bool {
	conn, err := net.Dial("unix", path)
	if err == nil {
		conn.Close()
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return false
		}
	}
	// Any other dial failure (permission denied, etc.) is treated as "still
	// in use" — safer to report a conflict than to unlink a socket we can't
	// actually confirm is dead.
	return true
}
