package daemon

import (
	"net"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestListenFreshPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.sock")
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
}

func TestListenReclaimsStaleSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale.sock")

	// Bind a raw socket to the path and close it without listening or
	// unlinking, leaving a socket file on disk that nothing accepts on —
	// the same state a daemon killed with SIGKILL leaves behind.
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		t.Fatal(err)
	}
	unix.Close(fd)

	ln2, err := Listen(path)
	if err != nil {
		t.Fatalf("Listen should reclaim stale socket, got: %v", err)
	}
	defer ln2.Close()
}

func TestListenRejectsLiveDaemon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	if _, err := Listen(path); err != ErrAlreadyRunning {
		t.Fatalf("Listen err = %v, want ErrAlreadyRunning", err)
	}
}
