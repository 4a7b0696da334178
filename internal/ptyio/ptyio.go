// Package ptyio allocates and resizes pseudo-terminals for spawned remote
// shells, on top of creack/pty.
package ptyio

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Pty is an allocated pty bound to a *exec.Cmd that Start has already
// started. Start leaves Slave nil.
type Pty struct {
	Master *os.File
	Slave  *os.File
}

// Start allocates a pty, attaches it to cmd as a controlling terminal, and
// starts cmd. The returned Pty's Master is the only fd the caller needs to
// read/write after Start returns; creack/pty closes the parent's copy of the
// slave once the child has inherited it, so Slave is not set.
func Start(cmd *exec.Cmd) (*Pty, error) {
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("ptyio: start: %w", err)
	}
	return &Pty{Master: f}, nil
}

// SetSize applies rows/cols to the pty's master, which the kernel propagates
// to the foreground process group as SIGWINCH.
func (p *Pty) SetSize(rows, cols uint16) error {
	return pty.Setsize(p.Master, &pty.Winsize{Rows: rows, Cols: cols})
}

// GetSize reads the pty's current size.
func (p *Pty) GetSize() (rows, cols uint16, err error) {
	ws, err := pty.GetsizeFull(p.Master)
	if err != nil {
		return 0, 0, fmt.Errorf("ptyio: get size: %w", err)
	}
	return ws.Rows, ws.Cols, nil
}

// Close releases the master side. The slave side is owned by the child
// process once started and closes when it exits.
func (p *Pty) Close() error {
	return p.Master.Close()
}

// SetNonblocking marks fd as non-blocking so reads/writes integrate with
// Go's runtime poller instead of tying up an OS thread; creack/pty already
// does this for the returned master, so this is only needed for an fd
// opened some other way (e.g. a slave path reopened directly).
func SetNonblocking(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("ptyio: set nonblocking: %w", err)
	}
	return nil
}
