// Package rawterm scopes a terminal's raw-mode state so it is reliably
// restored on every exit path, including a panic unwinding through it.
package rawterm

import (
	"fmt"
	"sync"

	"golang.org/x/term"
)

// RawMode puts an fd into raw mode and restores its original state on
// Leave. Enter/Leave are idempotent and safe to call from a deferred panic
// recovery, so a single guarded RawMode can sit at the top of a session and
// still leave the terminal usable if something downstream panics.
type RawMode struct {
	mu    sync.Mutex
	fd    int
	state *term.State
}

// New returns a RawMode bound to fd, not yet entered.
func New(fd int) *RawMode {
	return &RawMode{fd: fd}
}

// Enter switches the terminal to raw mode, remembering the prior state.
// Calling Enter again before Leave is a no-op.
func (r *RawMode) Enter() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != nil {
		return nil
	}
	state, err := term.MakeRaw(r.fd)
	if err != nil {
		return fmt.Errorf("rawterm: enter raw mode: %w", err)
	}
	r.state = state
	return nil
}

// Leave restores the terminal to the state captured by Enter. Calling Leave
// without a matching Enter, or calling it twice, is a no-op.
func (r *RawMode) Leave() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return nil
	}
	state := r.state
	r.state = nil
	if err := term.Restore(r.fd, state); err != nil {
		return fmt.Errorf("rawterm: leave raw mode: %w", err)
	}
	return nil
}

// Guard runs fn with the terminal in raw mode, restoring it afterwards even
// if fn panics. The panic is re-raised once the terminal has been restored.
func (r *RawMode) Guard(fn func() error) (err error) {
	if enterErr := r.Enter(); enterErr != nil {
		return enterErr
	}
	defer func() {
		leaveErr := r.Leave()
		if p := recover(); p != nil {
			panic(p)
		}
		if err == nil {
			err = leaveErr
		}
	}()
	return fn()
}
