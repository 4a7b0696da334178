// Package session implements the local side of an rsrs session: launching
// ssh with a remote helper attached to its stdio, negotiating pty allocation,
// forwarding window-size changes, and propagating the remote process's exit
// status back to the local shell.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/gifnksm/rsrs/internal/core"
	"github.com/gifnksm/rsrs/internal/daemon"
	"github.com/gifnksm/rsrs/internal/rawterm"
	"github.com/gifnksm/rsrs/internal/router"
	"github.com/gifnksm/rsrs/internal/wire"
)

// PtyMode mirrors the -t/-T flag pair: Auto allocates a pty only when stdin
// is a terminal, Enable and Disable force the choice.
type PtyMode int

const (
	PtyAuto PtyMode = iota
	PtyEnable
	PtyDisable
)

// Options configures a login session.
type Options struct {
	RemoteArgv []string // argv to exec over ssh, e.g. []string{"ssh", "-T", host, "rsrs", "remote"}
	Program    []string // remote program to run; empty means the remote login shell
	PtyMode    PtyMode
	ForwardEnv []string // env var names to forward via SetEnv before Spawn
	NoSpawn    bool     // -N: complete SetEnv and the session lifecycle, but never send Spawn
	Label      string   // identifies this session in a desktop notification on abnormal exit
}

// Run drives one interactive (or piped) session end to end: starts the ssh
// subprocess, negotiates the wire protocol, forwards stdio, and returns the
// shell-convention exit code of the remote command.
func Run(ctx context.Context, opts Options) (int, error) {
	cmd := exec.Command(opts.RemoteArgv[0], opts.RemoteArgv[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 1, fmt.Errorf("session: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 1, fmt.Errorf("session: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("session: start ssh: %w", err)
	}

	w := wire.NewWriter(stdin)
	r := wire.NewReader(stdout)
	queueCap := router.DefaultQueueCapacity
	if core.Config != nil {
		queueCap = core.Config.QueueCapacity
	}
	rtr := router.NewWithQueueCapacity(wire.Local, w, nil, queueCap)

	allocatePty := shouldAllocatePty(opts.PtyMode)

	raw := rawterm.New(int(os.Stdin.Fd()))
	var guardErr error
	if allocatePty {
		guardErr = raw.Enter()
		if guardErr != nil {
			allocatePty = false
		}
	}
	defer func() {
		if allocatePty {
			raw.Leave()
		}
	}()

	for _, name := range opts.ForwardEnv {
		if name == "TERM" && !allocatePty {
			continue
		}
		if v, ok := os.LookupEnv(name); ok {
			if err := rtr.Send(wire.NewSetEnv(name, v)); err != nil {
				return 1, fmt.Errorf("session: send SetEnv %s: %w", name, err)
			}
		}
	}

	go func() {
		for {
			cmd, err := r.ReadCommand()
			if err != nil {
				return
			}
			rtr.HandleIncoming(cmd)
		}
	}()

	if opts.NoSpawn {
		// -N: the session lifecycle still completes, but no Spawn is ever
		// sent — useful for pure port-forward-style setups where only
		// SetEnv matters.
		_ = rtr.Send(wire.NewExit())
		io.Copy(io.Discard, stdout)
		cmd.Wait()
		return 0, nil
	}

	remoteID := rtr.NewID()
	stdinID := rtr.NewID()
	stdoutID := rtr.NewID()
	stderrID := rtr.NewID()

	spawnReq := wire.SpawnRequest{
		Id:       remoteID,
		Program:  opts.Program,
		Pty:      allocatePty,
		StdinId:  stdinID,
		StdoutId: stdoutID,
		StderrId: stderrID,
	}
	if len(opts.Program) == 0 {
		spawnReq.LoginShell = true
	}
	if allocatePty {
		rows, cols, err := rawterm.GetWindowSize(int(os.Stdin.Fd()))
		if err == nil {
			spawnReq.PtyWidth, spawnReq.PtyHeight = cols, rows
		}
	}

	statusRecv, err := rtr.InsertStatusNotifier(remoteID)
	if err != nil {
		return 1, fmt.Errorf("session: register status notifier: %w", err)
	}

	if err := rtr.Send(wire.NewSpawn(spawnReq)); err != nil {
		return 1, fmt.Errorf("session: send Spawn: %w", err)
	}

	go func() { _ = rtr.Source(ctx, stdinID, os.Stdin) }()
	go func() { _ = rtr.Sink(ctx, stdoutID, os.Stdout) }()
	go func() { _ = rtr.Sink(ctx, stderrID, os.Stderr) }()

	var winchStop chan struct{}
	if allocatePty {
		winchStop = watchWindowChanges(rtr, stdinID)
		defer close(winchStop)
	}

	status, ok := statusRecv.Recv(ctx)

	if allocatePty {
		raw.Leave()
		allocatePty = false
	}

	_ = rtr.Send(wire.NewExit())
	io.Copy(io.Discard, stdout) // drain until the peer's Exit round-trip closes the pipe
	cmd.Wait()

	if !ok {
		return 1, fmt.Errorf("session: connection closed before remote process exited")
	}
	daemon.NotifyExit(opts.Label, status.ShellCode(), status.Signaled)
	return status.ShellCode(), nil
}

func shouldAllocatePty(mode PtyMode) bool {
	switch mode {
	case PtyEnable:
		return true
	case PtyDisable:
		return false
	default:
		return term.IsTerminal(int(os.Stdin.Fd()))
	}
}

// watchWindowChanges forwards SIGWINCH as WindowSize channel messages on
// stdinID for as long as the returned channel isn't closed.
func watchWindowChanges(r *router.Router, stdinID wire.Id) chan struct{} {
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGWINCH)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-stop:
				return
			case <-sigCh:
				rows, cols, err := rawterm.GetWindowSize(int(os.Stdin.Fd()))
				if err != nil {
					continue
				}
				_ = r.Send(wire.NewWindowSize(stdinID, wire.WindowSize{Rows: rows, Cols: cols}))
			}
		}
	}()
	return stop
}
