// Package process implements the remote-side process endpoint: spawning a
// command (with or without a pty) and wiring its stdio through the router so
// its output becomes Channel frames and its exit becomes a ProcessExit
// frame.
package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/gifnksm/rsrs/internal/ptyio"
	"github.com/gifnksm/rsrs/internal/router"
	"github.com/gifnksm/rsrs/internal/wire"
)

// Endpoint owns the spawned process and the goroutines ferrying its stdio
// through the router. Spawn returns immediately; the exit status is reported
// asynchronously via a ProcessExit frame sent through r.
type Endpoint struct {
	r   *router.Router
	cmd *exec.Cmd
	pty *ptyio.Pty
}

// Spawn implements router.SpawnFunc for the remote side: it starts the
// requested process and, once started, returns nil and continues wiring
// stdio and waiting for exit in background goroutines. Bind it to a
// particular Router with a closure, e.g.:
//
//	var r *router.Router
//	r = router.New(wire.Remote, w, func(env map[string]string, req wire.SpawnRequest) error {
//		return process.Spawn(r, env, req)
//	})
func Spawn(r *router.Router, env map[string]string, req wire.SpawnRequest) error {
	argv, err := resolveArgv(req)
	if err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = mergeEnv(env)
	if req.LoginShell {
		cmd.Args = []string{LoginArgv0(cmd.Path)}
	}

	ep := &Endpoint{r: r, cmd: cmd}

	if req.Pty {
		if err := ep.startWithPty(req); err != nil {
			return err
		}
	} else {
		if err := ep.startWithPipes(req); err != nil {
			return err
		}
	}

	go ep.wait(req.Id)
	return nil
}

func resolveArgv(req wire.SpawnRequest) ([]string, error) {
	if req.LoginShell {
		shell, err := ResolveLoginShell()
		if err != nil {
			return nil, err
		}
		return []string{shell}, nil
	}
	if len(req.Program) == 0 {
		return nil, fmt.Errorf("process: spawn request names no program")
	}
	return req.Program, nil
}

func (ep *Endpoint) startWithPty(req wire.SpawnRequest) error {
	ep.cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	p, err := ptyio.Start(ep.cmd)
	if err != nil {
		return err
	}
	ep.pty = p

	if req.PtyWidth > 0 && req.PtyHeight > 0 {
		_ = p.SetSize(req.PtyHeight, req.PtyWidth)
	}

	go func() { _ = ep.r.Source(context.Background(), req.StdoutId, p.Master) }()
	go ep.sinkStdinWithResize(req, p)
	return nil
}

func (ep *Endpoint) startWithPipes(req wire.SpawnRequest) error {
	stdin, err := ep.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("process: stdin pipe: %w", err)
	}
	stdout, err := ep.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := ep.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("process: stderr pipe: %w", err)
	}

	if err := ep.cmd.Start(); err != nil {
		return fmt.Errorf("process: start: %w", err)
	}

	go func() { _ = ep.r.Source(context.Background(), req.StdoutId, stdout) }()
	go func() { _ = ep.r.Source(context.Background(), req.StderrId, stderr) }()
	go func() {
		_ = ep.r.Sink(context.Background(), req.StdinId, stdin)
		stdin.Close()
	}()
	return nil
}

// sinkStdinWithResize drains req.StdinId like router.Sink, but also applies
// window-size messages to the pty instead of discarding them — the only
// channel kind where WindowSize frames are meaningful.
func (ep *Endpoint) sinkStdinWithResize(req wire.SpawnRequest, p *ptyio.Pty) {
	recv, err := ep.r.InsertChannel(req.StdinId)
	if err != nil {
		return
	}
	defer recv.Close()

	ctx := context.Background()
	for {
		msg, ok := recv.Recv(ctx)
		if !ok {
			return
		}
		if msg.IsWindowSize {
			_ = p.SetSize(msg.WindowSize.Rows, msg.WindowSize.Cols)
			continue
		}
		if len(msg.Data) == 0 {
			return
		}
		if _, err := p.Master.Write(msg.Data); err != nil {
			return
		}
	}
}

func (ep *Endpoint) wait(id wire.Id) {
	err := ep.cmd.Wait()
	if ep.pty != nil {
		ep.pty.Close()
	}
	status := statusFromError(err)
	_ = ep.r.Send(wire.NewProcessExit(id, status))
}

func statusFromError(err error) wire.ExitStatus {
	if err == nil {
		return wire.ExitCode(0)
	}
	var exitErr *exec.ExitError
	if e, ok := err.(*exec.ExitError); ok {
		exitErr = e
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return wire.ExitSignal(int32(ws.Signal()))
			}
			return wire.ExitCode(int32(ws.ExitStatus()))
		}
		return wire.ExitCode(int32(exitErr.ExitCode()))
	}
	// Process never started (lookup/exec failure): shell convention for
	// "command not found".
	return wire.ExitCode(127)
}

func mergeEnv(extra map[string]string) []string {
	env := append([]string(nil), os.Environ()...)
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
