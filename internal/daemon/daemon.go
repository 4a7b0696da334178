package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/gifnksm/rsrs/internal/audit"
	"github.com/gifnksm/rsrs/internal/process"
	"github.com/gifnksm/rsrs/internal/router"
	"github.com/gifnksm/rsrs/internal/wire"
)

// Daemon is a named, long-running node reachable over a unix socket. Each
// opener connection that hands over its stdio fds gets its own Remote-kind
// router and spawns whatever the other end's Spawn command asks for —
// exactly what `rsrs remote` does for a single ssh-connected peer — except
// the daemon keeps listening for more connections afterward instead of
// exiting once one session ends.
type Daemon struct {
	Name          string
	SockPath      string
	QueueCapacity int
	Audit         *audit.DB // nil disables the audit trail

	mu      sync.Mutex
	clients map[net.Conn]struct{}
}

// New creates a Daemon. queueCap is forwarded to every per-connection router
// (and clamped to router.DefaultQueueCapacity there); auditDB may be nil.
func New(name, sockPath string, queueCap int, auditDB *audit.DB) *Daemon {
	return &Daemon{
		Name:          name,
		SockPath:      sockPath,
		QueueCapacity: queueCap,
		Audit:         auditDB,
		clients:       make(map[net.Conn]struct{}),
	}
}

// ServeControlLoop accepts control-command connections on ln (the daemon's
// .ctl.sock) until it is closed, answering VERSION and STATS.
func (d *Daemon) ServeControlLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go ServeControl(conn, d.handleControlCommand)
	}
}

func (d *Daemon) handleControlCommand(command string) Response {
	switch command {
	case "VERSION":
		return VersionResponse()
	case "STATS":
		var resp Response
		stats, err := CollectStats(int32(os.Getpid()))
		if err != nil {
			resp.AddMessage(err.Error(), "ERROR")
			return resp
		}
		resp.AddData(stats)
		return resp
	default:
		var resp Response
		resp.AddMessage(fmt.Sprintf("unknown command %q", command), "ERROR")
		return resp
	}
}

// Serve accepts opener connections on ln until it is closed. Each
// connection hands over stdio fds that become a fresh wire transport: a
// Remote-kind router reads Commands off the adopted stdin fd and writes
// Commands to the adopted stdout fd, spawning processes the opener's local
// side requests the same way the far end of an ssh connection would.
func (d *Daemon) Serve(ln net.Listener) error {
	// Announce readiness on our own stdout, for whatever launched this
	// daemon process to observe without polling the socket.
	fmt.Fprint(os.Stdout, Magic)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		uc, ok := conn.(*net.UnixConn)
		if !ok {
			conn.Close()
			continue
		}
		go d.handleConn(uc)
	}
}

func (d *Daemon) handleConn(uc *net.UnixConn) {
	req, stdin, stdout, stderr, err := AcceptOpen(uc)
	if err != nil {
		slog.Warn("daemon: fd handover failed", "error", err)
		uc.Close()
		return
	}
	slog.Info("daemon: client attached", "node", d.Name, "pid", req.Pid, "command", req.Command)
	d.logEvent("spawn", fmt.Sprintf("pid=%d command=%s args=%v", req.Pid, req.Command, req.Args))

	d.mu.Lock()
	d.clients[uc] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.clients, uc)
		d.mu.Unlock()
		uc.Close()
		stdin.Close()
		stdout.Close()
		slog.Info("daemon: client detached", "node", d.Name)
		d.logEvent("exit", fmt.Sprintf("pid=%d", req.Pid))
	}()

	// The adopted stderr fd mirrors ssh's own stderr: it carries no wire
	// traffic (a spawned process's stderr travels as Channel frames over
	// stdin/stdout like any other remote stderr), it exists only so the
	// opener's real terminal stderr stays reachable for out-of-band
	// diagnostics. The daemon has none to send, so it's just closed.
	stderr.Close()

	w := wire.NewWriter(stdout)
	r := wire.NewReader(stdin)

	var rtr *router.Router
	spawn := func(env map[string]string, req wire.SpawnRequest) error {
		return process.Spawn(rtr, env, req)
	}
	rtr = router.NewWithQueueCapacity(wire.Remote, w, spawn, d.QueueCapacity)

	for {
		cmd, err := r.ReadCommand()
		if err != nil {
			if err != io.EOF {
				slog.Debug("daemon: read command failed", "error", err)
			}
			return
		}
		if cmd.Tag == wire.TagExit {
			_ = rtr.Send(wire.NewExit())
			return
		}
		rtr.HandleIncoming(cmd)
	}
}

func (d *Daemon) logEvent(eventType, details string) {
	if d.Audit == nil {
		return
	}
	if err := d.Audit.LogEvent(d.Name, eventType, details); err != nil {
		slog.Debug("daemon: audit log failed", "error", err)
	}
}

// Shutdown closes every attached client connection; each opener sees this as
// its cue to detach.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	for c := range d.clients {
		c.Close()
	}
	d.mu.Unlock()
}
