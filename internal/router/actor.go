package router

import (
	"context"

	"github.com/gifnksm/rsrs/internal/wire"
)

type sendReq struct {
	cmd   wire.Command
	reply chan<- error
}

type incomingReq struct {
	cmd wire.Command
}

type insertChannelReq struct {
	id    wire.Id
	reply chan<- insertChannelResult
}

type insertChannelResult struct {
	recv *ChannelReceiver
	err  error
}

type insertStatusReq struct {
	id    wire.Id
	reply chan<- insertStatusResult
}

type insertStatusResult struct {
	recv *StatusReceiver
	err  error
}

type removeChannelReq struct{ id wire.Id }
type removeStatusReq struct{ id wire.Id }

// run is the sole mutator of channels/status; everything else talks to it
// through actorCh.
func (r *Router) run(w *wire.Writer, spawn SpawnFunc) {
	channels := make(map[wire.Id]chan ChannelMessage)
	statuses := make(map[wire.Id]chan wire.ExitStatus)
	env := make(map[string]string)

	defer func() {
		for id, ch := range channels {
			close(ch)
			delete(channels, id)
		}
		for id, ch := range statuses {
			close(ch)
			delete(statuses, id)
		}
		close(r.done)
	}()

	for raw := range r.actorCh {
		switch m := raw.(type) {
		case sendReq:
			m.reply <- w.WriteCommand(m.cmd)

		case insertChannelReq:
			if _, exists := channels[m.id]; exists {
				m.reply <- insertChannelResult{err: ErrIdInUse}
				continue
			}
			ch := make(chan ChannelMessage, r.queueCap)
			channels[m.id] = ch
			m.reply <- insertChannelResult{recv: &ChannelReceiver{
				id:     m.id,
				data:   ch,
				router: r,
			}}

		case insertStatusReq:
			if _, exists := statuses[m.id]; exists {
				m.reply <- insertStatusResult{err: ErrIdInUse}
				continue
			}
			ch := make(chan wire.ExitStatus, 1)
			statuses[m.id] = ch
			m.reply <- insertStatusResult{recv: &StatusReceiver{
				id:     m.id,
				ch:     ch,
				router: r,
			}}

		case removeChannelReq:
			if ch, ok := channels[m.id]; ok {
				delete(channels, m.id)
				close(ch)
			}

		case removeStatusReq:
			if ch, ok := statuses[m.id]; ok {
				delete(statuses, m.id)
				close(ch)
			}

		case incomingReq:
			r.dispatchIncoming(m.cmd, w, channels, statuses, env, spawn)
			if m.cmd.Tag == wire.TagExit {
				return
			}
		}
	}
}

func (r *Router) dispatchIncoming(
	cmd wire.Command,
	w *wire.Writer,
	channels map[wire.Id]chan ChannelMessage,
	statuses map[wire.Id]chan wire.ExitStatus,
	env map[string]string,
	spawn SpawnFunc,
) {
	switch cmd.Tag {
	case wire.TagSetEnv:
		env[cmd.SetEnv.Key] = cmd.SetEnv.Value

	case wire.TagSpawn:
		req := *cmd.Spawn
		snapshot := make(map[string]string, len(env))
		for k, v := range env {
			snapshot[k] = v
		}
		if err := spawn(snapshot, req); err != nil {
			// Best effort: if even this write fails the connection is
			// already dead and the caller will notice via ReadCommand.
			_ = w.WriteCommand(wire.NewProcessExit(req.Id, wire.ExitCode(127)))
		}

	case wire.TagChannel:
		ch, ok := channels[cmd.Channel.Id]
		if !ok {
			return // id unknown or already torn down; discard silently
		}
		var msg ChannelMessage
		if cmd.Channel.Kind == wire.ChannelWindowSize {
			msg = ChannelMessage{IsWindowSize: true, WindowSize: cmd.Channel.WindowSize}
		} else {
			msg = ChannelMessage{Data: cmd.Channel.Data}
		}
		// Blocking send is the protocol's only flow control: a full queue
		// stalls this actor, which stalls reading further frames off the
		// wire, which stalls the remote writer. That's the entire
		// backpressure story for a single shared stream.
		ch <- msg
		if !msg.IsWindowSize && len(msg.Data) == 0 {
			delete(channels, cmd.Channel.Id)
			close(ch)
		}

	case wire.TagProcessExit:
		ch, ok := statuses[cmd.ProcessExit.Id]
		if !ok {
			return
		}
		delete(statuses, cmd.ProcessExit.Id)
		ch <- cmd.ProcessExit.Status
		close(ch)

	case wire.TagExit:
		// handled by caller: terminates the actor loop
	}
}

// removeChannel asks the actor to deregister id, used by ChannelReceiver.Close.
func (r *Router) removeChannel(id wire.Id) {
	select {
	case r.actorCh <- removeChannelReq{id: id}:
	case <-r.done:
	}
}

func (r *Router) removeStatus(id wire.Id) {
	select {
	case r.actorCh <- removeStatusReq{id: id}:
	case <-r.done:
	}
}

// ChannelReceiver is the consumer side of a registered channel id.
type ChannelReceiver struct {
	id     wire.Id
	data   chan ChannelMessage
	router *Router
}

// Recv blocks for the next message, returning ok=false once the channel has
// been closed (EOF delivered, or the receiver/router torn down).
func (c *ChannelReceiver) Recv(ctx context.Context) (ChannelMessage, bool) {
	select {
	case msg, ok := <-c.data:
		return msg, ok
	case <-ctx.Done():
		return ChannelMessage{}, false
	}
}

// Close deregisters the receiver before natural EOF, e.g. when the consumer
// gives up early.
func (c *ChannelReceiver) Close() {
	c.router.removeChannel(c.id)
}

// StatusReceiver is fulfilled exactly once, when a ProcessExit frame arrives
// for its id.
type StatusReceiver struct {
	id     wire.Id
	ch     chan wire.ExitStatus
	router *Router
}

// Recv blocks until the process exit status arrives or ctx is done.
func (s *StatusReceiver) Recv(ctx context.Context) (wire.ExitStatus, bool) {
	select {
	case status, ok := <-s.ch:
		return status, ok
	case <-ctx.Done():
		return wire.ExitStatus{}, false
	}
}

// Close deregisters the receiver if the status never arrives, e.g. on
// shutdown.
func (s *StatusReceiver) Close() {
	s.router.removeStatus(s.id)
}
