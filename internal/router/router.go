// Package router implements the channel multiplexer that sits between the
// wire codec and the local process endpoints. A single actor goroutine owns
// all routing state; every other goroutine talks to it by sending requests
// over a channel, so the map of live channels is never touched from more
// than one goroutine at a time.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gifnksm/rsrs/internal/wire"
)

// ErrIdInUse is returned by InsertChannel/InsertStatus when the requested id
// is already registered.
var ErrIdInUse = errors.New("router: id already in use")

// DefaultQueueCapacity is the minimum per-channel queue depth mandated by the
// protocol: enough to absorb a burst of terminal output without stalling the
// writer on every single frame, while still bounding memory use to something
// the router can recover from when a consumer stalls.
const DefaultQueueCapacity = 64

// SpawnFunc starts a process described by req with the given environment.
// It must not block waiting for the process to exit: it starts the process
// (and whatever reader/writer goroutines wire its stdio into the router) and
// returns immediately. A non-nil error means the process could not be
// started at all (e.g. exec lookup failure); the router then synthesizes a
// ProcessExit(127) frame on req.Id itself, matching the shell convention for
// "command not found".
type SpawnFunc func(env map[string]string, req wire.SpawnRequest) error

// ChannelMessage is one item delivered to a ChannelReceiver: either a chunk
// of output (possibly the empty, EOF-signaling chunk) or a window-size
// change.
type ChannelMessage struct {
	IsWindowSize bool
	Data         []byte
	WindowSize   wire.WindowSize
}

// Router multiplexes a single wire connection across many logical channels,
// identified by wire.Id. It owns the wire.Writer exclusively: all outgoing
// frames are serialized through the actor goroutine so concurrent senders
// never interleave partial frames on the stream.
type Router struct {
	kind     wire.ProcessKind
	queueCap int

	nextID uint64
	idMu   sync.Mutex

	actorCh chan any
	done    chan struct{}
}

// New creates a Router for one side of a connection with the default
// per-channel queue capacity. w is the sole writer for outgoing frames;
// spawn, if non-nil, is invoked for every incoming Spawn command.
func New(kind wire.ProcessKind, w *wire.Writer, spawn SpawnFunc) *Router {
	return NewWithQueueCapacity(kind, w, spawn, DefaultQueueCapacity)
}

// NewWithQueueCapacity is New with an explicit per-channel queue depth,
// letting a caller honor a configured queue_capacity. queueCap is clamped
// up to DefaultQueueCapacity: the protocol's backpressure guarantee
// assumes at least that much headroom.
func NewWithQueueCapacity(kind wire.ProcessKind, w *wire.Writer, spawn SpawnFunc, queueCap int) *Router {
	if spawn == nil {
		spawn = func(map[string]string, wire.SpawnRequest) error { return nil }
	}
	if queueCap < DefaultQueueCapacity {
		queueCap = DefaultQueueCapacity
	}
	r := &Router{
		kind:     kind,
		queueCap: queueCap,
		actorCh:  make(chan any, 1),
		done:     make(chan struct{}),
	}
	go r.run(w, spawn)
	return r
}

// NewID mints a fresh id tagged with this router's ProcessKind. Ids minted by
// the two sides of a connection never collide because each side tags its own
// sequence with its own kind.
func (r *Router) NewID() wire.Id {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	r.nextID++
	return wire.Id{Kind: r.kind, N: r.nextID}
}

// Send enqueues an outgoing command, blocking until the actor has written it
// (or the router has shut down).
func (r *Router) Send(cmd wire.Command) error {
	reply := make(chan error, 1)
	select {
	case r.actorCh <- sendReq{cmd: cmd, reply: reply}:
	case <-r.done:
		return fmt.Errorf("router: closed")
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return fmt.Errorf("router: closed")
	}
}

// HandleIncoming feeds a frame decoded off the wire into the router. Callers
// typically loop wire.Reader.ReadCommand and pass each result here.
func (r *Router) HandleIncoming(cmd wire.Command) {
	select {
	case r.actorCh <- incomingReq{cmd: cmd}:
	case <-r.done:
	}
}

// InsertChannel registers id as expecting Channel frames and returns a
// receiver for them. It is an error to register the same id twice without an
// intervening Close/removal.
func (r *Router) InsertChannel(id wire.Id) (*ChannelReceiver, error) {
	reply := make(chan insertChannelResult, 1)
	select {
	case r.actorCh <- insertChannelReq{id: id, reply: reply}:
	case <-r.done:
		return nil, fmt.Errorf("router: closed")
	}
	res := <-reply
	return res.recv, res.err
}

// InsertStatusNotifier registers id as expecting a ProcessExit frame and
// returns a receiver that is fulfilled exactly once.
func (r *Router) InsertStatusNotifier(id wire.Id) (*StatusReceiver, error) {
	reply := make(chan insertStatusResult, 1)
	select {
	case r.actorCh <- insertStatusReq{id: id, reply: reply}:
	case <-r.done:
		return nil, fmt.Errorf("router: closed")
	}
	res := <-reply
	return res.recv, res.err
}

// Done is closed once the router has processed an Exit command (or its
// actor goroutine otherwise stopped).
func (r *Router) Done() <-chan struct{} {
	return r.done
}

// Source reads rd in chunks and emits them as Channel frames under id,
// finishing with a zero-length frame to signal EOF. It returns once rd is
// exhausted or returns an error.
func (r *Router) Source(ctx context.Context, id wire.Id, rd io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sendErr := r.Send(wire.NewChannelData(id, chunk)); sendErr != nil {
				return sendErr
			}
		}
		if err != nil {
			if err == io.EOF {
				return r.Send(wire.NewChannelData(id, nil))
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Sink registers id and writes every Channel frame delivered for it to wr,
// stopping at the EOF marker (a zero-length chunk) or when the receiver is
// closed out from under it.
func (r *Router) Sink(ctx context.Context, id wire.Id, wr io.Writer) error {
	recv, err := r.InsertChannel(id)
	if err != nil {
		return err
	}
	defer recv.Close()

	for {
		msg, ok := recv.Recv(ctx)
		if !ok {
			return nil
		}
		if msg.IsWindowSize {
			continue
		}
		if len(msg.Data) == 0 {
			return nil
		}
		if _, err := wr.Write(msg.Data); err != nil {
			return err
		}
	}
}
