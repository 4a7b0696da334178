// Package wire defines the on-the-wire message types exchanged between the
// local and remote rsrs processes over an ssh-forwarded stdio pipe, and the
// length-delimited codec used to frame them.
package wire

// ProcessKind identifies which side of a connection minted an Id. Each side
// mints its own ids independently; tagging them by kind keeps a local id and
// a remote id with the same numeric value from colliding in a shared map.
type ProcessKind int

const (
	Local ProcessKind = iota
	Remote
)

func (k ProcessKind) String() string {
	if k == Local {
		return "local"
	}
	return "remote"
}

// Id names a channel endpoint. The pair (Kind, N) is unique within a single
// session: each side hands out its own increasing N, tagged with its own Kind,
// so the two sequences never collide once frames cross the wire.
type Id struct {
	Kind ProcessKind
	N    uint64
}

// ExitStatus is the outcome of a spawned process: either a numeric exit code
// or the signal that killed it. Exactly one of Code/Signal is meaningful;
// Signaled reports which.
type ExitStatus struct {
	Signaled bool
	Code     int32
	Signal   int32
}

// ExitCode constructs a normal-exit status.
func ExitCode(code int32) ExitStatus {
	return ExitStatus{Code: code}
}

// ExitSignal constructs a killed-by-signal status.
func ExitSignal(sig int32) ExitStatus {
	return ExitStatus{Signaled: true, Signal: sig}
}

// ShellCode returns the POSIX shell convention for reporting this status as a
// single exit code: the code itself, or 128+signal.
func (s ExitStatus) ShellCode() int {
	if s.Signaled {
		return 128 + int(s.Signal)
	}
	return int(s.Code)
}

// WindowSize mirrors the kernel's struct winsize, carried across the wire so
// the remote pty can be resized to match the local terminal.
type WindowSize struct {
	Rows uint16
	Cols uint16
}

// ChannelData is one chunk of bytes flowing through a channel. It carries no
// stream tag; process endpoints use one Id per stream (stdin, stdout,
// stderr) instead.
type ChannelData struct {
	Data []byte
}

// SpawnRequest describes a process to start on the remote side. Exactly one
// of LoginShell/Program is meaningful.
type SpawnRequest struct {
	Id Id

	// LoginShell requests the user's login shell, spawned as an argv0-dashed
	// login shell. Program, if LoginShell is false, is the literal argv to
	// exec. Whether either one gets a pty is decided by Pty alone.
	LoginShell bool
	Program    []string

	Pty       bool
	PtyWidth  uint16
	PtyHeight uint16

	StdinId  Id
	StdoutId Id
	StderrId Id
}

// Command is the tagged union of frames that cross the wire. Exactly one
// field is non-nil/zero per frame; Tag identifies which.
type Command struct {
	Tag CommandTag

	SetEnv      *SetEnvCommand
	Spawn       *SpawnRequest
	Channel     *ChannelCommand
	ProcessExit *ProcessExitCommand
}

type CommandTag int

const (
	TagSetEnv CommandTag = iota
	TagSpawn
	TagChannel
	TagProcessExit
	TagExit
)

// SetEnvCommand sets an environment variable that will be visible to the next
// Spawn on the receiving side. Must be sent, and take effect, before the
// Spawn it is meant to affect.
type SetEnvCommand struct {
	Key   string
	Value string
}

// ChannelKind distinguishes the payload carried by a ChannelCommand.
type ChannelKind int

const (
	ChannelOutput ChannelKind = iota
	ChannelWindowSize
)

// ChannelCommand carries either a chunk of bytes or a window-size change for
// a previously-registered Id. A zero-length Data chunk signals EOF on that
// channel.
type ChannelCommand struct {
	Id   Id
	Kind ChannelKind

	Data       []byte
	WindowSize WindowSize
}

// ProcessExitCommand reports that the process associated with Id has
// terminated.
type ProcessExitCommand struct {
	Id     Id
	Status ExitStatus
}

func NewSetEnv(key, value string) Command {
	return Command{Tag: TagSetEnv, SetEnv: &SetEnvCommand{Key: key, Value: value}}
}

func NewSpawn(req SpawnRequest) Command {
	return Command{Tag: TagSpawn, Spawn: &req}
}

func NewChannelData(id Id, data []byte) Command {
	return Command{Tag: TagChannel, Channel: &ChannelCommand{Id: id, Kind: ChannelOutput, Data: data}}
}

func NewWindowSize(id Id, ws WindowSize) Command {
	return Command{Tag: TagChannel, Channel: &ChannelCommand{Id: id, Kind: ChannelWindowSize, WindowSize: ws}}
}

func NewProcessExit(id Id, status ExitStatus) Command {
	return Command{Tag: TagProcessExit, ProcessExit: &ProcessExitCommand{Id: id, Status: status}}
}

func NewExit() Command {
	return Command{Tag: TagExit}
}
