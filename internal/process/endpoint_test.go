package process

import (
	"bytes"
	"testing"
	"time"

	"github.com/gifnksm/rsrs/internal/router"
	"github.com/gifnksm/rsrs/internal/wire"
)

func TestSpawnPipesEchoesInput(t *testing.T) {
	var out bytes.Buffer
	w := wire.NewWriter(&out)

	var r *router.Router
	r = router.New(wire.Remote, w, func(env map[string]string, req wire.SpawnRequest) error {
		return Spawn(r, env, req)
	})

	id := wire.Id{Kind: wire.Local, N: 1}
	stdinID := wire.Id{Kind: wire.Local, N: 2}
	stdoutID := wire.Id{Kind: wire.Local, N: 3}
	stderrID := wire.Id{Kind: wire.Local, N: 4}

	r.HandleIncoming(wire.NewSpawn(wire.SpawnRequest{
		Id:       id,
		Program:  []string{"cat"},
		StdinId:  stdinID,
		StdoutId: stdoutID,
		StderrId: stderrID,
	}))

	r.HandleIncoming(wire.NewChannelData(stdinID, []byte("hello router\n")))
	r.HandleIncoming(wire.NewChannelData(stdinID, nil)) // close stdin -> cat exits

	deadline := time.Now().Add(5 * time.Second)
	var sawExit bool
	reader := wire.NewReader(&out)
	var stdout bytes.Buffer
	for time.Now().Before(deadline) {
		cmd, err := reader.ReadCommand()
		if err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if cmd.Tag == wire.TagChannel && cmd.Channel.Id == stdoutID {
			stdout.Write(cmd.Channel.Data)
		}
		if cmd.Tag == wire.TagProcessExit && cmd.ProcessExit.Id == id {
			sawExit = true
			break
		}
	}

	if !sawExit {
		t.Fatal("did not observe ProcessExit frame")
	}
	if stdout.String() != "hello router\n" {
		t.Fatalf("stdout = %q, want %q", stdout.String(), "hello router\n")
	}
}

func TestStatusFromErrorNilIsSuccess(t *testing.T) {
	status := statusFromError(nil)
	if status.ShellCode() != 0 {
		t.Fatalf("status = %+v, want code 0", status)
	}
}
