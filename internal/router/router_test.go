package router

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gifnksm/rsrs/internal/wire"
)

func TestNewIDUnique(t *testing.T) {
	r := New(wire.Local, wire.NewWriter(&bytes.Buffer{}), nil)
	seen := make(map[wire.Id]bool)
	for i := 0; i < 1000; i++ {
		id := r.NewID()
		if seen[id] {
			t.Fatalf("duplicate id minted: %+v", id)
		}
		seen[id] = true
		if id.Kind != wire.Local {
			t.Fatalf("id kind = %v, want Local", id.Kind)
		}
	}
}

func TestInsertChannelRejectsDuplicate(t *testing.T) {
	r := New(wire.Local, wire.NewWriter(&bytes.Buffer{}), nil)
	id := r.NewID()

	recv, err := r.InsertChannel(id)
	if err != nil {
		t.Fatalf("first InsertChannel: %v", err)
	}
	defer recv.Close()

	if _, err := r.InsertChannel(id); err != ErrIdInUse {
		t.Fatalf("second InsertChannel err = %v, want ErrIdInUse", err)
	}
}

func TestChannelOrderingAndEOF(t *testing.T) {
	r := New(wire.Local, wire.NewWriter(&bytes.Buffer{}), nil)
	id := r.NewID()

	recv, err := r.InsertChannel(id)
	if err != nil {
		t.Fatalf("InsertChannel: %v", err)
	}

	ctx := context.Background()
	go func() {
		r.HandleIncoming(wire.NewChannelData(id, []byte("a")))
		r.HandleIncoming(wire.NewChannelData(id, []byte("b")))
		r.HandleIncoming(wire.NewChannelData(id, nil)) // EOF
	}()

	msg1, ok := recv.Recv(ctx)
	if !ok || string(msg1.Data) != "a" {
		t.Fatalf("msg1 = %+v, ok=%v", msg1, ok)
	}
	msg2, ok := recv.Recv(ctx)
	if !ok || string(msg2.Data) != "b" {
		t.Fatalf("msg2 = %+v, ok=%v", msg2, ok)
	}
	msg3, ok := recv.Recv(ctx)
	if !ok || len(msg3.Data) != 0 {
		t.Fatal("expected EOF message to still be delivered")
	}
	// After EOF, channel is torn down; further Recv should report closed.
	_, ok = recv.Recv(ctx)
	if ok {
		t.Fatal("expected channel closed after EOF")
	}
}

func TestChannelDataForUnknownIdDiscarded(t *testing.T) {
	r := New(wire.Local, wire.NewWriter(&bytes.Buffer{}), nil)
	unknown := wire.Id{Kind: wire.Remote, N: 999}
	// Must not block or panic.
	r.HandleIncoming(wire.NewChannelData(unknown, []byte("lost")))

	// Router should remain responsive afterwards.
	id := r.NewID()
	if _, err := r.InsertChannel(id); err != nil {
		t.Fatalf("router wedged after discarding unknown id: %v", err)
	}
}

func TestStatusNotifierFulfilledOnce(t *testing.T) {
	r := New(wire.Local, wire.NewWriter(&bytes.Buffer{}), nil)
	id := r.NewID()

	recv, err := r.InsertStatusNotifier(id)
	if err != nil {
		t.Fatalf("InsertStatusNotifier: %v", err)
	}

	r.HandleIncoming(wire.NewProcessExit(id, wire.ExitCode(42)))

	ctx := context.Background()
	status, ok := recv.Recv(ctx)
	if !ok {
		t.Fatal("expected status delivered")
	}
	if status.ShellCode() != 42 {
		t.Fatalf("status = %+v, want code 42", status)
	}
}

func TestSpawnFailureSynthesizesExit(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	r := New(wire.Remote, w, func(env map[string]string, req wire.SpawnRequest) error {
		return errNotFound{}
	})

	id := wire.Id{Kind: wire.Local, N: 1}
	r.HandleIncoming(wire.NewSpawn(wire.SpawnRequest{Id: id, Program: []string{"does-not-exist"}}))

	// Give the actor a moment to process; it runs synchronously relative to
	// HandleIncoming's delivery but the write happens before the call
	// returns only because dispatchIncoming runs inline in the actor loop,
	// so by the time a subsequent round-trip completes it must be written.
	deadline := time.Now().Add(time.Second)
	for buf.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	r2 := wire.NewReader(&buf)
	cmd, err := r2.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if cmd.Tag != wire.TagProcessExit || cmd.ProcessExit.Status.ShellCode() != 127 {
		t.Fatalf("cmd = %+v, want ProcessExit(127)", cmd)
	}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func TestSendSerializesWrites(t *testing.T) {
	var buf bytes.Buffer
	r := New(wire.Local, wire.NewWriter(&buf), nil)
	id := r.NewID()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			_ = r.Send(wire.NewChannelData(id, []byte("x")))
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	reader := wire.NewReader(&buf)
	count := 0
	for {
		_, err := reader.ReadCommand()
		if err != nil {
			break
		}
		count++
	}
	if count != 10 {
		t.Fatalf("decoded %d frames, want 10 (interleaved/corrupt writes would break framing)", count)
	}
}
