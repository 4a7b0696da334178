package wire

import (
	"bytes"
	"io"
	"testing"
)

func roundTrip(t *testing.T, cmd Command) Command {
	t.Helper()
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteCommand(cmd); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	got, err := NewReader(&buf).ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	return got
}

func TestRoundTripVariants(t *testing.T) {
	id := Id{Kind: Remote, N: 7}

	cases := []Command{
		NewSetEnv("TERM", "xterm-256color"),
		NewSpawn(SpawnRequest{Id: id, LoginShell: true, Pty: true, PtyWidth: 80, PtyHeight: 24}),
		NewChannelData(id, []byte("hello")),
		NewChannelData(id, nil), // EOF marker
		NewWindowSize(id, WindowSize{Rows: 40, Cols: 120}),
		NewProcessExit(id, ExitCode(0)),
		NewProcessExit(id, ExitSignal(9)),
		NewExit(),
	}

	for i, want := range cases {
		got := roundTrip(t, want)
		if got.Tag != want.Tag {
			t.Fatalf("case %d: tag = %v, want %v", i, got.Tag, want.Tag)
		}
	}
}

func TestMultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	id := Id{Kind: Local, N: 1}
	want := []Command{
		NewSetEnv("A", "1"),
		NewChannelData(id, []byte("x")),
		NewProcessExit(id, ExitCode(3)),
	}
	for _, cmd := range want {
		if err := w.WriteCommand(cmd); err != nil {
			t.Fatalf("WriteCommand: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, wantCmd := range want {
		got, err := r.ReadCommand()
		if err != nil {
			t.Fatalf("frame %d: ReadCommand: %v", i, err)
		}
		if got.Tag != wantCmd.Tag {
			t.Fatalf("frame %d: tag = %v, want %v", i, got.Tag, wantCmd.Tag)
		}
	}
	if _, err := r.ReadCommand(); err != io.EOF {
		t.Fatalf("expected io.EOF at stream end, got %v", err)
	}
}

func TestOversizeFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	// Hand-craft a length prefix claiming a frame larger than MaxFrameLength,
	// without actually writing that many bytes — the reader must reject on
	// the length alone, not hang trying to read the body.
	lenPrefix := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	buf.Write(lenPrefix)

	if _, err := NewReader(&buf).ReadCommand(); err == nil {
		t.Fatal("expected error for oversized frame length")
	}
}

func TestProcessKindString(t *testing.T) {
	if Local.String() != "local" {
		t.Errorf("Local.String() = %q", Local.String())
	}
	if Remote.String() != "remote" {
		t.Errorf("Remote.String() = %q", Remote.String())
	}
}

func TestExitStatusShellCode(t *testing.T) {
	if got := ExitCode(3).ShellCode(); got != 3 {
		t.Errorf("ExitCode(3).ShellCode() = %d, want 3", got)
	}
	if got := ExitSignal(9).ShellCode(); got != 137 {
		t.Errorf("ExitSignal(9).ShellCode() = %d, want 137", got)
	}
}
