package daemon

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

func TestFDHandoverRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "handover.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type result struct {
		req                   OpenRequest
		stdin, stdout, stderr *os.File
		err                   error
	}
	serverResult := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverResult <- result{err: err}
			return
		}
		defer conn.Close()
		req, stdin, stdout, stderr, err := AcceptOpen(conn.(*net.UnixConn))
		serverResult <- result{req: req, stdin: stdin, stdout: stdout, stderr: stderr, err: err}
	}()

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer stdinW.Close()
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer stdoutR.Close()
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer stderrR.Close()

	req := OpenRequest{Pid: 4242, Command: "bash", Args: []string{"-l"}}
	if err := SendOpenRequest(sockPath, req, stdinR, stdoutW, stderrW); err != nil {
		t.Fatalf("SendOpenRequest: %v", err)
	}

	res := <-serverResult
	if res.err != nil {
		t.Fatalf("AcceptOpen: %v", res.err)
	}
	if res.req.Pid != 4242 || res.req.Command != "bash" {
		t.Fatalf("req = %+v", res.req)
	}

	// Prove the handed-over stdin fd is the same pipe: write through the
	// original write end and read from the fd the daemon received.
	msg := []byte("hello from opener\n")
	go func() {
		stdinW.Write(msg)
	}()
	buf := make([]byte, len(msg))
	if _, err := res.stdin.Read(buf); err != nil {
		t.Fatalf("read from handed-over stdin: %v", err)
	}
	if string(buf) != string(msg) {
		t.Fatalf("got %q, want %q", buf, msg)
	}

	// And the reverse for stdout: daemon writes, opener's read end sees it.
	go func() {
		res.stdout.Write([]byte("reply\n"))
	}()
	buf2 := make([]byte, len("reply\n"))
	if _, err := stdoutR.Read(buf2); err != nil {
		t.Fatalf("read from stdout pipe: %v", err)
	}
	if string(buf2) != "reply\n" {
		t.Fatalf("got %q, want %q", buf2, "reply\n")
	}
}
