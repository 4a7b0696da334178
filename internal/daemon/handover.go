// Package daemon implements the long-running rsrs daemon: a named node
// reachable over a unix socket that accepts fd handovers from short-lived
// "opener" helper processes, so an interactive session's stdio can be
// reattached to a process the daemon already owns.
package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// OpenRequest is the first thing an opener sends after dialing the daemon
// socket: its own pid and the command/args it was run with, for logging,
// before it hands over three descriptors (its own stdin, stdout, stderr).
type OpenRequest struct {
	Pid     uint32   `json:"pid"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// SendOpenRequest dials sockPath and hands over stdin/stdout/stderr to
// whatever is listening there, bracketing each fd transfer with a Response
// acknowledgement so the caller knows the daemon actually received it before
// moving on to the next one.
func SendOpenRequest(sockPath string, req OpenRequest, stdin, stdout, stderr *os.File) error {
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return fmt.Errorf("daemon: dial %s: %w", sockPath, err)
	}
	defer conn.Close()

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("daemon: %s is not a unix socket connection", sockPath)
	}
	return sendOpenRequestConn(uc, req, stdin, stdout, stderr)
}

// sendOpenRequestConn runs the client half of the handover protocol over an
// already-dialed connection, leaving it open for the caller (Attach keeps it
// open afterward to detect a later detach).
func sendOpenRequestConn(uc *net.UnixConn, req OpenRequest, stdin, stdout, stderr *os.File) error {
	if err := writeLine(uc, req); err != nil {
		return fmt.Errorf("daemon: send open request: %w", err)
	}
	if err := expectOK(uc); err != nil {
		return fmt.Errorf("daemon: open request rejected: %w", err)
	}

	for _, f := range []*os.File{stdin, stdout, stderr} {
		if err := sendFD(uc, f); err != nil {
			return fmt.Errorf("daemon: handover fd %s: %w", f.Name(), err)
		}
		if err := expectOK(uc); err != nil {
			return fmt.Errorf("daemon: fd %s rejected: %w", f.Name(), err)
		}
	}

	if err := expectOK(uc); err != nil {
		return fmt.Errorf("daemon: handover not finalized: %w", err)
	}
	return nil
}

// AcceptOpen reads an OpenRequest and receives the three handed-over fds
// from a freshly-accepted connection, replying Ok to every step that
// succeeds and Err to the first that doesn't.
func AcceptOpen(conn *net.UnixConn) (req OpenRequest, stdin, stdout, stderr *os.File, err error) {
	if err := readLine(conn, &req); err != nil {
		return OpenRequest{}, nil, nil, nil, fmt.Errorf("daemon: read open request: %w", err)
	}
	if err := writeResponse(conn, okResponse()); err != nil {
		return OpenRequest{}, nil, nil, nil, fmt.Errorf("daemon: ack open request: %w", err)
	}

	files := make([]*os.File, 3)
	for i := range files {
		f, ferr := recvFD(conn)
		if ferr != nil {
			writeResponse(conn, errResponse(ferr))
			return OpenRequest{}, nil, nil, nil, fmt.Errorf("daemon: receive fd %d: %w", i, ferr)
		}
		files[i] = f
		if err := writeResponse(conn, okResponse()); err != nil {
			return OpenRequest{}, nil, nil, nil, fmt.Errorf("daemon: ack fd %d: %w", i, err)
		}
	}

	if err := writeResponse(conn, okResponse()); err != nil {
		return OpenRequest{}, nil, nil, nil, fmt.Errorf("daemon: finalize handover: %w", err)
	}
	return req, files[0], files[1], files[2], nil
}

func okResponse() Response {
	var r Response
	r.AddMessage("", "OK")
	return r
}

func errResponse(err error) Response {
	var r Response
	r.AddMessage(err.Error(), "ERROR")
	return r
}

func (r Response) isOK() bool {
	for _, m := range r.Messages {
		if m.Status == "ERROR" {
			return false
		}
	}
	return true
}

// expectOK reads a Response off uc and turns an Err reply into a Go error.
func expectOK(uc *net.UnixConn) error {
	resp, err := readResponse(uc)
	if err != nil {
		return err
	}
	if !resp.isOK() {
		return fmt.Errorf("%s", resp.ToJSON())
	}
	return nil
}

// writeLine JSON-encodes v as a single newline-terminated write, so it lands
// on the wire as one write(2) call the peer can read back byte-at-a-time
// without risking a buffered reader swallowing bytes meant for the next
// SCM_RIGHTS message.
func writeLine(conn net.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

func writeResponse(conn net.Conn, resp Response) error {
	return writeLine(conn, resp)
}

// readLine and readResponse both read directly off the connection one byte
// at a time instead of through a bufio.Reader: a bufio.Reader may read ahead
// past the newline, and on a unix stream socket that read-ahead could
// silently swallow the payload byte the next fd handover's SCM_RIGHTS
// control message is attached to.
func readLine(conn net.Conn, v interface{}) error {
	line, err := readLineBytes(conn)
	if err != nil {
		return err
	}
	return json.Unmarshal(line, v)
}

func readResponse(conn net.Conn) (Response, error) {
	var resp Response
	line, err := readLineBytes(conn)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, fmt.Errorf("daemon: decode response: %w", err)
	}
	return resp, nil
}

func readLineBytes(conn net.Conn) ([]byte, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		if buf[0] == '\n' {
			return line, nil
		}
		line = append(line, buf[0])
	}
}

func sendFD(uc *net.UnixConn, f *os.File) error {
	raw, err := uc.SyscallConn()
	if err != nil {
		return err
	}
	oob := unix.UnixRights(int(f.Fd()))
	var sendErr error
	ctrlErr := raw.Write(func(fd uintptr) bool {
		sendErr = unix.Sendmsg(int(fd), []byte{0}, oob, nil, 0)
		return sendErr != unix.EAGAIN
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sendErr
}

func recvFD(uc *net.UnixConn) (*os.File, error) {
	raw, err := uc.SyscallConn()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	var n, oobn int
	var recvErr error
	ctrlErr := raw.Read(func(fd uintptr) bool {
		n, oobn, _, _, recvErr = unix.Recvmsg(int(fd), buf, oob, 0)
		return recvErr != unix.EAGAIN
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	}
	if recvErr != nil {
		return nil, recvErr
	}
	if n == 0 {
		return nil, fmt.Errorf("daemon: peer closed connection during fd handover")
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, fmt.Errorf("daemon: parse control message: %w", err)
	}
	if len(cmsgs) == 0 {
		return nil, fmt.Errorf("daemon: no control message received")
	}
	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil {
		return nil, fmt.Errorf("daemon: parse unix rights: %w", err)
	}
	if len(fds) != 1 {
		return nil, fmt.Errorf("daemon: expected 1 fd, got %d", len(fds))
	}
	return os.NewFile(uintptr(fds[0]), "handed-over-fd"), nil
}
