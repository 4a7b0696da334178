package daemon

import (
	"net"
	"path/filepath"
	"testing"
)

func TestControlRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ServeControl(conn, func(command string) Response {
			if command != "PING" {
				r := Response{}
				r.AddMessage("unknown command", "ERROR")
				return r
			}
			r := Response{}
			r.AddData(map[string]string{"pong": "true"})
			return r
		})
	}()

	resp, err := SendControlCommand(path, "PING")
	if err != nil {
		t.Fatalf("SendControlCommand: %v", err)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["pong"] != "true" {
		t.Fatalf("resp.Data = %#v", resp.Data)
	}
}
