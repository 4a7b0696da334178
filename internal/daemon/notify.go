package daemon

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// NotifyExit sends a best-effort desktop notification when a hosted session
// ends abnormally (non-zero exit or a signal). Failure to reach a
// notification daemon (headless host, no session bus, etc.) is logged and
// otherwise ignored — this is a convenience, never a requirement for
// correct operation.
func NotifyExit(nodeName string, shellCode int, signaled bool) {
	if shellCode == 0 {
		return
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		slog.Debug("daemon: desktop notification skipped: no session bus", "error", err)
		return
	}
	defer conn.Close()

	summary := fmt.Sprintf("rsrs session %q ended", nodeName)
	body := fmt.Sprintf("exit code %d", shellCode)
	if signaled {
		body = fmt.Sprintf("killed by signal (%d)", shellCode-128)
	}

	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"rsrs", uint32(0), "", summary, body, []string{}, map[string]dbus.Variant{}, int32(5000))
	if call.Err != nil {
		slog.Debug("daemon: desktop notification failed", "error", call.Err)
	}
}
