package process

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ResolveLoginShell finds the shell to use for an interactive login session:
// the current user's shell from the passwd database, otherwise $SHELL if
// set, otherwise /bin/sh as a last resort.
func ResolveLoginShell() (string, error) {
	if shell, err := shellFromPasswd(); err == nil && shell != "" {
		return shell, nil
	}

	if shell := os.Getenv("SHELL"); shell != "" {
		return shell, nil
	}

	return "/bin/sh", nil
}

func shellFromPasswd() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("process: lookup current user: %w", err)
	}
	return shellFromPasswdFile("/etc/passwd", u.Username)
}

// shellFromPasswdFile parses an /etc/passwd-format file looking for
// username's shell field (the 7th colon-separated field). Split out for
// testability against a fixture file instead of the real system database.
func shellFromPasswdFile(path, username string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("process: open passwd db: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 || fields[0] != username {
			continue
		}
		return fields[6], nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("process: no passwd entry for %q", username)
}

// LoginArgv0 formats the dashed argv[0] convention ("-bash") that tells a
// shell to behave as a login shell.
func LoginArgv0(shellPath string) string {
	return "-" + filepath.Base(shellPath)
}
