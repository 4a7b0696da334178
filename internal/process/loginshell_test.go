package process

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShellFromPasswdFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	content := "# comment\nroot:x:0:0:root:/root:/bin/bash\nalice:x:1000:1000:Alice:/home/alice:/usr/bin/zsh\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	shell, err := shellFromPasswdFile(path, "alice")
	if err != nil {
		t.Fatalf("shellFromPasswdFile: %v", err)
	}
	if shell != "/usr/bin/zsh" {
		t.Fatalf("shell = %q, want /usr/bin/zsh", shell)
	}

	if _, err := shellFromPasswdFile(path, "nobody"); err == nil {
		t.Fatal("expected error for missing user")
	}
}

func TestLoginArgv0(t *testing.T) {
	if got := LoginArgv0("/usr/bin/zsh"); got != "-zsh" {
		t.Fatalf("LoginArgv0 = %q, want -zsh", got)
	}
	if got := LoginArgv0("/bin/sh"); got != "-sh" {
		t.Fatalf("LoginArgv0 = %q, want -sh", got)
	}
}

func TestResolveLoginShellHonorsEnv(t *testing.T) {
	// $SHELL is used when the passwd database has no shell for the current
	// user; a passwd entry takes precedence over it.
	t.Setenv("SHELL", "/bin/custom-shell")
	want := "/bin/custom-shell"
	if pw, err := shellFromPasswd(); err == nil && pw != "" {
		want = pw
	}
	shell, err := ResolveLoginShell()
	if err != nil {
		t.Fatalf("ResolveLoginShell: %v", err)
	}
	if shell != want {
		t.Fatalf("shell = %q, want %q", shell, want)
	}
}
