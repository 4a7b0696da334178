// Package core holds configuration, versioning, and other ambient state
// shared across the rsrs commands.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the global configuration instance, populated by InitializeConfig.
var Config *Configuration

// BaseDirName is the default directory (under $HOME) holding rsrs's config
// file, config.d fragments, and unix sockets.
const BaseDirName = ".rsrs"

// Configuration is the complete, resolved rsrs configuration.
type Configuration struct {
	ConfigPath string // directory containing config.hcl and config.d/

	Verbose  int    // verbosity level, from -v or the config file
	LogLevel string // slog level name; verbose flag overrides this

	// ForwardEnv lists environment variable names to forward from the local
	// session to the remote one, via SetEnv commands sent before Spawn.
	ForwardEnv []string

	// QueueCapacity is the per-channel bounded queue depth in the router.
	// Must be >= 64; the protocol's only flow control is this backpressure.
	QueueCapacity int

	// PtyMode controls pty allocation policy: "auto" (default — allocate
	// when stdin is a tty), "enable", or "disable".
	PtyMode string
}

// hclConfig mirrors Configuration for HCL decoding; every field is optional
// so a config file only needs to set what it wants to override.
type hclConfig struct {
	Verbose       *int     `hcl:"verbose,optional"`
	LogLevel      *string  `hcl:"log_level,optional"`
	ForwardEnv    []string `hcl:"forward_env,optional"`
	QueueCapacity *int     `hcl:"queue_capacity,optional"`
	PtyMode       *string  `hcl:"pty_mode,optional"`
}

func parseHCLFile(filename string) (*hclConfig, error) {
	var cfg hclConfig
	if err := hclsimple.DecodeFile(filename, nil, &cfg); err != nil {
		return nil, fmt.Errorf("core: parse %s: %w", filename, err)
	}
	return &cfg, nil
}

func convertHCLConfig(h *hclConfig) *Configuration {
	cfg := GetDefaultConfig()
	if h.Verbose != nil {
		cfg.Verbose = *h.Verbose
	}
	if h.LogLevel != nil {
		cfg.LogLevel = *h.LogLevel
	}
	if h.ForwardEnv != nil {
		cfg.ForwardEnv = h.ForwardEnv
	}
	if h.QueueCapacity != nil {
		cfg.QueueCapacity = *h.QueueCapacity
	}
	if h.PtyMode != nil {
		cfg.PtyMode = *h.PtyMode
	}
	return cfg
}

// LoadConfig parses a single HCL config file.
func LoadConfig(filename string) (*Configuration, error) {
	hclCfg, err := parseHCLFile(filename)
	if err != nil {
		return nil, err
	}
	return convertHCLConfig(hclCfg), nil
}

// LoadConfigDir loads mainFile and merges any *.hcl fragments from configDir,
// in alphabetical order. A missing configDir is not an error.
func LoadConfigDir(mainFile, configDir string) (*Configuration, error) {
	merged, err := parseHCLFile(mainFile)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return convertHCLConfig(merged), nil
		}
		return nil, fmt.Errorf("core: read config directory %s: %w", configDir, err)
	}

	var fragments []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".hcl" {
			continue
		}
		fragments = append(fragments, entry.Name())
	}
	sort.Strings(fragments)

	for _, name := range fragments {
		frag, err := parseHCLFile(filepath.Join(configDir, name))
		if err != nil {
			return nil, fmt.Errorf("core: %s: %w", name, err)
		}
		mergeHCLConfig(merged, frag)
	}

	return convertHCLConfig(merged), nil
}

// mergeHCLConfig merges src into dst; scalars use last-non-nil-wins and
// ForwardEnv accumulates (so fragments can each add variables to forward
// without needing to repeat earlier ones).
func mergeHCLConfig(dst, src *hclConfig) {
	if src.Verbose != nil {
		dst.Verbose = src.Verbose
	}
	if src.LogLevel != nil {
		dst.LogLevel = src.LogLevel
	}
	if src.QueueCapacity != nil {
		dst.QueueCapacity = src.QueueCapacity
	}
	if src.PtyMode != nil {
		dst.PtyMode = src.PtyMode
	}
	if len(src.ForwardEnv) > 0 {
		dst.ForwardEnv = appendUnique(dst.ForwardEnv, src.ForwardEnv)
	}
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if !seen[v] {
			dst = append(dst, v)
			seen[v] = true
		}
	}
	return dst
}

// GetDefaultConfig returns the built-in defaults used when no config file is
// present.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		LogLevel:      "info",
		ForwardEnv:    []string{"TERM", "RSRS_BACKTRACE", "RSRS_LOG"},
		QueueCapacity: 64,
		PtyMode:       "auto",
	}
}

// ConfigExists reports whether a config file exists at configPath.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return err == nil
}

// GetSocketDir returns the directory holding daemon unix sockets, creating
// it if necessary.
func GetSocketDir() (string, error) {
	dir := Config.ConfigPath
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("core: resolve home directory: %w", err)
		}
		dir = filepath.Join(home, BaseDirName)
	}
	sockDir := filepath.Join(dir, "sockets")
	if err := os.MkdirAll(sockDir, 0o700); err != nil {
		return "", fmt.Errorf("core: create socket directory: %w", err)
	}
	return sockDir, nil
}

// GetSocketPath returns the handover socket path for a named daemon node.
func GetSocketPath(nodeName string) (string, error) {
	dir, err := GetSocketDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, nodeName+".sock"), nil
}

// GetControlSocketPath returns the control-command socket path for a named
// daemon node, kept separate from the handover socket (see ServeControl).
func GetControlSocketPath(nodeName string) (string, error) {
	dir, err := GetSocketDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, nodeName+".ctl.sock"), nil
}

// GetAuditDBPath returns the sqlite audit-trail path for a named daemon
// node, creating its parent directory if necessary.
func GetAuditDBPath(nodeName string) (string, error) {
	dir := Config.ConfigPath
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("core: resolve home directory: %w", err)
		}
		dir = filepath.Join(home, BaseDirName)
	}
	auditDir := filepath.Join(dir, "audit")
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		return "", fmt.Errorf("core: create audit directory: %w", err)
	}
	return filepath.Join(auditDir, nodeName+".db"), nil
}
