package core

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// InitializeConfig resolves --config-path from cmd's flags, loads config.hcl
// (and config.d/ fragments) from it if present, and sets the package-level
// Config. Any informational messages (e.g. "no config file, using defaults")
// are returned for the caller to print, matching the convention used
// throughout the command layer.
func InitializeConfig(cmd *cobra.Command) ([]string, error) {
	var messages []string

	configPath, err := cmd.Flags().GetString("config-path")
	if err != nil {
		return nil, fmt.Errorf("core: read config-path flag: %w", err)
	}

	mainFile := filepath.Join(configPath, "config.hcl")
	configDir := filepath.Join(configPath, "config.d")

	if !ConfigExists(mainFile) {
		messages = append(messages, fmt.Sprintf("no config file at %s, using defaults", mainFile))
		Config = GetDefaultConfig()
		Config.ConfigPath = configPath
		return messages, nil
	}

	cfg, err := LoadConfigDir(mainFile, configDir)
	if err != nil {
		return messages, err
	}
	cfg.ConfigPath = configPath
	Config = cfg
	return messages, nil
}

// WatchConfig watches the config file and its config.d fragments directory
// for changes, invoking onChange with the freshly reloaded configuration
// whenever something changes. It's meant for long-running daemon processes
// that want to pick up forward_env or queue_capacity edits without a
// restart; intended errors from onChange are logged by the caller, not
// returned here, since a single bad edit shouldn't kill the watch loop.
func WatchConfig(configPath string, onChange func(*Configuration, error)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("core: create config watcher: %w", err)
	}

	mainFile := filepath.Join(configPath, "config.hcl")
	configDir := filepath.Join(configPath, "config.d")

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("core: watch %s: %w", configPath, err)
	}
	// config.d may not exist yet; that's fine, fsnotify just won't fire for
	// fragments added before it does.
	_ = watcher.Add(configDir)

	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := LoadConfigDir(mainFile, configDir)
			onChange(cfg, err)
		}
	}()

	return watcher, nil
}
