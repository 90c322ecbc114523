// Package fsutil resolves the filesystem paths botd and botctl accept from
// flags, config files and the environment.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultHistoryFile is where botctl keeps REPL history.
const DefaultHistoryFile = "~/.botctl_history"

// HistoryEnv overrides DefaultHistoryFile.
const HistoryEnv = "BOTCTL_HISTORY"

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
// Other paths, including "~user" forms, are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

// ConfigFile resolves a --config argument to an existing regular file.
func ConfigFile(path string) (string, error) {
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("config file %s not found", p)
	case err != nil:
		return "", fmt.Errorf("config file %s: %w", p, err)
	case info.IsDir():
		return "", fmt.Errorf("config file %s is a directory", p)
	}
	return p, nil
}

// LogFile makes the agent log path absolute and creates its directory. An
// empty path disables the file sink and yields "".
func LogFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	if p, err = filepath.Abs(p); err != nil {
		return "", fmt.Errorf("log file %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("log directory: %w", err)
	}
	return p, nil
}

// HistoryFile returns the botctl history path, or "" when neither the
// override nor a home directory is available.
func HistoryFile(getenv func(string) string) string {
	path := DefaultHistoryFile
	if v := getenv(HistoryEnv); v != "" {
		path = v
	}
	p, err := ExpandHome(path)
	if err != nil {
		return ""
	}
	return p
}
