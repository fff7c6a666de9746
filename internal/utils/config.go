package utils

import (
	"os"
	"path/filepath"
)

// GetProjectRoot returns the nearest ancestor of the working directory that
// holds a go.mod, or "." if there is none.
func GetProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "."
}

// GetDataDir returns the directory pinauth keeps its database and pepper
// files in: $XDG_DATA_HOME/pinauth, ~/.local/share/pinauth, or
// <project root>/pinauth_data as a last resort.
func GetDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "pinauth")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "pinauth")
	}
	return filepath.Join(GetProjectRoot(), "pinauth_data")
}
