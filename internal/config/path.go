package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the default data directory for the host OS. The
// first matching candidate wins: $XDG_DATA_HOME/drumbeat, /var/lib/drumbeat,
// the macOS and Windows per-user application directories, ~/.drumbeat.
// Without a home directory it falls back to ./data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "drumbeat")
	}

	candidates := []struct{ probe, dir string }{
		{"/var/lib", "/var/lib/drumbeat"},
		{filepath.Join(home, "Library"), filepath.Join(home, "Library", "Application Support", "Drumbeat")},
		{filepath.Join(home, "AppData"), filepath.Join(home, "AppData", "Local", "Drumbeat")},
	}
	for _, c := range candidates {
		if isDir(c.probe) {
			return c.dir
		}
	}
	return filepath.Join(home, ".drumbeat")
}

// StoreDir returns where the pebble backend keeps its files.
func (c Config) StoreDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return filepath.Join(DefaultDataDir(), "store")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
