// Package appdir provides constants and utilities for the roadmapper data directory.
package appdir

import (
	"errors"
	"io/fs"
	"path/filepath"
)

const (
	// DefaultDataDir is the default data directory (tilde-expanded by config).
	DefaultDataDir = "~/.roadmapper"

	// DataFile is the document file name written inside a chosen directory.
	DataFile = "roadmap-data.json"

	// ConfigFile is the user configuration file name.
	ConfigFile = "roadmapper.toml"

	// SettingsFile holds settings changed from inside the app.
	SettingsFile = "settings.toml"

	// DatabaseFile is the SQLite file backing local storage.
	DatabaseFile = "roadmapper.db"

	// LockSuffix is appended to a data file path to form its lock file.
	LockSuffix = ".lock"
)

// SettingsPath returns the full path to the settings file within a data directory.
func SettingsPath(dataDir string) string {
	return joinPath(dataDir, SettingsFile)
}

// DatabasePath returns the full path to the local storage database.
func DatabasePath(dataDir string) string {
	return joinPath(dataDir, DatabaseFile)
}

// ConfigPath returns the full path to the config file within a data directory.
func ConfigPath(dataDir string) string {
	return joinPath(dataDir, ConfigFile)
}

// DataPath returns the path of the document file inside a chosen directory.
func DataPath(dir string) string {
	return joinPath(dir, DataFile)
}

func joinPath(dir, file string) string {
	if dir == "." || dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}

// Canonical returns the absolute, symlink-free form of path, so one
// directory is always recorded under one path. A path that does not exist
// yet is only made absolute.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return abs, nil
	}
	if err != nil {
		return "", err
	}
	return resolved, nil
}
