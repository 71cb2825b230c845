package config

import (
	"fmt"
	"path/filepath"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceSettings ConfigSource = "settings file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
}

// Default values.
const (
	DefaultWorkMinutes  = 25
	DefaultBreakMinutes = 5
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// StorageConfig selects where the document lives.
type StorageConfig struct {
	Location Location `toml:"location"`
	// Directory is the chosen directory for the directory backend.
	Directory string `toml:"directory,omitempty"`
}

// DirectoryName returns the display name of the chosen directory.
func (s StorageConfig) DirectoryName() string {
	if s.Directory == "" {
		return ""
	}
	return filepath.Base(s.Directory)
}

// Describe returns a short human description such as
// `directory "plans" (/home/me/plans)`.
func (s StorageConfig) Describe() string {
	if s.Location == LocationDirectory {
		if s.Directory == "" {
			return "directory (none selected)"
		}
		return fmt.Sprintf("directory %q (%s)", s.DirectoryName(), s.Directory)
	}
	return "local storage"
}

// Same reports whether s and other point at the same storage location.
func (s StorageConfig) Same(other StorageConfig) bool {
	if s.Location != other.Location {
		return false
	}
	if s.Location == LocationDirectory {
		return filepath.Clean(s.Directory) == filepath.Clean(other.Directory)
	}
	return true
}

// PomodoroConfig holds focus session durations in minutes.
type PomodoroConfig struct {
	WorkMinutes  int `toml:"work_minutes"`
	BreakMinutes int `toml:"break_minutes"`
}

// Config holds the full configuration for roadmapper.
type Config struct {
	// DataDir holds the local database and the settings file.
	DataDir string `toml:"data_dir"`

	Storage  StorageConfig  `toml:"storage"`
	Pomodoro PomodoroConfig `toml:"pomodoro"`

	// AssumeYes answers permission prompts with yes.
	AssumeYes bool `toml:"assume_yes"`

	// Logging configuration
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Computed
	ConfigFile   string `toml:"-"`
	SettingsFile string `toml:"-"`
}

// Settings is the part of the configuration the app itself changes and
// persists.
type Settings struct {
	Storage  StorageConfig  `toml:"storage"`
	Pomodoro PomodoroConfig `toml:"pomodoro"`
}

// Settings returns the current app settings.
func (c *Config) Settings() Settings {
	return Settings{Storage: c.Storage, Pomodoro: c.Pomodoro}
}
