package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/nibzard/roadmapper/internal/appdir"
)

// findUserConfigFile looks for a user-level config file.
// $ROADMAPPER_CONFIG wins when set; otherwise ~/.roadmapper/roadmapper.toml,
// then the OS-specific config directory.
func findUserConfigFile() string {
	if explicit := os.Getenv("ROADMAPPER_CONFIG"); explicit != "" {
		return expandPath(explicit)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".roadmapper", appdir.ConfigFile)
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	if cfgDir := osUserConfigDir(); cfgDir != "" {
		userConfigPath := filepath.Join(cfgDir, "roadmapper", appdir.ConfigFile)
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	return ""
}

// osUserConfigDir returns the OS-specific user config directory.
// Returns empty string if the directory cannot be determined.
func osUserConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return appdata
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	case "linux", "openbsd", "freebsd", "netbsd":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.DataDir = appdir.DefaultDataDir
	cfg.Storage = StorageConfig{Location: LocationLocal}
	cfg.Pomodoro = PomodoroConfig{
		WorkMinutes:  DefaultWorkMinutes,
		BreakMinutes: DefaultBreakMinutes,
	}
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"data_dir",
		"storage.location",
		"storage.directory",
		"pomodoro.work_minutes",
		"pomodoro.break_minutes",
		"assume_yes",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}

// settingsFields are the fields the settings file may set.
func settingsFields() []string {
	return []string{
		"storage.location",
		"storage.directory",
		"pomodoro.work_minutes",
		"pomodoro.break_minutes",
	}
}
