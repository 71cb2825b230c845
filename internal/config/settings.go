package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const settingsHeader = "# Written by roadmapper. Change with 'roadmapper settings' or 'roadmapper storage'.\n\n"

// Validate checks the pomodoro durations.
func (p PomodoroConfig) Validate() error {
	var errs []error
	if p.WorkMinutes < 1 {
		errs = append(errs, fmt.Errorf("pomodoro.work_minutes must be at least 1, got %d", p.WorkMinutes))
	}
	if p.BreakMinutes < 1 {
		errs = append(errs, fmt.Errorf("pomodoro.break_minutes must be at least 1, got %d", p.BreakMinutes))
	}
	return errors.Join(errs...)
}

// Validate checks that the settings can be applied.
func (s Settings) Validate() error {
	var errs []error
	if !s.Storage.Location.Valid() {
		errs = append(errs, fmt.Errorf("storage.location: unknown location %q", s.Storage.Location))
	}
	if s.Storage.Location == LocationDirectory && s.Storage.Directory == "" {
		errs = append(errs, errors.New("storage.directory is required for the directory backend"))
	}
	if err := s.Pomodoro.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SaveSettings writes s to path atomically.
func SaveSettings(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(settingsHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}

// LoadSettings reads a settings file on its own. Fields the file does not
// set keep their defaults.
func LoadSettings(path string) (Settings, error) {
	cfg := &Config{}
	setDefaults(cfg)
	sources := make(map[string]ConfigSource)
	if err := loadSettingsFile(cfg, path, sources); err != nil {
		return Settings{}, err
	}
	return cfg.Settings(), nil
}
