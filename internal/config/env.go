package config

import (
	"fmt"
	"os"
	"strings"
)

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	set := func(field string) {
		sources[field] = SourceEnv
	}

	if v := os.Getenv("ROADMAPPER_DATA_DIR"); v != "" {
		cfg.DataDir = v
		set("data_dir")
	}
	if v := os.Getenv("ROADMAPPER_STORAGE"); v != "" {
		loc, err := ParseLocation(v)
		if err != nil {
			return fmt.Errorf("ROADMAPPER_STORAGE: %w", err)
		}
		cfg.Storage.Location = loc
		set("storage.location")
	}
	if v := os.Getenv("ROADMAPPER_DIRECTORY"); v != "" {
		cfg.Storage.Directory = v
		set("storage.directory")
	}
	if v := os.Getenv("ROADMAPPER_POMODORO_WORK"); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			cfg.Pomodoro.WorkMinutes = i
			set("pomodoro.work_minutes")
		}
	}
	if v := os.Getenv("ROADMAPPER_POMODORO_BREAK"); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			cfg.Pomodoro.BreakMinutes = i
			set("pomodoro.break_minutes")
		}
	}
	if v := os.Getenv("ROADMAPPER_YES"); v != "" {
		cfg.AssumeYes = boolFromString(v)
		set("assume_yes")
	}

	// Logging configuration
	if v := os.Getenv("ROADMAPPER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
		set("log_level")
	}
	if v := os.Getenv("ROADMAPPER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
		set("log_format")
	}
	if v := os.Getenv("ROADMAPPER_LOG_TIMESTAMPS"); v != "" {
		cfg.LogTimestamps = boolFromString(v)
		set("log_timestamps")
	}
	if v := os.Getenv("ROADMAPPER_LOG_CALLER"); v != "" {
		cfg.LogCaller = boolFromString(v)
		set("log_caller")
	}
	return nil
}

func boolFromString(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
