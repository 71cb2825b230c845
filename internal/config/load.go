package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nibzard/roadmapper/internal/appdir"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.roadmapper/roadmapper.toml or OS-specific config dir)
// 3. Settings file (<data_dir>/settings.toml)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
// Returns ConfigWithSources containing the config and a map of field names to their sources.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	cfg := &Config{}

	// 1. Set defaults (all fields start with default source)
	setDefaults(cfg)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}

	// 2. Try to load from user config file
	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
		cfg.ConfigFile = userConfigFile
	}

	// 3. Override from environment
	if err := loadFromEnv(cfg, sources); err != nil {
		return nil, err
	}

	// 4. Parse CLI flags
	if err := parseFlags(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 5. The settings file lives in the data dir, which env or flags may
	// have moved, so it is read last but only fills fields that neither
	// env nor flags set.
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.SettingsFile = appdir.SettingsPath(cfg.DataDir)
	if err := loadSettingsFile(cfg, cfg.SettingsFile, sources); err != nil {
		return nil, err
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg, sources); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return &ConfigWithSources{
		Config:  cfg,
		Sources: sources,
	}, nil
}

// loadConfigFile loads TOML config from the given file and records which
// fields it defined.
func loadConfigFile(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	for _, field := range configFields() {
		if md.IsDefined(strings.Split(field, ".")...) {
			sources[field] = source
		}
	}
	return nil
}

// loadSettingsFile applies the settings file. A missing file is not an error.
func loadSettingsFile(cfg *Config, path string, sources map[string]ConfigSource) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	var s Settings
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		return fmt.Errorf("loading settings file %s: %w", path, err)
	}

	setters := map[string]func(){
		"storage.location":       func() { cfg.Storage.Location = s.Storage.Location },
		"storage.directory":      func() { cfg.Storage.Directory = s.Storage.Directory },
		"pomodoro.work_minutes":  func() { cfg.Pomodoro.WorkMinutes = s.Pomodoro.WorkMinutes },
		"pomodoro.break_minutes": func() { cfg.Pomodoro.BreakMinutes = s.Pomodoro.BreakMinutes },
	}
	for _, field := range settingsFields() {
		if !md.IsDefined(strings.Split(field, ".")...) {
			continue
		}
		if src := sources[field]; src == SourceEnv || src == SourceFlag {
			continue
		}
		setters[field]()
		sources[field] = SourceSettings
	}
	return nil
}

// finalizeConfig computes derived values and validates them.
func finalizeConfig(cfg *Config, sources map[string]ConfigSource) error {
	if cfg.Storage.Directory != "" {
		dir, err := resolveDirectory(cfg.Storage.Directory, directoryBase(cfg, sources["storage.directory"]))
		if err != nil {
			return fmt.Errorf("resolving storage directory: %w", err)
		}
		cfg.Storage.Directory = dir
	}
	if !cfg.Storage.Location.Valid() {
		return fmt.Errorf("unknown storage location %q", cfg.Storage.Location)
	}
	return cfg.Pomodoro.Validate()
}
