package config

import (
	"flag"
)

// parseFlags defines the global flags, parses them and records which were set.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("roadmapper", flag.ContinueOnError)
	}

	location := string(cfg.Storage.Location)

	// Paths and storage
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Data directory for the database and settings")
	fs.StringVar(&location, "storage", location, "Storage backend (local, directory)")
	fs.StringVar(&cfg.Storage.Directory, "dir", cfg.Storage.Directory, "Directory used by the directory backend")

	// Prompts
	fs.BoolVar(&cfg.AssumeYes, "yes", cfg.AssumeYes, "Answer yes to permission prompts")
	fs.BoolVar(&cfg.AssumeYes, "y", cfg.AssumeYes, "Answer yes to permission prompts (shorthand)")

	// Logging
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json, logfmt)")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Show timestamps in logs")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Show caller location in logs")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Map flag names to source field names
	flagToSource := map[string]string{
		"data-dir":       "data_dir",
		"storage":        "storage.location",
		"dir":            "storage.directory",
		"yes":            "assume_yes",
		"y":              "assume_yes",
		"log-level":      "log_level",
		"log-format":     "log_format",
		"log-timestamps": "log_timestamps",
		"log-caller":     "log_caller",
	}

	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		if field, ok := flagToSource[f.Name]; ok {
			sources[field] = SourceFlag
		}
		if f.Name == "storage" {
			loc, err := ParseLocation(location)
			if err != nil {
				parseErr = err
				return
			}
			cfg.Storage.Location = loc
		}
	})
	return parseErr
}
