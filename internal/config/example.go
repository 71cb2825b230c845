package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# roadmapper configuration file
# Place at ~/.roadmapper/roadmapper.toml (or set ROADMAPPER_CONFIG).
# Values can be overridden by environment variables or CLI flags.

# Data directory for the local database and settings.toml
# (supports ~ expansion and %VAR% on Windows)
data_dir = "~/.roadmapper"

# Answer yes to directory permission prompts
assume_yes = false

# Logging
log_level = "info"      # debug, info, warn, error
log_format = "text"     # text, json, logfmt
log_timestamps = false
log_caller = false

[storage]
# Where the roadmap document lives: "local" (SQLite in data_dir) or
# "directory" (roadmap-data.json inside the directory below).
# Prefer 'roadmapper storage' to change this: it offers to move your data.
location = "local"
# directory = "~/Documents/roadmaps"

[pomodoro]
work_minutes = 25
break_minutes = 5
`
}
