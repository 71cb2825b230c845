// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.roadmapper/roadmapper.toml or OS-specific config directory)
// 3. Settings file (<data_dir>/settings.toml, written when settings change in the app)
// 4. Environment variables (ROADMAPPER_*)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - $ROADMAPPER_CONFIG when set
// - ~/.roadmapper/roadmapper.toml (preferred)
// - Windows: %APPDATA%\roadmapper\roadmapper.toml
// - macOS: ~/Library/Application Support/roadmapper/roadmapper.toml
// - Linux/BSD: $XDG_CONFIG_HOME/roadmapper/roadmapper.toml or ~/.config/roadmapper/roadmapper.toml
package config
