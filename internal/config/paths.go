package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nibzard/roadmapper/internal/appdir"
)

// expandPath expands $VAR references and a leading ~ in p.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// resolveDirectory turns a configured storage directory into the canonical
// path directory grants are recorded under. A relative path is taken
// relative to base, the directory of the file that set it; an empty base
// means the working directory.
func resolveDirectory(p, base string) (string, error) {
	p = expandPath(p)
	if !filepath.IsAbs(p) && base != "" {
		p = filepath.Join(base, p)
	}
	return appdir.Canonical(p)
}

// directoryBase returns the directory a relative storage.directory set by
// src is resolved against.
func directoryBase(cfg *Config, src ConfigSource) string {
	switch src {
	case SourceUserFile:
		if cfg.ConfigFile != "" {
			return filepath.Dir(cfg.ConfigFile)
		}
	case SourceSettings:
		return filepath.Dir(cfg.SettingsFile)
	}
	return ""
}
