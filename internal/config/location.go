package config

import (
	"fmt"
	"strings"
)

// Location selects the storage backend.
type Location string

const (
	// LocationLocal keeps the document in the local SQLite store.
	LocationLocal Location = "local"
	// LocationDirectory keeps the document as a file in a chosen directory.
	LocationDirectory Location = "directory"
)

// ParseLocation parses a location name. The names used by older settings
// files (localStorage, fileSystem) are accepted as aliases.
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "localstorage", "sqlite":
		return LocationLocal, nil
	case "directory", "dir", "filesystem":
		return LocationDirectory, nil
	}
	return "", fmt.Errorf("unknown storage location %q (want local or directory)", s)
}

// Valid reports whether l is a known location.
func (l Location) Valid() bool {
	return l == LocationLocal || l == LocationDirectory
}

// UnmarshalText accepts the aliases understood by ParseLocation.
func (l *Location) UnmarshalText(text []byte) error {
	parsed, err := ParseLocation(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Location) MarshalText() ([]byte, error) {
	return []byte(l), nil
}
