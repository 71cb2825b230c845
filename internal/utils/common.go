// Package utils provides shared utility functions used across multiple packages.
package utils

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// NormalizeName lowercases and trims a user supplied name for comparisons.
func NormalizeName(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// JSONPointerToPath converts a JSON Pointer (RFC 6901) to a dot-notation path.
// For example, "#/roadmaps/0/tasks/3/endDate" becomes "roadmaps[0].tasks[3].endDate".
func JSONPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	parts := strings.Split(ptr, "/")
	path := ""
	for _, part := range parts {
		// ~1 is "/" and ~0 is "~"
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			path += fmt.Sprintf("[%d]", idx)
			continue
		}
		if path == "" {
			path = part
		} else {
			path += "." + part
		}
	}

	return path
}

// Slugify lowercases input and replaces every run of characters outside
// [a-z0-9] with a single underscore. Returns fallback if nothing remains.
func Slugify(input, fallback string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, c := range strings.ToLower(input) {
		valid := (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
		if !valid {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		b.WriteRune(c)
		lastUnderscore = false
	}

	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return fallback
	}
	return slug
}

// IsTTY returns true if w is a terminal.
func IsTTY(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// IsInteractive reports whether both in and out are terminals.
func IsInteractive(in io.Reader, out io.Writer) bool {
	return IsTTY(in) && IsTTY(out)
}
