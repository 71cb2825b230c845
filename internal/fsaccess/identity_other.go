//go:build !unix

package fsaccess

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// identify falls back to path-only identity where inode numbers are not
// exposed, so a replaced directory is not detected.
func identify(path string) (DirID, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DirID{}, fmt.Errorf("%w: %s does not exist", ErrStaleHandle, path)
		}
		return DirID{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return DirID{}, fmt.Errorf("%w: %s is not a directory", ErrStaleHandle, path)
	}
	return DirID{Path: path}, nil
}

func checkAccess(path string, mode Mode) error {
	if _, err := os.ReadDir(path); err != nil {
		return fmt.Errorf("access %s: %w", path, err)
	}
	if mode != ModeReadWrite {
		return nil
	}
	f, err := os.CreateTemp(path, ".tmp-probe-*")
	if err != nil {
		return fmt.Errorf("access %s: %w", path, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}

func lockUnavailable(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
