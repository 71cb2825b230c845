//go:build unix

package fsaccess

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func identify(path string) (DirID, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTDIR) {
			return DirID{}, fmt.Errorf("%w: %s does not exist", ErrStaleHandle, path)
		}
		return DirID{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return DirID{}, fmt.Errorf("%w: %s is not a directory", ErrStaleHandle, path)
	}
	return DirID{Path: path, Device: uint64(st.Dev), Inode: uint64(st.Ino)}, nil
}

func checkAccess(path string, mode Mode) error {
	bits := uint32(unix.R_OK | unix.X_OK)
	if mode == ModeReadWrite {
		bits |= unix.W_OK
	}
	if err := unix.Access(path, bits); err != nil {
		return fmt.Errorf("access %s: %w", path, err)
	}
	return nil
}

// lockUnavailable reports whether a lock file could not be opened because
// the directory is not writable to us.
func lockUnavailable(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EROFS)
}
