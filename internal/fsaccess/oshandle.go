package fsaccess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/nibzard/roadmapper/internal/appdir"
)

const lockRetryDelay = 50 * time.Millisecond

// OSHandle is a Handle backed by a directory on the local filesystem.
type OSHandle struct {
	id       DirID
	grants   GrantStore
	prompter Prompter
}

// Open returns a handle for the directory at path. It fails with
// ErrStaleHandle when path is not an existing directory. A nil prompter
// makes every permission request resolve to StateCancelled.
func Open(path string, grants GrantStore, prompter Prompter) (*OSHandle, error) {
	abs, err := appdir.Canonical(path)
	if err != nil {
		return nil, fmt.Errorf("resolve directory path: %w", err)
	}
	id, err := identify(abs)
	if err != nil {
		return nil, err
	}
	return &OSHandle{id: id, grants: grants, prompter: prompter}, nil
}

// Name returns the directory's base name.
func (h *OSHandle) Name() string {
	return filepath.Base(h.id.Path)
}

// Path returns the absolute directory path.
func (h *OSHandle) Path() string {
	return h.id.Path
}

// ID returns the identity captured when the handle was opened.
func (h *OSHandle) ID() DirID {
	return h.id
}

// revalidate fails if the directory vanished or was replaced since Open.
func (h *OSHandle) revalidate() error {
	current, err := identify(h.id.Path)
	if err != nil {
		return err
	}
	if current.Device != h.id.Device || current.Inode != h.id.Inode {
		return fmt.Errorf("%w: %s was replaced", ErrStaleHandle, h.id.Path)
	}
	return nil
}

// QueryPermission reports the recorded decision for mode without prompting.
func (h *OSHandle) QueryPermission(ctx context.Context, mode Mode) (PermissionState, error) {
	if err := h.revalidate(); err != nil {
		return StateDenied, err
	}
	if h.grants == nil {
		return StatePrompt, nil
	}
	ok, err := h.grants.HasGrant(ctx, h.id, mode)
	if err != nil {
		return StatePrompt, fmt.Errorf("look up grant: %w", err)
	}
	if !ok {
		return StatePrompt, nil
	}
	if err := checkAccess(h.id.Path, mode); err != nil {
		return StateDenied, nil
	}
	return StateGranted, nil
}

// RequestPermission returns the recorded decision, or asks the prompter
// when none exists and records a positive answer.
func (h *OSHandle) RequestPermission(ctx context.Context, mode Mode) (PermissionState, error) {
	state, err := h.QueryPermission(ctx, mode)
	if err != nil || state != StatePrompt {
		return state, err
	}
	if h.prompter == nil {
		return StateCancelled, nil
	}

	question := fmt.Sprintf("Allow roadmapper to %s files in %s?", mode.describe(), h.id.Path)
	yes, err := h.prompter.Confirm(ctx, question)
	switch {
	case errors.Is(err, ErrPromptCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StateCancelled, nil
	case err != nil:
		return StatePrompt, fmt.Errorf("permission prompt: %w", err)
	case !yes:
		return StateDenied, nil
	}

	if err := checkAccess(h.id.Path, mode); err != nil {
		return StateDenied, nil
	}
	if h.grants != nil {
		if err := h.grants.SaveGrant(ctx, h.id, mode); err != nil {
			return StateGranted, fmt.Errorf("record grant: %w", err)
		}
	}
	return StateGranted, nil
}

func (h *OSHandle) filePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.HasPrefix(name, ".tmp-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(h.id.Path, name), nil
}

func (h *OSHandle) lock(name string) *flock.Flock {
	return flock.New(filepath.Join(h.id.Path, name+appdir.LockSuffix))
}

// ReadFile reads name under a shared lock. In a directory where the lock
// file cannot be created (read-only access or filesystem) it reads without
// one: writers replace the file by rename, so the read still sees a whole
// document.
func (h *OSHandle) ReadFile(ctx context.Context, name string) ([]byte, error) {
	path, err := h.filePath(name)
	if err != nil {
		return nil, err
	}
	if err := h.revalidate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	lk := h.lock(name)
	if _, err := lk.TryRLockContext(ctx, lockRetryDelay); err != nil {
		if !lockUnavailable(err) {
			return nil, fmt.Errorf("lock %s: %w", name, err)
		}
		return os.ReadFile(path)
	}
	defer func() { _ = lk.Unlock() }()
	return os.ReadFile(path)
}

// WriteFile replaces name atomically: the data goes to a temp file in the
// same directory which is then renamed over the target, all under an
// exclusive lock.
func (h *OSHandle) WriteFile(ctx context.Context, name string, data []byte) error {
	path, err := h.filePath(name)
	if err != nil {
		return err
	}
	if err := h.revalidate(); err != nil {
		return err
	}

	lk := h.lock(name)
	if _, err := lk.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock %s: %w", name, err)
	}
	defer func() { _ = lk.Unlock() }()

	tmp, err := os.CreateTemp(h.id.Path, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// RemoveFile deletes name. Removing a missing file is not an error.
func (h *OSHandle) RemoveFile(ctx context.Context, name string) error {
	path, err := h.filePath(name)
	if err != nil {
		return err
	}
	if err := h.revalidate(); err != nil {
		return err
	}
	lk := h.lock(name)
	if _, err := lk.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("lock %s: %w", name, err)
	}
	defer func() { _ = lk.Unlock() }()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
