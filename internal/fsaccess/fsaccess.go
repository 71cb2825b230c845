// Package fsaccess models a user-chosen directory as a permission-gated
// capability: a handle that can be queried for permission, asked for
// permission interactively, and used to read and write files by name.
//
// Grants persist across runs in a GrantStore keyed by the directory's
// identity, so a directory that was deleted and recreated at the same path
// must be granted again.
package fsaccess

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStaleHandle is returned when the directory behind a handle no
	// longer exists or was replaced.
	ErrStaleHandle = errors.New("directory handle is stale")
	// ErrPromptCancelled is returned by a Prompter the user dismissed.
	ErrPromptCancelled = errors.New("prompt cancelled")
	// ErrPickCancelled is returned when no directory was chosen.
	ErrPickCancelled = errors.New("directory selection cancelled")
	// ErrInvalidName is returned for file names that are not plain base names.
	ErrInvalidName = errors.New("invalid file name")
)

// Mode is the access level asked of a directory.
type Mode string

const (
	ModeRead      Mode = "read"
	ModeReadWrite Mode = "readwrite"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRead, ModeReadWrite:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown access mode %q (want read or readwrite)", s)
}

func (m Mode) describe() string {
	if m == ModeReadWrite {
		return "read and write"
	}
	return "read"
}

// PermissionState is the outcome of a permission query or request.
type PermissionState string

const (
	StateGranted PermissionState = "granted"
	// StateDenied means the user refused or the OS forbids access.
	StateDenied PermissionState = "denied"
	// StatePrompt means no decision has been recorded yet.
	StatePrompt PermissionState = "prompt"
	// StateCancelled means the prompt was dismissed without an answer.
	StateCancelled PermissionState = "cancelled"
)

// Handle is a reference to a directory chosen by the user.
type Handle interface {
	// Name is the directory's display name.
	Name() string
	// Path is the absolute directory path.
	Path() string
	QueryPermission(ctx context.Context, mode Mode) (PermissionState, error)
	// RequestPermission asks the user when no decision is recorded.
	RequestPermission(ctx context.Context, mode Mode) (PermissionState, error)
	// ReadFile returns the named file's contents. A missing file yields an
	// error satisfying errors.Is(err, fs.ErrNotExist).
	ReadFile(ctx context.Context, name string) ([]byte, error)
	WriteFile(ctx context.Context, name string, data []byte) error
	RemoveFile(ctx context.Context, name string) error
}

// Prompter asks the user a yes/no question. A dismissed prompt returns
// ErrPromptCancelled.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, question string) (bool, error)

// Confirm calls f.
func (f PrompterFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// DirID identifies a directory by path and filesystem identity.
type DirID struct {
	Path   string
	Device uint64
	Inode  uint64
}

// Grant is a recorded permission for a directory.
type Grant struct {
	DirID
	Mode      Mode
	GrantedAt time.Time
}

// GrantStore persists permission grants.
type GrantStore interface {
	// HasGrant reports whether mode, or a broader mode, was granted for id.
	HasGrant(ctx context.Context, id DirID, mode Mode) (bool, error)
	SaveGrant(ctx context.Context, id DirID, mode Mode) error
	// RevokeGrants removes every grant recorded for path and returns how
	// many were removed.
	RevokeGrants(ctx context.Context, path string) (int, error)
	ListGrants(ctx context.Context) ([]Grant, error)
}

// Picker chooses a directory.
type Picker interface {
	PickDirectory(ctx context.Context) (Handle, error)
}
