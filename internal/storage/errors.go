package storage

import (
	"errors"
	"fmt"

	"github.com/nibzard/roadmapper/internal/fsaccess"
)

var (
	// ErrNotFound means no document exists at the location. Callers treat
	// it as "start empty", not as a failure.
	ErrNotFound = errors.New("no stored document")
	// ErrParse means the stored document could not be understood.
	ErrParse = errors.New("stored document is unreadable")
	// ErrPermissionDenied means directory access was refused or the
	// prompt was dismissed. See PermissionError for the details.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoDirectory means no usable directory is selected, either because
	// none was chosen or because the chosen one went away.
	ErrNoDirectory = errors.New("no storage directory selected")
	// ErrWriteFailure means a save did not complete.
	ErrWriteFailure = errors.New("save failed")
)

// PermissionError reports a directory permission that was not granted.
type PermissionError struct {
	Directory string
	Mode      fsaccess.Mode
	State     fsaccess.PermissionState
}

func (e *PermissionError) Error() string {
	if e.State == fsaccess.StateCancelled {
		return fmt.Sprintf("permission to %s %s was not given (prompt dismissed)", e.Mode, e.Directory)
	}
	return fmt.Sprintf("permission to %s %s was denied", e.Mode, e.Directory)
}

// Is makes errors.Is(err, ErrPermissionDenied) hold for every state.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// Cancelled reports whether the prompt was dismissed rather than refused.
func (e *PermissionError) Cancelled() bool {
	return e.State == fsaccess.StateCancelled
}

// Hint returns an actionable message for err, or "" when none applies.
func Hint(err error) string {
	var perr *PermissionError
	switch {
	case errors.As(err, &perr) && perr.Cancelled():
		return "run the command again and answer the permission prompt, or pass --yes"
	case errors.As(err, &perr):
		return "grant access with 'roadmapper dir grant', or pick another directory with 'roadmapper storage directory <path>'"
	case errors.Is(err, ErrNoDirectory):
		return "choose a directory with 'roadmapper storage directory <path>', or switch back with 'roadmapper storage local'"
	case errors.Is(err, ErrWriteFailure):
		return "the change was not saved; fix the problem and try again ('roadmapper doctor' shows what is wrong)"
	case errors.Is(err, ErrParse):
		return "the stored document was left untouched; run 'roadmapper doctor' to see what is wrong, fix the file, then try again"
	}
	return ""
}
