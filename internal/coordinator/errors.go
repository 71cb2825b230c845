package coordinator

import (
	"errors"
	"fmt"

	"github.com/nibzard/roadmapper/internal/config"
)

var (
	// ErrSwitchInProgress is returned for mutations attempted while a
	// storage switch is running.
	ErrSwitchInProgress = errors.New("a storage switch is in progress")
	// ErrSameLocation is returned when the switch target is the active location.
	ErrSameLocation = errors.New("storage is already at that location")
	// ErrNotLoaded is returned by operations that need a loaded document.
	ErrNotLoaded = errors.New("document not loaded")
)

// SwitchError reports a storage switch that failed and was rolled back.
type SwitchError struct {
	From  config.StorageConfig
	To    config.StorageConfig
	Stage string
	Err   error
	// Rollback is set when undoing a completed step also failed.
	Rollback error
}

func (e *SwitchError) Error() string {
	msg := fmt.Sprintf("switching storage from %s to %s failed while %s: %v", e.From.Describe(), e.To.Describe(), e.Stage, e.Err)
	if e.Rollback != nil {
		return msg + fmt.Sprintf(" (rollback incomplete: %v)", e.Rollback)
	}
	return msg + "; nothing was changed"
}

func (e *SwitchError) Unwrap() error {
	return e.Err
}
