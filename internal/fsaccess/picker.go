package fsaccess

import (
	"context"
	"strings"
)

// PathPicker "picks" a directory given on the command line.
type PathPicker struct {
	Path     string
	Grants   GrantStore
	Prompter Prompter
}

// PickDirectory opens Path, or returns ErrPickCancelled when it is empty.
func (p PathPicker) PickDirectory(ctx context.Context) (Handle, error) {
	if strings.TrimSpace(p.Path) == "" {
		return nil, ErrPickCancelled
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrPickCancelled
	}
	return Open(p.Path, p.Grants, p.Prompter)
}
