package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/charmbracelet/log"

	"github.com/nibzard/roadmapper/internal/appdir"
	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/logging"
	"github.com/nibzard/roadmapper/internal/roadmap"
)

// DirectoryStore keeps the document as appdir.DataFile inside a directory.
// Every operation re-checks permission on the handle first, prompting when
// no decision is recorded.
type DirectoryStore struct {
	handle fsaccess.Handle
	logger *log.Logger
}

// NewDirectoryStore returns a DirectoryStore on h. A nil h yields a store
// whose every operation fails with ErrNoDirectory.
func NewDirectoryStore(h fsaccess.Handle, logger *log.Logger) *DirectoryStore {
	return &DirectoryStore{handle: h, logger: logging.OrDiscard(logger)}
}

// Handle returns the directory handle.
func (s *DirectoryStore) Handle() fsaccess.Handle {
	return s.handle
}

// Name implements Backend.
func (s *DirectoryStore) Name() string {
	if s.handle == nil {
		return "directory (none selected)"
	}
	return fmt.Sprintf("directory %q", s.handle.Name())
}

// Location implements Backend.
func (s *DirectoryStore) Location() config.Location {
	return config.LocationDirectory
}

func (s *DirectoryStore) ensure(ctx context.Context, mode fsaccess.Mode) error {
	if s.handle == nil {
		return ErrNoDirectory
	}
	state, err := s.handle.RequestPermission(ctx, mode)
	if err != nil {
		return s.wrap(err)
	}
	s.logger.Debug("directory permission", "dir", s.handle.Path(), "mode", mode, "state", state)
	if state != fsaccess.StateGranted {
		s.logger.Warn("directory permission not granted", "dir", s.handle.Path(), "mode", mode, "state", state)
		return &PermissionError{Directory: s.handle.Path(), Mode: mode, State: state}
	}
	return nil
}

func (s *DirectoryStore) wrap(err error) error {
	switch {
	case errors.Is(err, fsaccess.ErrStaleHandle):
		return fmt.Errorf("%w: %w", ErrNoDirectory, err)
	case errors.Is(err, fs.ErrPermission):
		// The OS refused a read the recorded grant allowed.
		return &PermissionError{Directory: s.handle.Path(), Mode: fsaccess.ModeRead, State: fsaccess.StateDenied}
	}
	return err
}

// Load implements Backend. A missing or empty file is ErrNotFound.
func (s *DirectoryStore) Load(ctx context.Context) ([]byte, error) {
	if err := s.ensure(ctx, fsaccess.ModeRead); err != nil {
		return nil, err
	}
	data, err := s.handle.ReadFile(ctx, appdir.DataFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s in %s: %w", appdir.DataFile, s.handle.Path(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", appdir.DataFile, s.wrap(err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s in %s is empty: %w", appdir.DataFile, s.handle.Path(), ErrNotFound)
	}
	return data, nil
}

// Save implements Backend.
func (s *DirectoryStore) Save(ctx context.Context, doc *roadmap.Document) error {
	if err := s.ensure(ctx, fsaccess.ModeReadWrite); err != nil {
		return err
	}
	data, err := encode(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	return s.write(ctx, data)
}

func (s *DirectoryStore) write(ctx context.Context, data []byte) error {
	if err := s.handle.WriteFile(ctx, appdir.DataFile, data); err != nil {
		if errors.Is(err, fsaccess.ErrStaleHandle) {
			return s.wrap(err)
		}
		return fmt.Errorf("%w: write %s: %w", ErrWriteFailure, appdir.DataFile, err)
	}
	return nil
}

// Clear implements Backend.
func (s *DirectoryStore) Clear(ctx context.Context) error {
	return s.Save(ctx, roadmap.NewDocument())
}

// Snapshot implements Backend.
func (s *DirectoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := s.ensure(ctx, fsaccess.ModeRead); err != nil {
		return Snapshot{}, err
	}
	data, err := s.handle.ReadFile(ctx, appdir.DataFile)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", appdir.DataFile, s.wrap(err))
	}
	return Snapshot{Data: data, Exists: true}, nil
}

// Restore implements Backend. When the file already matches snap nothing
// is written, so restoring an untouched directory needs only read access.
func (s *DirectoryStore) Restore(ctx context.Context, snap Snapshot) error {
	if current, err := s.Snapshot(ctx); err == nil && current.Exists == snap.Exists && bytes.Equal(current.Data, snap.Data) {
		return nil
	}
	if err := s.ensure(ctx, fsaccess.ModeReadWrite); err != nil {
		return err
	}
	if !snap.Exists {
		if err := s.handle.RemoveFile(ctx, appdir.DataFile); err != nil {
			return fmt.Errorf("restore %s: %w", appdir.DataFile, s.wrap(err))
		}
		return nil
	}
	return s.write(ctx, snap.Data)
}
