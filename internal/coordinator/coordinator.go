// Package coordinator owns the live roadmap document. It loads it from the
// active backend, persists every mutation and moves it between backends
// when the storage location changes.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/logging"
	"github.com/nibzard/roadmapper/internal/migrate"
	"github.com/nibzard/roadmapper/internal/roadmap"
	"github.com/nibzard/roadmapper/internal/storage"
)

// Options configures a Coordinator.
type Options struct {
	Settings config.Settings
	// Local is the local backend.
	Local storage.Backend
	// OpenDirectory opens the directory at path for the directory backend.
	OpenDirectory func(path string) (fsaccess.Handle, error)
	// SaveSettings persists settings after a switch.
	SaveSettings func(config.Settings) error
	Logger       *log.Logger
}

// Coordinator serializes access to the live document. Storage operations
// never run concurrently against one backend, and mutations are refused
// while a switch is running.
type Coordinator struct {
	mu sync.Mutex

	settings     config.Settings
	local        storage.Backend
	openDir      func(string) (fsaccess.Handle, error)
	saveSettings func(config.Settings) error
	logger       *log.Logger

	active    storage.Backend
	doc       *roadmap.Document
	shape     migrate.Shape
	loadErr   error
	saveErr   error
	dirty     bool
	switching bool
}

// New returns a Coordinator. Call Load before using the document.
func New(opts Options) (*Coordinator, error) {
	if opts.Local == nil {
		return nil, errors.New("coordinator: local backend is required")
	}
	if opts.SaveSettings == nil {
		return nil, errors.New("coordinator: SaveSettings is required")
	}
	return &Coordinator{
		settings:     opts.Settings,
		local:        opts.Local,
		openDir:      opts.OpenDirectory,
		saveSettings: opts.SaveSettings,
		logger:       logging.OrDiscard(opts.Logger),
	}, nil
}

// Status describes the coordinator state for diagnostics.
type Status struct {
	Settings config.Settings
	Backend  string
	Shape    migrate.Shape
	Tasks    int
	// LoadErr is set when the active backend could not be read.
	LoadErr error
	// SaveErr is the last failed save, cleared by a successful one.
	SaveErr error
	// Dirty reports changes that are not persisted.
	Dirty bool
}

// Status returns a snapshot of the coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Settings: c.settings,
		Shape:    c.shape,
		LoadErr:  c.loadErr,
		SaveErr:  c.saveErr,
		Dirty:    c.dirty,
	}
	if c.active != nil {
		st.Backend = c.active.Name()
	}
	if c.doc != nil {
		st.Tasks = c.doc.TaskCount()
	}
	return st
}

// Settings returns the current settings.
func (c *Coordinator) Settings() config.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Document returns a copy of the live document. Before Load it returns the
// empty default.
func (c *Coordinator) Document() *roadmap.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc == nil {
		return roadmap.NewDocument()
	}
	return c.doc.Clone()
}

// Load reads the active backend and installs the normalized document.
// When the backend cannot be read, an empty document is installed and the
// error is returned; mutations are then refused until Retry succeeds so
// the unread data is never overwritten.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.switching {
		return ErrSwitchInProgress
	}
	return c.load(ctx)
}

func (c *Coordinator) load(ctx context.Context) error {
	c.dirty = false
	c.saveErr = nil

	backend, err := c.backendFor(c.settings.Storage, nil)
	if err != nil {
		c.active = storage.NewDirectoryStore(nil, c.logger)
		return c.failLoad(err)
	}
	c.active = backend

	doc, res, err := c.loadFrom(ctx, backend)
	if err != nil {
		return c.failLoad(err)
	}
	c.doc = doc
	c.shape = res.Shape
	c.loadErr = nil
	c.logger.Debug("document loaded", "backend", backend.Name(), "shape", res.Shape, "roadmaps", len(doc.Roadmaps))

	if res.Migrated() {
		c.persistMigrated(ctx)
	}
	return nil
}

func (c *Coordinator) failLoad(err error) error {
	c.doc = roadmap.NewDocument()
	c.shape = ""
	c.loadErr = err
	c.logger.Warn("could not load document, showing an empty one", "storage", c.settings.Storage.Describe(), "err", err)
	return err
}

// loadFrom reads b and normalizes the result. A missing document is the
// empty default. One that is not JSON or has an unknown shape degrades to
// the empty default and is reported through the Result, not the error. A
// recognized document with content that does not decode is an ErrParse
// error instead, so nothing overwrites data that can still be repaired.
func (c *Coordinator) loadFrom(ctx context.Context, b storage.Backend) (*roadmap.Document, migrate.Result, error) {
	raw, err := b.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Debug("no stored document", "backend", b.Name())
		return roadmap.NewDocument(), migrate.Result{Shape: migrate.ShapeEmpty}, nil
	}
	if err != nil {
		return nil, migrate.Result{}, err
	}
	res := migrate.Normalize(raw)
	if errors.Is(res.Err, migrate.ErrCorrupt) {
		return nil, res, fmt.Errorf("%w: %w", storage.ErrParse, res.Err)
	}
	if res.VerbatimSessions > 0 {
		c.logger.Info("keeping session log entries as stored", "backend", b.Name(), "entries", res.VerbatimSessions)
	}
	if res.Err != nil {
		c.logger.Warn("stored document is unreadable, starting empty", "backend", b.Name(), "shape", res.Shape, "err", res.Err)
	}
	if res.Shape == migrate.ShapeLegacy {
		c.logger.Info("migrated legacy document", "backend", b.Name(), "roadmap", migrate.LegacyRoadmapName)
	}
	return res.Document, res, nil
}

// persistMigrated writes a migrated document back. Failure leaves the
// document dirty for Retry. Callers hold c.mu.
func (c *Coordinator) persistMigrated(ctx context.Context) {
	if err := c.save(ctx); err != nil {
		c.logger.Warn("could not write back migrated document", "backend", c.active.Name(), "err", err)
	}
}

// backendFor returns the backend for s. handle, when non-nil, is used for
// a directory location instead of opening s.Directory.
func (c *Coordinator) backendFor(s config.StorageConfig, handle fsaccess.Handle) (storage.Backend, error) {
	switch s.Location {
	case config.LocationLocal:
		return c.local, nil
	case config.LocationDirectory:
		if handle != nil {
			return storage.NewDirectoryStore(handle, c.logger), nil
		}
		if s.Directory == "" {
			return nil, storage.ErrNoDirectory
		}
		if c.openDir == nil {
			return nil, fmt.Errorf("%w: directory storage is not available", storage.ErrNoDirectory)
		}
		h, err := c.openDir(s.Directory)
		if err != nil {
			if errors.Is(err, fsaccess.ErrStaleHandle) {
				return nil, fmt.Errorf("%w: %w", storage.ErrNoDirectory, err)
			}
			return nil, err
		}
		return storage.NewDirectoryStore(h, c.logger), nil
	}
	return nil, fmt.Errorf("unknown storage location %q", s.Location)
}

// save persists the live document to the active backend. Callers hold c.mu.
func (c *Coordinator) save(ctx context.Context) error {
	if err := c.active.Save(ctx, c.doc); err != nil {
		c.dirty = true
		if !errors.Is(err, storage.ErrWriteFailure) {
			err = fmt.Errorf("%w: %w", storage.ErrWriteFailure, err)
		}
		c.saveErr = err
		return err
	}
	c.dirty = false
	c.saveErr = nil
	return nil
}

// Mutate applies fn to a copy of the live document. If fn fails the live
// document is untouched. If fn succeeds the change is installed and saved;
// a failed save keeps the change in memory and returns an error wrapping
// storage.ErrWriteFailure.
func (c *Coordinator) Mutate(ctx context.Context, fn func(*roadmap.Document) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.switching {
		return ErrSwitchInProgress
	}
	if c.doc == nil {
		return ErrNotLoaded
	}
	if c.loadErr != nil {
		return fmt.Errorf("%w: %w", ErrNotLoaded, c.loadErr)
	}

	next := c.doc.Clone()
	if err := fn(next); err != nil {
		return err
	}
	c.doc = next
	if err := c.save(ctx); err != nil {
		c.logger.Error("save failed, change kept in memory", "backend", c.active.Name(), "err", err)
		return err
	}
	return nil
}

// Retry reloads when the last load failed, or re-saves when the live
// document has unsaved changes. Otherwise it does nothing.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.switching {
		return ErrSwitchInProgress
	}
	switch {
	case c.doc == nil || c.loadErr != nil:
		return c.load(ctx)
	case c.dirty:
		return c.save(ctx)
	}
	return nil
}

// UpdatePomodoro changes the focus durations without touching storage.
func (c *Coordinator) UpdatePomodoro(p config.PomodoroConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.switching {
		return ErrSwitchInProgress
	}
	next := c.settings
	next.Pomodoro = p
	if err := next.Validate(); err != nil {
		return err
	}
	if err := c.saveSettings(next); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	c.settings = next
	return nil
}
