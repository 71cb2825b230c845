// Package testutil provides in-memory fakes for tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/nibzard/roadmapper/internal/fsaccess"
)

// FakeHandle is an in-memory fsaccess.Handle.
type FakeHandle struct {
	mu    sync.Mutex
	dir   string
	files map[string][]byte

	// Permission maps a mode to the state returned for it. Modes not
	// listed are granted.
	Permission map[fsaccess.Mode]fsaccess.PermissionState
	// Stale makes every operation fail with fsaccess.ErrStaleHandle.
	Stale bool

	// Error injection for testing
	ReadErr   error
	WriteErr  error
	RemoveErr error

	Requests int
	Writes   int
}

// NewFakeHandle returns an empty directory handle at dir.
func NewFakeHandle(dir string) *FakeHandle {
	return &FakeHandle{
		dir:        dir,
		files:      make(map[string][]byte),
		Permission: make(map[fsaccess.Mode]fsaccess.PermissionState),
	}
}

// Name implements fsaccess.Handle.
func (h *FakeHandle) Name() string { return path.Base(h.dir) }

// Path implements fsaccess.Handle.
func (h *FakeHandle) Path() string { return h.dir }

func (h *FakeHandle) state(mode fsaccess.Mode) fsaccess.PermissionState {
	if s, ok := h.Permission[mode]; ok {
		return s
	}
	return fsaccess.StateGranted
}

func (h *FakeHandle) stale() error {
	if h.Stale {
		return fmt.Errorf("%w: %s", fsaccess.ErrStaleHandle, h.dir)
	}
	return nil
}

// QueryPermission implements fsaccess.Handle.
func (h *FakeHandle) QueryPermission(_ context.Context, mode fsaccess.Mode) (fsaccess.PermissionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.stale(); err != nil {
		return fsaccess.StateDenied, err
	}
	return h.state(mode), nil
}

// RequestPermission implements fsaccess.Handle.
func (h *FakeHandle) RequestPermission(_ context.Context, mode fsaccess.Mode) (fsaccess.PermissionState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Requests++
	if err := h.stale(); err != nil {
		return fsaccess.StateDenied, err
	}
	return h.state(mode), nil
}

// ReadFile implements fsaccess.Handle.
func (h *FakeHandle) ReadFile(_ context.Context, name string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.stale(); err != nil {
		return nil, err
	}
	if h.ReadErr != nil {
		return nil, h.ReadErr
	}
	data, ok := h.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path.Join(h.dir, name), Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// WriteFile implements fsaccess.Handle.
func (h *FakeHandle) WriteFile(_ context.Context, name string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.stale(); err != nil {
		return err
	}
	if h.WriteErr != nil {
		return h.WriteErr
	}
	h.Writes++
	h.files[name] = append([]byte(nil), data...)
	return nil
}

// RemoveFile implements fsaccess.Handle.
func (h *FakeHandle) RemoveFile(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.stale(); err != nil {
		return err
	}
	if h.RemoveErr != nil {
		return h.RemoveErr
	}
	delete(h.files, name)
	return nil
}

// File returns a stored file's contents and whether it exists.
func (h *FakeHandle) File(name string) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[name]
	return data, ok
}

// SetFile stores a file directly, bypassing permission checks.
func (h *FakeHandle) SetFile(name string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[name] = append([]byte(nil), data...)
}

// FakeKV is an in-memory key-value store.
type FakeKV struct {
	mu     sync.Mutex
	values map[string]string

	// Error injection for testing
	GetErr    error
	SetErr    error
	DeleteErr error
	// SetHook, when set, is called before every Set; a non-nil result
	// fails that Set.
	SetHook func(key, value string) error
}

// NewFakeKV returns an empty store.
func NewFakeKV() *FakeKV {
	return &FakeKV{values: make(map[string]string)}
}

// Get returns the value for key.
func (f *FakeKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return "", false, f.GetErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (f *FakeKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	if f.SetHook != nil {
		if err := f.SetHook(key, value); err != nil {
			return err
		}
	}
	f.values[key] = value
	return nil
}

// Delete removes key.
func (f *FakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.values, key)
	return nil
}

// Value returns the raw stored value, bypassing error injection.
func (f *FakeKV) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}
