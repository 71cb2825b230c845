package storage

import (
	"context"
	"fmt"

	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/roadmap"
)

// LocalKey is the key the document is stored under.
const LocalKey = "roadmapTrackerData"

// KV is the subset of the key-value store LocalStore needs.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// LocalStore keeps the document in a key-value store.
type LocalStore struct {
	kv KV
}

// NewLocalStore returns a LocalStore on kv.
func NewLocalStore(kv KV) *LocalStore {
	return &LocalStore{kv: kv}
}

// Name implements Backend.
func (s *LocalStore) Name() string {
	return "local storage"
}

// Location implements Backend.
func (s *LocalStore) Location() config.Location {
	return config.LocationLocal
}

// Load implements Backend.
func (s *LocalStore) Load(ctx context.Context) ([]byte, error) {
	value, ok, err := s.kv.Get(ctx, LocalKey)
	if err != nil {
		return nil, fmt.Errorf("read local storage: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("local storage: %w", ErrNotFound)
	}
	return []byte(value), nil
}

// Save implements Backend.
func (s *LocalStore) Save(ctx context.Context, doc *roadmap.Document) error {
	data, err := encode(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	if err := s.kv.Set(ctx, LocalKey, string(data)); err != nil {
		return fmt.Errorf("%w: local storage: %w", ErrWriteFailure, err)
	}
	return nil
}

// Clear implements Backend.
func (s *LocalStore) Clear(ctx context.Context) error {
	return s.Save(ctx, roadmap.NewDocument())
}

// Snapshot implements Backend.
func (s *LocalStore) Snapshot(ctx context.Context) (Snapshot, error) {
	value, ok, err := s.kv.Get(ctx, LocalKey)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot local storage: %w", err)
	}
	return Snapshot{Data: []byte(value), Exists: ok}, nil
}

// Restore implements Backend.
func (s *LocalStore) Restore(ctx context.Context, snap Snapshot) error {
	var err error
	if snap.Exists {
		err = s.kv.Set(ctx, LocalKey, string(snap.Data))
	} else {
		err = s.kv.Delete(ctx, LocalKey)
	}
	if err != nil {
		return fmt.Errorf("restore local storage: %w", err)
	}
	return nil
}
