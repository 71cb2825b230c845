// Package storage persists the roadmap document. Two backends share one
// contract: LocalStore keeps it in the local key-value database and
// DirectoryStore keeps it as a JSON file inside a user-chosen directory.
//
// Backends return raw bytes from Load; normalization into the current
// schema is the caller's job.
package storage

import (
	"context"

	"github.com/nibzard/roadmapper/internal/config"
	"github.com/nibzard/roadmapper/internal/roadmap"
)

// Backend is a place the document can be stored.
type Backend interface {
	// Name describes the backend for messages.
	Name() string
	Location() config.Location
	// Load returns the stored bytes, or an error wrapping ErrNotFound
	// when nothing is stored.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc *roadmap.Document) error
	// Clear replaces the stored document with the empty default.
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (Snapshot, error)
	Restore(ctx context.Context, s Snapshot) error
}

// Snapshot captures a backend's stored bytes so a failed multi-step
// operation can put them back.
type Snapshot struct {
	Data   []byte
	Exists bool
}

func encode(doc *roadmap.Document) ([]byte, error) {
	if doc == nil {
		doc = roadmap.NewDocument()
	}
	return roadmap.Encode(doc)
}
