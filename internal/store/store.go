// Package store persists AudioAsset metadata. An asset row and its on-disk
// file are created together and deleted together; the ingestion pipeline owns
// that pairing, the store only guards row-level invariants.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an asset does not exist or belongs to a
// different owner. Callers must not be able to distinguish the two cases.
var ErrNotFound = errors.New("store: asset not found")

// Asset describes one stored, playable recording. StoragePath is the
// server-local file path and is never exposed raw to clients; the API layer
// derives stream URLs from its basename.
type Asset struct {
	ID             string
	OwnerID        string
	Title          string
	Description    string
	StoragePath    string
	ByteSize       int64
	DurationMillis int64 // 0 when the producer supplied no duration
	Degraded       bool  // conversion fell back to the original upload
	CreatedAt      time.Time
}

// Store is the metadata persistence interface.
type Store interface {
	// Create inserts a new asset row.
	Create(ctx context.Context, a Asset) error
	// Get retrieves one asset scoped to its owner. Returns ErrNotFound when
	// absent or owned by someone else.
	Get(ctx context.Context, ownerID, id string) (Asset, error)
	// ListByOwner returns all assets for an owner, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Asset, error)
	// Delete removes one asset row scoped to its owner. Returns ErrNotFound
	// when no row was deleted, so repeated deletes 404 deterministically.
	Delete(ctx context.Context, ownerID, id string) error
	// Ping verifies the backend answers.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
