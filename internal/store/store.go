package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key has never been written or was deleted.
var ErrNotFound = errors.New("key not found")

// Blob is an opaque binary value together with when it was saved.
type Blob struct {
	Key     string
	Data    []byte
	SavedAt time.Time
}

// Store is a durable key/value store with two value shapes: small text
// values (serialized records, counters) and opaque binary blobs.
// Writes are last-write-wins per key.
type Store interface {
	// Text values
	GetValue(ctx context.Context, key string) (string, error)
	PutValue(ctx context.Context, key, value string) error

	// Blobs
	GetBlob(ctx context.Context, key string) (*Blob, error)
	PutBlob(ctx context.Context, key string, data []byte) error

	// Delete removes key from both value shapes. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
