// Package repository defines the durable key-value contract behind the
// persistent store.
package repository

import (
	"context"
	"time"
)

// KV is a namespaced key-value store with per-key modification timestamps.
// It is the process-local analogue of browser persistent storage; the
// timestamp is what lets another process observe external writes.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes the value atomically (the whole value or nothing).
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ModifiedAt returns the last write time of the key and whether it exists.
	ModifiedAt(ctx context.Context, key string) (time.Time, bool, error)

	// Close releases the underlying resources.
	Close() error
}
