// Package kv defines the durable key-value storage contract shared by the
// task store, the local backup slot, and the cached Drive token.
package kv

import (
	"context"
	"fmt"
)

// Fixed storage keys. These are a wire-level contract: other tools that read
// the same database rely on them.
const (
	KeyTasks           = "todos"
	KeyLocalBackup     = "todos_backup"
	KeyDriveToken      = "google_drive_token"
	KeyThemePreference = "user_theme_preference"
)

// Store is the interface for durable key-value storage backends.
type Store interface {
	// Get returns the value stored under key. The second return value is
	// false when the key has never been written.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any prior value. The write is
	// atomic: a concurrent Get observes either the old or the new value in
	// full, never a partial write.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// StorageError wraps a storage I/O failure with the operation and key that
// produced it.
type StorageError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for key %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Err
}
