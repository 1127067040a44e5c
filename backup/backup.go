// Package backup manages the single local backup slot. The slot holds the
// most recent snapshot only; every backup overwrites the previous one.
package backup

import (
	"context"
	"errors"
	"time"

	"todokeep/kv"
	"todokeep/snapshot"
	"todokeep/store"
)

// ErrNoBackup is returned by Restore when the local slot was never written.
var ErrNoBackup = errors.New("no local backup exists")

// Manager writes and reads the local backup slot
type Manager struct {
	storage kv.Store
	now     func() time.Time
}

// NewManager creates a Manager persisting through the given key-value storage
func NewManager(storage kv.Store) *Manager {
	return &Manager{
		storage: storage,
		now:     time.Now,
	}
}

// Backup encodes a snapshot of tasks at the current timestamp and writes it
// to the local slot, overwriting any prior backup. It returns the snapshot
// descriptor, not the raw bytes.
func (m *Manager) Backup(ctx context.Context, tasks []store.Task) (snapshot.Snapshot, error) {
	data, snap, err := snapshot.Encode(tasks, m.now())
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	if err := m.storage.Set(ctx, kv.KeyLocalBackup, data); err != nil {
		return snapshot.Snapshot{}, err
	}
	return snap, nil
}

// Read returns the raw bytes in the local slot, or ErrNoBackup when the slot
// was never written. The restore coordinator reads through here so decoding
// stays with the codec.
func (m *Manager) Read(ctx context.Context) ([]byte, error) {
	data, found, err := m.storage.Get(ctx, kv.KeyLocalBackup)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoBackup
	}
	return data, nil
}

// Restore reads and decodes the local slot. Codec errors propagate when the
// stored bytes are corrupt or from a future schema.
func (m *Manager) Restore(ctx context.Context) (*snapshot.Snapshot, error) {
	data, err := m.Read(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(data)
}

// Clear removes the local slot. Clearing a missing slot is not an error.
func (m *Manager) Clear(ctx context.Context) error {
	return m.storage.Delete(ctx, kv.KeyLocalBackup)
}
