// Package restore orchestrates replacing the live task collection with the
// contents of a chosen snapshot, local or remote.
package restore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"todokeep/snapshot"
	"todokeep/store"
)

// ErrNoRemoteClient is returned when a remote source is requested but the
// coordinator was built without a remote backup client.
var ErrNoRemoteClient = errors.New("no remote backup client configured")

// Source selects the snapshot to restore from
type Source struct {
	remote bool
	fileID string
}

// Local selects the local backup slot
func Local() Source {
	return Source{}
}

// Remote selects a remote snapshot by provider file ID
func Remote(fileID string) Source {
	return Source{remote: true, fileID: fileID}
}

// String describes the source for logging
func (s Source) String() string {
	if s.remote {
		return "remote:" + s.fileID
	}
	return "local"
}

// InvalidSnapshotError reports a decoded snapshot whose tasks do not match
// the expected shape, guarding against hand-edited or foreign-app payloads.
type InvalidSnapshotError struct {
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *InvalidSnapshotError) Error() string {
	return fmt.Sprintf("invalid snapshot: task %d: %s", e.Index, e.Reason)
}

// TaskReplacer is the slice of the task store the coordinator mutates
type TaskReplacer interface {
	ReplaceAll(ctx context.Context, tasks []store.Task) error
}

// SlotReader reads the raw bytes of the local backup slot
type SlotReader interface {
	Read(ctx context.Context) ([]byte, error)
}

// Downloader fetches raw snapshot bytes by provider file ID
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Result describes an applied restore
type Result struct {
	Source   Source
	Snapshot snapshot.Snapshot
	Applied  int // number of tasks now in the store
}

// Observer receives the new collection after a restore is applied
type Observer func(tasks []store.Task)

// Coordinator validates and applies snapshots. Restores are mutually
// exclusive: two restores cannot race to overwrite the store.
type Coordinator struct {
	mu        sync.Mutex
	tasks     TaskReplacer
	local     SlotReader
	remote    Downloader
	observers []Observer
}

// NewCoordinator creates a Coordinator over the given collaborators. remote
// may be nil when no remote client is configured; restoring from a remote
// source then fails cleanly.
func NewCoordinator(tasks TaskReplacer, local SlotReader, remote Downloader) *Coordinator {
	return &Coordinator{
		tasks:  tasks,
		local:  local,
		remote: remote,
	}
}

// Subscribe registers an observer notified with the new collection after
// every applied restore.
func (c *Coordinator) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// RestoreFrom fetches, decodes, and validates the selected snapshot, then
// atomically replaces the task collection and notifies observers. A failure
// before the replacement leaves the collection untouched.
func (c *Coordinator) RestoreFrom(ctx context.Context, src Source) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	snap, err := snapshot.Decode(data)
	if err != nil {
		return nil, err
	}

	if err := validateTasks(snap.Tasks); err != nil {
		return nil, err
	}

	if err := c.tasks.ReplaceAll(ctx, snap.Tasks); err != nil {
		return nil, err
	}

	for _, obs := range c.observers {
		obs(snap.Tasks)
	}

	return &Result{
		Source:   src,
		Snapshot: *snap,
		Applied:  len(snap.Tasks),
	}, nil
}

// fetch obtains the raw snapshot bytes for the source
func (c *Coordinator) fetch(ctx context.Context, src Source) ([]byte, error) {
	if !src.remote {
		return c.local.Read(ctx)
	}
	if c.remote == nil {
		return nil, ErrNoRemoteClient
	}
	return c.remote.Download(ctx, src.fileID)
}

// validateTasks checks every element against the Task shape and the
// live-collection ID uniqueness invariant.
func validateTasks(tasks []store.Task) error {
	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return &InvalidSnapshotError{Index: i, Reason: "missing id"}
		}
		if strings.TrimSpace(t.Title) == "" {
			return &InvalidSnapshotError{Index: i, Reason: "missing title"}
		}
		if _, dup := seen[t.ID]; dup {
			return &InvalidSnapshotError{Index: i, Reason: "duplicate id " + t.ID}
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
