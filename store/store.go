// Package store implements CRUD over the canonical task collection, persisted
// as a whole under a fixed key in durable key-value storage.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"todokeep/kv"
)

// Task represents a todo item
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	CreatedAt int64  `json:"createdAt"` // epoch millis
}

// ValidationError reports rejected input, e.g. a title that trims to empty.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation on a task ID that is not in the
// collection.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

// idSource hands out process-wide monotonically increasing task IDs seeded
// from the current epoch millis. Two adds in the same millisecond still get
// distinct, increasing IDs.
var idSource struct {
	mu   sync.Mutex
	last int64
}

// nextID returns the next task ID.
func nextID() string {
	idSource.mu.Lock()
	defer idSource.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= idSource.last {
		id = idSource.last + 1
	}
	idSource.last = id
	return strconv.FormatInt(id, 10)
}

// Store provides CRUD over the task collection. Every mutation is a complete
// read-modify-write of the whole collection under one mutex, so concurrent
// mutations cannot interleave and lose updates.
type Store struct {
	mu      sync.Mutex
	storage kv.Store
	now     func() time.Time
}

// New creates a Store persisting through the given key-value storage
func New(storage kv.Store) *Store {
	return &Store{
		storage: storage,
		now:     time.Now,
	}
}

// load reads and decodes the persisted collection. A key that was never
// written yields an empty collection.
func (s *Store) load(ctx context.Context) ([]Task, error) {
	data, found, err := s.storage.Get(ctx, kv.KeyTasks)
	if err != nil {
		return nil, err
	}
	if !found {
		return []Task{}, nil
	}

	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, &kv.StorageError{Op: "decode", Key: kv.KeyTasks, Err: err}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// persist encodes and writes the full collection
func (s *Store) persist(ctx context.Context, tasks []Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return &kv.StorageError{Op: "encode", Key: kv.KeyTasks, Err: err}
	}
	return s.storage.Set(ctx, kv.KeyTasks, data)
}

// List returns the current task collection in stored order. An empty or
// uninitialized store yields an empty slice.
func (s *Store) List(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Add creates a task with the given title, persists the updated collection,
// and returns the new record. The title must be non-empty after trimming.
func (s *Store) Add(ctx context.Context, title string) (*Task, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	task := Task{
		ID:        nextID(),
		Title:     trimmed,
		Completed: false,
		CreatedAt: s.now().UnixMilli(),
	}

	if err := s.persist(ctx, append(tasks, task)); err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes the task with the given ID. It returns false, nil when no
// such task exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	remaining := make([]Task, 0, len(tasks))
	found := false
	for _, t := range tasks {
		if t.ID == id {
			found = true
			continue
		}
		remaining = append(remaining, t)
	}

	if !found {
		return false, nil
	}

	if err := s.persist(ctx, remaining); err != nil {
		return false, err
	}
	return true, nil
}

// ToggleComplete flips the completed flag of the task with the given ID,
// persists the collection, and returns the updated record.
func (s *Store) ToggleComplete(ctx context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var updated *Task
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Completed = !tasks[i].Completed
			updated = &tasks[i]
			break
		}
	}

	if updated == nil {
		return nil, &NotFoundError{ID: id}
	}

	if err := s.persist(ctx, tasks); err != nil {
		return nil, err
	}

	result := *updated
	return &result, nil
}

// ReplaceAll overwrites the whole collection. Only the restore coordinator
// calls this; the write is atomic with respect to concurrent readers.
func (s *Store) ReplaceAll(ctx context.Context, tasks []Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]Task, len(tasks))
	copy(copied, tasks)
	return s.persist(ctx, copied)
}

