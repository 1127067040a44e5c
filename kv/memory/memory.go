// Package memory provides an in-memory kv.Store for tests, with optional
// fault injection for exercising storage failure paths.
package memory

import (
	"context"
	"errors"
	"sync"

	"todokeep/kv"
)

// Store is an in-memory implementation of kv.Store
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	setErr error
	getErr error
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// FailSets makes every subsequent Set return a StorageError wrapping reason.
// Pass an empty string to clear the fault.
func (s *Store) FailSets(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == "" {
		s.setErr = nil
		return
	}
	s.setErr = errors.New(reason)
}

// FailGets makes every subsequent Get return a StorageError wrapping reason.
// Pass an empty string to clear the fault.
func (s *Store) FailGets(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason == "" {
		s.getErr = nil
		return
	}
	s.getErr = errors.New(reason)
}

// Get returns the value stored under key, or found=false when absent
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.getErr != nil {
		return nil, false, &kv.StorageError{Op: "get", Key: key, Err: s.getErr}
	}

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set stores a copy of value under key
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setErr != nil {
		return &kv.StorageError{Op: "set", Key: key, Err: s.setErr}
	}

	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}

// Verify interface compliance at compile time
var _ kv.Store = (*Store)(nil)
