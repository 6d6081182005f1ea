// Package sigdb persists node signature records between build sessions.
// Records are what make up-to-date decisions possible: without a stored
// record a target is always rebuilt.
package sigdb

import "sync"

// Store is a flat key-value store for encoded records.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key []byte) ([]byte, bool, error)

	// Set writes the value for key.
	Set(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Close releases the store's resources.
	Close() error
}

// MemStore is an in-memory Store. It is safe for concurrent use and is the
// default when no database directory is configured.
type MemStore struct {
	mu   sync.RWMutex
	vals map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{vals: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemStore) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set implements Store.
func (s *MemStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.vals[string(key)] = v
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vals, string(key))
	return nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
