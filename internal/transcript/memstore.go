package transcript

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// defaultMemCapacity bounds the in-memory archive. Old utterances are evicted
// from the front once the bound is exceeded.
const defaultMemCapacity = 1024

// MemStore is the in-memory [Store] implementation. All methods are safe for
// concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	entries  []Utterance
	capacity int
}

// Ensure MemStore implements Store at compile time.
var _ Store = (*MemStore)(nil)

// NewMemStore creates a MemStore retaining at most capacity utterances.
// A non-positive capacity selects the default of 1024.
func NewMemStore(capacity int) *MemStore {
	if capacity <= 0 {
		capacity = defaultMemCapacity
	}
	return &MemStore{capacity: capacity}
}

// Append implements [Store].
func (s *MemStore) Append(_ context.Context, u Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, u)
	if len(s.entries) > s.capacity {
		over := len(s.entries) - s.capacity
		// Copy to a fresh slice so evicted entries can be garbage collected.
		fresh := make([]Utterance, len(s.entries)-over, s.capacity)
		copy(fresh, s.entries[over:])
		s.entries = fresh
	}
	return nil
}

// Recent implements [Store].
func (s *MemStore) Recent(_ context.Context, sessionID uuid.UUID, limit int) ([]Utterance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Utterance, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if s.entries[i].SessionID == sessionID {
			result = append(result, s.entries[i])
		}
	}

	// Reverse to chronological order.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// Close implements [Store]. It is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
