package eventlog

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryCapacity bounds NewMemoryStore.
const DefaultMemoryCapacity = 10000

// MemoryStore keeps the most recent events in a ring. Once full, each
// append overwrites the oldest event.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []Event
	start    int
	capacity int
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCapacity(DefaultMemoryCapacity)
}

// NewMemoryStoreWithCapacity keeps at most capacity events; non-positive
// values use DefaultMemoryCapacity.
func NewMemoryStoreWithCapacity(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{events: make([]Event, 0, min(capacity, 64)), capacity: capacity}
}

func (s *MemoryStore) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) < s.capacity {
		s.events = append(s.events, e)
		return nil
	}
	s.events[s.start] = e
	s.start = (s.start + 1) % s.capacity
	return nil
}

func (s *MemoryStore) List(_ context.Context, since, until time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events))
	for i := range s.events {
		e := s.events[(s.start+i)%len(s.events)]
		if inRange(e.CreatedAt, since, until) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len reports how many events are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *MemoryStore) Close() error { return nil }
