package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// memoryStore is a bounded LRU of seen keys. Single-process only; a
// multi-replica deployment should use the redis backend instead.
type memoryStore struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

// NewMemoryStore returns an in-memory Store holding at most capacity
// keys, evicting least recently used.
func NewMemoryStore(capacity int) Store {
	if capacity <= 0 {
		capacity = 4096
	}
	return &memoryStore{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (s *memoryStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if ok {
		s.order.MoveToFront(el)
	}
	return ok, nil
}

func (s *memoryStore) Mark(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.order.MoveToFront(el)
		return nil
	}

	s.entries[key] = s.order.PushFront(key)
	if s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(string))
		}
	}
	return nil
}
