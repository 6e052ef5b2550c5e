package audit

import (
	"context"
	"sync"

	"complyd/pkg/domain"
)

// InMemoryStore keeps audit trails in process memory. Used in dev mode and
// unit tests; intentionally favors clarity over performance.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.RecordID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.RecordID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RecordID] = append(s.events[event.RecordID], event)
	return nil
}

func (s *InMemoryStore) ListByRecord(_ context.Context, recordID domain.RecordID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.events[recordID]
	out := make([]Event, len(trail))
	copy(out, trail)
	return out, nil
}
