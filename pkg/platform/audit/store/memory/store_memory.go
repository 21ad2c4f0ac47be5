package memory

import (
	"context"
	"sort"
	"sync"

	"brick/pkg/domain"
	audit "brick/pkg/platform/audit"
)

// InMemoryStore keeps events in append order. Used by tests and by
// deployments that only need the in-process audit trail.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType, entityID string) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool {
		return e.EntityType == entityType && e.EntityID == entityID
	}), nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor domain.Principal) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.Actor == actor }), nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	return s.filter(func(audit.Event) bool { return true }), nil
}

// ListRecent returns the most recent N events, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	all := s.filter(func(audit.Event) bool { return true })
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemoryStore) filter(keep func(audit.Event) bool) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, 0)
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
