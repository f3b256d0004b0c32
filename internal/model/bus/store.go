package bus

import (
	"context"
	"sync"
	"time"
)

// Store exposes the bus directory to services and HTTP handlers.
type Store interface {
	List(ctx context.Context) ([]Bus, error)
	// FindByID reports ok=false when the bus does not exist.
	FindByID(ctx context.Context, id string) (Bus, bool, error)
	// Update merges patch into the bus and stamps LastUpdated. ok=false when
	// the bus does not exist; an invalid result is an ErrInvalidPatch error.
	Update(ctx context.Context, id string, patch Patch) (Bus, bool, error)
}

// MemoryStore implements Store with an in-memory slice, suitable for demos
// and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Bus
	now   func() time.Time
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied buses.
func NewMemoryStore(items []Bus) *MemoryStore {
	copied := make([]Bus, len(items))
	for i, item := range items {
		copied[i] = item.Clone()
	}
	return &MemoryStore{items: copied, now: func() time.Time { return time.Now().UTC() }}
}

// List returns the buses in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bus, len(s.items))
	for i, item := range s.items {
		out[i] = item.Clone()
	}
	return out, nil
}

// FindByID looks up a bus by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (Bus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ID == id {
			return item.Clone(), true, nil
		}
	}
	return Bus{}, false, nil
}

// Update merges the patch into the matching bus.
func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (Bus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID == id {
			merged, err := patch.Merge(item, s.now())
			if err != nil {
				return Bus{}, true, err
			}
			s.items[i] = merged
			return merged.Clone(), true, nil
		}
	}
	return Bus{}, false, nil
}
