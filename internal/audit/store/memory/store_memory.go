package memory

import (
	"context"
	"sync"

	"trustscore/internal/audit"
	"trustscore/pkg/platform/tx"
)

type entityKey struct {
	entityType string
	entityID   string
}

// InMemoryStore keeps entries per entity in commit order. Appends made inside a
// tx.MemoryRunner unit are held until the unit commits and dropped if it fails.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[entityKey][]*audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[entityKey][]*audit.Entry)}
}

func (s *InMemoryStore) Append(ctx context.Context, entry *audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := entityKey{entry.EntityType, entry.EntityID}
	stored := cloneEntry(entry)

	add := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries[key] = append(s.entries[key], stored)
	}
	if !tx.OnCommit(ctx, add) {
		add()
	}
	return nil
}

// ListByEntity returns entries newest committed first. Order follows commit
// sequence, not CreatedAt, so a request carrying an earlier clock that commits
// later is still listed ahead.
func (s *InMemoryStore) ListByEntity(_ context.Context, entityType, entityID string, limit int) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[entityKey{entityType, entityID}]
	out := make([]*audit.Entry, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, cloneEntry(list[i]))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of stored entries across all entities.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.entries {
		n += len(list)
	}
	return n
}

func cloneEntry(e *audit.Entry) *audit.Entry {
	cp := *e
	cp.Changes = make(audit.Changes, len(e.Changes))
	for section, changes := range e.Changes {
		cp.Changes[section] = append([]audit.Change(nil), changes...)
	}
	return &cp
}
