package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"trustscore/internal/scoring/models"
	"trustscore/pkg/platform/tx"
	"trustscore/pkg/requestcontext"
)

// InMemoryStore keeps evaluations keyed by firm. Inside a tx.MemoryRunner unit
// writes go to a working copy that only the unit sees; the copy replaces the
// committed evaluation when the unit commits and is dropped otherwise.
type InMemoryStore struct {
	mu          sync.RWMutex
	evaluations map[string]*models.Evaluation
}

// staged holds one unit's working copies. Guarded by InMemoryStore.mu.
type staged struct {
	evaluations map[string]*models.Evaluation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{evaluations: make(map[string]*models.Evaluation)}
}

func (s *InMemoryStore) GetByFirm(ctx context.Context, firmID string) (*models.Evaluation, error) {
	st := s.stagedFor(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if st != nil {
		if e, ok := st.evaluations[firmID]; ok {
			return e.Clone(), nil
		}
	}
	e, ok := s.evaluations[firmID]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// UpsertFactor sets one factor, creating the evaluation on first write. Other
// factors are left as they are.
func (s *InMemoryStore) UpsertFactor(ctx context.Context, firmID string, ref models.FactorRef, value float64) (*models.FactorChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	st := s.stagedFor(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.writable(st, firmID)
	if !exists {
		e = models.NewEvaluation(uuid.New(), firmID, now)
		if st != nil {
			st.evaluations[firmID] = e
		} else {
			s.evaluations[firmID] = e
		}
	}
	previous, hadPrevious := e.Scores.Get(ref)
	e.Scores.Set(ref, value)
	e.UpdatedAt = now

	change := &models.FactorChange{
		EvaluationID: e.ID,
		FirmID:       firmID,
		Ref:          ref,
		Current:      &value,
		Created:      !exists,
	}
	if hadPrevious {
		change.Previous = &previous
	}
	return change, nil
}

// ClearFactor removes one factor from an existing evaluation.
func (s *InMemoryStore) ClearFactor(ctx context.Context, firmID string, ref models.FactorRef) (*models.FactorChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	st := s.stagedFor(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.writable(st, firmID)
	if !ok {
		return nil, ErrNotFound
	}
	previous, hadPrevious := e.Scores.Get(ref)
	e.Scores.Delete(ref)
	e.UpdatedAt = now

	change := &models.FactorChange{EvaluationID: e.ID, FirmID: firmID, Ref: ref}
	if hadPrevious {
		change.Previous = &previous
	}
	return change, nil
}

// stagedFor returns the working set of the unit in ctx, registering its publish
// on first use. It returns nil outside a unit, where writes apply directly.
func (s *InMemoryStore) stagedFor(ctx context.Context) *staged {
	fresh := false
	v, ok := tx.UnitValue(ctx, s, func() any {
		fresh = true
		return &staged{evaluations: make(map[string]*models.Evaluation)}
	})
	if !ok {
		return nil
	}
	st := v.(*staged)
	if fresh {
		tx.OnCommit(ctx, func() { s.publish(st) })
	}
	return st
}

func (s *InMemoryStore) publish(st *staged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for firmID, e := range st.evaluations {
		s.evaluations[firmID] = e
	}
}

// writable returns the evaluation a write should modify. Caller holds s.mu.
func (s *InMemoryStore) writable(st *staged, firmID string) (*models.Evaluation, bool) {
	if st != nil {
		if e, ok := st.evaluations[firmID]; ok {
			return e, true
		}
	}
	e, ok := s.evaluations[firmID]
	if !ok || st == nil {
		return e, ok
	}
	working := e.Clone()
	st.evaluations[firmID] = working
	return working, true
}
