package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Scores is the sparse pillarID → categoryID → factorKey → value tree. An absent
// entry means the factor is unscored, which is distinct from a stored zero.
type Scores map[string]map[string]map[string]float64

// Get returns the stored value for ref.
func (s Scores) Get(ref FactorRef) (float64, bool) {
	categories, ok := s[ref.PillarID]
	if !ok {
		return 0, false
	}
	factors, ok := categories[ref.CategoryID]
	if !ok {
		return 0, false
	}
	v, ok := factors[ref.FactorKey]
	return v, ok
}

// Set stores value at ref, creating intermediate levels as needed.
func (s Scores) Set(ref FactorRef, value float64) {
	categories, ok := s[ref.PillarID]
	if !ok {
		categories = make(map[string]map[string]float64)
		s[ref.PillarID] = categories
	}
	factors, ok := categories[ref.CategoryID]
	if !ok {
		factors = make(map[string]float64)
		categories[ref.CategoryID] = factors
	}
	factors[ref.FactorKey] = value
}

// Delete removes ref and prunes levels left empty. It reports whether a value was removed.
func (s Scores) Delete(ref FactorRef) bool {
	factors, ok := s[ref.PillarID][ref.CategoryID]
	if !ok {
		return false
	}
	if _, ok := factors[ref.FactorKey]; !ok {
		return false
	}
	delete(factors, ref.FactorKey)
	if len(factors) == 0 {
		delete(s[ref.PillarID], ref.CategoryID)
	}
	if len(s[ref.PillarID]) == 0 {
		delete(s, ref.PillarID)
	}
	return true
}

// Clone returns a deep copy.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for p, categories := range s {
		cc := make(map[string]map[string]float64, len(categories))
		for c, factors := range categories {
			fc := make(map[string]float64, len(factors))
			for f, v := range factors {
				fc[f] = v
			}
			cc[c] = fc
		}
		out[p] = cc
	}
	return out
}

// Entries flattens the tree in lexical order.
func (s Scores) Entries() []ScoreEntry {
	var out []ScoreEntry
	for p, categories := range s {
		for c, factors := range categories {
			for f, v := range factors {
				out = append(out, ScoreEntry{Ref: FactorRef{PillarID: p, CategoryID: c, FactorKey: f}, Value: v})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ref.String() < out[j].Ref.String()
	})
	return out
}

// ScoreEntry is one stored factor value.
type ScoreEntry struct {
	Ref   FactorRef
	Value float64
}

// FactorRef addresses one factor in the tree.
type FactorRef struct {
	PillarID   string
	CategoryID string
	FactorKey  string
}

func (r FactorRef) String() string {
	return r.PillarID + "." + r.CategoryID + "." + r.FactorKey
}

// Section is the audit grouping label for changes to this factor's category.
func (r FactorRef) Section() string {
	return "scores." + r.PillarID + "." + r.CategoryID
}

// Evaluation is the per-firm scoring document. At most one exists per firm.
type Evaluation struct {
	ID        uuid.UUID
	FirmID    string
	Scores    Scores
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEvaluation builds an empty evaluation for firmID.
func NewEvaluation(id uuid.UUID, firmID string, now time.Time) *Evaluation {
	return &Evaluation{
		ID:        id,
		FirmID:    firmID,
		Scores:    make(Scores),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy safe to hand out of a store.
func (e *Evaluation) Clone() *Evaluation {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Scores = e.Scores.Clone()
	return &cp
}

// FactorChange is what a store observed while applying a point update: the
// value before and after, and whether the write created the evaluation.
type FactorChange struct {
	EvaluationID uuid.UUID
	FirmID       string
	Ref          FactorRef
	Previous     *float64
	Current      *float64
	Created      bool
}
