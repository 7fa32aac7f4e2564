package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoresSetGetDelete(t *testing.T) {
	s := make(Scores)
	a := FactorRef{PillarID: "credibility", CategoryID: "trust_signals", FactorKey: "no_controversies"}
	b := FactorRef{PillarID: "credibility", CategoryID: "trust_signals", FactorKey: "years_in_operation"}

	_, ok := s.Get(a)
	assert.False(t, ok)

	s.Set(a, 8)
	s.Set(b, 0)

	v, ok := s.Get(a)
	require.True(t, ok)
	assert.Equal(t, 8.0, v)

	v, ok = s.Get(b)
	require.True(t, ok, "stored zero is distinct from unscored")
	assert.Equal(t, 0.0, v)

	assert.True(t, s.Delete(a))
	assert.False(t, s.Delete(a))
	assert.True(t, s.Delete(b))
	assert.Empty(t, s, "empty levels are pruned")
}

func TestScoresCloneIsDeep(t *testing.T) {
	s := make(Scores)
	ref := FactorRef{PillarID: "p", CategoryID: "c", FactorKey: "f"}
	s.Set(ref, 1)

	cp := s.Clone()
	cp.Set(ref, 2)

	v, _ := s.Get(ref)
	assert.Equal(t, 1.0, v)
}

func TestScoresEntriesSorted(t *testing.T) {
	s := make(Scores)
	s.Set(FactorRef{PillarID: "b", CategoryID: "c", FactorKey: "f"}, 1)
	s.Set(FactorRef{PillarID: "a", CategoryID: "c", FactorKey: "g"}, 2)
	s.Set(FactorRef{PillarID: "a", CategoryID: "c", FactorKey: "f"}, 3)

	entries := s.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "a.c.f", entries[0].Ref.String())
	assert.Equal(t, "a.c.g", entries[1].Ref.String())
	assert.Equal(t, "b.c.f", entries[2].Ref.String())
}

func TestEvaluationClone(t *testing.T) {
	e := NewEvaluation(uuid.New(), "F1", time.Now())
	ref := FactorRef{PillarID: "p", CategoryID: "c", FactorKey: "f"}
	e.Scores.Set(ref, 4)

	cp := e.Clone()
	cp.Scores.Delete(ref)

	_, ok := e.Scores.Get(ref)
	assert.True(t, ok)
	assert.Nil(t, (*Evaluation)(nil).Clone())
	assert.Equal(t, "scores.p.c", ref.Section())
}
