//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trustscore/pkg/platform/tx"
	"trustscore/pkg/requestcontext"
	"trustscore/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
	runner   *tx.SQLRunner
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"outbox", "audit_entries", "evaluation_scores", "evaluations"))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
}

func (s *PostgresStoreSuite) TestUpsertReportsCreationAndPrevious() {
	first, err := s.store.UpsertFactor(s.ctx, "F1", factorA, 8)
	s.Require().NoError(err)
	s.True(first.Created)
	s.Nil(first.Previous)

	second, err := s.store.UpsertFactor(s.ctx, "F1", factorA, 6)
	s.Require().NoError(err)
	s.False(second.Created)
	s.Equal(first.EvaluationID, second.EvaluationID)
	s.Require().NotNil(second.Previous)
	s.Equal(8.0, *second.Previous)
}

func (s *PostgresStoreSuite) TestPointUpdateLeavesSiblingsAlone() {
	_, err := s.store.UpsertFactor(s.ctx, "F1", factorA, 8)
	s.Require().NoError(err)
	_, err = s.store.UpsertFactor(s.ctx, "F1", factorB, 3)
	s.Require().NoError(err)

	e, err := s.store.GetByFirm(s.ctx, "F1")
	s.Require().NoError(err)
	a, _ := e.Scores.Get(factorA)
	b, _ := e.Scores.Get(factorB)
	s.Equal(8.0, a)
	s.Equal(3.0, b)
	s.True(e.UpdatedAt.Equal(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)))
}

func (s *PostgresStoreSuite) TestClearFactor() {
	_, err := s.store.ClearFactor(s.ctx, "F1", factorA)
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.UpsertFactor(s.ctx, "F1", factorA, 8)
	s.Require().NoError(err)

	change, err := s.store.ClearFactor(s.ctx, "F1", factorA)
	s.Require().NoError(err)
	s.Require().NotNil(change.Previous)
	s.Equal(8.0, *change.Previous)
	s.Nil(change.Current)

	again, err := s.store.ClearFactor(s.ctx, "F1", factorA)
	s.Require().NoError(err)
	s.Nil(again.Previous)

	e, err := s.store.GetByFirm(s.ctx, "F1")
	s.Require().NoError(err)
	s.Empty(e.Scores.Entries())
}

func (s *PostgresStoreSuite) TestRollbackDiscardsWrites() {
	err := s.runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		if _, err := s.store.UpsertFactor(txCtx, "F1", factorA, 8); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	_, err = s.store.GetByFirm(s.ctx, "F1")
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestNegativeValueRejectedByConstraint() {
	_, err := s.store.UpsertFactor(s.ctx, "F1", factorA, -1)
	s.Error(err)
}
