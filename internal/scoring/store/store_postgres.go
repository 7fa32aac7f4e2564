package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trustscore/internal/platform/postgres"
	"trustscore/internal/scoring/models"
	"trustscore/pkg/platform/tx"
	"trustscore/pkg/requestcontext"
)

// PostgresStore persists evaluations as one header row per firm plus one row
// per scored factor, so a factor write touches exactly one score row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByFirm(ctx context.Context, firmID string) (*models.Evaluation, error) {
	exec := tx.ExecutorFrom(ctx, s.db)

	var e models.Evaluation
	err := exec.QueryRowContext(ctx, `
		SELECT id, firm_id, created_at, updated_at
		FROM evaluations
		WHERE firm_id = $1
	`, firmID).Scan(&e.ID, &e.FirmID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find evaluation: %w", postgres.Classify(err))
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT pillar_id, category_id, factor_key, value
		FROM evaluation_scores
		WHERE evaluation_id = $1
	`, e.ID)
	if err != nil {
		return nil, fmt.Errorf("query evaluation scores: %w", postgres.Classify(err))
	}
	defer rows.Close()

	e.Scores = make(models.Scores)
	for rows.Next() {
		var (
			ref   models.FactorRef
			value float64
		)
		if err := rows.Scan(&ref.PillarID, &ref.CategoryID, &ref.FactorKey, &value); err != nil {
			return nil, fmt.Errorf("scan evaluation score: %w", err)
		}
		e.Scores.Set(ref, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation scores: %w", err)
	}
	return &e, nil
}

// UpsertFactor creates the evaluation header on first write and sets one score
// row. The header upsert locks the firm's row until the transaction ends.
func (s *PostgresStore) UpsertFactor(ctx context.Context, firmID string, ref models.FactorRef, value float64) (*models.FactorChange, error) {
	exec := tx.ExecutorFrom(ctx, s.db)
	now := requestcontext.Now(ctx)

	change := &models.FactorChange{FirmID: firmID, Ref: ref, Current: &value}
	err := exec.QueryRowContext(ctx, `
		INSERT INTO evaluations (id, firm_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (firm_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS created
	`, uuid.New(), firmID, now).Scan(&change.EvaluationID, &change.Created)
	if err != nil {
		return nil, fmt.Errorf("upsert evaluation: %w", postgres.Classify(err))
	}

	previous, err := s.lockScore(ctx, exec, change.EvaluationID, ref)
	if err != nil {
		return nil, err
	}
	change.Previous = previous

	_, err = exec.ExecContext(ctx, `
		INSERT INTO evaluation_scores (evaluation_id, pillar_id, category_id, factor_key, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (evaluation_id, pillar_id, category_id, factor_key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, change.EvaluationID, ref.PillarID, ref.CategoryID, ref.FactorKey, value, now)
	if err != nil {
		return nil, fmt.Errorf("upsert evaluation score: %w", postgres.Classify(err))
	}
	return change, nil
}

// ClearFactor deletes one score row from an existing evaluation.
func (s *PostgresStore) ClearFactor(ctx context.Context, firmID string, ref models.FactorRef) (*models.FactorChange, error) {
	exec := tx.ExecutorFrom(ctx, s.db)
	now := requestcontext.Now(ctx)

	change := &models.FactorChange{FirmID: firmID, Ref: ref}
	err := exec.QueryRowContext(ctx, `
		UPDATE evaluations SET updated_at = $2
		WHERE firm_id = $1
		RETURNING id
	`, firmID, now).Scan(&change.EvaluationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("touch evaluation: %w", postgres.Classify(err))
	}

	var previous float64
	err = exec.QueryRowContext(ctx, `
		DELETE FROM evaluation_scores
		WHERE evaluation_id = $1 AND pillar_id = $2 AND category_id = $3 AND factor_key = $4
		RETURNING value
	`, change.EvaluationID, ref.PillarID, ref.CategoryID, ref.FactorKey).Scan(&previous)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("delete evaluation score: %w", postgres.Classify(err))
	default:
		change.Previous = &previous
	}
	return change, nil
}

func (s *PostgresStore) lockScore(ctx context.Context, exec tx.Executor, evaluationID uuid.UUID, ref models.FactorRef) (*float64, error) {
	var value float64
	err := exec.QueryRowContext(ctx, `
		SELECT value FROM evaluation_scores
		WHERE evaluation_id = $1 AND pillar_id = $2 AND category_id = $3 AND factor_key = $4
		FOR UPDATE
	`, evaluationID, ref.PillarID, ref.CategoryID, ref.FactorKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock evaluation score: %w", postgres.Classify(err))
	}
	return &value, nil
}
