package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trustscore/internal/scoring/models"
)

const cacheKeyPrefix = "trustscore:evaluation:"

// RedisCache holds read copies of evaluations. It is never written inside a
// transaction: callers invalidate after commit and refill on the next read.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

type cachedEvaluation struct {
	ID        uuid.UUID     `json:"id"`
	FirmID    string        `json:"firm_id"`
	Scores    models.Scores `json:"scores"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Get returns ErrNotFound on a cache miss.
func (c *RedisCache) Get(ctx context.Context, firmID string) (*models.Evaluation, error) {
	raw, err := c.client.Get(ctx, cacheKey(firmID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cached evaluation: %w", err)
	}
	var cached cachedEvaluation
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode cached evaluation: %w", err)
	}
	if cached.Scores == nil {
		cached.Scores = make(models.Scores)
	}
	return &models.Evaluation{
		ID:        cached.ID,
		FirmID:    cached.FirmID,
		Scores:    cached.Scores,
		CreatedAt: cached.CreatedAt,
		UpdatedAt: cached.UpdatedAt,
	}, nil
}

func (c *RedisCache) Set(ctx context.Context, e *models.Evaluation) error {
	raw, err := json.Marshal(cachedEvaluation{
		ID:        e.ID,
		FirmID:    e.FirmID,
		Scores:    e.Scores,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode cached evaluation: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(e.FirmID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached evaluation: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, firmID string) error {
	if err := c.client.Del(ctx, cacheKey(firmID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached evaluation: %w", err)
	}
	return nil
}

func cacheKey(firmID string) string {
	return cacheKeyPrefix + firmID
}
