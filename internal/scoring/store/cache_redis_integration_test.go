//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"trustscore/internal/scoring/models"
	"trustscore/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	e := models.NewEvaluation(uuid.New(), "F1", now)
	e.Scores.Set(factorA, 8)
	e.Scores.Set(factorB, 2.5)

	_, err := s.cache.Get(ctx, "F1")
	s.ErrorIs(err, ErrNotFound)

	s.Require().NoError(s.cache.Set(ctx, e))
	got, err := s.cache.Get(ctx, "F1")
	s.Require().NoError(err)
	s.Equal(e.ID, got.ID)
	s.Equal(e.Scores, got.Scores)
	s.True(got.UpdatedAt.Equal(now))

	ttl, err := s.redis.Client.TTL(ctx, cacheKey("F1")).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	e := models.NewEvaluation(uuid.New(), "F1", time.Now())
	s.Require().NoError(s.cache.Set(ctx, e))

	s.Require().NoError(s.cache.Invalidate(ctx, "F1"))
	_, err := s.cache.Get(ctx, "F1")
	s.ErrorIs(err, ErrNotFound)

	s.NoError(s.cache.Invalidate(ctx, "missing"))
}
