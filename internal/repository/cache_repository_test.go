package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

type cachedSummary struct {
	Total   int `json:"total"`
	Overdue int `json:"overdue"`
}

func newTestCache(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "reco:summary:student-1", cachedSummary{Total: 4, Overdue: 1}, time.Minute))

	var got cachedSummary
	require.NoError(t, repo.Get(ctx, "reco:summary:student-1", &got))
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 1, got.Overdue)
}

func TestCacheRepositoryMiss(t *testing.T) {
	repo, _ := newTestCache(t)

	var got cachedSummary
	err := repo.Get(context.Background(), "reco:summary:absent", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "reco:summary:student-1", cachedSummary{Total: 1}, time.Minute))
	require.NoError(t, repo.Set(ctx, "reco:summary:student-2", cachedSummary{Total: 2}, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "reco:summary:student-1"))

	var got cachedSummary
	assert.ErrorIs(t, repo.Get(ctx, "reco:summary:student-1", &got), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "reco:summary:student-2", &got))
	assert.Equal(t, 2, got.Total)
}

func TestCacheRepositoryNilClientDegrades(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", cachedSummary{}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "k"))

	var got cachedSummary
	assert.ErrorIs(t, repo.Get(ctx, "k", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryExpiry(t *testing.T) {
	repo, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "reco:summary:student-1", cachedSummary{Total: 1}, time.Second))
	mr.FastForward(2 * time.Second)

	var got cachedSummary
	assert.ErrorIs(t, repo.Get(ctx, "reco:summary:student-1", &got), appErrors.ErrCacheMiss)
}
