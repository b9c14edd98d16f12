package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, "enrollment:", zap.NewNop()), mr
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "catalog:course:x", map[string]int{"seats": 1}, time.Minute))
	assert.True(t, mr.Exists("enrollment:catalog:course:x"))

	var got map[string]int
	require.NoError(t, repo.Get(ctx, "catalog:course:x", &got))
	assert.Equal(t, 1, got["seats"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "catalog:course:x", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryPatternDeleteStaysInNamespace(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	for _, k := range []string{"catalog:list:a", "catalog:list:b", "catalog:course:x"} {
		require.NoError(t, repo.Set(ctx, k, map[string]int{"total": 1}, time.Minute))
	}
	require.NoError(t, mr.Set("catalog:list:foreign", "keep"))

	removed, err := repo.DeleteByPattern(ctx, "catalog:list:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, mr.Exists("enrollment:catalog:list:a"))
	assert.True(t, mr.Exists("enrollment:catalog:course:x"))
	assert.True(t, mr.Exists("catalog:list:foreign"))

	require.NoError(t, repo.Delete(ctx, "catalog:course:x"))
	assert.False(t, mr.Exists("enrollment:catalog:course:x"))
}

func TestCacheRepositoryEvictsCorruptEntries(t *testing.T) {
	repo, mr := newCacheRepo(t)
	require.NoError(t, mr.Set("enrollment:catalog:course:y", "{not json"))

	var got map[string]int
	assert.ErrorIs(t, repo.Get(context.Background(), "catalog:course:y", &got), appErrors.ErrCacheMiss)
	assert.False(t, mr.Exists("enrollment:catalog:course:y"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "", nil)
	ctx := context.Background()
	var dest string
	assert.ErrorIs(t, repo.Get(ctx, "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", "v", time.Second))
	assert.NoError(t, repo.Delete(ctx, "k"))
	removed, err := repo.DeleteByPattern(ctx, "*")
	assert.NoError(t, err)
	assert.Zero(t, removed)
}
