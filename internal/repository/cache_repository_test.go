package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	var out []string
	assert.ErrorIs(t, repo.Get(ctx, "policy-docs:tenant:inst-a:documents:published", &out), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "policy-docs:tenant:inst-a:documents:published", []string{"doc-1"}, time.Minute))
	require.NoError(t, repo.Get(ctx, "policy-docs:tenant:inst-a:documents:published", &out))
	assert.Equal(t, []string{"doc-1"}, out)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "policy-docs:tenant:inst-a:documents:published", &out), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDelete(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "policy-docs:tenant:inst-a:documents:published", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "policy-docs:tenant:inst-b:documents:published", 2, time.Minute))
	require.NoError(t, repo.Delete(ctx, "policy-docs:tenant:inst-a:documents:published"))
	assert.False(t, mr.Exists("policy-docs:tenant:inst-a:documents:published"))

	require.NoError(t, repo.DeleteByPattern(ctx, "policy-docs:tenant:*"))
	assert.False(t, mr.Exists("policy-docs:tenant:inst-b:documents:published"))
}

func TestCacheRepositoryCorruptEntryIsMiss(t *testing.T) {
	repo, mr := newCacheRepo(t)
	require.NoError(t, mr.Set("policy-docs:tenant:inst-a:documents:published", "{not json"))

	var out []string
	assert.ErrorIs(t, repo.Get(context.Background(), "policy-docs:tenant:inst-a:documents:published", &out), appErrors.ErrCacheMiss)
	assert.False(t, mr.Exists("policy-docs:tenant:inst-a:documents:published"))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var out int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
}
