package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myMarketplace/domain"
)

func newTestCache(t *testing.T) (*ProfileCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewProfileCache(client), mr
}

func TestProfileCache_RoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	p := &domain.BehaviorProfile{
		UserID:                 12,
		PreferredCategories:    []string{"shoes", "hats"},
		PreferredBrands:        []string{},
		PriceSensitivity:       0.4,
		CustomerLifecycleStage: domain.LifecycleActive,
		LastActivityAt:         time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	require.NoError(t, cache.Set(ctx, p, time.Minute))
	assert.True(t, mr.Exists("profile:user:12"))

	got, err := cache.Get(ctx, 12)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"shoes", "hats"}, []string(got.PreferredCategories))
	assert.Equal(t, domain.LifecycleActive, got.CustomerLifecycleStage)
	assert.True(t, p.LastActivityAt.Equal(got.LastActivityAt))
}

func TestProfileCache_MissAndExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	got, err := cache.Get(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, &domain.BehaviorProfile{UserID: 99}, time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err = cache.Get(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProfileCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.BehaviorProfile{UserID: 5}, time.Minute))
	require.NoError(t, cache.Invalidate(ctx, 5))

	got, err := cache.Get(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProfileCache_CorruptEntry(t *testing.T) {
	cache, mr := newTestCache(t)
	require.NoError(t, mr.Set("profile:user:3", "{not json"))

	_, err := cache.Get(context.Background(), 3)
	assert.Error(t, err)
}

func TestProfileCache_ServerDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	_, err := cache.Get(context.Background(), 1)
	assert.Error(t, err)
}
