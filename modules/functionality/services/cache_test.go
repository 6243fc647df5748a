package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryTreeCache_ExpiresAndIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryTreeCache(time.Minute)
	cache.now = func() time.Time { return now }

	other := uuid.New()
	parent := uuid.New()
	stored, err := cache.Set(ctx, testTenant, 0, []Node{{ID: uuid.New(), ParentID: &parent}})
	require.NoError(t, err)
	require.True(t, stored)

	got, hit, err := cache.Get(ctx, testTenant)
	require.NoError(t, err)
	require.True(t, hit)
	*got[0].ParentID = uuid.Nil

	again, _, _ := cache.Get(ctx, testTenant)
	require.Equal(t, parent, *again[0].ParentID, "cached entries must not be aliased")

	_, hit, _ = cache.Get(ctx, other)
	require.False(t, hit)

	now = now.Add(time.Minute)
	_, hit, _ = cache.Get(ctx, testTenant)
	require.False(t, hit)
}

func TestMemoryTreeCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryTreeCache(0)
	stored, err := cache.Set(ctx, testTenant, 0, nil)
	require.NoError(t, err)
	require.True(t, stored)
	stored, err = cache.Set(ctx, uuid.Nil, 0, []Node{{}})
	require.NoError(t, err)
	require.False(t, stored)

	_, hit, _ := cache.Get(ctx, testTenant)
	require.True(t, hit)
	_, hit, _ = cache.Get(ctx, uuid.Nil)
	require.False(t, hit)

	require.NoError(t, cache.Invalidate(ctx, testTenant))
	_, hit, _ = cache.Get(ctx, testTenant)
	require.False(t, hit)
}

func TestMemoryTreeCache_SetIgnoresOlderGeneration(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryTreeCache(0)

	gen, err := cache.Generation(ctx, testTenant)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, testTenant))

	stored, err := cache.Set(ctx, testTenant, gen, []Node{{ID: uuid.New()}})
	require.NoError(t, err)
	require.False(t, stored)
	_, hit, _ := cache.Get(ctx, testTenant)
	require.False(t, hit)

	current, err := cache.Generation(ctx, testTenant)
	require.NoError(t, err)
	require.Equal(t, gen+1, current)
	stored, err = cache.Set(ctx, testTenant, current, []Node{{ID: uuid.New()}})
	require.NoError(t, err)
	require.True(t, stored)
}
