package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/configuration"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        configuration.Use().RedisURL,
		DialTimeout: 250 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis is not reachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisTreeCache_RoundTrip(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	cache := NewRedisTreeCache(client, time.Minute)
	tenantID := uuid.New()
	t.Cleanup(func() {
		_ = client.Del(context.Background(), cache.key(tenantID), cache.generationKey(tenantID)).Err()
	})

	_, ok, err := cache.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, ok)

	root := services.Node{ID: uuid.New(), Kind: services.NodeKindFolder, Name: "root", OrderKey: 1,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	leaf := services.Node{ID: uuid.New(), ParentID: &root.ID, Kind: services.NodeKindLeaf, Name: "leaf", OrderKey: 0.5,
		CreatedAt: root.CreatedAt, UpdatedAt: root.UpdatedAt}
	gen, err := cache.Generation(ctx, tenantID)
	require.NoError(t, err)
	stored, err := cache.Set(ctx, tenantID, gen, []services.Node{root, leaf})
	require.NoError(t, err)
	require.True(t, stored)

	got, ok, err := cache.Get(ctx, tenantID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, root.ID, got[0].ID)
	assert.Equal(t, &root.ID, got[1].ParentID)
	assert.Equal(t, 0.5, got[1].OrderKey)

	require.NoError(t, cache.Invalidate(ctx, tenantID))
	_, ok, err = cache.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisTreeCache_InvalidateRejectsOlderGeneration(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	cache := NewRedisTreeCache(client, 0)
	tenantID := uuid.New()
	t.Cleanup(func() {
		_ = client.Del(context.Background(), cache.key(tenantID), cache.generationKey(tenantID)).Err()
	})

	before, err := cache.Generation(ctx, tenantID)
	require.NoError(t, err)
	require.Equal(t, uint64(0), before)

	require.NoError(t, cache.Invalidate(ctx, tenantID))
	after, err := cache.Generation(ctx, tenantID)
	require.NoError(t, err)
	require.Equal(t, before+1, after)

	node := services.Node{ID: uuid.New(), Kind: services.NodeKindFolder, Name: "stale", OrderKey: 1}
	stored, err := cache.Set(ctx, tenantID, before, []services.Node{node})
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, err := cache.Get(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err = cache.Set(ctx, tenantID, after, []services.Node{node})
	require.NoError(t, err)
	assert.True(t, stored)
	ttl, err := client.TTL(ctx, cache.key(tenantID)).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl, "a zero ttl stores without expiry")
}

func TestDomainNodeMapping(t *testing.T) {
	parent := uuid.New()
	n := services.Node{ID: uuid.New(), ParentID: &parent, Kind: services.NodeKindLeaf, Name: "x", OrderKey: 3}
	back, err := ToDomainNode(ToDBNode(n))
	require.NoError(t, err)
	assert.Equal(t, n, back)

	bad := ToDBNode(n)
	bad.Kind = "file"
	_, err = ToDomainNode(bad)
	require.Error(t, err)

	bad = ToDBNode(n)
	bad.ID = "nope"
	_, err = ToDomainNode(bad)
	require.Error(t, err)
}
