package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/functree/modules/functionality/infrastructure/persistence/models"
	"github.com/iota-uz/functree/modules/functionality/services"
)

// setIfGeneration stores the tree only while the generation key still holds
// ARGV[1]. A missing generation key counts as 0.
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if (current or '0') ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisTreeCache shares tree reads between server instances. Each tenant has
// one key holding its flat node list and one generation counter.
type RedisTreeCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTreeCache(client *redis.Client, ttl time.Duration) *RedisTreeCache {
	return &RedisTreeCache{redis: client, prefix: "functree:tree:v1", ttl: ttl}
}

func (c *RedisTreeCache) key(tenantID uuid.UUID) string {
	return c.prefix + ":" + tenantID.String()
}

func (c *RedisTreeCache) generationKey(tenantID uuid.UUID) string {
	return c.prefix + ":gen:" + tenantID.String()
}

func (c *RedisTreeCache) Get(ctx context.Context, tenantID uuid.UUID) ([]services.Node, bool, error) {
	raw, err := c.redis.Get(ctx, c.key(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rows []models.FunctionalityNode
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, err
	}
	out := make([]services.Node, 0, len(rows))
	for _, row := range rows {
		n, err := ToDomainNode(row)
		if err != nil {
			return nil, false, err
		}
		out = append(out, n)
	}
	return out, true, nil
}

func (c *RedisTreeCache) Generation(ctx context.Context, tenantID uuid.UUID) (uint64, error) {
	gen, err := c.redis.Get(ctx, c.generationKey(tenantID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisTreeCache) Set(ctx context.Context, tenantID uuid.UUID, generation uint64, nodes []services.Node) (bool, error) {
	rows := make([]models.FunctionalityNode, len(nodes))
	for i, n := range nodes {
		rows[i] = ToDBNode(n)
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return false, err
	}
	stored, err := setIfGeneration.Run(ctx, c.redis,
		[]string{c.key(tenantID), c.generationKey(tenantID)},
		strconv.FormatUint(generation, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate advances the generation and drops the cached tree atomically.
func (c *RedisTreeCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(tenantID))
		pipe.Del(ctx, c.key(tenantID))
		return nil
	})
	return err
}
