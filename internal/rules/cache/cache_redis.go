package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
)

// Redis is a resolution cache shared across processes. Entries for one event
// live in a single hash so invalidation is one DEL, matching the contract
// that a rule mutation purges every memoized result for that event.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis returns a Redis-backed resolution cache.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func eventKey(event domain.EntityRef) string {
	return "eventgate:resolution:" + event.Type + ":" + event.ID
}

func (c *Redis) Get(ctx context.Context, key Key) (models.OperationSet, bool, error) {
	raw, err := c.client.HGet(ctx, eventKey(key.Event), key.subKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("resolution cache get: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, false, fmt.Errorf("resolution cache decode: %w", err)
	}
	return models.NewOperationSet(names...), true, nil
}

func (c *Redis) Put(ctx context.Context, key Key, ops models.OperationSet) error {
	raw, err := json.Marshal(ops.Names())
	if err != nil {
		return fmt.Errorf("resolution cache encode: %w", err)
	}
	k := eventKey(key.Event)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, k, key.subKey(), raw)
	// TTL bounds staleness if an invalidation is ever missed. It is renewed
	// per write and applies to the whole event hash.
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("resolution cache put: %w", err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context, event domain.EntityRef) error {
	if err := c.client.Del(ctx, eventKey(event)).Err(); err != nil {
		return fmt.Errorf("resolution cache invalidate: %w", err)
	}
	return nil
}

func (c *Redis) InvalidateType(ctx context.Context, entityType string) error {
	pattern := "eventgate:resolution:" + entityType + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("resolution cache invalidate type: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("resolution cache invalidate type: %w", err)
	}
	return nil
}
