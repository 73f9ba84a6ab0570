// Package cache provides the result caches used by the related-items
// planner: a Redis-backed cache shared between instances and an
// in-process fallback.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/related-content/pkg/redis"
	json "github.com/goccy/go-json"
)

// Redis stores ID lists as JSON arrays under "<namespace>:<key>".
type Redis struct {
	client *pkgredis.Client
	logger *slog.Logger
}

func NewRedis(client *pkgredis.Client) *Redis {
	return &Redis{
		client: client,
		logger: slog.Default().With("component", "related-cache"),
	}
}

func (c *Redis) Get(ctx context.Context, key, namespace string) ([]int64, bool, error) {
	full := namespacedKey(namespace, key)
	data, err := c.client.GetBytes(ctx, full)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", full, err)
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		// A value we cannot read is treated as absent and gets overwritten.
		c.logger.Warn("discarding undecodable cache entry", "key", full, "error", err)
		return nil, false, nil
	}
	return ids, true, nil
}

func (c *Redis) Set(ctx context.Context, key, namespace string, ids []int64, ttl time.Duration) error {
	full := namespacedKey(namespace, key)
	if ids == nil {
		ids = []int64{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", full, err)
	}
	if err := c.client.Set(ctx, full, data, ttl); err != nil {
		return fmt.Errorf("redis set %s: %w", full, err)
	}
	return nil
}

// Invalidate deletes every entry in namespace.
func (c *Redis) Invalidate(ctx context.Context, namespace string) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, namespacedKey(namespace, "*"))
	if err != nil {
		return deleted, fmt.Errorf("invalidating namespace %s: %w", namespace, err)
	}
	c.logger.Info("cache invalidated", "namespace", namespace, "keys_deleted", deleted)
	return deleted, nil
}

func namespacedKey(namespace, key string) string {
	return namespace + ":" + key
}
