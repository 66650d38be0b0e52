// Package cache keeps the newest page of each conversation's message log in
// Redis so the common "open conversation" read skips MySQL. It is strictly a
// cache: misses and partial windows fall through to the store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ripple/internal/config"
	"ripple/internal/dbmysql"
)

const (
	messagePrefix = "conv:messages"
	maxSize       = 50
)

// MessageCache wraps the Redis client. A nil *MessageCache is valid and
// disables caching.
type MessageCache struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings it to ensure the connection
// is working. Returns nil (cache disabled) when Redis is switched off in
// config.
func Connect(ctx context.Context, cfg *config.Config) (*MessageCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &MessageCache{cli: cli}, nil
}

func key(conversationID string) string {
	return fmt.Sprintf("%s:%s", messagePrefix, conversationID)
}

// ListNewest returns up to n of the newest cached messages for the
// conversation, newest first. An empty result is a miss, not an error.
func (c *MessageCache) ListNewest(ctx context.Context, conversationID string, n int) ([]*dbmysql.Message, error) {
	if c == nil {
		return nil, nil
	}

	vals, err := c.cli.ZRevRange(ctx, key(conversationID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}

	out := make([]*dbmysql.Message, 0, len(vals))
	for _, raw := range vals {
		var msg dbmysql.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode cached message: %w", err)
		}
		out = append(out, &msg)
	}
	return out, nil
}

// Insert adds a freshly appended message and trims the window to maxSize so
// the oldest entries are evicted.
func (c *MessageCache) Insert(ctx context.Context, msg *dbmysql.Message) error {
	if c == nil {
		return nil
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	k := key(msg.ConversationID)
	pipe := c.cli.TxPipeline()
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(msg.CreatedAt.UnixNano()),
		Member: raw,
	})
	pipe.ZRemRangeByRank(ctx, k, 0, int64(-(maxSize + 1)))
	pipe.Expire(ctx, k, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis insert message: %w", err)
	}
	return nil
}

// Prime replaces the cached window with messages loaded from the store
// (newest first, as Page returns them).
func (c *MessageCache) Prime(ctx context.Context, conversationID string, messages []*dbmysql.Message) error {
	if c == nil || len(messages) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(messages))
	for _, msg := range messages {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		members = append(members, redis.Z{
			Score:  float64(msg.CreatedAt.UnixNano()),
			Member: raw,
		})
	}

	k := key(conversationID)
	pipe := c.cli.TxPipeline()
	pipe.Del(ctx, k)
	pipe.ZAdd(ctx, k, members...)
	pipe.ZRemRangeByRank(ctx, k, 0, int64(-(maxSize + 1)))
	pipe.Expire(ctx, k, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis prime: %w", err)
	}
	return nil
}

// Invalidate drops the conversation's window. Called on soft delete, where
// editing one member of the zset in place is not worth the bookkeeping.
func (c *MessageCache) Invalidate(ctx context.Context, conversationID string) error {
	if c == nil {
		return nil
	}
	if err := c.cli.Del(ctx, key(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}
