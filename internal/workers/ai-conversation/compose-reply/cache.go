// internal/workers/ai-conversation/compose-reply/cache.go
package composereply

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "reply:"

// ReplyCache stores composed replies keyed by query and knowledge base.
type ReplyCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisReplyCache struct {
	client redis.Cmdable
}

func NewRedisReplyCache(client redis.Cmdable) *RedisReplyCache {
	return &RedisReplyCache{client: client}
}

func (c *RedisReplyCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisReplyCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// cacheKey normalises case and whitespace so trivially different phrasings share a key.
func cacheKey(query, kbFingerprint string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(kbFingerprint + "\x00" + norm))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
