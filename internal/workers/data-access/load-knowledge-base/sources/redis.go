package sources

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis reads a hash whose fields are topics and values are answers.
type Redis struct {
	client redis.Cmdable
	key    string
}

func NewRedis(client redis.Cmdable, key string) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis", ErrMissingBackend)
	}
	return &Redis{client: client, key: key}, nil
}

func (r *Redis) Name() string { return NameRedis }

func (r *Redis) Fetch(ctx context.Context) (map[string]string, error) {
	entries, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}
	return entries, nil
}
