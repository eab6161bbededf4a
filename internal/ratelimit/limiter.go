package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindow allows at most limit calls per key in each window. Counters
// live in Redis so every instance shares them.
type FixedWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewFixedWindow(client *redis.Client, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit",
	}
}

func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(f.window)
	redisKey := fmt.Sprintf("%s:%s:%d", f.prefix, key, bucket)

	var incr *redis.IntCmd
	_, err := f.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, f.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return incr.Val() <= int64(f.limit), nil
}
