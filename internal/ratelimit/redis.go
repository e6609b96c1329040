package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "marginlab:daily"

// Redis is a Limiter whose counters live in Redis, so the cap holds across
// several server instances.
type Redis struct {
	client *redis.Client
	limit  int64
	now    func() time.Time
}

// NewRedis returns a Redis limiter allowing limit requests per key per day.
// A limit of zero or less disables the cap.
func NewRedis(client *redis.Client, limit int64) *Redis {
	return &Redis{client: client, limit: limit, now: time.Now}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	reset := nextMidnight(now)
	if l.limit <= 0 {
		return Decision{Allowed: true, ResetAt: reset}, nil
	}

	redisKey := fmt.Sprintf("%s:%s:%s", redisKeyPrefix, dayKey(now), key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// Keep the key a little past midnight so late requests still find it.
	pipe.ExpireAt(ctx, redisKey, reset.Add(time.Hour))
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("increment daily counter: %w", err)
	}

	count := incr.Val()
	return Decision{
		Allowed: count <= l.limit,
		Count:   count,
		Limit:   l.limit,
		ResetAt: reset,
	}, nil
}
