package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = time.Minute

// Limiter enforces a per-shop generation rate limit.
type Limiter interface {
	Allow(ctx context.Context, shop string) (bool, error)
}

// NoopLimiter allows every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, shop string) (bool, error) {
	return true, nil
}

// ShopLimiter implements a distributed sliding-window limiter on Redis
// sorted sets. The window is one minute; the limit is requests per window.
type ShopLimiter struct {
	client *redis.Client
	limit  int
}

// NewShopLimiter creates a limiter allowing limit requests per minute per shop.
func NewShopLimiter(client *redis.Client, limit int) *ShopLimiter {
	return &ShopLimiter{client: client, limit: limit}
}

// Allow records the request and reports whether it fits in the shop's window.
func (rl *ShopLimiter) Allow(ctx context.Context, shop string) (bool, error) {
	if rl.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("ratelimit:%s", shop)
	now := time.Now()
	windowStart := now.Add(-window)

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return int(countCmd.Val()) < rl.limit, nil
}

// CurrentUsage returns the number of requests in the shop's current window.
func (rl *ShopLimiter) CurrentUsage(ctx context.Context, shop string) (int64, error) {
	key := fmt.Sprintf("ratelimit:%s", shop)
	windowStart := time.Now().Add(-window)

	if err := rl.client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}
	return count, nil
}

// Reset clears the window for a shop.
func (rl *ShopLimiter) Reset(ctx context.Context, shop string) error {
	return rl.client.Del(ctx, fmt.Sprintf("ratelimit:%s", shop)).Err()
}
