package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"hongeet.dev/backend/internal/utils"
)

// RateLimitKeyPrefix is the prefix for rate limit keys
const RateLimitKeyPrefix = "ratelimit"

// RateLimit defines a rate limit constraint
type RateLimit struct {
	// Key is the identifier for this rate limit
	Key string

	// MaxRequests is the maximum number of requests allowed in the time window
	MaxRequests int

	// Window is the time window for rate limiting
	Window time.Duration
}

// RateLimiter is a sliding-window limiter backed by one sorted set per caller,
// shared by every server instance using the same Redis.
type RateLimiter struct {
	client *Client
	limit  RateLimit
	logger *utils.Logger
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, limit RateLimit) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		logger: client.Logger().Named("rate_limiter"),
		now:    time.Now,
	}
}

// Check records a request for identifier when it fits in the window.
func (rl *RateLimiter) Check(ctx context.Context, identifier string) (utils.LimitDecision, error) {
	key := formatRateLimitKey(rl.limit.Key, identifier)
	now := rl.now()
	windowStartMs := now.Add(-rl.limit.Window).UnixMilli()

	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStartMs, 10))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		rl.logger.Error("Failed to execute rate limit pipeline", err, "key", key)
		return utils.LimitDecision{}, err
	}

	count := int(countCmd.Val())
	decision := utils.LimitDecision{
		Limit:   rl.limit.MaxRequests,
		ResetAt: now.Add(rl.limit.Window),
	}
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		decision.ResetAt = time.UnixMilli(int64(oldest[0].Score)).Add(rl.limit.Window)
	}

	if count >= rl.limit.MaxRequests {
		return decision, nil
	}

	// members must be unique within the same millisecond
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
	pipe = rl.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.Expire(ctx, key, rl.limit.Window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		// the decision stands even if the token could not be recorded
		rl.logger.Error("Failed to record rate limit token", err, "key", key)
	}

	decision.Allowed = true
	decision.Remaining = max(rl.limit.MaxRequests-count-1, 0)
	return decision, nil
}

// Reset resets the rate limit for an identifier
func (rl *RateLimiter) Reset(ctx context.Context, identifier string) error {
	key := formatRateLimitKey(rl.limit.Key, identifier)
	if err := rl.client.Del(ctx, key); err != nil {
		return err
	}
	rl.logger.Debug("Reset rate limit", "key", key)
	return nil
}

// formatRateLimitKey formats a key for rate limiting
func formatRateLimitKey(key, identifier string) string {
	return FormatKey(RateLimitKeyPrefix, fmt.Sprintf("%s:%s", key, identifier))
}
