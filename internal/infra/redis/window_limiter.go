package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"streamshare/internal/domain"
)

const limiterPrefix = "ratelimit"

// WindowLimiter counts hits in windows aligned to the clock. Every window
// owns its own counter key, so a counter never outlives the window it
// belongs to even when the TTL write is lost.
type WindowLimiter struct {
	client RedisClient
	clock  domain.Clock
}

func NewWindowLimiter(client RedisClient, clock domain.Clock) *WindowLimiter {
	return &WindowLimiter{client: client, clock: clock}
}

// Allow records one hit for scope and reports whether it stays within limit
// for the current window. A non-positive limit admits nothing.
func (l *WindowLimiter) Allow(ctx context.Context, scope string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	key := windowKey(scope, l.clock.Now(), window)
	n, err := l.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("count %s: %w", scope, err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("expire %s: %w", scope, err)
		}
	}
	return n <= int64(limit), nil
}

// windowKey is ratelimit:<scope>:<unix start of the window>.
func windowKey(scope string, now time.Time, window time.Duration) string {
	start := now.Truncate(window).Unix()
	return limiterPrefix + ":" + scope + ":" + strconv.FormatInt(start, 10)
}

// RedeemScope limits gift-card redemption per account.
func RedeemScope(accountID string) string { return "redeem:" + accountID }
