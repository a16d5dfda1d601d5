// Package ratelimit throttles check executions per target domain so repeated
// checks against the same municipal site stay polite.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned when the domain's window is exhausted.
type ErrLimited struct {
	Domain     string
	RetryAfter time.Duration
}

func (e *ErrLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for domain %s, retry after %s", e.Domain, e.RetryAfter)
}

// Limiter is a fixed-window counter backed by Redis, one window per domain.
type Limiter struct {
	client *redis.Client
	logger *slog.Logger
	limit  int
	window time.Duration
}

// NewLimiter connects to Redis and validates the connection.
func NewLimiter(ctx context.Context, logger *slog.Logger, redisURL string, limit int, window time.Duration) (*Limiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Limiter{
		client: client,
		logger: logger.With("module", "ratelimit"),
		limit:  limit,
		window: window,
	}, nil
}

// Allow consumes one slot of the domain's current window. It returns
// ErrLimited once the window is full.
func (l *Limiter) Allow(ctx context.Context, domain string) error {
	key := fmt.Sprintf("ratelimit:%s:%d", domain, time.Now().UTC().Unix()/int64(l.window.Seconds()))

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		err = l.client.Expire(ctx, key, l.window).Err()
		if err != nil {
			return fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	if count > int64(l.limit) {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}

		l.logger.WarnContext(ctx, "Rate limit exceeded", "domain", domain, "count", count, "limit", l.limit)

		return &ErrLimited{Domain: domain, RetryAfter: ttl}
	}

	return nil
}

// Close releases the Redis connection.
func (l *Limiter) Close() error {
	return l.client.Close()
}
