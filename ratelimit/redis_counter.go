package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/goliatone/go-leads/core"
)

const redisKeyPrefix = "go-leads::ratelimit::v1"

// RedisCounter shares the submission counter across processes. INCR followed
// by a non-transactional EXPIRE is deliberately loose; a key that briefly
// lives without a TTL or a lost increment under contention only weakens the
// deterrent, it cannot lose a lead.
type RedisCounter struct {
	client *redis.Client
	window time.Duration
}

func NewRedisCounter(client *redis.Client, window time.Duration) (*RedisCounter, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client is required")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisCounter{client: client, window: window}, nil
}

// CounterKey is the deterministic redis key contract:
// go-leads::ratelimit::v1::<site>::<ip> with each segment path escaped.
func CounterKey(key core.RateLimitKey) (string, error) {
	key = normalizeKey(key)
	if err := validateKey(key); err != nil {
		return "", err
	}
	segments := []string{key.SiteID, key.IP}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{redisKeyPrefix}, segments...), "::"), nil
}

func (c *RedisCounter) Peek(ctx context.Context, key core.RateLimitKey) (int, error) {
	if c == nil || c.client == nil {
		return 0, fmt.Errorf("ratelimit: redis counter is not configured")
	}
	redisKey, err := CounterKey(key)
	if err != nil {
		return 0, err
	}
	count, err := c.client.Get(ctx, redisKey).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (c *RedisCounter) Incr(ctx context.Context, key core.RateLimitKey) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("ratelimit: redis counter is not configured")
	}
	redisKey, err := CounterKey(key)
	if err != nil {
		return err
	}
	count, err := c.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, redisKey, c.window).Err(); err != nil {
			return err
		}
	}
	return nil
}

var _ core.RateLimitCounter = (*RedisCounter)(nil)
