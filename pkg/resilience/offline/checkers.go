package offline

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisChecker builds a Checker that pings a Redis client with a
// short timeout, returning StatusOffline on any failure.
func NewRedisChecker(client *redis.Client, timeout time.Duration) Checker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return func(ctx context.Context) ConnectionStatus {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := client.Ping(checkCtx).Err(); err != nil {
			return StatusOffline
		}
		return StatusOnline
	}
}
