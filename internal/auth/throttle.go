package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginThrottle counts consecutive credential failures per identifier in
// redis and converts them into a linear delay. INCR keeps the counter
// atomic under concurrent failures.
type LoginThrottle struct {
	RDB *redis.Client
	TTL time.Duration
}

func failureKey(identifier string) string {
	return fmt.Sprintf("login_failures:%s", identifier)
}

// Fail records one failure and returns the delay the handler should apply
// before responding: max(0, failures-1) seconds.
func (t *LoginThrottle) Fail(ctx context.Context, identifier string) (time.Duration, error) {
	key := failureKey(identifier)
	failures, err := t.RDB.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// Refresh the window on every failure.
	if err := t.RDB.Expire(ctx, key, t.TTL).Err(); err != nil {
		return 0, err
	}
	if failures <= 1 {
		return 0, nil
	}
	return time.Duration(failures-1) * time.Second, nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, identifier string) error {
	return t.RDB.Del(ctx, failureKey(identifier)).Err()
}
