package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("branch day lock not acquired")
)

// Locker serializes the check-conflict-then-reserve critical sections for one
// branch day, so two concurrent reservations cannot both commit overlapping
// intervals.
type Locker interface {
	WithBranchDayLock(ctx context.Context, branchID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

type redisBranchDayLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBranchDayLocker creates a locker keyed per (branch, date) in Redis.
func NewRedisBranchDayLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisBranchDayLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisBranchDayLocker) WithBranchDayLock(ctx context.Context, branchID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:branch:%s:%s", branchID.String(), date.Format("2006-01-02"))
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire branch day lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisBranchDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release branch day lock: %w", err)
	}
	return nil
}
