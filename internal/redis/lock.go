package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hoa-ledger/internal/locker"
	ledger_errors "hoa-ledger/pkg/errors"
	"hoa-ledger/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKeyPrefix = "lock:poll:"

// compare-and-delete so an expired holder never releases its successor's lock
var releaseScript = goredis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// DistributedLock is a locker.Locker shared by every API instance pointed at
// the same Redis. The TTL bounds how long a crashed holder can block a poll.
type DistributedLock struct {
	client goredis.UniversalClient
	wait   time.Duration
	ttl    time.Duration
	retry  time.Duration
}

var _ locker.Locker = (*DistributedLock)(nil)

func NewDistributedLock(client goredis.UniversalClient, wait, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		wait:   wait,
		ttl:    ttl,
		retry:  10 * time.Millisecond,
	}
}

func (l *DistributedLock) Acquire(ctx context.Context, key string) (locker.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: acquire lock: %v", ledger_errors.ErrServiceUnavailable, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ledger_errors.ErrContended
		case <-ticker.C:
		}
	}
}

func (l *DistributedLock) releaser(redisKey, token string) locker.Release {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}
}

func (l *DistributedLock) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		logger.GetGlobalLogger().Logger.Warn("failed to release poll lock",
			zap.String("key", redisKey), zap.Error(err))
	}
}
