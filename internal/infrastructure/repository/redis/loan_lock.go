package redisrepository

import (
	"context"
	"fmt"
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock only if it still holds our token, so an expired
// lock re-acquired by another worker is never released by us.
const releaseScript = `
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`

// RedisLoanLocker serialises every engine operation on one loan.
type RedisLoanLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

func NewRedisLoanLocker(client *redis.Client, ttl time.Duration) *RedisLoanLocker {
	return &RedisLoanLocker{
		client:     client,
		ttl:        ttl,
		retries:    20,
		retryDelay: 50 * time.Millisecond,
	}
}

func (l *RedisLoanLocker) Acquire(ctx context.Context, loanID string) (func(context.Context) error, error) {
	key := l.lockKey(loanID)
	token := uuid.New().String()

	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire loan lock: %w", err)
		}
		if ok {
			break
		}
		if attempt >= l.retries {
			return nil, fmt.Errorf("%w: %s", domain.ErrLoanLocked, loanID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	release := func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release loan lock: %w", err)
		}
		return nil
	}
	return release, nil
}

func (l *RedisLoanLocker) lockKey(loanID string) string {
	return fmt.Sprintf("loan:%s:lock", loanID)
}
