package redisrepository

import (
	"context"
	"fmt"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/go-redis/redis/v8"
)

// RedisTransactionIndex remembers the external ids already posted per loan so
// duplicate submissions are rejected before MySQL is queried.
type RedisTransactionIndex struct {
	client *redis.Client
}

func NewRedisTransactionIndex(client *redis.Client) *RedisTransactionIndex {
	return &RedisTransactionIndex{
		client: client,
	}
}

// Remember records externalID. It returns ErrDuplicateTransaction when the id
// was already recorded.
func (r *RedisTransactionIndex) Remember(ctx context.Context, loanID, externalID string) error {
	wasSet, err := r.client.SetNX(ctx, r.externalKey(loanID, externalID), 1, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to index transaction: %w", err)
	}

	if !wasSet {
		return domain.ErrDuplicateTransaction
	}

	if err := r.client.SAdd(ctx, r.loanTransactionsKey(loanID), externalID).Err(); err != nil {
		return fmt.Errorf("failed to add transaction to loan set: %w", err)
	}

	return nil
}

func (r *RedisTransactionIndex) Exists(ctx context.Context, loanID, externalID string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.externalKey(loanID, externalID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}

	return exists > 0, nil
}

func (r *RedisTransactionIndex) externalKey(loanID, externalID string) string {
	return fmt.Sprintf("loan:%s:tx:%s", loanID, externalID)
}

func (r *RedisTransactionIndex) loanTransactionsKey(loanID string) string {
	return fmt.Sprintf("loan:%s:transactions", loanID)
}
