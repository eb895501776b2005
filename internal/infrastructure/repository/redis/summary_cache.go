package redisrepository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/go-redis/redis/v8"
)

var (
	ErrSummaryNotCached = errors.New("loan summary not cached")
)

type RedisSummaryCache struct {
	client   *redis.Client
	cacheTTL time.Duration
}

func NewRedisSummaryCache(client *redis.Client, cacheTTL time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{
		client:   client,
		cacheTTL: cacheTTL,
	}
}

func (r *RedisSummaryCache) Get(ctx context.Context, loanID string) (*domain.LoanSummary, error) {
	key := r.summaryKey(loanID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSummaryNotCached
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	var summary domain.LoanSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &summary, nil
}

func (r *RedisSummaryCache) Set(ctx context.Context, loanID string, summary *domain.LoanSummary) error {
	if summary == nil {
		return nil
	}
	key := r.summaryKey(loanID)

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	return nil
}

func (r *RedisSummaryCache) Invalidate(ctx context.Context, loanID string) error {
	key := r.summaryKey(loanID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return nil
}

func (r *RedisSummaryCache) summaryKey(loanID string) string {
	return fmt.Sprintf("loan:%s:summary", loanID)
}
