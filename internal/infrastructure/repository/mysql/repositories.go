package sqlrepository

import (
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	redisrepository "github.com/gigmile/loan-engine/internal/infrastructure/repository/redis"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Repositories struct {
	Loan         domain.LoanRepository
	Transaction  domain.TransactionRepository
	SummaryCache domain.SummaryCache
}

func NewRepositories(db *gorm.DB, redisClient *redis.Client, summaryTTL time.Duration, logger *zap.Logger) *Repositories {
	cache := redisrepository.NewRedisSummaryCache(redisClient, summaryTTL)
	return &Repositories{
		Loan:         NewLoanRepository(db, cache, logger),
		Transaction:  NewTransactionRepository(db, redisrepository.NewRedisTransactionIndex(redisClient), logger),
		SummaryCache: cache,
	}
}
