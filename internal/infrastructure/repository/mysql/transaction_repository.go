package sqlrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/gigmile/loan-engine/internal/infrastructure/persistence"
	redisrepository "github.com/gigmile/loan-engine/internal/infrastructure/repository/redis"
	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GORMTransactionRepository struct {
	db     *gorm.DB
	index  *redisrepository.RedisTransactionIndex
	logger *zap.Logger
}

func NewTransactionRepository(db *gorm.DB, index *redisrepository.RedisTransactionIndex, logger *zap.Logger) *GORMTransactionRepository {
	return &GORMTransactionRepository{
		db:     db,
		index:  index,
		logger: logger,
	}
}

func (r *GORMTransactionRepository) FindNonReversedByLoanAndTypes(ctx context.Context, loanID string, kinds []domain.TransactionKind) ([]*domain.Transaction, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	var models []persistence.TransactionModel
	result := r.chronological(ctx).
		Where("loan_id = ? AND reversed = ? AND kind IN ?", loanID, false, names).
		Find(&models)
	if result.Error != nil {
		r.logger.Error("failed to fetch transactions by kind",
			zap.Error(result.Error),
			zap.String("loan_id", loanID),
		)
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return r.toDomain(ctx, loanID, models)
}

func (r *GORMTransactionRepository) FindTransactionsForAccountingBridge(ctx context.Context, loanID string, ids []string) ([]*domain.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []persistence.TransactionModel
	result := r.chronological(ctx).
		Where("loan_id = ? AND id IN ?", loanID, ids).
		Find(&models)
	if result.Error != nil {
		r.logger.Error("failed to fetch transactions for accounting bridge",
			zap.Error(result.Error),
			zap.String("loan_id", loanID),
			zap.Int("count", len(ids)),
		)
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return r.toDomain(ctx, loanID, models)
}

// FindLastTransactionDateForReprocessing returns the latest date of a
// non-reversed replayable transaction, or nil when there is none.
func (r *GORMTransactionRepository) FindLastTransactionDateForReprocessing(ctx context.Context, loanID string) (*time.Time, error) {
	names := make([]string, len(domain.ReplayableKinds))
	for i, k := range domain.ReplayableKinds {
		names[i] = string(k)
	}

	var last sql.NullTime
	err := r.db.WithContext(ctx).
		Model(&persistence.TransactionModel{}).
		Select("MAX(date)").
		Where("loan_id = ? AND reversed = ? AND kind IN ?", loanID, false, names).
		Row().
		Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (r *GORMTransactionRepository) ExistsByExternalID(ctx context.Context, loanID, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	exists, err := r.index.Exists(ctx, loanID, externalID)
	if err == nil && exists {
		r.logger.Debug("transaction exists (Redis index)", zap.String("external_id", externalID))
		return true, nil
	}

	var count int64
	result := r.db.WithContext(ctx).
		Model(&persistence.TransactionModel{}).
		Where("loan_id = ? AND external_id = ?", loanID, externalID).
		Count(&count)
	if result.Error != nil {
		r.logger.Error("failed to check transaction existence", zap.Error(result.Error))
		return false, fmt.Errorf("database error: %w", result.Error)
	}

	if count > 0 {
		go func() {
			if err := r.index.Remember(context.Background(), loanID, externalID); err != nil && !errors.Is(err, domain.ErrDuplicateTransaction) {
				r.logger.Warn("failed to index transaction", zap.Error(err), zap.String("external_id", externalID))
			}
		}()
	}
	return count > 0, nil
}

// RememberExternalID indexes an external id once its transaction is saved.
func (r *GORMTransactionRepository) RememberExternalID(ctx context.Context, loanID, externalID string) error {
	if externalID == "" {
		return nil
	}
	if err := r.index.Remember(ctx, loanID, externalID); err != nil && !errors.Is(err, domain.ErrDuplicateTransaction) {
		return err
	}
	return nil
}

func (r *GORMTransactionRepository) chronological(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("ChargesPaid").
		Preload("Mappings").
		Order("date ASC").
		Order("sequence ASC")
}

func (r *GORMTransactionRepository) toDomain(ctx context.Context, loanID string, models []persistence.TransactionModel) ([]*domain.Transaction, error) {
	var currency string
	result := r.db.WithContext(ctx).
		Model(&persistence.LoanModel{}).
		Select("currency").
		Where("id = ?", loanID).
		Scan(&currency)
	if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrLoanNotFound, loanID)
	}

	txs := make([]*domain.Transaction, len(models))
	for i := range models {
		txs[i] = models[i].ToDomain(currency)
	}
	domain.SortChronologically(txs)
	return txs, nil
}

const mysqlDuplicateEntry = 1062

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "UNIQUE constraint")
}
