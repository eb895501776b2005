package sqlrepository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/gigmile/loan-engine/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GORMLoanRepository struct {
	db     *gorm.DB
	cache  domain.SummaryCache
	logger *zap.Logger
}

func NewLoanRepository(db *gorm.DB, cache domain.SummaryCache, logger *zap.Logger) *GORMLoanRepository {
	return &GORMLoanRepository{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

func (r *GORMLoanRepository) FindByID(ctx context.Context, id string) (*domain.Loan, error) {
	var model persistence.LoanModel
	result := r.db.WithContext(ctx).
		Preload("Disbursements").
		Preload("Installments").
		Preload("Charges.InstallmentCharges").
		Preload("Transactions.ChargesPaid").
		Preload("Transactions.Mappings").
		First(&model, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLoanNotFound, id)
		}
		r.logger.Error("failed to query loan", zap.Error(result.Error), zap.String("loan_id", id))
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	loan, err := model.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild loan %s: %w", id, err)
	}
	return loan, nil
}

func (r *GORMLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	model := persistence.LoanModelFromDomain(loan)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		return saveChildren(tx, model)
	})
	if err != nil {
		r.logger.Error("failed to create loan", zap.Error(err))
		return fmt.Errorf("failed to create loan: %w", err)
	}

	r.logger.Info("loan created",
		zap.String("loan_id", loan.ID),
		zap.String("status", string(loan.Status)),
	)
	return nil
}

func (r *GORMLoanRepository) Save(ctx context.Context, loan *domain.Loan) error {
	// Invalidate cache BEFORE updating MySQL so readers never see a summary
	// older than the row they would load
	if err := r.cache.Invalidate(ctx, loan.ID); err != nil {
		r.logger.Warn("failed to invalidate summary cache before save",
			zap.Error(err),
			zap.String("loan_id", loan.ID))
	}

	model := persistence.LoanModelFromDomain(loan)
	next := *model
	next.Version = loan.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Use optimistic locking on the loan row
		result := tx.Model(&persistence.LoanModel{ID: loan.ID}).
			Where("version = ?", loan.Version).
			Select("*").
			Omit("id", "created_at", clause.Associations).
			Updates(&next)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrOptimisticLock
		}
		return saveChildren(tx, model)
	})
	if errors.Is(err, domain.ErrOptimisticLock) {
		return err
	}
	if err != nil {
		r.logger.Error("failed to save loan", zap.Error(err), zap.String("loan_id", loan.ID))
		return fmt.Errorf("database error: %w", err)
	}

	loan.Version++

	if err := r.cache.Set(ctx, loan.ID, loan.Summary); err != nil {
		r.logger.Warn("failed to update summary cache after save",
			zap.Error(err),
			zap.String("loan_id", loan.ID))
	}

	r.logger.Debug("loan saved to MySQL",
		zap.String("loan_id", loan.ID),
		zap.Int64("version", loan.Version),
		zap.Int("transactions", len(loan.Transactions)),
	)
	return nil
}

// saveChildren upserts the rows owned by the loan. Transactions and charges are
// never deleted; installments, installment charges and allocation links are
// derived and rewritten wholesale.
func saveChildren(tx *gorm.DB, m *persistence.LoanModel) error {
	upsert := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true})

	if len(m.Disbursements) > 0 {
		if err := upsert.Create(&m.Disbursements).Error; err != nil {
			return fmt.Errorf("save disbursements: %w", err)
		}
	}

	if err := tx.Where("loan_id = ?", m.ID).Delete(&persistence.InstallmentModel{}).Error; err != nil {
		return fmt.Errorf("clear installments: %w", err)
	}
	if len(m.Installments) > 0 {
		if err := tx.Create(&m.Installments).Error; err != nil {
			return fmt.Errorf("save installments: %w", err)
		}
	}

	if len(m.Charges) > 0 {
		if err := upsert.Create(&m.Charges).Error; err != nil {
			return fmt.Errorf("save charges: %w", err)
		}
		chargeIDs := make([]string, 0, len(m.Charges))
		var rows []persistence.InstallmentChargeModel
		for _, c := range m.Charges {
			chargeIDs = append(chargeIDs, c.ID)
			rows = append(rows, c.InstallmentCharges...)
		}
		if err := tx.Where("charge_id IN ?", chargeIDs).Delete(&persistence.InstallmentChargeModel{}).Error; err != nil {
			return fmt.Errorf("clear installment charges: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("save installment charges: %w", err)
			}
		}
	}

	if len(m.Transactions) == 0 {
		return nil
	}
	if err := upsert.Create(&m.Transactions).Error; err != nil {
		if isDuplicateError(err) {
			return domain.ErrDuplicateTransaction
		}
		return fmt.Errorf("save transactions: %w", err)
	}
	txIDs := make([]string, 0, len(m.Transactions))
	var links []persistence.ChargePaidByModel
	var mappings []persistence.TransactionMappingModel
	for _, t := range m.Transactions {
		txIDs = append(txIDs, t.ID)
		links = append(links, t.ChargesPaid...)
		mappings = append(mappings, t.Mappings...)
	}
	if err := tx.Where("transaction_id IN ?", txIDs).Delete(&persistence.ChargePaidByModel{}).Error; err != nil {
		return fmt.Errorf("clear charge links: %w", err)
	}
	if err := tx.Where("transaction_id IN ?", txIDs).Delete(&persistence.TransactionMappingModel{}).Error; err != nil {
		return fmt.Errorf("clear installment mappings: %w", err)
	}
	if len(links) > 0 {
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("save charge links: %w", err)
		}
	}
	if len(mappings) > 0 {
		if err := tx.Create(&mappings).Error; err != nil {
			return fmt.Errorf("save installment mappings: %w", err)
		}
	}
	return nil
}
