package persistence

import (
	"context"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appRelief.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) ItemRepo() relief.ItemRepository {
	return NewGormItemRepository(r.tx)
}

func (r *gormTransactionalRepositories) WarehouseRepo() relief.WarehouseRepository {
	return NewGormWarehouseRepository(r.tx)
}

func (r *gormTransactionalRepositories) BatchRepo() relief.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

func (r *gormTransactionalRepositories) InventoryRepo() relief.InventoryRepository {
	return NewGormInventoryRepository(r.tx)
}

func (r *gormTransactionalRepositories) PackageRepo() relief.PackageRepository {
	return NewGormPackageRepository(r.tx)
}

func (r *gormTransactionalRepositories) LockRepo() relief.FulfillmentLockRepository {
	return NewGormFulfillmentLockRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appRelief.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appRelief.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
