package relief

import (
	"context"

	"github.com/drims/backend/internal/domain/relief"
)

// TransactionScope provides transactional access to relief repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all relief repositories within a transaction.
// All repositories returned share the same underlying database transaction, so row locks
// taken through one of them are held until the transaction ends.
type TransactionalRepositories interface {
	ItemRepo() relief.ItemRepository
	WarehouseRepo() relief.WarehouseRepository
	BatchRepo() relief.BatchRepository
	InventoryRepo() relief.InventoryRepository
	PackageRepo() relief.PackageRepository
	LockRepo() relief.FulfillmentLockRepository
}
