package relief

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repositories return shared.ErrNotFound when a single row lookup misses.
// The *ForUpdate variants take a row lock (SELECT ... FOR UPDATE) and are
// only meaningful inside a transaction.

// ItemRepository reads the item catalog.
type ItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Create(ctx context.Context, item *Item) error
}

// WarehouseRepository reads warehouses.
type WarehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Warehouse, error)
	Create(ctx context.Context, warehouse *Warehouse) error
}

// BatchQuery filters batches offered for allocation.
type BatchQuery struct {
	ItemID      uuid.UUID
	WarehouseID *uuid.UUID
	UOMCode     string
}

// BatchRepository defines batch persistence.
type BatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByIDs loads batches regardless of status or availability.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Batch, error)

	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindAvailable returns active batches with usable > reserved, held at an
	// active warehouse whose inventory row for the item is available.
	FindAvailable(ctx context.Context, query BatchQuery) ([]Batch, error)

	// FindByBatchNo finds the batch an intake should top up.
	FindByBatchNo(ctx context.Context, itemID, warehouseID uuid.UUID, batchNo string) (*Batch, error)

	// SumByStock sums usable and reserved quantities of every batch of the key.
	SumByStock(ctx context.Context, key StockKey) (BatchTotals, error)

	Create(ctx context.Context, batch *Batch) error

	// Update writes quantities and status under the version guard.
	Update(ctx context.Context, batch *Batch) error
}

// InventoryRepository defines warehouse aggregate persistence.
type InventoryRepository interface {
	FindByStockKey(ctx context.Context, key StockKey) (*Inventory, error)
	FindByStockKeyForUpdate(ctx context.Context, key StockKey) (*Inventory, error)
	Create(ctx context.Context, inventory *Inventory) error
	Update(ctx context.Context, inventory *Inventory) error
}

// PackageRepository defines relief package persistence.
type PackageRepository interface {
	// FindActiveByRequest returns the open (draft or submitted) package.
	FindActiveByRequest(ctx context.Context, requestID uuid.UUID) (*ReliefPackage, error)
	FindActiveByRequestForUpdate(ctx context.Context, requestID uuid.UUID) (*ReliefPackage, error)

	// FindLatestByRequest returns the most recent package in any status.
	FindLatestByRequest(ctx context.Context, requestID uuid.UUID) (*ReliefPackage, error)

	Create(ctx context.Context, pkg *ReliefPackage) error

	// Update writes the header under the version guard and replaces the lines.
	Update(ctx context.Context, pkg *ReliefPackage) error
}

// FulfillmentLockRepository defines fulfillment lock persistence.
type FulfillmentLockRepository interface {
	FindByRequest(ctx context.Context, requestID uuid.UUID) (*FulfillmentLock, error)
	FindByRequestForUpdate(ctx context.Context, requestID uuid.UUID) (*FulfillmentLock, error)
	FindExpired(ctx context.Context, now time.Time) ([]FulfillmentLock, error)

	// Create fails with shared.ErrAlreadyExists if the request is locked.
	Create(ctx context.Context, lock *FulfillmentLock) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StatusSource loads the active item status reference rows.
type StatusSource interface {
	LoadActive(ctx context.Context) ([]RequestItemStatus, error)
}
