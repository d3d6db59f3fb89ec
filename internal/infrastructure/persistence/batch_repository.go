package persistence

import (
	"context"
	"errors"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBatchRepository implements relief.BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*relief.Batch, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a batch and locks its row until the transaction ends
func (r *GormBatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*relief.Batch, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormBatchRepository) findOne(db *gorm.DB, id uuid.UUID) (*relief.Batch, error) {
	var model models.BatchModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs loads batches regardless of status or availability
func (r *GormBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]relief.Batch, error) {
	if len(ids) == 0 {
		return []relief.Batch{}, nil
	}
	var rows []models.BatchModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return batchesToDomain(rows), nil
}

// FindAvailable returns the batches that can currently be offered for an item.
// Ordering is left to the allocator.
func (r *GormBatchRepository) FindAvailable(ctx context.Context, query relief.BatchQuery) ([]relief.Batch, error) {
	db := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Select("item_batches.*").
		Joins("JOIN warehouses ON warehouses.id = item_batches.warehouse_id").
		Joins("JOIN inventories ON inventories.item_id = item_batches.item_id AND inventories.warehouse_id = item_batches.warehouse_id").
		Where("item_batches.item_id = ?", query.ItemID).
		Where("item_batches.status = ?", relief.StatusActive).
		Where("item_batches.usable_qty > item_batches.reserved_qty").
		Where("warehouses.status = ?", relief.StatusActive).
		Where("inventories.status = ?", relief.InventoryAvailable)
	if query.WarehouseID != nil {
		db = db.Where("item_batches.warehouse_id = ?", *query.WarehouseID)
	}
	if query.UOMCode != "" {
		db = db.Where("item_batches.uom_code = ?", query.UOMCode)
	}

	var rows []models.BatchModel
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return batchesToDomain(rows), nil
}

// FindByBatchNo finds the batch with a given number for an item at a warehouse
func (r *GormBatchRepository) FindByBatchNo(ctx context.Context, itemID, warehouseID uuid.UUID, batchNo string) (*relief.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND warehouse_id = ? AND batch_no = ?", itemID, warehouseID, batchNo).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SumByStock sums usable and reserved quantities across every batch of key
func (r *GormBatchRepository) SumByStock(ctx context.Context, key relief.StockKey) (relief.BatchTotals, error) {
	var result struct {
		Usable   decimal.Decimal
		Reserved decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Select("COALESCE(SUM(usable_qty), 0) AS usable, COALESCE(SUM(reserved_qty), 0) AS reserved").
		Where("item_id = ? AND warehouse_id = ?", key.ItemID, key.WarehouseID).
		Scan(&result).Error; err != nil {
		return relief.BatchTotals{}, err
	}
	return relief.BatchTotals{Usable: result.Usable, Reserved: result.Reserved}, nil
}

// Create inserts a new batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *relief.Batch) error {
	var model models.BatchModel
	model.FromDomain(batch)
	return translateWriteError(r.db.WithContext(ctx).Create(&model).Error)
}

// Update writes quantities and status under the version guard
func (r *GormBatchRepository) Update(ctx context.Context, batch *relief.Batch) error {
	var model models.BatchModel
	model.FromDomain(batch)
	return ApplyIfVersionMatches(ctx, r.db, &models.BatchModel{}, batch, model.QuantityUpdates())
}

func batchesToDomain(rows []models.BatchModel) []relief.Batch {
	batches := make([]relief.Batch, len(rows))
	for i := range rows {
		batches[i] = *rows[i].ToDomain()
	}
	return batches
}

var _ relief.BatchRepository = (*GormBatchRepository)(nil)
