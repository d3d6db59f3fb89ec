package persistence

import (
	"context"
	"errors"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInventoryRepository implements relief.InventoryRepository using GORM
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository creates a new GormInventoryRepository
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// FindByStockKey finds the aggregate row of an (item, warehouse)
func (r *GormInventoryRepository) FindByStockKey(ctx context.Context, key relief.StockKey) (*relief.Inventory, error) {
	return r.find(r.db.WithContext(ctx), key)
}

// FindByStockKeyForUpdate finds the aggregate row and locks it
func (r *GormInventoryRepository) FindByStockKeyForUpdate(ctx context.Context, key relief.StockKey) (*relief.Inventory, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), key)
}

func (r *GormInventoryRepository) find(db *gorm.DB, key relief.StockKey) (*relief.Inventory, error) {
	var model models.InventoryModel
	if err := db.
		Where("item_id = ? AND warehouse_id = ?", key.ItemID, key.WarehouseID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new aggregate row; a second row for the same key fails
// with shared.ErrAlreadyExists
func (r *GormInventoryRepository) Create(ctx context.Context, inv *relief.Inventory) error {
	var model models.InventoryModel
	model.FromDomain(inv)
	return translateWriteError(r.db.WithContext(ctx).Create(&model).Error)
}

// Update writes quantities and status under the version guard
func (r *GormInventoryRepository) Update(ctx context.Context, inv *relief.Inventory) error {
	var model models.InventoryModel
	model.FromDomain(inv)
	return ApplyIfVersionMatches(ctx, r.db, &models.InventoryModel{}, inv, model.QuantityUpdates())
}

var _ relief.InventoryRepository = (*GormInventoryRepository)(nil)
