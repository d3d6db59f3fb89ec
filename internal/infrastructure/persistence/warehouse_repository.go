package persistence

import (
	"context"
	"errors"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWarehouseRepository implements relief.WarehouseRepository using GORM
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new GormWarehouseRepository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

// FindByID finds a warehouse by its ID
func (r *GormWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*relief.Warehouse, error) {
	var model models.WarehouseModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs loads the warehouses with the given IDs, ordered by name.
// Unknown IDs are skipped.
func (r *GormWarehouseRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]relief.Warehouse, error) {
	if len(ids) == 0 {
		return []relief.Warehouse{}, nil
	}
	var rows []models.WarehouseModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	warehouses := make([]relief.Warehouse, len(rows))
	for i := range rows {
		warehouses[i] = *rows[i].ToDomain()
	}
	return warehouses, nil
}

// Create inserts a new warehouse
func (r *GormWarehouseRepository) Create(ctx context.Context, warehouse *relief.Warehouse) error {
	var model models.WarehouseModel
	model.FromDomain(warehouse)
	return translateWriteError(r.db.WithContext(ctx).Create(&model).Error)
}

var _ relief.WarehouseRepository = (*GormWarehouseRepository)(nil)
