package persistence

import (
	"context"
	"errors"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openPackageStatuses = []string{string(relief.PackageDraft), string(relief.PackageSubmitted)}

// GormPackageRepository implements relief.PackageRepository using GORM.
// Lines are loaded with a separate query so that row locks taken on the
// header never spill onto relief_package_items.
type GormPackageRepository struct {
	db *gorm.DB
}

// NewGormPackageRepository creates a new GormPackageRepository
func NewGormPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

// FindActiveByRequest returns the open package of a request
func (r *GormPackageRepository) FindActiveByRequest(ctx context.Context, requestID uuid.UUID) (*relief.ReliefPackage, error) {
	return r.findOne(ctx, r.activeQuery(r.db.WithContext(ctx), requestID))
}

// FindActiveByRequestForUpdate returns the open package and locks its header row
func (r *GormPackageRepository) FindActiveByRequestForUpdate(ctx context.Context, requestID uuid.UUID) (*relief.ReliefPackage, error) {
	db := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findOne(ctx, r.activeQuery(db, requestID))
}

// FindLatestByRequest returns the most recently started package in any status
func (r *GormPackageRepository) FindLatestByRequest(ctx context.Context, requestID uuid.UUID) (*relief.ReliefPackage, error) {
	db := r.db.WithContext(ctx).
		Where("relief_request_id = ?", requestID).
		Order("created_at DESC")
	return r.findOne(ctx, db)
}

func (r *GormPackageRepository) activeQuery(db *gorm.DB, requestID uuid.UUID) *gorm.DB {
	return db.
		Where("relief_request_id = ? AND status IN ?", requestID, openPackageStatuses).
		Order("created_at DESC")
}

func (r *GormPackageRepository) findOne(ctx context.Context, db *gorm.DB) (*relief.ReliefPackage, error) {
	var model models.ReliefPackageModel
	if err := db.Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("package_id = ?", model.ID).
		Order("item_id, warehouse_id, batch_id").
		Find(&model.Items).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts the package header and its lines
func (r *GormPackageRepository) Create(ctx context.Context, pkg *relief.ReliefPackage) error {
	var model models.ReliefPackageModel
	model.FromDomain(pkg)
	items := model.Items
	model.Items = nil

	db := r.db.WithContext(ctx)
	if err := translateWriteError(db.Create(&model).Error); err != nil {
		return err
	}
	return r.insertItems(db, items)
}

// Update writes the header under the version guard and replaces every line
func (r *GormPackageRepository) Update(ctx context.Context, pkg *relief.ReliefPackage) error {
	var model models.ReliefPackageModel
	model.FromDomain(pkg)

	if err := ApplyIfVersionMatches(ctx, r.db, &models.ReliefPackageModel{}, pkg, model.HeaderUpdates()); err != nil {
		return err
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("package_id = ?", pkg.ID).Delete(&models.PackageItemModel{}).Error; err != nil {
		return err
	}
	return r.insertItems(db, model.Items)
}

func (r *GormPackageRepository) insertItems(db *gorm.DB, items []models.PackageItemModel) error {
	if len(items) == 0 {
		return nil
	}
	return translateWriteError(db.Create(&items).Error)
}

var _ relief.PackageRepository = (*GormPackageRepository)(nil)
