package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFulfillmentLockRepository implements relief.FulfillmentLockRepository.
// Uniqueness per request is enforced by the table's unique index, which makes
// Create the arbiter between concurrent acquirers.
type GormFulfillmentLockRepository struct {
	db *gorm.DB
}

// NewGormFulfillmentLockRepository creates a new GormFulfillmentLockRepository
func NewGormFulfillmentLockRepository(db *gorm.DB) *GormFulfillmentLockRepository {
	return &GormFulfillmentLockRepository{db: db}
}

// FindByRequest finds the lock held on a relief request
func (r *GormFulfillmentLockRepository) FindByRequest(ctx context.Context, requestID uuid.UUID) (*relief.FulfillmentLock, error) {
	return r.find(r.db.WithContext(ctx), requestID)
}

// FindByRequestForUpdate finds the lock and locks its row
func (r *GormFulfillmentLockRepository) FindByRequestForUpdate(ctx context.Context, requestID uuid.UUID) (*relief.FulfillmentLock, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), requestID)
}

func (r *GormFulfillmentLockRepository) find(db *gorm.DB, requestID uuid.UUID) (*relief.FulfillmentLock, error) {
	var model models.FulfillmentLockModel
	if err := db.Where("relief_request_id = ?", requestID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindExpired lists locks whose expiry is before now, oldest first
func (r *GormFulfillmentLockRepository) FindExpired(ctx context.Context, now time.Time) ([]relief.FulfillmentLock, error) {
	var rows []models.FulfillmentLockModel
	if err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now.UTC()).
		Order("expires_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	locks := make([]relief.FulfillmentLock, len(rows))
	for i := range rows {
		locks[i] = *rows[i].ToDomain()
	}
	return locks, nil
}

// Create inserts a lock, failing with shared.ErrAlreadyExists when the
// request is already locked
func (r *GormFulfillmentLockRepository) Create(ctx context.Context, lock *relief.FulfillmentLock) error {
	var model models.FulfillmentLockModel
	model.FromDomain(lock)
	return translateWriteError(r.db.WithContext(ctx).Create(&model).Error)
}

// Delete removes a lock by ID; deleting a missing lock is not an error
func (r *GormFulfillmentLockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.FulfillmentLockModel{}, "id = ?", id).Error
}

var _ relief.FulfillmentLockRepository = (*GormFulfillmentLockRepository)(nil)
