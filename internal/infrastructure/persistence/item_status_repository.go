package persistence

import (
	"context"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormItemStatusRepository reads and seeds the item status reference table.
type GormItemStatusRepository struct {
	db *gorm.DB
}

func NewGormItemStatusRepository(db *gorm.DB) *GormItemStatusRepository {
	return &GormItemStatusRepository{db: db}
}

// LoadActive returns active statuses ordered by code.
func (r *GormItemStatusRepository) LoadActive(ctx context.Context) ([]relief.RequestItemStatus, error) {
	var rows []models.RequestItemStatusModel
	if err := r.db.WithContext(ctx).
		Where("active_flag = ?", true).
		Order("item_status_code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	statuses := make([]relief.RequestItemStatus, len(rows))
	for i := range rows {
		statuses[i] = rows[i].ToDomain()
	}
	return statuses, nil
}

// Upsert inserts statuses or overwrites existing rows with the same code.
func (r *GormItemStatusRepository) Upsert(ctx context.Context, statuses []relief.RequestItemStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	rows := make([]models.RequestItemStatusModel, len(statuses))
	for i, s := range statuses {
		rows[i].FromDomain(s)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_status_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"status_desc", "item_qty_rule", "active_flag"}),
		}).
		Create(&rows).Error
}

var _ relief.StatusSource = (*GormItemStatusRepository)(nil)
