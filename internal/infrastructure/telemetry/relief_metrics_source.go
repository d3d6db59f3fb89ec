package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReliefMetricsSource reads metric samples straight from the relief tables.
type GormReliefMetricsSource struct {
	db *gorm.DB
}

// NewGormReliefMetricsSource creates a new GormReliefMetricsSource.
func NewGormReliefMetricsSource(db *gorm.DB) *GormReliefMetricsSource {
	return &GormReliefMetricsSource{db: db}
}

// StockByWarehouse sums the warehouse aggregates of every item.
func (s *GormReliefMetricsSource) StockByWarehouse(ctx context.Context) ([]WarehouseStock, error) {
	type row struct {
		WarehouseID uuid.UUID       `gorm:"column:warehouse_id"`
		Usable      decimal.Decimal `gorm:"column:usable"`
		Reserved    decimal.Decimal `gorm:"column:reserved"`
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("inventories").
		Select("warehouse_id, COALESCE(SUM(usable_qty), 0) AS usable, COALESCE(SUM(reserved_qty), 0) AS reserved").
		Group("warehouse_id").
		Order("warehouse_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]WarehouseStock, 0, len(rows))
	for _, r := range rows {
		out = append(out, WarehouseStock{WarehouseID: r.WarehouseID, Usable: r.Usable, Reserved: r.Reserved})
	}
	return out, nil
}

// ActiveLockCount counts locks without expiry or expiring after now.
func (s *GormReliefMetricsSource) ActiveLockCount(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("fulfillment_locks").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&count).Error
	return count, err
}

var _ ReliefMetricsSource = (*GormReliefMetricsSource)(nil)
