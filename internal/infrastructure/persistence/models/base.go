package models

import (
	"time"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel holds the identity and timestamps shared by every table.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func baseModelOf(e shared.BaseEntity) BaseModel {
	return BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

func (m BaseModel) entity() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// AggregateModel adds the optimistic lock version used by batches,
// inventory rows and packages. The version column is only ever advanced by
// persistence.ApplyIfVersionMatches.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

func aggregateModelOf(a shared.BaseAggregateRoot) AggregateModel {
	return AggregateModel{BaseModel: baseModelOf(a.BaseEntity), Version: a.Version}
}

// root rebuilds an aggregate root with an empty event queue.
func (m AggregateModel) root() shared.BaseAggregateRoot {
	root := shared.NewBaseAggregateRoot()
	root.BaseEntity = m.BaseModel.entity()
	root.Version = m.Version
	return root
}
