package persistence

import (
	"context"

	"github.com/drims/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ApplyIfVersionMatches writes updates to the row of entity only while the
// stored version still equals the entity's version, bumping it by one in the
// same statement. On success the entity's in-memory version follows; when no
// row matched it returns shared.ErrOptimisticLock.
//
// model only selects the table, so pass a zero value such as &BatchModel{}.
func ApplyIfVersionMatches(ctx context.Context, db *gorm.DB, model any, entity shared.Versioned, updates map[string]any) error {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")

	result := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", entity.GetID(), entity.GetVersion()).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrOptimisticLock
	}
	entity.IncrementVersion()
	return nil
}
