package relief

import "github.com/drims/backend/internal/domain/shared"

// Warehouse is a physical storage location.
type Warehouse struct {
	shared.BaseEntity
	Name   string
	Status string
}

// NewWarehouse creates an active warehouse.
func NewWarehouse(name string) *Warehouse {
	return &Warehouse{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Status:     StatusActive,
	}
}

// IsActive returns true when the warehouse can supply stock.
func (w *Warehouse) IsActive() bool {
	return w.Status == StatusActive
}
