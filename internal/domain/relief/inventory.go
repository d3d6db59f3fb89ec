package relief

import (
	"fmt"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchTotals are the sums over every batch of one (item, warehouse).
type BatchTotals struct {
	Usable   decimal.Decimal
	Reserved decimal.Decimal
}

// Inventory is the per (item, warehouse) roll-up of batch quantities. Its
// usable and reserved quantities are derived from batch sums and are never
// adjusted incrementally.
type Inventory struct {
	shared.BaseAggregateRoot
	ItemID       uuid.UUID
	WarehouseID  uuid.UUID
	UsableQty    decimal.Decimal
	ReservedQty  decimal.Decimal
	DefectiveQty decimal.Decimal
	ExpiredQty   decimal.Decimal
	Status       string
}

// NewInventory creates an empty aggregate for key.
func NewInventory(key StockKey) *Inventory {
	return &Inventory{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ItemID:            key.ItemID,
		WarehouseID:       key.WarehouseID,
		UsableQty:         decimal.Zero,
		ReservedQty:       decimal.Zero,
		DefectiveQty:      decimal.Zero,
		ExpiredQty:        decimal.Zero,
		Status:            InventoryAvailable,
	}
}

// Key returns the aggregate key.
func (inv *Inventory) Key() StockKey {
	return StockKey{ItemID: inv.ItemID, WarehouseID: inv.WarehouseID}
}

// IsAvailable returns true for an active inventory row.
func (inv *Inventory) IsAvailable() bool {
	return inv.Status == InventoryAvailable
}

// Recompute replaces usable and reserved with freshly summed batch totals.
func (inv *Inventory) Recompute(totals BatchTotals) error {
	if totals.Reserved.GreaterThan(totals.Usable) {
		return shared.NewDomainError(CodeReservationExceedsStock, fmt.Sprintf(
			"Reserved quantity %s exceeds usable quantity %s for item %s at warehouse %s",
			qty(totals.Reserved), qty(totals.Usable), inv.ItemID, inv.WarehouseID))
	}
	inv.UsableQty = totals.Usable
	inv.ReservedQty = totals.Reserved
	return nil
}
