package relief

import (
	"fmt"
	"time"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is a distinct lot of one item held at one warehouse.
//
// Invariant: 0 <= ReservedQty <= UsableQty. Batches are never deleted; they
// are retired by flipping Status to inactive.
type Batch struct {
	shared.BaseAggregateRoot
	ItemID       uuid.UUID
	WarehouseID  uuid.UUID
	BatchNo      *string
	BatchDate    *time.Time
	ExpiryDate   *time.Time
	UsableQty    decimal.Decimal
	ReservedQty  decimal.Decimal
	DefectiveQty decimal.Decimal
	ExpiredQty   decimal.Decimal
	UOMCode      string
	Status       string
}

// NewBatch creates an empty active batch; quantities arrive through Receive.
func NewBatch(itemID, warehouseID uuid.UUID, batchNo *string, batchDate, expiryDate *time.Time, uom string) *Batch {
	return &Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ItemID:            itemID,
		WarehouseID:       warehouseID,
		BatchNo:           batchNo,
		BatchDate:         datePtr(batchDate),
		ExpiryDate:        datePtr(expiryDate),
		UsableQty:         decimal.Zero,
		ReservedQty:       decimal.Zero,
		DefectiveQty:      decimal.Zero,
		ExpiredQty:        decimal.Zero,
		UOMCode:           uom,
		Status:            StatusActive,
	}
}

// Key returns the batch-level ledger key.
func (b *Batch) Key() BatchKey {
	return BatchKey{ItemID: b.ItemID, WarehouseID: b.WarehouseID, BatchID: b.ID}
}

// StockKey returns the warehouse aggregate this batch rolls up into.
func (b *Batch) StockKey() StockKey {
	return StockKey{ItemID: b.ItemID, WarehouseID: b.WarehouseID}
}

// Label is the batch number when present, otherwise the batch ID.
func (b *Batch) Label() string {
	if b.BatchNo != nil && *b.BatchNo != "" {
		return *b.BatchNo
	}
	return b.ID.String()
}

// IsActive returns true if the batch may be allocated from.
func (b *Batch) IsActive() bool {
	return b.Status == StatusActive
}

// IsExpiredOn reports whether the batch expiry date lies strictly before day.
// A batch without expiry date never expires.
func (b *Batch) IsExpiredOn(day time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return DateOf(*b.ExpiryDate).Before(DateOf(day))
}

// Available returns usable minus reserved quantity.
func (b *Batch) Available() decimal.Decimal {
	return b.UsableQty.Sub(b.ReservedQty)
}

// AvailableReleasing returns the quantity available to a package that already
// holds own units of this batch: usable - (reserved - own). The release never
// exceeds what is actually reserved.
func (b *Batch) AvailableReleasing(own decimal.Decimal) decimal.Decimal {
	if own.IsNegative() {
		own = decimal.Zero
	}
	release := decimal.Min(own, b.ReservedQty)
	return b.UsableQty.Sub(b.ReservedQty.Sub(release))
}

// ApplyReservationDelta moves the reserved quantity by delta. An underflow is
// clamped to zero; overshooting the usable quantity is rejected and leaves the
// batch untouched.
func (b *Batch) ApplyReservationDelta(delta decimal.Decimal) error {
	next := b.ReservedQty.Add(delta)
	if next.IsNegative() {
		b.ReservedQty = decimal.Zero
		return nil
	}
	if next.GreaterThan(b.UsableQty) {
		return shared.NewDomainError(CodeInsufficientStock, fmt.Sprintf(
			"Cannot reserve %s units from batch %s - only %s available",
			qty(delta), b.Label(), qty(b.Available())))
	}
	b.ReservedQty = next
	return nil
}

// ReleaseReservation lowers the reserved quantity, floored at zero.
func (b *Batch) ReleaseReservation(amount decimal.Decimal) {
	b.ReservedQty = decimal.Max(decimal.Zero, b.ReservedQty.Sub(amount))
}

// Commit turns allocated units into a permanent deduction.
func (b *Batch) Commit(allocated decimal.Decimal) error {
	if b.UsableQty.LessThan(allocated) {
		return shared.NewDomainError(CodeInsufficientStock, fmt.Sprintf(
			"Insufficient stock in batch %s: need %s, have %s",
			b.Label(), qty(allocated), qty(b.UsableQty)))
	}
	b.UsableQty = b.UsableQty.Sub(allocated)
	b.ReleaseReservation(allocated)
	return nil
}

// Receive adds intake quantity to the batch.
func (b *Batch) Receive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Received quantity must be greater than zero")
	}
	b.UsableQty = b.UsableQty.Add(amount)
	return nil
}
