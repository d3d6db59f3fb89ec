package relief

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockKey identifies a warehouse aggregate.
type StockKey struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
}

// Less orders keys by item, then warehouse. Row locks are always taken in
// this order.
func (k StockKey) Less(o StockKey) bool {
	if c := bytes.Compare(k.ItemID[:], o.ItemID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.WarehouseID[:], o.WarehouseID[:]) < 0
}

// BatchKey identifies one batch-level allocation.
type BatchKey struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	BatchID     uuid.UUID
}

// Stock returns the aggregate key the batch rolls up into.
func (k BatchKey) Stock() StockKey {
	return StockKey{ItemID: k.ItemID, WarehouseID: k.WarehouseID}
}

// Less orders keys by item, warehouse, then batch.
func (k BatchKey) Less(o BatchKey) bool {
	if k.Stock() != o.Stock() {
		return k.Stock().Less(o.Stock())
	}
	return bytes.Compare(k.BatchID[:], o.BatchID[:]) < 0
}

// SortBatchKeys sorts keys in lock order.
func SortBatchKeys(keys []BatchKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// SortStockKeys sorts keys in lock order.
func SortStockKeys(keys []StockKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// AllocationLine is one typed allocation request: take Quantity of ItemID
// from BatchID held at WarehouseID.
type AllocationLine struct {
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	BatchID     uuid.UUID
	Quantity    decimal.Decimal
	UOMCode     string
}

// Key returns the batch-level key of the line.
func (l AllocationLine) Key() BatchKey {
	return BatchKey{ItemID: l.ItemID, WarehouseID: l.WarehouseID, BatchID: l.BatchID}
}

// BatchQuantities folds lines into per-batch quantities. Lines for the same
// batch are summed and non-positive totals are dropped.
func BatchQuantities(lines []AllocationLine) map[BatchKey]decimal.Decimal {
	out := make(map[BatchKey]decimal.Decimal, len(lines))
	for _, l := range lines {
		out[l.Key()] = out[l.Key()].Add(l.Quantity)
	}
	for k, q := range out {
		if !q.IsPositive() {
			delete(out, k)
		}
	}
	return out
}

// StockQuantities projects batch-level quantities onto warehouse aggregates.
func StockQuantities(batchQty map[BatchKey]decimal.Decimal) map[StockKey]decimal.Decimal {
	out := make(map[StockKey]decimal.Decimal, len(batchQty))
	for k, q := range batchQty {
		out[k.Stock()] = out[k.Stock()].Add(q)
	}
	return out
}
