package relief

import (
	"time"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testToday = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string {
	return &s
}

func newTestAllocator() *Allocator {
	return NewAllocator(WithAllocatorClock(func() time.Time { return testToday }))
}

type batchOpt func(*Batch)

func withDates(batchDate, expiry *time.Time) batchOpt {
	return func(b *Batch) {
		b.BatchDate = batchDate
		b.ExpiryDate = expiry
	}
}

func withWarehouse(id uuid.UUID) batchOpt {
	return func(b *Batch) { b.WarehouseID = id }
}

func withReserved(r string) batchOpt {
	return func(b *Batch) { b.ReservedQty = dec(r) }
}

func createTestBatch(itemID uuid.UUID, no string, usable string, opts ...batchOpt) Batch {
	b := Batch{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ItemID:            itemID,
		WarehouseID:       uuid.New(),
		BatchNo:           strPtr(no),
		UsableQty:         dec(usable),
		ReservedQty:       decimal.Zero,
		DefectiveQty:      decimal.Zero,
		ExpiredQty:        decimal.Zero,
		UOMCode:           "EA",
		Status:            StatusActive,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func batchNos(batches []Batch) []string {
	out := make([]string, 0, len(batches))
	for _, b := range batches {
		out = append(out, *b.BatchNo)
	}
	return out
}
