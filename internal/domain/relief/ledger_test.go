package relief

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBatchDeltas(t *testing.T) {
	item, wh := uuid.New(), uuid.New()
	k1 := BatchKey{ItemID: item, WarehouseID: wh, BatchID: uuid.New()}
	k2 := BatchKey{ItemID: item, WarehouseID: wh, BatchID: uuid.New()}
	k3 := BatchKey{ItemID: item, WarehouseID: wh, BatchID: uuid.New()}

	oldQty := map[BatchKey]decimal.Decimal{k1: dec("5"), k2: dec("3")}
	newQty := map[BatchKey]decimal.Decimal{k1: dec("5"), k2: dec("1"), k3: dec("4")}

	deltas := ComputeBatchDeltas(oldQty, newQty)

	require.Len(t, deltas, 2)
	byKey := map[BatchKey]decimal.Decimal{}
	for i, d := range deltas {
		byKey[d.Key] = d.Delta
		if i > 0 {
			assert.True(t, deltas[i-1].Key.Less(d.Key))
		}
	}
	assert.True(t, byKey[k2].Equal(dec("-2")))
	assert.True(t, byKey[k3].Equal(dec("4")))
}

func TestComputeBatchDeltas_NilOld(t *testing.T) {
	k := BatchKey{ItemID: uuid.New(), WarehouseID: uuid.New(), BatchID: uuid.New()}

	deltas := ComputeBatchDeltas(nil, map[BatchKey]decimal.Decimal{k: dec("2")})

	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Old.IsZero())
	assert.True(t, deltas[0].Delta.Equal(dec("2")))
}

func TestBatchQuantities(t *testing.T) {
	item, wh, b1, b2 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	lines := []AllocationLine{
		{ItemID: item, WarehouseID: wh, BatchID: b1, Quantity: dec("2")},
		{ItemID: item, WarehouseID: wh, BatchID: b1, Quantity: dec("3")},
		{ItemID: item, WarehouseID: wh, BatchID: b2, Quantity: decimal.Zero},
	}

	qty := BatchQuantities(lines)

	require.Len(t, qty, 1)
	assert.True(t, qty[BatchKey{ItemID: item, WarehouseID: wh, BatchID: b1}].Equal(dec("5")))

	stock := StockQuantities(qty)
	assert.True(t, stock[StockKey{ItemID: item, WarehouseID: wh}].Equal(dec("5")))
}

func TestStockKeySet_Sorted(t *testing.T) {
	set := StockKeySet{}
	keys := []StockKey{
		{ItemID: uuid.New(), WarehouseID: uuid.New()},
		{ItemID: uuid.New(), WarehouseID: uuid.New()},
		{ItemID: uuid.New(), WarehouseID: uuid.New()},
	}
	for _, k := range keys {
		set.Add(k)
		set.Add(k)
	}

	sorted := set.Sorted()

	require.Len(t, sorted, 3)
	assert.True(t, sorted[0].Less(sorted[1]))
	assert.True(t, sorted[1].Less(sorted[2]))
}
