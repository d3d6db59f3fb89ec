package relief

import (
	"testing"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortByAllocationRule(t *testing.T) {
	a := newTestAllocator()

	t.Run("FEFO orders by expiry and puts missing expiry last", func(t *testing.T) {
		item := NewItem("Water", "EA", true, IssuanceFEFO)
		batches := []Batch{
			createTestBatch(item.ID, "no-expiry", "10", withDates(day(2025, 1, 1), nil)),
			createTestBatch(item.ID, "late", "10", withDates(day(2025, 1, 1), day(2026, 1, 1))),
			createTestBatch(item.ID, "early", "10", withDates(day(2025, 2, 1), day(2025, 7, 1))),
			createTestBatch(item.ID, "expired", "10", withDates(day(2024, 1, 1), day(2025, 6, 14))),
		}

		sorted := a.SortByAllocationRule(batches, item)

		assert.Equal(t, []string{"early", "late", "no-expiry"}, batchNos(sorted))
	})

	t.Run("batch expiring today is still eligible", func(t *testing.T) {
		item := NewItem("Water", "EA", true, IssuanceFEFO)
		batches := []Batch{createTestBatch(item.ID, "today", "5", withDates(nil, day(2025, 6, 15)))}

		assert.Len(t, a.SortByAllocationRule(batches, item), 1)
	})

	t.Run("FEFO ties break on batch date then available quantity", func(t *testing.T) {
		item := NewItem("Water", "EA", true, IssuanceFEFO)
		exp := day(2025, 9, 1)
		batches := []Batch{
			createTestBatch(item.ID, "newer", "50", withDates(day(2025, 3, 1), exp)),
			createTestBatch(item.ID, "small", "5", withDates(day(2025, 1, 1), exp)),
			createTestBatch(item.ID, "big", "20", withDates(day(2025, 1, 1), exp)),
		}

		sorted := a.SortByAllocationRule(batches, item)

		assert.Equal(t, []string{"big", "small", "newer"}, batchNos(sorted))
	})

	t.Run("FEFO on a non-expiring item falls back to FIFO", func(t *testing.T) {
		item := NewItem("Tarp", "EA", false, IssuanceFEFO)
		batches := []Batch{
			createTestBatch(item.ID, "b", "10", withDates(day(2025, 3, 1), day(2025, 4, 1))),
			createTestBatch(item.ID, "a", "10", withDates(day(2025, 1, 1), day(2026, 4, 1))),
			createTestBatch(item.ID, "undated", "10"),
		}

		sorted := a.SortByAllocationRule(batches, item)

		// Expired batch "b" stays because the item does not expire.
		assert.Equal(t, []string{"undated", "a", "b"}, batchNos(sorted))
	})

	t.Run("LIFO orders newest batch first", func(t *testing.T) {
		item := NewItem("Blanket", "EA", false, IssuanceLIFO)
		batches := []Batch{
			createTestBatch(item.ID, "old", "10", withDates(day(2024, 1, 1), nil)),
			createTestBatch(item.ID, "new", "10", withDates(day(2025, 5, 1), nil)),
			createTestBatch(item.ID, "undated", "10"),
		}

		sorted := a.SortByAllocationRule(batches, item)

		assert.Equal(t, []string{"new", "old", "undated"}, batchNos(sorted))
	})

	t.Run("drops batches with nothing available", func(t *testing.T) {
		item := NewItem("Blanket", "EA", false, IssuanceFIFO)
		batches := []Batch{
			createTestBatch(item.ID, "full", "10", withReserved("10")),
			createTestBatch(item.ID, "ok", "10", withReserved("4")),
		}

		sorted := a.SortByAllocationRule(batches, item)

		assert.Equal(t, []string{"ok"}, batchNos(sorted))
	})
}

func TestAutoAllocate(t *testing.T) {
	a := newTestAllocator()
	item := NewItem("Rice", "KG", false, IssuanceFIFO)
	batches := a.SortByAllocationRule([]Batch{
		createTestBatch(item.ID, "b1", "30", withDates(day(2025, 1, 1), nil)),
		createTestBatch(item.ID, "b2", "50", withDates(day(2025, 2, 1), nil), withReserved("10")),
		createTestBatch(item.ID, "b3", "20", withDates(day(2025, 3, 1), nil)),
	}, item)

	t.Run("greedy walk stops when request is covered", func(t *testing.T) {
		allocs := a.AutoAllocate(batches, dec("50"))

		require.Len(t, allocs, 2)
		assert.True(t, allocs[0].AllocatedQty.Equal(dec("30")))
		assert.True(t, allocs[1].AllocatedQty.Equal(dec("20")))
		assert.True(t, allocs[1].AvailableQty.Equal(dec("40")))
		assert.True(t, Shortfall(dec("50"), allocs).IsZero())
	})

	t.Run("shortfall when stock runs out", func(t *testing.T) {
		allocs := a.AutoAllocate(batches, dec("100"))

		require.Len(t, allocs, 3)
		assert.True(t, TotalAllocated(allocs).Equal(dec("90")))
		assert.True(t, Shortfall(dec("100"), allocs).Equal(dec("10")))
	})

	t.Run("zero request allocates nothing", func(t *testing.T) {
		assert.Empty(t, a.AutoAllocate(batches, decimal.Zero))
	})
}

func TestLimitForDrawer(t *testing.T) {
	a := newTestAllocator()
	item := NewItem("Water", "EA", true, IssuanceFEFO)
	wh1, wh2, wh3 := uuid.New(), uuid.New(), uuid.New()

	w1a := createTestBatch(item.ID, "w1a", "10", withWarehouse(wh1), withDates(nil, day(2025, 7, 1)))
	w1b := createTestBatch(item.ID, "w1b", "10", withWarehouse(wh1), withDates(nil, day(2025, 8, 1)))
	w1c := createTestBatch(item.ID, "w1c", "10", withWarehouse(wh1), withDates(nil, day(2025, 9, 1)))
	w2a := createTestBatch(item.ID, "w2a", "5", withWarehouse(wh2), withDates(nil, day(2025, 7, 15)))
	w3a := createTestBatch(item.ID, "w3a", "5", withWarehouse(wh3), withDates(nil, day(2025, 7, 20)), withReserved("5"))

	t.Run("stops per warehouse once remaining is covered", func(t *testing.T) {
		result := a.LimitForDrawer([]Batch{w1c, w1b, w1a, w2a, w3a}, item, dec("15"), nil)

		nos := make([]string, 0)
		for _, b := range result.Batches {
			nos = append(nos, *b.BatchNo)
		}
		// wh3 is fully reserved by someone else and is skipped.
		assert.Equal(t, []string{"w1a", "w1b", "w2a"}, nos)
		assert.True(t, result.TotalAvailable.Equal(dec("25")))
		assert.True(t, result.Shortfall.IsZero())
	})

	t.Run("own reservation is released and allocated batches are kept", func(t *testing.T) {
		current := map[uuid.UUID]decimal.Decimal{w3a.ID: dec("5"), w1c.ID: dec("0")}

		result := a.LimitForDrawer([]Batch{w1a, w1b, w1c, w3a}, item, dec("5"), current)

		nos := make([]string, 0)
		for _, b := range result.Batches {
			nos = append(nos, *b.BatchNo)
			if *b.BatchNo == "w3a" {
				assert.True(t, b.AvailableQty.Equal(dec("5")))
				assert.True(t, b.Allocated)
			}
		}
		assert.Equal(t, []string{"w1a", "w1c", "w3a"}, nos)
	})

	t.Run("expired batch is listed only while the package holds it", func(t *testing.T) {
		wh4 := uuid.New()
		stale := createTestBatch(item.ID, "stale", "10", withWarehouse(wh4), withDates(nil, day(2025, 6, 1)), withReserved("4"))

		unheld := a.LimitForDrawer([]Batch{stale}, item, dec("5"), nil)
		assert.Empty(t, unheld.Batches)

		held := a.LimitForDrawer([]Batch{stale}, item, dec("5"),
			map[uuid.UUID]decimal.Decimal{stale.ID: dec("4")})
		require.Len(t, held.Batches, 1)
		assert.True(t, held.Batches[0].Allocated)
		assert.True(t, held.Batches[0].OwnQty.Equal(dec("4")))
		assert.True(t, held.Batches[0].AvailableQty.IsZero())
		assert.True(t, held.TotalAvailable.IsZero())
		assert.True(t, held.Shortfall.Equal(dec("5")))
	})

	t.Run("reports shortfall", func(t *testing.T) {
		result := a.LimitForDrawer([]Batch{w2a}, item, dec("8"), nil)

		assert.True(t, result.TotalAvailable.Equal(dec("5")))
		assert.True(t, result.Shortfall.Equal(dec("3")))
	})
}

func TestAssignPriorityGroups(t *testing.T) {
	a := newTestAllocator()

	t.Run("FEFO groups by expiry and batch date", func(t *testing.T) {
		item := NewItem("Water", "EA", true, IssuanceFEFO)
		sorted := a.SortByAllocationRule([]Batch{
			createTestBatch(item.ID, "a", "10", withDates(day(2025, 1, 1), day(2025, 7, 1))),
			createTestBatch(item.ID, "b", "5", withDates(day(2025, 1, 1), day(2025, 7, 1))),
			createTestBatch(item.ID, "c", "5", withDates(day(2025, 2, 1), day(2025, 7, 1))),
			createTestBatch(item.ID, "d", "5", withDates(day(2025, 2, 1), day(2025, 8, 1))),
		}, item)

		groups := AssignPriorityGroups(sorted, item)

		require.Len(t, groups, 4)
		assert.Equal(t, []int{0, 0, 1, 2}, []int{groups[0].Group, groups[1].Group, groups[2].Group, groups[3].Group})
	})

	t.Run("FIFO groups by batch date only", func(t *testing.T) {
		item := NewItem("Tarp", "EA", false, IssuanceFIFO)
		sorted := a.SortByAllocationRule([]Batch{
			createTestBatch(item.ID, "a", "10", withDates(day(2025, 1, 1), day(2025, 7, 1))),
			createTestBatch(item.ID, "b", "5", withDates(day(2025, 1, 1), day(2025, 9, 1))),
			createTestBatch(item.ID, "c", "5", withDates(day(2025, 2, 1), nil)),
		}, item)

		groups := AssignPriorityGroups(sorted, item)

		assert.Equal(t, []int{0, 0, 1}, []int{groups[0].Group, groups[1].Group, groups[2].Group})
	})
}

func TestValidateAllocation(t *testing.T) {
	a := newTestAllocator()
	itemID := uuid.New()

	codeOf := func(err error) string {
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		return de.Code
	}

	t.Run("accepts quantity within availability", func(t *testing.T) {
		b := createTestBatch(itemID, "b", "10", withReserved("4"))
		assert.NoError(t, a.ValidateAllocation(&b, itemID, dec("6"), decimal.Zero))
	})

	t.Run("releases own reservation before checking", func(t *testing.T) {
		b := createTestBatch(itemID, "b", "10", withReserved("10"))
		assert.NoError(t, a.ValidateAllocation(&b, itemID, dec("10"), dec("10")))

		err := a.ValidateAllocation(&b, itemID, dec("10"), decimal.Zero)
		assert.Equal(t, CodeInsufficientStock, codeOf(err))
		assert.Contains(t, err.Error(), "has only 0.0000 units available, cannot allocate 10.0000")
	})

	t.Run("rejects item mismatch", func(t *testing.T) {
		b := createTestBatch(uuid.New(), "b", "10")
		assert.Equal(t, CodeBatchItemMismatch, codeOf(a.ValidateAllocation(&b, itemID, dec("1"), decimal.Zero)))
	})

	t.Run("rejects inactive batch", func(t *testing.T) {
		b := createTestBatch(itemID, "b", "10")
		b.Status = StatusInactive
		err := a.ValidateAllocation(&b, itemID, dec("1"), decimal.Zero)
		assert.Equal(t, CodeBatchInactive, codeOf(err))
		assert.Equal(t, "Batch b is not available (status: I)", err.Error())
	})

	t.Run("rejects expired batch", func(t *testing.T) {
		b := createTestBatch(itemID, "b", "10", withDates(nil, day(2025, 6, 1)))
		err := a.ValidateAllocation(&b, itemID, dec("1"), decimal.Zero)
		assert.Equal(t, CodeBatchExpired, codeOf(err))
		assert.Equal(t, "Batch b is expired (expiry: 2025-06-01)", err.Error())
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		b := createTestBatch(itemID, "b", "10")
		assert.Equal(t, CodeInvalidQuantity, codeOf(a.ValidateAllocation(&b, itemID, decimal.Zero, decimal.Zero)))
		assert.Equal(t, CodeInvalidQuantity, codeOf(a.ValidateAllocation(&b, itemID, dec("-1"), decimal.Zero)))
	})
}

func TestSortForDrawer_KeepsHeldExpiredBatches(t *testing.T) {
	a := newTestAllocator()
	item := NewItem("Water", "EA", true, IssuanceFEFO)
	expired := createTestBatch(item.ID, "expired", "10", withDates(nil, day(2025, 6, 1)))
	fresh := createTestBatch(item.ID, "fresh", "10", withDates(nil, day(2025, 9, 1)))

	assert.Len(t, a.SortForDrawer([]Batch{fresh, expired}, item, nil), 1)

	sorted := a.SortForDrawer([]Batch{fresh, expired}, item,
		map[uuid.UUID]decimal.Decimal{expired.ID: dec("3")})
	require.Len(t, sorted, 2)
	assert.Equal(t, "expired", *sorted[0].BatchNo)
	assert.True(t, sorted[0].IsExpiredOn(a.Today()))
}
