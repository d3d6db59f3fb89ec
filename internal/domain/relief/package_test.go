package relief

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReliefPackage_Lifecycle(t *testing.T) {
	item, wh, batch := uuid.New(), uuid.New(), uuid.New()
	pkg := NewReliefPackage(uuid.New())
	assert.Equal(t, PackageDraft, pkg.Status)

	t.Run("cannot submit empty package", func(t *testing.T) {
		assert.Error(t, pkg.Submit())
	})

	require.NoError(t, pkg.ReplaceAllocations([]AllocationLine{
		{ItemID: item, WarehouseID: wh, BatchID: batch, Quantity: dec("2"), UOMCode: "EA"},
		{ItemID: item, WarehouseID: wh, BatchID: batch, Quantity: dec("1"), UOMCode: "EA"},
	}, ""))
	require.Len(t, pkg.Allocations, 1)
	assert.True(t, pkg.OwnReservation(batch).Equal(dec("3")))
	assert.True(t, pkg.ItemReservations(item)[batch].Equal(dec("3")))

	t.Run("dispatch requires submission", func(t *testing.T) {
		assert.Error(t, pkg.Dispatch(time.Now()))
	})

	require.NoError(t, pkg.Submit())
	assert.Equal(t, PackageSubmitted, pkg.Status)

	require.NoError(t, pkg.Dispatch(time.Now()))
	assert.Equal(t, PackageDispatched, pkg.Status)
	require.NotNil(t, pkg.DispatchedAt)

	events := pkg.GetDomainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, EventTypePackageSubmitted, events[0].EventType())
	assert.Equal(t, EventTypePackageDispatched, events[1].EventType())

	t.Run("closed package cannot change", func(t *testing.T) {
		assert.Error(t, pkg.Cancel())
		assert.Error(t, pkg.SaveDraft())
		assert.Error(t, pkg.ReplaceAllocations(nil, ""))
	})
}

func TestReliefPackage_SaveDraftReopensSubmitted(t *testing.T) {
	pkg := NewReliefPackage(uuid.New())
	require.NoError(t, pkg.ReplaceAllocations([]AllocationLine{
		{ItemID: uuid.New(), WarehouseID: uuid.New(), BatchID: uuid.New(), Quantity: dec("1")},
	}, ""))
	require.NoError(t, pkg.Submit())

	require.NoError(t, pkg.SaveDraft())
	assert.Equal(t, PackageDraft, pkg.Status)

	require.NoError(t, pkg.Cancel())
	assert.Equal(t, PackageCancelled, pkg.Status)
}

func TestReliefPackage_DispatchRequiresLines(t *testing.T) {
	pkg := NewReliefPackage(uuid.New())
	require.NoError(t, pkg.ReplaceAllocations([]AllocationLine{
		{ItemID: uuid.New(), WarehouseID: uuid.New(), BatchID: uuid.New(), Quantity: dec("4")},
	}, ""))
	require.NoError(t, pkg.Submit())
	pkg.ClearAllocations()

	err := pkg.Dispatch(time.Now())

	require.Error(t, err)
	assert.ErrorContains(t, err, "without allocations")
	assert.Equal(t, PackageSubmitted, pkg.Status)
	assert.Nil(t, pkg.DispatchedAt)
}
