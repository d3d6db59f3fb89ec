package relief_test

import (
	"testing"
	"time"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveDraft_CreatesPackageLockAndReservations(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	alice := newUser("alice")
	requestID := uuid.New()

	pkg, err := h.saveDraft(alice, requestID, h.line(a, 30), h.line(a, 5))

	require.NoError(t, err)
	assert.Equal(t, relief.PackageDraft, pkg.Status)
	assert.Equal(t, 1, pkg.Version)
	require.Len(t, pkg.Allocations, 1)
	assertQty(t, 35, pkg.Allocations[0].Quantity)
	assertQty(t, 35, h.batch(t, a.ID).ReservedQty)
	assertQty(t, 35, h.aggregate(t, h.warehouse.ID).ReservedQty)

	lock, err := h.locks.FindByRequest(h.ctx, requestID)
	require.NoError(t, err)
	assert.True(t, lock.HeldBy(alice.UserID))
}

func TestSaveDraft_ResaveReservesOnlyTheDifference(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 10, &farExpiry)
	b := h.receive(t, h.warehouse, "B-1", 10, &farExpiry)
	alice := newUser("alice")
	requestID := uuid.New()

	_, err := h.saveDraft(alice, requestID, h.line(a, 10))
	require.NoError(t, err)

	// The batch is fully reserved by this package, saving it again must not
	// count the package's own hold against it.
	pkg, err := h.packaging.SaveDraft(h.ctx, appRelief.SaveDraftCommand{
		RequestID:       requestID,
		User:            alice,
		Lines:           []relief.AllocationLine{h.line(a, 6), h.line(b, 4)},
		ExpectedVersion: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, pkg.Version)
	assertQty(t, 6, h.batch(t, a.ID).ReservedQty)
	assertQty(t, 4, h.batch(t, b.ID).ReservedQty)
	assertQty(t, 10, h.aggregate(t, h.warehouse.ID).ReservedQty)
}

func TestSaveDraft_StaleVersion(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	alice := newUser("alice")
	requestID := uuid.New()
	_, err := h.saveDraft(alice, requestID, h.line(a, 10))
	require.NoError(t, err)
	_, err = h.saveDraft(alice, requestID, h.line(a, 20))
	require.NoError(t, err)

	_, err = h.packaging.SaveDraft(h.ctx, appRelief.SaveDraftCommand{
		RequestID:       requestID,
		User:            alice,
		Lines:           []relief.AllocationLine{h.line(a, 50)},
		ExpectedVersion: 1,
	})

	assert.ErrorIs(t, err, shared.ErrOptimisticLock)
	assertQty(t, 20, h.batch(t, a.ID).ReservedQty)
}

func TestSaveDraft_LockedByAnotherUser(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	requestID := uuid.New()
	_, err := h.saveDraft(newUser("alice"), requestID, h.line(a, 10))
	require.NoError(t, err)

	_, err = h.saveDraft(newUser("bob"), requestID, h.line(a, 40))

	assertCode(t, err, relief.CodeLockHeld)
	assert.Contains(t, err.Error(), "alice")
	assertQty(t, 10, h.batch(t, a.ID).ReservedQty)
}

func TestSaveDraft_InsufficientStockLeavesNothingReserved(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 10, &farExpiry)
	requestID := uuid.New()

	_, err := h.saveDraft(newUser("alice"), requestID, h.line(a, 11))

	assertCode(t, err, relief.CodeInsufficientStock)
	assertQty(t, 0, h.batch(t, a.ID).ReservedQty)
	_, err = h.packages.FindActiveByRequest(h.ctx, requestID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaveDraft_RejectsBadLines(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 10, &farExpiry)
	expired := h.receive(t, h.warehouse, "OLD-1", 10, dateOf(2020, time.January, 1))

	t.Run("negative quantity", func(t *testing.T) {
		line := h.line(a, 1)
		line.Quantity = decimal.NewFromInt(-1)
		_, err := h.saveDraft(newUser("alice"), uuid.New(), line)
		assertCode(t, err, relief.CodeInvalidQuantity)
	})

	t.Run("wrong warehouse", func(t *testing.T) {
		line := h.line(a, 1)
		line.WarehouseID = uuid.New()
		_, err := h.saveDraft(newUser("alice"), uuid.New(), line)
		assertCode(t, err, relief.CodeBatchWarehouseMismatch)
	})

	t.Run("wrong item", func(t *testing.T) {
		line := h.line(a, 1)
		line.ItemID = uuid.New()
		_, err := h.saveDraft(newUser("alice"), uuid.New(), line)
		assertCode(t, err, relief.CodeBatchItemMismatch)
	})

	t.Run("expired batch", func(t *testing.T) {
		_, err := h.saveDraft(newUser("alice"), uuid.New(), h.line(expired, 1))
		assertCode(t, err, relief.CodeBatchExpired)
	})
}

func TestSubmit(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	alice := newUser("alice")
	requestID := uuid.New()
	_, err := h.saveDraft(alice, requestID, h.line(a, 25))
	require.NoError(t, err)

	pkg, err := h.packaging.Submit(h.ctx, requestID, alice.UserID, 1)

	require.NoError(t, err)
	assert.Equal(t, relief.PackageSubmitted, pkg.Status)
	assertQty(t, 25, h.batch(t, a.ID).ReservedQty)
	assert.Equal(t, []string{relief.EventTypePackageSubmitted}, h.events.types())
	assert.Empty(t, pkg.GetDomainEvents())

	_, err = h.locks.FindByRequest(h.ctx, requestID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSubmittedPackage_KeepsReservationsForApprover(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	officer, manager := newUser("officer"), newUser("manager")
	requestID := uuid.New()
	_, err := h.saveDraft(officer, requestID, h.line(a, 30))
	require.NoError(t, err)
	_, err = h.packaging.Submit(h.ctx, requestID, officer.UserID, 0)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	status, err := h.lockSvc.Check(h.ctx, requestID, manager.UserID)
	require.NoError(t, err)
	assert.True(t, status.CanEdit)
	cleanup, err := h.lockSvc.CleanupExpired(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, cleanup.TotalExpired)
	assertQty(t, 30, h.batch(t, a.ID).ReservedQty)
	assertQty(t, 30, h.aggregate(t, h.warehouse.ID).ReservedQty)

	pkg, err := h.packaging.Dispatch(h.ctx, requestID, manager.UserID, 0)

	require.NoError(t, err)
	assert.Equal(t, relief.PackageDispatched, pkg.Status)
	assert.Len(t, pkg.Allocations, 1)
	batch := h.batch(t, a.ID)
	assertQty(t, 70, batch.UsableQty)
	assertQty(t, 0, batch.ReservedQty)
	assertQty(t, 70, h.aggregate(t, h.warehouse.ID).UsableQty)
}

func TestSubmittedPackage_ExpiredEditLockLeavesReservations(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	officer, clerk := newUser("officer"), newUser("clerk")
	requestID := uuid.New()
	_, err := h.saveDraft(officer, requestID, h.line(a, 20))
	require.NoError(t, err)
	_, err = h.packaging.Submit(h.ctx, requestID, officer.UserID, 0)
	require.NoError(t, err)

	_, err = h.lockSvc.Acquire(h.ctx, requestID, clerk)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)
	_, err = h.lockSvc.Acquire(h.ctx, requestID, officer)
	require.NoError(t, err)

	assertQty(t, 20, h.batch(t, a.ID).ReservedQty)
	pkg, err := h.packages.FindActiveByRequest(h.ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, relief.PackageSubmitted, pkg.Status)
	assert.Len(t, pkg.Allocations, 1)
}

func TestSubmit_Rejections(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	alice := newUser("alice")

	t.Run("no package", func(t *testing.T) {
		_, err := h.packaging.Submit(h.ctx, uuid.New(), alice.UserID, 0)
		assertCode(t, err, relief.CodePackageNotFound)
	})

	t.Run("empty package", func(t *testing.T) {
		requestID := uuid.New()
		_, err := h.saveDraft(alice, requestID)
		require.NoError(t, err)
		_, err = h.packaging.Submit(h.ctx, requestID, alice.UserID, 0)
		assertCode(t, err, relief.CodeInvalidPackageState)
	})

	t.Run("lock held by someone else", func(t *testing.T) {
		requestID := uuid.New()
		_, err := h.saveDraft(alice, requestID, h.line(a, 1))
		require.NoError(t, err)
		_, err = h.packaging.Submit(h.ctx, requestID, uuid.New(), 0)
		assertCode(t, err, relief.CodeLockHeld)
	})

	t.Run("expired lock", func(t *testing.T) {
		requestID := uuid.New()
		_, err := h.saveDraft(alice, requestID, h.line(a, 1))
		require.NoError(t, err)
		h.clock.Advance(2 * time.Hour)
		_, err = h.packaging.Submit(h.ctx, requestID, alice.UserID, 0)
		assertCode(t, err, relief.CodeLockNotHeld)
	})
}

func TestDispatch_CommitsStockAndDropsLock(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	b := h.receive(t, h.warehouse, "B-1", 40, &farExpiry)
	alice := newUser("alice")
	requestID := uuid.New()
	_, err := h.saveDraft(alice, requestID, h.line(a, 30), h.line(b, 40))
	require.NoError(t, err)
	_, err = h.packaging.Submit(h.ctx, requestID, alice.UserID, 0)
	require.NoError(t, err)

	pkg, err := h.packaging.Dispatch(h.ctx, requestID, alice.UserID, 0)

	require.NoError(t, err)
	assert.Equal(t, relief.PackageDispatched, pkg.Status)
	require.NotNil(t, pkg.DispatchedAt)
	assert.WithinDuration(t, h.clock.Now(), *pkg.DispatchedAt, time.Millisecond)

	batchA, batchB := h.batch(t, a.ID), h.batch(t, b.ID)
	assertQty(t, 70, batchA.UsableQty)
	assertQty(t, 0, batchA.ReservedQty)
	assertQty(t, 0, batchB.UsableQty)
	inv := h.aggregate(t, h.warehouse.ID)
	assertQty(t, 70, inv.UsableQty)
	assertQty(t, 0, inv.ReservedQty)

	_, err = h.locks.FindByRequest(h.ctx, requestID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	stored, err := h.packaging.GetPackage(h.ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, relief.PackageDispatched, stored.Status)
	assert.Len(t, stored.Allocations, 2)
	assert.Equal(t, []string{relief.EventTypePackageSubmitted, relief.EventTypePackageDispatched}, h.events.types())
}

func TestDispatch_LockRules(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	alice := newUser("alice")

	submitted := func(t *testing.T) uuid.UUID {
		requestID := uuid.New()
		_, err := h.saveDraft(alice, requestID, h.line(a, 5))
		require.NoError(t, err)
		_, err = h.packaging.Submit(h.ctx, requestID, alice.UserID, 0)
		require.NoError(t, err)
		return requestID
	}

	t.Run("approver needs no lock", func(t *testing.T) {
		requestID := submitted(t)
		pkg, err := h.packaging.Dispatch(h.ctx, requestID, uuid.New(), 0)
		require.NoError(t, err)
		assert.Equal(t, relief.PackageDispatched, pkg.Status)
	})

	t.Run("live lock of another user blocks", func(t *testing.T) {
		requestID := submitted(t)
		_, err := h.lockSvc.Acquire(h.ctx, requestID, newUser("bob"))
		require.NoError(t, err)
		_, err = h.packaging.Dispatch(h.ctx, requestID, uuid.New(), 0)
		assertCode(t, err, relief.CodeLockHeld)
	})

	t.Run("expired lock of another user does not block", func(t *testing.T) {
		requestID := submitted(t)
		_, err := h.lockSvc.Acquire(h.ctx, requestID, newUser("bob"))
		require.NoError(t, err)
		h.clock.Advance(2 * time.Hour)
		pkg, err := h.packaging.Dispatch(h.ctx, requestID, uuid.New(), 0)
		require.NoError(t, err)
		assert.Equal(t, relief.PackageDispatched, pkg.Status)
		_, err = h.locks.FindByRequest(h.ctx, requestID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("draft cannot be dispatched", func(t *testing.T) {
		requestID := uuid.New()
		_, err := h.saveDraft(alice, requestID, h.line(a, 5))
		require.NoError(t, err)
		_, err = h.packaging.Dispatch(h.ctx, requestID, alice.UserID, 0)
		assertCode(t, err, relief.CodeInvalidPackageState)
	})
}

func TestCancel_ReleasesEverything(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	alice := newUser("alice")
	requestID := uuid.New()
	_, err := h.saveDraft(alice, requestID, h.line(a, 45))
	require.NoError(t, err)

	pkg, err := h.packaging.Cancel(h.ctx, requestID, alice.UserID, 1)

	require.NoError(t, err)
	assert.Equal(t, relief.PackageCancelled, pkg.Status)
	assert.Empty(t, pkg.Allocations)
	assertQty(t, 0, h.batch(t, a.ID).ReservedQty)
	assertQty(t, 0, h.aggregate(t, h.warehouse.ID).ReservedQty)
	_, err = h.locks.FindByRequest(h.ctx, requestID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, []string{relief.EventTypePackageCancelled}, h.events.types())

	// A cancelled request can be prepared again from scratch.
	next, err := h.saveDraft(alice, requestID, h.line(a, 5))
	require.NoError(t, err)
	assert.NotEqual(t, pkg.ID, next.ID)
	latest, err := h.packaging.GetPackage(h.ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, latest.ID)
}

func TestCancel_RequiresLock(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	requestID := uuid.New()
	_, err := h.saveDraft(newUser("alice"), requestID, h.line(a, 5))
	require.NoError(t, err)

	_, err = h.packaging.Cancel(h.ctx, requestID, uuid.New(), 0)

	assertCode(t, err, relief.CodeLockHeld)
	assertQty(t, 5, h.batch(t, a.ID).ReservedQty)
}

func TestCancel_SubmittedByApprover(t *testing.T) {
	h := newHarness(t)
	a := h.receive(t, h.warehouse, "A-1", 100, &farExpiry)
	alice := newUser("alice")
	requestID := uuid.New()
	_, err := h.saveDraft(alice, requestID, h.line(a, 15))
	require.NoError(t, err)
	_, err = h.packaging.Submit(h.ctx, requestID, alice.UserID, 0)
	require.NoError(t, err)

	pkg, err := h.packaging.Cancel(h.ctx, requestID, uuid.New(), 0)

	require.NoError(t, err)
	assert.Equal(t, relief.PackageCancelled, pkg.Status)
	assertQty(t, 0, h.batch(t, a.ID).ReservedQty)
	assertQty(t, 0, h.aggregate(t, h.warehouse.ID).ReservedQty)
}

func TestGetPackage_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.packaging.GetPackage(h.ctx, uuid.New())
	assertCode(t, err, relief.CodePackageNotFound)
}

func dateOf(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
