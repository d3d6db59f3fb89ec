package relief

import (
	"context"
	"fmt"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReservationLedger keeps batch and warehouse-aggregate reservations in step
// with the allocation lines of each relief package.
//
// Every mutation runs in one transaction and takes row locks in a fixed
// order: batches sorted by (item, warehouse, batch), then aggregates sorted by
// (item, warehouse). Aggregates are always recomputed from batch sums.
type ReservationLedger struct {
	tx        txRunner
	packages  relief.PackageRepository
	allocator *relief.Allocator
	logger    *zap.Logger
}

// NewReservationLedger creates a new ReservationLedger
func NewReservationLedger(txScope TransactionScope, packages relief.PackageRepository, allocator *relief.Allocator, logger *zap.Logger) *ReservationLedger {
	return &ReservationLedger{
		tx:        txRunner{scope: txScope, service: "reservation_ledger", logger: logger},
		packages:  packages,
		allocator: allocator,
		logger:    logger,
	}
}

// ReserveInventory makes lines the allocation of the request's open package
// and moves reservations from the old snapshot to them. When old is nil the
// snapshot is the package's current lines. Every line is validated with the
// snapshot released first. A request without an open package gets a new
// draft.
func (l *ReservationLedger) ReserveInventory(ctx context.Context, requestID uuid.UUID, lines []relief.AllocationLine, old map[relief.BatchKey]decimal.Decimal) error {
	return l.tx.run(ctx, "reserve_inventory", func(ctx context.Context, repos TransactionalRepositories) error {
		pkg, isNew, err := openPackage(ctx, repos, requestID)
		if err != nil {
			return err
		}
		if old == nil {
			old = pkg.BatchQuantities()
		}
		return l.apply(ctx, repos, pkg, isNew, lines, old, "")
	})
}

// ReleaseAllReservations gives back everything the request's open package
// holds and empties its lines. A request without an open package is a no-op.
func (l *ReservationLedger) ReleaseAllReservations(ctx context.Context, requestID uuid.UUID) error {
	return l.tx.run(ctx, "release_all_reservations", func(ctx context.Context, repos TransactionalRepositories) error {
		return l.releaseAll(ctx, repos, requestID)
	})
}

// CommitInventory turns the submitted package's reservations into permanent
// deductions and marks it dispatched. A package can be committed once; after
// that the request has no open package left. The fulfillment lock and event
// publishing are left to PackagingService.Dispatch.
func (l *ReservationLedger) CommitInventory(ctx context.Context, requestID uuid.UUID) error {
	return l.tx.run(ctx, "commit_inventory", func(ctx context.Context, repos TransactionalRepositories) error {
		pkg, err := repos.PackageRepo().FindActiveByRequestForUpdate(ctx, requestID)
		if err != nil {
			if isNotFound(err) {
				return relief.NewPackageNotFoundError(requestID)
			}
			return err
		}
		if err := l.commit(ctx, repos, pkg, time.Now()); err != nil {
			return err
		}
		return repos.PackageRepo().Update(ctx, pkg)
	})
}

// GetCurrentReservations returns what the request holds per warehouse aggregate.
func (l *ReservationLedger) GetCurrentReservations(ctx context.Context, requestID uuid.UUID) (map[relief.StockKey]decimal.Decimal, error) {
	batchQty, err := l.GetCurrentBatchReservations(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return relief.StockQuantities(batchQty), nil
}

// GetCurrentBatchReservations returns what the request holds per batch.
func (l *ReservationLedger) GetCurrentBatchReservations(ctx context.Context, requestID uuid.UUID) (map[relief.BatchKey]decimal.Decimal, error) {
	return l.snapshot(ctx, l.packages, requestID)
}

func (l *ReservationLedger) snapshot(ctx context.Context, packages relief.PackageRepository, requestID uuid.UUID) (map[relief.BatchKey]decimal.Decimal, error) {
	pkg, err := packages.FindActiveByRequest(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return map[relief.BatchKey]decimal.Decimal{}, nil
		}
		return nil, err
	}
	return pkg.BatchQuantities(), nil
}

// apply validates lines against old, rewrites pkg's lines, stores pkg and
// reserves the difference. old must be taken before pkg's lines change.
func (l *ReservationLedger) apply(
	ctx context.Context,
	repos TransactionalRepositories,
	pkg *relief.ReliefPackage,
	isNew bool,
	lines []relief.AllocationLine,
	old map[relief.BatchKey]decimal.Decimal,
	reason string,
) error {
	newQty := relief.BatchQuantities(lines)
	if err := l.validate(ctx, repos, newQty, old); err != nil {
		return err
	}
	if err := pkg.ReplaceAllocations(lines, reason); err != nil {
		return err
	}
	var err error
	if isNew {
		err = repos.PackageRepo().Create(ctx, pkg)
	} else {
		err = repos.PackageRepo().Update(ctx, pkg)
	}
	if err != nil {
		return err
	}
	return l.reserve(ctx, repos, pkg.ReliefRequestID, newQty, old)
}

// validate checks every requested batch with the old reservation released.
func (l *ReservationLedger) validate(ctx context.Context, repos TransactionalRepositories, newQty, oldQty map[relief.BatchKey]decimal.Decimal) error {
	keys := make([]relief.BatchKey, 0, len(newQty))
	for k := range newQty {
		keys = append(keys, k)
	}
	relief.SortBatchKeys(keys)

	for _, k := range keys {
		batch, err := repos.BatchRepo().FindByID(ctx, k.BatchID)
		if err != nil {
			if isNotFound(err) {
				return relief.NewBatchNotFoundError(k.BatchID)
			}
			return err
		}
		if batch.WarehouseID != k.WarehouseID {
			return shared.NewDomainError(relief.CodeBatchWarehouseMismatch,
				fmt.Sprintf("Batch %s is not held at warehouse %s", batch.Label(), k.WarehouseID))
		}
		if err := l.allocator.ValidateAllocation(batch, k.ItemID, newQty[k], oldQty[k]); err != nil {
			return err
		}
	}
	return nil
}

// reserve applies newQty - oldQty to every batch, then recomputes the touched
// aggregates.
func (l *ReservationLedger) reserve(ctx context.Context, repos TransactionalRepositories, requestID uuid.UUID, newQty, oldQty map[relief.BatchKey]decimal.Decimal) error {
	touched := relief.StockKeySet{}
	for _, d := range relief.ComputeBatchDeltas(oldQty, newQty) {
		batch, err := repos.BatchRepo().FindByIDForUpdate(ctx, d.Key.BatchID)
		if err != nil {
			if !isNotFound(err) {
				return err
			}
			if d.Delta.IsPositive() {
				return relief.NewBatchNotFoundError(d.Key.BatchID)
			}
			l.logger.Warn("Batch missing while releasing reservation",
				zap.String("relief_request_id", requestID.String()),
				zap.String("batch_id", d.Key.BatchID.String()),
				zap.String("delta", d.Delta.String()),
			)
			continue
		}
		if err := batch.ApplyReservationDelta(d.Delta); err != nil {
			return err
		}
		if err := repos.BatchRepo().Update(ctx, batch); err != nil {
			return err
		}
		touched.Add(batch.StockKey())
	}
	return l.recompute(ctx, repos, touched.Sorted())
}

// release hands back everything pkg holds and clears its lines. Persisting
// the package is up to the caller.
func (l *ReservationLedger) release(ctx context.Context, repos TransactionalRepositories, pkg *relief.ReliefPackage) error {
	if err := l.reserve(ctx, repos, pkg.ReliefRequestID, nil, pkg.BatchQuantities()); err != nil {
		return err
	}
	pkg.ClearAllocations()
	return nil
}

func (l *ReservationLedger) releaseAll(ctx context.Context, repos TransactionalRepositories, requestID uuid.UUID) error {
	return l.releaseWhere(ctx, repos, requestID, relief.PackageStatus.IsOpen)
}

// releaseDraft is the release that follows a lock going away. A submitted
// package keeps its reservations until it is dispatched or cancelled.
func (l *ReservationLedger) releaseDraft(ctx context.Context, repos TransactionalRepositories, requestID uuid.UUID) error {
	return l.releaseWhere(ctx, repos, requestID, func(s relief.PackageStatus) bool {
		return s == relief.PackageDraft
	})
}

func (l *ReservationLedger) releaseWhere(ctx context.Context, repos TransactionalRepositories, requestID uuid.UUID, match func(relief.PackageStatus) bool) error {
	pkg, err := repos.PackageRepo().FindActiveByRequestForUpdate(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if !match(pkg.Status) || len(pkg.Allocations) == 0 {
		return nil
	}
	if err := l.release(ctx, repos, pkg); err != nil {
		return err
	}
	return repos.PackageRepo().Update(ctx, pkg)
}

// commit marks pkg dispatched at the given time and deducts every line from
// its batch. The status change comes first so a package that is not
// submitted, or has no lines, deducts nothing.
func (l *ReservationLedger) commit(ctx context.Context, repos TransactionalRepositories, pkg *relief.ReliefPackage, at time.Time) error {
	if err := pkg.Dispatch(at); err != nil {
		return err
	}
	quantities := pkg.BatchQuantities()
	keys := make([]relief.BatchKey, 0, len(quantities))
	for k := range quantities {
		keys = append(keys, k)
	}
	relief.SortBatchKeys(keys)

	touched := relief.StockKeySet{}
	for _, k := range keys {
		batch, err := repos.BatchRepo().FindByIDForUpdate(ctx, k.BatchID)
		if err != nil {
			if isNotFound(err) {
				return relief.NewBatchNotFoundError(k.BatchID)
			}
			return err
		}
		if err := batch.Commit(quantities[k]); err != nil {
			return err
		}
		if err := repos.BatchRepo().Update(ctx, batch); err != nil {
			return err
		}
		touched.Add(batch.StockKey())
	}
	return l.recompute(ctx, repos, touched.Sorted())
}

// openPackage returns the request's open package locked for update, or a new
// draft when there is none.
func openPackage(ctx context.Context, repos TransactionalRepositories, requestID uuid.UUID) (*relief.ReliefPackage, bool, error) {
	pkg, err := repos.PackageRepo().FindActiveByRequestForUpdate(ctx, requestID)
	if err == nil {
		return pkg, false, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}
	return relief.NewReliefPackage(requestID), true, nil
}

// recompute locks each aggregate in order and overwrites its usable and
// reserved quantities with batch sums. A missing aggregate row is created.
func (l *ReservationLedger) recompute(ctx context.Context, repos TransactionalRepositories, keys []relief.StockKey) error {
	for _, key := range keys {
		inv, err := repos.InventoryRepo().FindByStockKeyForUpdate(ctx, key)
		created := false
		if err != nil {
			if !isNotFound(err) {
				return err
			}
			inv = relief.NewInventory(key)
			created = true
		}

		totals, err := repos.BatchRepo().SumByStock(ctx, key)
		if err != nil {
			return err
		}
		if err := inv.Recompute(totals); err != nil {
			return err
		}

		if created {
			err = repos.InventoryRepo().Create(ctx, inv)
		} else {
			err = repos.InventoryRepo().Update(ctx, inv)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
