package relief

import (
	"context"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocationService answers batch selection queries. It only reads; nothing
// here reserves stock.
type AllocationService struct {
	items      relief.ItemRepository
	warehouses relief.WarehouseRepository
	batches    relief.BatchRepository
	packages   relief.PackageRepository
	allocator  *relief.Allocator
	logger     *zap.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	items relief.ItemRepository,
	warehouses relief.WarehouseRepository,
	batches relief.BatchRepository,
	packages relief.PackageRepository,
	allocator *relief.Allocator,
	logger *zap.Logger,
) *AllocationService {
	return &AllocationService{
		items:      items,
		warehouses: warehouses,
		batches:    batches,
		packages:   packages,
		allocator:  allocator,
		logger:     logger,
	}
}

// GetAvailableBatches lists batches with stock left, optionally limited to one
// warehouse and unit of measure.
func (s *AllocationService) GetAvailableBatches(ctx context.Context, itemID uuid.UUID, warehouseID *uuid.UUID, uom string) ([]relief.Batch, error) {
	return s.batches.FindAvailable(ctx, relief.BatchQuery{ItemID: itemID, WarehouseID: warehouseID, UOMCode: uom})
}

// GetEligibleBatches returns available batches in issuance order.
func (s *AllocationService) GetEligibleBatches(ctx context.Context, itemID uuid.UUID, warehouseID *uuid.UUID, uom string) ([]relief.Batch, error) {
	item, err := s.findItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	batches, err := s.GetAvailableBatches(ctx, itemID, warehouseID, uom)
	if err != nil {
		return nil, err
	}
	return s.allocator.SortByAllocationRule(batches, item), nil
}

// AutoAllocate suggests batches for the requested quantity.
func (s *AllocationService) AutoAllocate(ctx context.Context, query AutoAllocateQuery) (*AutoAllocateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "auto_allocate",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, query.ItemID),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, query.RequestedQty),
	)
	defer span.End()
	if query.WarehouseID != nil {
		telemetry.SetAttribute(span, telemetry.SpanAttrWarehouseID, *query.WarehouseID)
	}

	if !query.RequestedQty.IsPositive() {
		return nil, shared.NewDomainError(relief.CodeInvalidQuantity, "Requested quantity must be greater than zero")
	}
	sorted, err := s.GetEligibleBatches(ctx, query.ItemID, query.WarehouseID, query.UOMCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	allocations := s.allocator.AutoAllocate(sorted, query.RequestedQty)
	result := &AutoAllocateResult{
		ItemID:         query.ItemID,
		RequestedQty:   query.RequestedQty,
		TotalAllocated: relief.TotalAllocated(allocations),
		Shortfall:      relief.Shortfall(query.RequestedQty, allocations),
		Allocations:    allocations,
	}
	if result.Shortfall.IsPositive() {
		s.logger.Debug("Auto allocation short",
			zap.String("item_id", query.ItemID.String()),
			zap.String("shortfall", result.Shortfall.String()),
		)
	}
	return result, nil
}

// GetDrawerBatches returns the batches an operator needs to see to fill the
// remaining quantity of one request item. Batches the request's package
// already holds are always listed, even when fully reserved by it.
func (s *AllocationService) GetDrawerBatches(ctx context.Context, query DrawerQuery) (*DrawerView, error) {
	item, err := s.findItem(ctx, query.ItemID)
	if err != nil {
		return nil, err
	}

	current := map[uuid.UUID]decimal.Decimal{}
	pkg, err := s.packages.FindActiveByRequest(ctx, query.RequestID)
	switch {
	case err == nil:
		current = pkg.ItemReservations(query.ItemID)
	case !isNotFound(err):
		return nil, err
	}

	batches, err := s.GetAvailableBatches(ctx, query.ItemID, nil, query.UOMCode)
	if err != nil {
		return nil, err
	}
	batches, err = s.withHeldBatches(ctx, batches, current, query.ItemID)
	if err != nil {
		return nil, err
	}

	limited := s.allocator.LimitForDrawer(batches, item, query.RemainingQty, current)

	groups := make(map[uuid.UUID]int)
	for _, g := range relief.AssignPriorityGroups(s.allocator.SortForDrawer(batches, item, current), item) {
		groups[g.BatchID] = g.Group
	}
	today := s.allocator.Today()

	view := &DrawerView{
		ItemID:         query.ItemID,
		RemainingQty:   query.RemainingQty,
		TotalAvailable: limited.TotalAvailable,
		Shortfall:      limited.Shortfall,
		Batches:        make([]DrawerBatch, 0, len(limited.Batches)),
	}
	for _, b := range limited.Batches {
		view.Batches = append(view.Batches, DrawerBatch{
			DrawerBatch:   b,
			PriorityGroup: groups[b.ID],
			IsExpired:     b.IsExpiredOn(today),
		})
	}
	return view, nil
}

// withHeldBatches adds batches held by the package that FindAvailable skipped
// because nothing is left on them.
func (s *AllocationService) withHeldBatches(ctx context.Context, batches []relief.Batch, held map[uuid.UUID]decimal.Decimal, itemID uuid.UUID) ([]relief.Batch, error) {
	seen := make(map[uuid.UUID]struct{}, len(batches))
	for _, b := range batches {
		seen[b.ID] = struct{}{}
	}
	missing := make([]uuid.UUID, 0)
	for id := range held {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return batches, nil
	}

	extra, err := s.batches.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, b := range extra {
		if b.ItemID == itemID && b.IsActive() {
			batches = append(batches, b)
		}
	}
	return batches, nil
}

// GetBatchDetails returns one batch with its item and warehouse names.
func (s *AllocationService) GetBatchDetails(ctx context.Context, batchID uuid.UUID) (*BatchDetails, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		if isNotFound(err) {
			return nil, relief.NewBatchNotFoundError(batchID)
		}
		return nil, err
	}
	item, err := s.findItem(ctx, batch.ItemID)
	if err != nil {
		return nil, err
	}
	warehouse, err := s.warehouses.FindByID(ctx, batch.WarehouseID)
	if err != nil {
		return nil, err
	}

	today := s.allocator.Today()
	return &BatchDetails{
		Batch:         batch,
		ItemName:      item.Name,
		WarehouseName: warehouse.Name,
		Available:     batch.Available(),
		IsExpired:     batch.IsExpiredOn(today),
		Today:         today,
	}, nil
}

// GetBatchesByWarehouse groups the item's eligible batches by warehouse,
// warehouses ordered by their best batch.
func (s *AllocationService) GetBatchesByWarehouse(ctx context.Context, itemID uuid.UUID) ([]WarehouseBatches, error) {
	sorted, err := s.GetEligibleBatches(ctx, itemID, nil, "")
	if err != nil {
		return nil, err
	}

	groups := make([]WarehouseBatches, 0)
	index := make(map[uuid.UUID]int)
	for _, b := range sorted {
		i, ok := index[b.WarehouseID]
		if !ok {
			i = len(groups)
			index[b.WarehouseID] = i
			groups = append(groups, WarehouseBatches{WarehouseID: b.WarehouseID, TotalAvailable: decimal.Zero})
		}
		groups[i].Batches = append(groups[i].Batches, b)
		groups[i].TotalAvailable = groups[i].TotalAvailable.Add(b.Available())
	}
	if len(groups) == 0 {
		return groups, nil
	}

	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.WarehouseID)
	}
	warehouses, err := s.warehouses.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, w := range warehouses {
		if i, ok := index[w.ID]; ok {
			groups[i].WarehouseName = w.Name
		}
	}
	return groups, nil
}

// ValidateBatchAllocation checks that quantity of itemID may come from batchID
// for requestID. What the request's package already holds on the batch is
// released first.
func (s *AllocationService) ValidateBatchAllocation(ctx context.Context, requestID, batchID, itemID uuid.UUID, quantity decimal.Decimal) error {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		if isNotFound(err) {
			return relief.NewBatchNotFoundError(batchID)
		}
		return err
	}

	own := decimal.Zero
	pkg, err := s.packages.FindActiveByRequest(ctx, requestID)
	switch {
	case err == nil:
		own = pkg.OwnReservation(batchID)
	case !isNotFound(err):
		return err
	}
	return s.allocator.ValidateAllocation(batch, itemID, quantity, own)
}

func (s *AllocationService) findItem(ctx context.Context, itemID uuid.UUID) (*relief.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, notFoundAs(err, "Item", itemID)
	}
	return item, nil
}
