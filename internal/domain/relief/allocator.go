package relief

import (
	"fmt"
	"time"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocator selects batches for a requested quantity.
//
// It is a pure domain service: it never touches storage and takes "today"
// from an injectable clock, so every decision it makes is reproducible.
//
//   - SortByAllocationRule applies the item's issuance order (FEFO/FIFO/LIFO)
//     and drops expired or exhausted batches.
//   - AutoAllocate walks a sorted list greedily.
//   - LimitForDrawer trims the list an operator reviews, stopping per
//     warehouse once the remaining quantity is covered.
//   - ValidateAllocation checks one operator-chosen batch.
type Allocator struct {
	clock func() time.Time
}

// AllocatorOption configures an Allocator
type AllocatorOption func(*Allocator)

// WithAllocatorClock overrides the clock used to decide expiry.
func WithAllocatorClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) {
		a.clock = now
	}
}

// NewAllocator creates an Allocator
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Today returns the current calendar day in UTC.
func (a *Allocator) Today() time.Time {
	return DateOf(a.clock())
}

// SortByAllocationRule filters and orders batches by the item's issuance rule.
// Expired batches are dropped for expiring items; a batch without expiry date
// is always eligible. Batches with nothing available are dropped as well.
func (a *Allocator) SortByAllocationRule(batches []Batch, item *Item) []Batch {
	today := a.Today()
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if item.CanExpire && b.IsExpiredOn(today) {
			continue
		}
		if !b.Available().IsPositive() {
			continue
		}
		out = append(out, b)
	}
	sortBatches(out, orderingFor(item))
	return out
}

// SortForDrawer orders batches for interactive selection: FEFO when the item
// can expire, FIFO otherwise. Batches fully reserved are kept because the
// current package may hold them. Expired batches are dropped unless held
// lists them, so a package can still give back what it took before expiry.
func (a *Allocator) SortForDrawer(batches []Batch, item *Item, held map[uuid.UUID]decimal.Decimal) []Batch {
	today := a.Today()
	out := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if _, ok := held[b.ID]; !ok && item.CanExpire && b.IsExpiredOn(today) {
			continue
		}
		out = append(out, b)
	}
	sortBatches(out, drawerOrderingFor(item))
	return out
}

// Allocation is the quantity taken from one batch.
type Allocation struct {
	BatchID      uuid.UUID
	BatchNo      *string
	ItemID       uuid.UUID
	WarehouseID  uuid.UUID
	BatchDate    *time.Time
	ExpiryDate   *time.Time
	AvailableQty decimal.Decimal
	AllocatedQty decimal.Decimal
	UOMCode      string
}

// Line converts the allocation into a reservation request line.
func (a Allocation) Line() AllocationLine {
	return AllocationLine{
		ItemID:      a.ItemID,
		WarehouseID: a.WarehouseID,
		BatchID:     a.BatchID,
		Quantity:    a.AllocatedQty,
		UOMCode:     a.UOMCode,
	}
}

// AutoAllocate takes min(available, remaining) from each batch in order until
// the request is met or batches run out. Detecting a shortfall is up to the
// caller.
func (a *Allocator) AutoAllocate(sorted []Batch, requested decimal.Decimal) []Allocation {
	allocations := make([]Allocation, 0)
	remaining := requested
	for i := range sorted {
		if !remaining.IsPositive() {
			break
		}
		b := &sorted[i]
		available := b.Available()
		take := decimal.Min(available, remaining)
		if !take.IsPositive() {
			continue
		}
		allocations = append(allocations, Allocation{
			BatchID:      b.ID,
			BatchNo:      b.BatchNo,
			ItemID:       b.ItemID,
			WarehouseID:  b.WarehouseID,
			BatchDate:    b.BatchDate,
			ExpiryDate:   b.ExpiryDate,
			AvailableQty: available,
			AllocatedQty: take,
			UOMCode:      b.UOMCode,
		})
		remaining = remaining.Sub(take)
	}
	return allocations
}

// TotalAllocated sums the allocated quantities.
func TotalAllocated(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.AllocatedQty)
	}
	return total
}

// Shortfall is the part of requested left uncovered, never negative.
func Shortfall(requested decimal.Decimal, allocations []Allocation) decimal.Decimal {
	return decimal.Max(decimal.Zero, requested.Sub(TotalAllocated(allocations)))
}

// DrawerBatch is a batch offered in the drawer with its effective
// availability for the current package.
type DrawerBatch struct {
	Batch
	AvailableQty decimal.Decimal
	OwnQty       decimal.Decimal
	Allocated    bool
}

// DrawerResult is the limited batch set shown to the operator.
type DrawerResult struct {
	Batches        []DrawerBatch
	TotalAvailable decimal.Decimal
	Shortfall      decimal.Decimal
}

// LimitForDrawer picks the batches an operator needs to see to cover
// remaining. current maps batch IDs to what the package already holds; that
// amount is released before availability is computed, so a batch fully
// reserved by this same package does not look empty.
//
// Per warehouse, batches are taken in drawer order until the warehouse's
// cumulative availability reaches remaining. Batches held by the package are
// always kept, expired ones with nothing available. A warehouse with nothing
// available and no held batch is skipped entirely.
func (a *Allocator) LimitForDrawer(batches []Batch, item *Item, remaining decimal.Decimal, current map[uuid.UUID]decimal.Decimal) DrawerResult {
	today := a.Today()
	sorted := a.SortForDrawer(batches, item, current)

	order := make([]uuid.UUID, 0)
	byWarehouse := make(map[uuid.UUID][]DrawerBatch)
	for _, b := range sorted {
		own, held := current[b.ID]
		db := DrawerBatch{
			Batch:        b,
			AvailableQty: b.AvailableReleasing(own),
			OwnQty:       own,
			Allocated:    held,
		}
		if item.CanExpire && b.IsExpiredOn(today) {
			db.AvailableQty = decimal.Zero
		}
		if _, ok := byWarehouse[b.WarehouseID]; !ok {
			order = append(order, b.WarehouseID)
		}
		byWarehouse[b.WarehouseID] = append(byWarehouse[b.WarehouseID], db)
	}

	result := DrawerResult{
		Batches:        make([]DrawerBatch, 0),
		TotalAvailable: decimal.Zero,
	}
	for _, warehouseID := range order {
		candidates := byWarehouse[warehouseID]

		total := decimal.Zero
		anyHeld := false
		for _, c := range candidates {
			total = total.Add(c.AvailableQty)
			anyHeld = anyHeld || c.Allocated
		}
		if !total.IsPositive() && !anyHeld {
			continue
		}

		cumulative := decimal.Zero
		for _, c := range candidates {
			covered := cumulative.GreaterThanOrEqual(remaining)
			if !c.Allocated && (covered || !c.AvailableQty.IsPositive()) {
				continue
			}
			result.Batches = append(result.Batches, c)
			cumulative = cumulative.Add(c.AvailableQty)
		}
		result.TotalAvailable = result.TotalAvailable.Add(cumulative)
	}
	result.Shortfall = decimal.Max(decimal.Zero, remaining.Sub(result.TotalAvailable))
	return result
}

// PriorityGroup tags a batch with the group of equally prioritised batches it
// belongs to.
type PriorityGroup struct {
	BatchID uuid.UUID
	Group   int
}

// AssignPriorityGroups walks sorted batches and starts a new group whenever
// the priority key changes. The key is (expiry, batch date) for FEFO items and
// the batch date alone otherwise.
func AssignPriorityGroups(sorted []Batch, item *Item) []PriorityGroup {
	groups := make([]PriorityGroup, 0, len(sorted))
	fefo := item.UsesFEFO()
	group := 0
	for i := range sorted {
		if i > 0 {
			prev, cur := &sorted[i-1], &sorted[i]
			same := sameDate(prev.BatchDate, cur.BatchDate)
			if fefo {
				same = same && sameDate(prev.ExpiryDate, cur.ExpiryDate)
			}
			if !same {
				group++
			}
		}
		groups = append(groups, PriorityGroup{BatchID: sorted[i].ID, Group: group})
	}
	return groups
}

// ValidateAllocation checks that quantity may be taken from batch for itemID.
// ownReservation is what the current package already holds on this batch and
// is released before availability is checked; pass zero for a new package.
func (a *Allocator) ValidateAllocation(batch *Batch, itemID uuid.UUID, quantity, ownReservation decimal.Decimal) error {
	if batch.ItemID != itemID {
		return shared.NewDomainError(CodeBatchItemMismatch,
			fmt.Sprintf("Batch %s does not contain item %s", batch.ID, itemID))
	}
	if !batch.IsActive() {
		return shared.NewDomainError(CodeBatchInactive,
			fmt.Sprintf("Batch %s is not available (status: %s)", batch.Label(), batch.Status))
	}
	if batch.IsExpiredOn(a.Today()) {
		return shared.NewDomainError(CodeBatchExpired,
			fmt.Sprintf("Batch %s is expired (expiry: %s)", batch.Label(), batch.ExpiryDate.Format(time.DateOnly)))
	}
	if !quantity.IsPositive() {
		return shared.NewDomainError(CodeInvalidQuantity, "Allocated quantity must be greater than zero")
	}
	available := batch.AvailableReleasing(ownReservation)
	if quantity.GreaterThan(available) {
		return shared.NewDomainError(CodeInsufficientStock, fmt.Sprintf(
			"Batch %s has only %s units available, cannot allocate %s",
			batch.Label(), qty(available), qty(quantity)))
	}
	return nil
}
