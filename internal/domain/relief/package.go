package relief

import (
	"fmt"
	"time"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PackageStatus is the lifecycle state of a relief package.
type PackageStatus string

const (
	PackageDraft      PackageStatus = "DRAFT"
	PackageSubmitted  PackageStatus = "SUBMITTED"
	PackageDispatched PackageStatus = "DISPATCHED"
	PackageCancelled  PackageStatus = "CANCELLED"
)

// IsOpen returns true while the package still holds reservations.
func (s PackageStatus) IsOpen() bool {
	return s == PackageDraft || s == PackageSubmitted
}

// AggregateTypeReliefPackage is the aggregate type used in package events.
const AggregateTypeReliefPackage = "ReliefPackage"

// PackageAllocation is one batch line of a relief package.
type PackageAllocation struct {
	PackageID   uuid.UUID
	ItemID      uuid.UUID
	WarehouseID uuid.UUID
	BatchID     uuid.UUID
	Quantity    decimal.Decimal
	UOMCode     string
	ReasonText  string
}

// Key returns the batch ledger key of the line.
func (a PackageAllocation) Key() BatchKey {
	return BatchKey{ItemID: a.ItemID, WarehouseID: a.WarehouseID, BatchID: a.BatchID}
}

// Line converts the stored line back into an allocation request line.
func (a PackageAllocation) Line() AllocationLine {
	return AllocationLine{
		ItemID:      a.ItemID,
		WarehouseID: a.WarehouseID,
		BatchID:     a.BatchID,
		Quantity:    a.Quantity,
		UOMCode:     a.UOMCode,
	}
}

// ReliefPackage groups the allocation lines prepared for one relief request.
// Its lines are the persisted record of what the request has reserved.
type ReliefPackage struct {
	shared.BaseAggregateRoot
	ReliefRequestID uuid.UUID
	ToWarehouseID   *uuid.UUID
	Status          PackageStatus
	StartDate       time.Time
	DispatchedAt    *time.Time
	VerifiedAt      *time.Time
	VerifiedBy      *uuid.UUID
	Allocations     []PackageAllocation
}

// NewReliefPackage opens a draft package for a request.
func NewReliefPackage(requestID uuid.UUID) *ReliefPackage {
	return &ReliefPackage{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ReliefRequestID:   requestID,
		Status:            PackageDraft,
		StartDate:         DateOf(time.Now()),
		Allocations:       make([]PackageAllocation, 0),
	}
}

// BatchQuantities returns the package's reservations per batch key.
func (p *ReliefPackage) BatchQuantities() map[BatchKey]decimal.Decimal {
	return BatchQuantities(p.Lines())
}

// Lines returns the allocation lines in request form.
func (p *ReliefPackage) Lines() []AllocationLine {
	lines := make([]AllocationLine, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		lines = append(lines, a.Line())
	}
	return lines
}

// OwnReservation is what the package holds on a batch.
func (p *ReliefPackage) OwnReservation(batchID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Allocations {
		if a.BatchID == batchID {
			total = total.Add(a.Quantity)
		}
	}
	return total
}

// ItemReservations maps batch IDs to the quantity held for one item.
func (p *ReliefPackage) ItemReservations(itemID uuid.UUID) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, a := range p.Allocations {
		if a.ItemID != itemID {
			continue
		}
		out[a.BatchID] = out[a.BatchID].Add(a.Quantity)
	}
	return out
}

// ReplaceAllocations rebuilds the lines from requested allocations. Lines on
// the same batch are merged and non-positive totals dropped.
func (p *ReliefPackage) ReplaceAllocations(lines []AllocationLine, reason string) error {
	if !p.Status.IsOpen() {
		return p.stateError("change allocations of")
	}
	uom := make(map[BatchKey]string, len(lines))
	for _, l := range lines {
		if _, ok := uom[l.Key()]; !ok {
			uom[l.Key()] = l.UOMCode
		}
	}
	merged := BatchQuantities(lines)
	keys := make([]BatchKey, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	SortBatchKeys(keys)

	p.Allocations = make([]PackageAllocation, 0, len(keys))
	for _, k := range keys {
		p.Allocations = append(p.Allocations, PackageAllocation{
			PackageID:   p.ID,
			ItemID:      k.ItemID,
			WarehouseID: k.WarehouseID,
			BatchID:     k.BatchID,
			Quantity:    merged[k],
			UOMCode:     uom[k],
			ReasonText:  reason,
		})
	}
	return nil
}

// ClearAllocations drops every line, e.g. after reservations were released.
func (p *ReliefPackage) ClearAllocations() {
	p.Allocations = make([]PackageAllocation, 0)
}

// SaveDraft puts a submitted package back into draft.
func (p *ReliefPackage) SaveDraft() error {
	if !p.Status.IsOpen() {
		return p.stateError("save")
	}
	p.Status = PackageDraft
	p.touch()
	return nil
}

// Submit sends a draft package for approval.
func (p *ReliefPackage) Submit() error {
	if p.Status != PackageDraft {
		return p.stateError("submit")
	}
	if len(p.Allocations) == 0 {
		return shared.NewDomainError(CodeInvalidPackageState, "Cannot submit a package without allocations")
	}
	p.Status = PackageSubmitted
	p.touch()
	p.AddDomainEvent(NewPackageSubmittedEvent(p))
	return nil
}

// Dispatch marks a submitted package as shipped. Deducting its lines from
// stock is up to the caller.
func (p *ReliefPackage) Dispatch(at time.Time) error {
	if p.Status != PackageSubmitted {
		return p.stateError("dispatch")
	}
	if len(p.Allocations) == 0 {
		return shared.NewDomainError(CodeInvalidPackageState, "Cannot dispatch a package without allocations")
	}
	at = at.UTC()
	p.Status = PackageDispatched
	p.DispatchedAt = &at
	p.touch()
	p.AddDomainEvent(NewPackageDispatchedEvent(p))
	return nil
}

// Cancel abandons an open package.
func (p *ReliefPackage) Cancel() error {
	if !p.Status.IsOpen() {
		return p.stateError("cancel")
	}
	p.Status = PackageCancelled
	p.touch()
	p.AddDomainEvent(NewPackageCancelledEvent(p))
	return nil
}

func (p *ReliefPackage) touch() {
	p.UpdatedAt = time.Now().UTC()
}

func (p *ReliefPackage) stateError(action string) error {
	return shared.NewDomainError(CodeInvalidPackageState,
		fmt.Sprintf("Cannot %s package in status %s", action, p.Status))
}
