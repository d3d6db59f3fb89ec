package relief

import (
	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypePackageSubmitted  = "PackageSubmitted"
	EventTypePackageDispatched = "PackageDispatched"
	EventTypePackageCancelled  = "PackageCancelled"
)

// PackageLineSnapshot is the line data carried by package events.
type PackageLineSnapshot struct {
	ItemID      uuid.UUID       `json:"item_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	BatchID     uuid.UUID       `json:"batch_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

func snapshotLines(p *ReliefPackage) []PackageLineSnapshot {
	out := make([]PackageLineSnapshot, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		out = append(out, PackageLineSnapshot{
			ItemID:      a.ItemID,
			WarehouseID: a.WarehouseID,
			BatchID:     a.BatchID,
			Quantity:    a.Quantity,
		})
	}
	return out
}

// PackageSubmittedEvent is raised when a draft goes for approval.
type PackageSubmittedEvent struct {
	shared.BaseDomainEvent
	ReliefRequestID uuid.UUID             `json:"relief_request_id"`
	Lines           []PackageLineSnapshot `json:"lines"`
}

// NewPackageSubmittedEvent creates a new PackageSubmittedEvent
func NewPackageSubmittedEvent(p *ReliefPackage) *PackageSubmittedEvent {
	return &PackageSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePackageSubmitted, AggregateTypeReliefPackage, p.ID),
		ReliefRequestID: p.ReliefRequestID,
		Lines:           snapshotLines(p),
	}
}

// PackageDispatchedEvent is raised once reserved stock became a permanent
// deduction.
type PackageDispatchedEvent struct {
	shared.BaseDomainEvent
	ReliefRequestID uuid.UUID             `json:"relief_request_id"`
	Lines           []PackageLineSnapshot `json:"lines"`
}

// NewPackageDispatchedEvent creates a new PackageDispatchedEvent
func NewPackageDispatchedEvent(p *ReliefPackage) *PackageDispatchedEvent {
	return &PackageDispatchedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePackageDispatched, AggregateTypeReliefPackage, p.ID),
		ReliefRequestID: p.ReliefRequestID,
		Lines:           snapshotLines(p),
	}
}

// PackageCancelledEvent is raised when a package is abandoned.
type PackageCancelledEvent struct {
	shared.BaseDomainEvent
	ReliefRequestID uuid.UUID `json:"relief_request_id"`
}

// NewPackageCancelledEvent creates a new PackageCancelledEvent
func NewPackageCancelledEvent(p *ReliefPackage) *PackageCancelledEvent {
	return &PackageCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePackageCancelled, AggregateTypeReliefPackage, p.ID),
		ReliefRequestID: p.ReliefRequestID,
	}
}
