package handler

import (
	"time"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dateLayout renders batch, expiry and start dates.
const dateLayout = "2006-01-02"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// BatchResponse is a batch as shown to operators.
type BatchResponse struct {
	ID           uuid.UUID       `json:"id"`
	ItemID       uuid.UUID       `json:"item_id"`
	WarehouseID  uuid.UUID       `json:"warehouse_id"`
	BatchNo      *string         `json:"batch_no,omitempty"`
	BatchDate    *string         `json:"batch_date,omitempty"`
	ExpiryDate   *string         `json:"expiry_date,omitempty"`
	UsableQty    decimal.Decimal `json:"usable_qty"`
	ReservedQty  decimal.Decimal `json:"reserved_qty"`
	AvailableQty decimal.Decimal `json:"available_qty"`
	DefectiveQty decimal.Decimal `json:"defective_qty"`
	ExpiredQty   decimal.Decimal `json:"expired_qty"`
	UOMCode      string          `json:"uom_code"`
	Status       string          `json:"status"`
	Version      int             `json:"version"`
}

func toBatchResponse(b *relief.Batch) BatchResponse {
	return BatchResponse{
		ID:           b.ID,
		ItemID:       b.ItemID,
		WarehouseID:  b.WarehouseID,
		BatchNo:      b.BatchNo,
		BatchDate:    formatDate(b.BatchDate),
		ExpiryDate:   formatDate(b.ExpiryDate),
		UsableQty:    b.UsableQty,
		ReservedQty:  b.ReservedQty,
		AvailableQty: b.Available(),
		DefectiveQty: b.DefectiveQty,
		ExpiredQty:   b.ExpiredQty,
		UOMCode:      b.UOMCode,
		Status:       b.Status,
		Version:      b.Version,
	}
}

func toBatchResponses(batches []relief.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for i := range batches {
		out = append(out, toBatchResponse(&batches[i]))
	}
	return out
}

// BatchDetailsResponse adds item and warehouse names to a batch.
type BatchDetailsResponse struct {
	BatchResponse
	ItemName      string `json:"item_name"`
	WarehouseName string `json:"warehouse_name"`
	IsExpired     bool   `json:"is_expired"`
}

// AllocationResponse is one line of an automatic allocation.
type AllocationResponse struct {
	BatchID      uuid.UUID       `json:"batch_id"`
	BatchNo      *string         `json:"batch_no,omitempty"`
	ItemID       uuid.UUID       `json:"item_id"`
	WarehouseID  uuid.UUID       `json:"warehouse_id"`
	BatchDate    *string         `json:"batch_date,omitempty"`
	ExpiryDate   *string         `json:"expiry_date,omitempty"`
	AvailableQty decimal.Decimal `json:"available_qty"`
	AllocatedQty decimal.Decimal `json:"allocated_qty"`
	UOMCode      string          `json:"uom_code"`
}

// AutoAllocateResponse is the suggested allocation for one item.
type AutoAllocateResponse struct {
	ItemID         uuid.UUID            `json:"item_id"`
	RequestedQty   decimal.Decimal      `json:"requested_qty"`
	TotalAllocated decimal.Decimal      `json:"total_allocated"`
	Shortfall      decimal.Decimal      `json:"shortfall"`
	Allocations    []AllocationResponse `json:"allocations"`
}

func toAutoAllocateResponse(r *appRelief.AutoAllocateResult) AutoAllocateResponse {
	resp := AutoAllocateResponse{
		ItemID:         r.ItemID,
		RequestedQty:   r.RequestedQty,
		TotalAllocated: r.TotalAllocated,
		Shortfall:      r.Shortfall,
		Allocations:    make([]AllocationResponse, 0, len(r.Allocations)),
	}
	for _, a := range r.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			BatchID:      a.BatchID,
			BatchNo:      a.BatchNo,
			ItemID:       a.ItemID,
			WarehouseID:  a.WarehouseID,
			BatchDate:    formatDate(a.BatchDate),
			ExpiryDate:   formatDate(a.ExpiryDate),
			AvailableQty: a.AvailableQty,
			AllocatedQty: a.AllocatedQty,
			UOMCode:      a.UOMCode,
		})
	}
	return resp
}

// DrawerBatchResponse is a drawer row with the request's own share on it.
type DrawerBatchResponse struct {
	BatchResponse
	EffectiveAvailable decimal.Decimal `json:"effective_available"`
	OwnQty             decimal.Decimal `json:"own_qty"`
	Allocated          bool            `json:"allocated"`
	PriorityGroup      int             `json:"priority_group"`
	IsExpired          bool            `json:"is_expired"`
}

// DrawerResponse is the batch drawer of one request item.
type DrawerResponse struct {
	ItemID         uuid.UUID             `json:"item_id"`
	RemainingQty   decimal.Decimal       `json:"remaining_qty"`
	TotalAvailable decimal.Decimal       `json:"total_available"`
	Shortfall      decimal.Decimal       `json:"shortfall"`
	Batches        []DrawerBatchResponse `json:"batches"`
}

func toDrawerResponse(v *appRelief.DrawerView) DrawerResponse {
	resp := DrawerResponse{
		ItemID:         v.ItemID,
		RemainingQty:   v.RemainingQty,
		TotalAvailable: v.TotalAvailable,
		Shortfall:      v.Shortfall,
		Batches:        make([]DrawerBatchResponse, 0, len(v.Batches)),
	}
	for i := range v.Batches {
		b := v.Batches[i]
		resp.Batches = append(resp.Batches, DrawerBatchResponse{
			BatchResponse:      toBatchResponse(&b.Batch),
			EffectiveAvailable: b.AvailableQty,
			OwnQty:             b.OwnQty,
			Allocated:          b.Allocated,
			PriorityGroup:      b.PriorityGroup,
			IsExpired:          b.IsExpired,
		})
	}
	return resp
}

// WarehouseBatchesResponse groups one warehouse's eligible batches.
type WarehouseBatchesResponse struct {
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	WarehouseName  string          `json:"warehouse_name"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	Batches        []BatchResponse `json:"batches"`
}

// PackageLineResponse is one batch line of a relief package.
type PackageLineResponse struct {
	ItemID      uuid.UUID       `json:"item_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	BatchID     uuid.UUID       `json:"batch_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UOMCode     string          `json:"uom_code"`
	ReasonText  string          `json:"reason_text,omitempty"`
}

// PackageResponse is a relief package with its lines.
type PackageResponse struct {
	ID              uuid.UUID             `json:"id"`
	ReliefRequestID uuid.UUID             `json:"relief_request_id"`
	ToWarehouseID   *uuid.UUID            `json:"to_warehouse_id,omitempty"`
	Status          string                `json:"status"`
	StartDate       string                `json:"start_date"`
	DispatchedAt    *time.Time            `json:"dispatched_at,omitempty"`
	VerifiedAt      *time.Time            `json:"verified_at,omitempty"`
	VerifiedBy      *uuid.UUID            `json:"verified_by,omitempty"`
	Version         int                   `json:"version"`
	Lines           []PackageLineResponse `json:"lines"`
}

func toPackageResponse(p *relief.ReliefPackage) PackageResponse {
	resp := PackageResponse{
		ID:              p.ID,
		ReliefRequestID: p.ReliefRequestID,
		ToWarehouseID:   p.ToWarehouseID,
		Status:          string(p.Status),
		StartDate:       p.StartDate.Format(dateLayout),
		DispatchedAt:    p.DispatchedAt,
		VerifiedAt:      p.VerifiedAt,
		VerifiedBy:      p.VerifiedBy,
		Version:         p.Version,
		Lines:           make([]PackageLineResponse, 0, len(p.Allocations)),
	}
	for _, a := range p.Allocations {
		resp.Lines = append(resp.Lines, PackageLineResponse{
			ItemID:      a.ItemID,
			WarehouseID: a.WarehouseID,
			BatchID:     a.BatchID,
			Quantity:    a.Quantity,
			UOMCode:     a.UOMCode,
			ReasonText:  a.ReasonText,
		})
	}
	return resp
}

// LockResponse describes a fulfillment lock.
type LockResponse struct {
	ReliefRequestID uuid.UUID  `json:"relief_request_id"`
	UserID          uuid.UUID  `json:"user_id"`
	UserName        string     `json:"user_name,omitempty"`
	UserEmail       string     `json:"user_email,omitempty"`
	AcquiredAt      time.Time  `json:"acquired_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

func toLockResponse(l *relief.FulfillmentLock) *LockResponse {
	if l == nil {
		return nil
	}
	return &LockResponse{
		ReliefRequestID: l.ReliefRequestID,
		UserID:          l.UserID,
		UserName:        l.UserName,
		UserEmail:       l.UserEmail,
		AcquiredAt:      l.AcquiredAt,
		ExpiresAt:       l.ExpiresAt,
	}
}

// ReservationResponse is the quantity a request holds on one key. BatchID is
// set on batch-level rows only.
type ReservationResponse struct {
	ItemID      uuid.UUID       `json:"item_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	BatchID     *uuid.UUID      `json:"batch_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}
