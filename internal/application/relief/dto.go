package relief

import (
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AutoAllocateQuery asks for a suggested allocation of one item.
type AutoAllocateQuery struct {
	ItemID       uuid.UUID
	RequestedQty decimal.Decimal
	WarehouseID  *uuid.UUID
	UOMCode      string
}

// AutoAllocateResult is the greedy allocation for an AutoAllocateQuery.
type AutoAllocateResult struct {
	ItemID         uuid.UUID           `json:"item_id"`
	RequestedQty   decimal.Decimal     `json:"requested_qty"`
	TotalAllocated decimal.Decimal     `json:"total_allocated"`
	Shortfall      decimal.Decimal     `json:"shortfall"`
	Allocations    []relief.Allocation `json:"allocations"`
}

// DrawerQuery loads the batches an operator picks from for one request item.
type DrawerQuery struct {
	RequestID    uuid.UUID
	ItemID       uuid.UUID
	RemainingQty decimal.Decimal
	UOMCode      string
}

// DrawerBatch is one batch row of the drawer.
type DrawerBatch struct {
	relief.DrawerBatch
	PriorityGroup int  `json:"priority_group"`
	IsExpired     bool `json:"is_expired"`
}

// DrawerView is the limited batch list for a request item.
type DrawerView struct {
	ItemID         uuid.UUID       `json:"item_id"`
	RemainingQty   decimal.Decimal `json:"remaining_qty"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	Shortfall      decimal.Decimal `json:"shortfall"`
	Batches        []DrawerBatch   `json:"batches"`
}

// BatchDetails is a batch joined with its item and warehouse.
type BatchDetails struct {
	Batch         *relief.Batch
	ItemName      string
	WarehouseName string
	Available     decimal.Decimal
	IsExpired     bool
	Today         time.Time
}

// WarehouseBatches groups eligible batches of one warehouse.
type WarehouseBatches struct {
	WarehouseID    uuid.UUID
	WarehouseName  string
	TotalAvailable decimal.Decimal
	Batches        []relief.Batch
}
