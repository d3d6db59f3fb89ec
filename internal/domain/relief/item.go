package relief

import (
	"github.com/drims/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// IssuanceOrder controls which batch stock leaves first.
type IssuanceOrder string

const (
	IssuanceFEFO IssuanceOrder = "FEFO"
	IssuanceFIFO IssuanceOrder = "FIFO"
	IssuanceLIFO IssuanceOrder = "LIFO"
)

// IsValid reports whether o is a known issuance order.
func (o IssuanceOrder) IsValid() bool {
	switch o {
	case IssuanceFEFO, IssuanceFIFO, IssuanceLIFO:
		return true
	}
	return false
}

// Status codes shared by items, warehouses and batches.
const (
	StatusActive   = "A"
	StatusInactive = "I"
)

// Inventory (warehouse aggregate) status codes.
const (
	InventoryAvailable   = "A"
	InventoryUnavailable = "U"
)

// Item is a catalog entry. The allocation core only reads it.
type Item struct {
	shared.BaseEntity
	Name          string
	CategoryCode  string
	DefaultUOM    string
	IsBatched     bool
	CanExpire     bool
	IssuanceOrder IssuanceOrder
	ReorderQty    decimal.Decimal
	Status        string
}

// NewItem creates an active catalog item.
func NewItem(name, uom string, canExpire bool, order IssuanceOrder) *Item {
	if !order.IsValid() {
		order = IssuanceFIFO
	}
	return &Item{
		BaseEntity:    shared.NewBaseEntity(),
		Name:          name,
		DefaultUOM:    uom,
		IsBatched:     true,
		CanExpire:     canExpire,
		IssuanceOrder: order,
		ReorderQty:    decimal.Zero,
		Status:        StatusActive,
	}
}

// UsesFEFO is true only for expiring items configured for FEFO; FEFO on a
// non-expiring item degrades to FIFO.
func (i *Item) UsesFEFO() bool {
	return i.CanExpire && i.IssuanceOrder == IssuanceFEFO
}
