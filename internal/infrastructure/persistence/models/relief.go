package models

import (
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemModel is the persistence model for catalog items.
type ItemModel struct {
	BaseModel
	Name          string          `gorm:"type:varchar(200);not null"`
	CategoryCode  string          `gorm:"type:varchar(30)"`
	DefaultUOM    string          `gorm:"column:default_uom_code;type:varchar(25);not null"`
	IsBatched     bool            `gorm:"not null"`
	CanExpire     bool            `gorm:"not null;default:false"`
	IssuanceOrder string          `gorm:"type:varchar(20);not null;default:'FIFO'"`
	ReorderQty    decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	Status        string          `gorm:"type:char(1);not null;default:'A'"`
}

func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the persistence model to a domain Item.
func (m *ItemModel) ToDomain() *relief.Item {
	return &relief.Item{
		BaseEntity:    m.BaseModel.entity(),
		Name:          m.Name,
		CategoryCode:  m.CategoryCode,
		DefaultUOM:    m.DefaultUOM,
		IsBatched:     m.IsBatched,
		CanExpire:     m.CanExpire,
		IssuanceOrder: relief.IssuanceOrder(m.IssuanceOrder),
		ReorderQty:    m.ReorderQty,
		Status:        m.Status,
	}
}

// FromDomain populates the persistence model from a domain Item.
func (m *ItemModel) FromDomain(i *relief.Item) {
	m.BaseModel = baseModelOf(i.BaseEntity)
	m.Name = i.Name
	m.CategoryCode = i.CategoryCode
	m.DefaultUOM = i.DefaultUOM
	m.IsBatched = i.IsBatched
	m.CanExpire = i.CanExpire
	m.IssuanceOrder = string(i.IssuanceOrder)
	m.ReorderQty = i.ReorderQty
	m.Status = i.Status
}

// WarehouseModel is the persistence model for warehouses.
type WarehouseModel struct {
	BaseModel
	Name   string `gorm:"type:varchar(200);not null"`
	Status string `gorm:"type:char(1);not null;default:'A'"`
}

func (WarehouseModel) TableName() string {
	return "warehouses"
}

func (m *WarehouseModel) ToDomain() *relief.Warehouse {
	return &relief.Warehouse{
		BaseEntity: m.BaseModel.entity(),
		Name:       m.Name,
		Status:     m.Status,
	}
}

func (m *WarehouseModel) FromDomain(w *relief.Warehouse) {
	m.BaseModel = baseModelOf(w.BaseEntity)
	m.Name = w.Name
	m.Status = w.Status
}

// BatchModel is the persistence model for item batches.
type BatchModel struct {
	AggregateModel
	ItemID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_item_batches_stock,priority:1"`
	WarehouseID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_item_batches_stock,priority:2"`
	BatchNo      *string         `gorm:"type:varchar(30)"`
	BatchDate    *time.Time      `gorm:"type:date"`
	ExpiryDate   *time.Time      `gorm:"type:date"`
	UsableQty    decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	ReservedQty  decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	DefectiveQty decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	ExpiredQty   decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	UOMCode      string          `gorm:"column:uom_code;type:varchar(25);not null"`
	Status       string          `gorm:"type:char(1);not null;default:'A'"`
}

func (BatchModel) TableName() string {
	return "item_batches"
}

// ToDomain converts the persistence model to a domain Batch. Dates come back
// at UTC midnight regardless of how the driver decoded them.
func (m *BatchModel) ToDomain() *relief.Batch {
	return &relief.Batch{
		BaseAggregateRoot: m.AggregateModel.root(),
		ItemID:            m.ItemID,
		WarehouseID:       m.WarehouseID,
		BatchNo:           m.BatchNo,
		BatchDate:         optionalDate(m.BatchDate),
		ExpiryDate:        optionalDate(m.ExpiryDate),
		UsableQty:         m.UsableQty,
		ReservedQty:       m.ReservedQty,
		DefectiveQty:      m.DefectiveQty,
		ExpiredQty:        m.ExpiredQty,
		UOMCode:           m.UOMCode,
		Status:            m.Status,
	}
}

func (m *BatchModel) FromDomain(b *relief.Batch) {
	m.AggregateModel = aggregateModelOf(b.BaseAggregateRoot)
	m.ItemID = b.ItemID
	m.WarehouseID = b.WarehouseID
	m.BatchNo = b.BatchNo
	m.BatchDate = optionalDate(b.BatchDate)
	m.ExpiryDate = optionalDate(b.ExpiryDate)
	m.UsableQty = b.UsableQty
	m.ReservedQty = b.ReservedQty
	m.DefectiveQty = b.DefectiveQty
	m.ExpiredQty = b.ExpiredQty
	m.UOMCode = b.UOMCode
	m.Status = b.Status
}

// QuantityUpdates is the column set written back when a batch changes.
func (m *BatchModel) QuantityUpdates() map[string]any {
	return map[string]any{
		"usable_qty":    m.UsableQty,
		"reserved_qty":  m.ReservedQty,
		"defective_qty": m.DefectiveQty,
		"expired_qty":   m.ExpiredQty,
		"status":        m.Status,
	}
}

// InventoryModel is the per (item, warehouse) stock aggregate.
type InventoryModel struct {
	AggregateModel
	ItemID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventories_item_warehouse,priority:1"`
	WarehouseID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventories_item_warehouse,priority:2"`
	UsableQty    decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	ReservedQty  decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	DefectiveQty decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	ExpiredQty   decimal.Decimal `gorm:"type:decimal(15,4);not null;default:0"`
	Status       string          `gorm:"type:char(1);not null;default:'A'"`
}

func (InventoryModel) TableName() string {
	return "inventories"
}

func (m *InventoryModel) ToDomain() *relief.Inventory {
	return &relief.Inventory{
		BaseAggregateRoot: m.AggregateModel.root(),
		ItemID:            m.ItemID,
		WarehouseID:       m.WarehouseID,
		UsableQty:         m.UsableQty,
		ReservedQty:       m.ReservedQty,
		DefectiveQty:      m.DefectiveQty,
		ExpiredQty:        m.ExpiredQty,
		Status:            m.Status,
	}
}

func (m *InventoryModel) FromDomain(inv *relief.Inventory) {
	m.AggregateModel = aggregateModelOf(inv.BaseAggregateRoot)
	m.ItemID = inv.ItemID
	m.WarehouseID = inv.WarehouseID
	m.UsableQty = inv.UsableQty
	m.ReservedQty = inv.ReservedQty
	m.DefectiveQty = inv.DefectiveQty
	m.ExpiredQty = inv.ExpiredQty
	m.Status = inv.Status
}

func (m *InventoryModel) QuantityUpdates() map[string]any {
	return map[string]any{
		"usable_qty":    m.UsableQty,
		"reserved_qty":  m.ReservedQty,
		"defective_qty": m.DefectiveQty,
		"expired_qty":   m.ExpiredQty,
		"status":        m.Status,
	}
}

// ReliefPackageModel is the persistence model for relief packages.
type ReliefPackageModel struct {
	AggregateModel
	ReliefRequestID uuid.UUID  `gorm:"type:uuid;not null;index"`
	ToWarehouseID   *uuid.UUID `gorm:"type:uuid"`
	Status          string     `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	StartDate       time.Time  `gorm:"type:date;not null"`
	DispatchedAt    *time.Time
	VerifiedAt      *time.Time
	VerifiedBy      *uuid.UUID `gorm:"type:uuid"`
	// Associations
	Items []PackageItemModel `gorm:"foreignKey:PackageID;references:ID"`
}

func (ReliefPackageModel) TableName() string {
	return "relief_packages"
}

func (m *ReliefPackageModel) ToDomain() *relief.ReliefPackage {
	pkg := &relief.ReliefPackage{
		BaseAggregateRoot: m.AggregateModel.root(),
		ReliefRequestID:   m.ReliefRequestID,
		ToWarehouseID:     m.ToWarehouseID,
		Status:            relief.PackageStatus(m.Status),
		StartDate:         relief.DateOf(m.StartDate),
		DispatchedAt:      utcPtr(m.DispatchedAt),
		VerifiedAt:        utcPtr(m.VerifiedAt),
		VerifiedBy:        m.VerifiedBy,
		Allocations:       make([]relief.PackageAllocation, len(m.Items)),
	}
	for i, item := range m.Items {
		pkg.Allocations[i] = item.ToDomain()
	}
	return pkg
}

func (m *ReliefPackageModel) FromDomain(p *relief.ReliefPackage) {
	m.AggregateModel = aggregateModelOf(p.BaseAggregateRoot)
	m.ReliefRequestID = p.ReliefRequestID
	m.ToWarehouseID = p.ToWarehouseID
	m.Status = string(p.Status)
	m.StartDate = relief.DateOf(p.StartDate)
	m.DispatchedAt = utcPtr(p.DispatchedAt)
	m.VerifiedAt = utcPtr(p.VerifiedAt)
	m.VerifiedBy = p.VerifiedBy
	m.Items = make([]PackageItemModel, len(p.Allocations))
	for i, a := range p.Allocations {
		m.Items[i] = PackageItemModelFromDomain(a)
		m.Items[i].PackageID = p.ID
	}
}

// HeaderUpdates is the column set written under the version guard.
func (m *ReliefPackageModel) HeaderUpdates() map[string]any {
	return map[string]any{
		"to_warehouse_id": m.ToWarehouseID,
		"status":          m.Status,
		"dispatched_at":   m.DispatchedAt,
		"verified_at":     m.VerifiedAt,
		"verified_by":     m.VerifiedBy,
	}
}

// PackageItemModel is one allocation line; a package holds at most one line
// per batch.
type PackageItemModel struct {
	PackageID   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BatchID     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ItemID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity    decimal.Decimal `gorm:"column:item_qty;type:decimal(15,4);not null"`
	UOMCode     string          `gorm:"column:uom_code;type:varchar(25);not null"`
	ReasonText  string          `gorm:"type:varchar(255)"`
}

func (PackageItemModel) TableName() string {
	return "relief_package_items"
}

func (m PackageItemModel) ToDomain() relief.PackageAllocation {
	return relief.PackageAllocation{
		PackageID:   m.PackageID,
		ItemID:      m.ItemID,
		WarehouseID: m.WarehouseID,
		BatchID:     m.BatchID,
		Quantity:    m.Quantity,
		UOMCode:     m.UOMCode,
		ReasonText:  m.ReasonText,
	}
}

func PackageItemModelFromDomain(a relief.PackageAllocation) PackageItemModel {
	return PackageItemModel{
		PackageID:   a.PackageID,
		BatchID:     a.BatchID,
		ItemID:      a.ItemID,
		WarehouseID: a.WarehouseID,
		Quantity:    a.Quantity,
		UOMCode:     a.UOMCode,
		ReasonText:  a.ReasonText,
	}
}

// FulfillmentLockModel enforces one lock per relief request through its
// unique index.
type FulfillmentLockModel struct {
	BaseModel
	ReliefRequestID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null"`
	UserName        string     `gorm:"type:varchar(200)"`
	UserEmail       string     `gorm:"type:varchar(200)"`
	AcquiredAt      time.Time  `gorm:"not null"`
	ExpiresAt       *time.Time `gorm:"index"`
}

func (FulfillmentLockModel) TableName() string {
	return "fulfillment_locks"
}

func (m *FulfillmentLockModel) ToDomain() *relief.FulfillmentLock {
	return &relief.FulfillmentLock{
		BaseEntity:      m.BaseModel.entity(),
		ReliefRequestID: m.ReliefRequestID,
		UserID:          m.UserID,
		UserName:        m.UserName,
		UserEmail:       m.UserEmail,
		AcquiredAt:      m.AcquiredAt.UTC(),
		ExpiresAt:       utcPtr(m.ExpiresAt),
	}
}

func (m *FulfillmentLockModel) FromDomain(l *relief.FulfillmentLock) {
	m.BaseModel = baseModelOf(l.BaseEntity)
	m.ReliefRequestID = l.ReliefRequestID
	m.UserID = l.UserID
	m.UserName = l.UserName
	m.UserEmail = l.UserEmail
	m.AcquiredAt = l.AcquiredAt.UTC()
	m.ExpiresAt = utcPtr(l.ExpiresAt)
}

// RequestItemStatusModel is a row of the item status reference table.
type RequestItemStatusModel struct {
	Code        string `gorm:"column:item_status_code;type:char(1);primaryKey"`
	Description string `gorm:"column:status_desc;type:varchar(30);not null"`
	QtyRule     string `gorm:"column:item_qty_rule;type:char(2)"`
	Active      bool   `gorm:"column:active_flag;not null"`
}

func (RequestItemStatusModel) TableName() string {
	return "request_item_statuses"
}

func (m *RequestItemStatusModel) ToDomain() relief.RequestItemStatus {
	return relief.RequestItemStatus{
		Code:        m.Code,
		Description: m.Description,
		QtyRule:     m.QtyRule,
		Active:      m.Active,
	}
}

func (m *RequestItemStatusModel) FromDomain(s relief.RequestItemStatus) {
	m.Code = s.Code
	m.Description = s.Description
	m.QtyRule = s.QtyRule
	m.Active = s.Active
}

// ReliefModels lists every model owned by the allocation core, in
// dependency order.
func ReliefModels() []any {
	return []any{
		&ItemModel{},
		&WarehouseModel{},
		&BatchModel{},
		&InventoryModel{},
		&ReliefPackageModel{},
		&PackageItemModel{},
		&FulfillmentLockModel{},
		&RequestItemStatusModel{},
	}
}


func optionalDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := relief.DateOf(*t)
	return &d
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
