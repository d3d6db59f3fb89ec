package relief_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/domain/shared"
	"github.com/drims/backend/internal/infrastructure/persistence"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var farExpiry = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (r *eventRecorder) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

// harness wires the services against a private in-memory sqlite database.
type harness struct {
	ctx    context.Context
	db     *gorm.DB
	clock  *fakeClock
	events *eventRecorder

	items      relief.ItemRepository
	warehouses relief.WarehouseRepository
	batches    relief.BatchRepository
	inventory  relief.InventoryRepository
	packages   relief.PackageRepository
	locks      relief.FulfillmentLockRepository

	ledger     *appRelief.ReservationLedger
	lockSvc    *appRelief.FulfillmentLockService
	packaging  *appRelief.PackagingService
	allocation *appRelief.AllocationService
	intake     *appRelief.IntakeService

	item      *relief.Item
	warehouse *relief.Warehouse
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), persistence.NewGormConfig(nil))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.ReliefModels()...))

	h := &harness{
		ctx:        context.Background(),
		db:         db,
		clock:      &fakeClock{now: time.Now().UTC()},
		events:     &eventRecorder{},
		items:      persistence.NewGormItemRepository(db),
		warehouses: persistence.NewGormWarehouseRepository(db),
		batches:    persistence.NewGormBatchRepository(db),
		inventory:  persistence.NewGormInventoryRepository(db),
		packages:   persistence.NewGormPackageRepository(db),
		locks:      persistence.NewGormFulfillmentLockRepository(db),
	}

	logger := zap.NewNop()
	scope := persistence.NewGormTransactionScope(db)
	allocator := relief.NewAllocator(relief.WithAllocatorClock(h.clock.Now))

	h.ledger = appRelief.NewReservationLedger(scope, h.packages, allocator, logger)
	h.lockSvc = appRelief.NewFulfillmentLockService(scope, h.locks, h.ledger, logger,
		appRelief.WithLockExpiration(time.Hour),
		appRelief.WithLockClock(h.clock.Now),
	)
	h.packaging = appRelief.NewPackagingService(scope, h.packages, h.ledger, h.lockSvc, logger,
		appRelief.WithPackagingClock(h.clock.Now),
		appRelief.WithEventPublisher(h.events),
	)
	h.allocation = appRelief.NewAllocationService(h.items, h.warehouses, h.batches, h.packages, allocator, logger)
	h.intake = appRelief.NewIntakeService(scope, h.ledger, logger)

	h.item = relief.NewItem("Rice 5kg", "BAG", true, relief.IssuanceFEFO)
	require.NoError(t, h.items.Create(h.ctx, h.item))
	h.warehouse = relief.NewWarehouse("Kingston Central")
	require.NoError(t, h.warehouses.Create(h.ctx, h.warehouse))
	return h
}

// receive books usable stock into a new batch through the intake service.
func (h *harness) receive(t *testing.T, warehouse *relief.Warehouse, batchNo string, usable int64, expiry *time.Time) *relief.Batch {
	t.Helper()
	no := batchNo
	batchDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b, err := h.intake.ReceiveStock(h.ctx, appRelief.ReceiveCommand{
		ItemID:      h.item.ID,
		WarehouseID: warehouse.ID,
		BatchNo:     &no,
		BatchDate:   &batchDate,
		ExpiryDate:  expiry,
		Quantity:    decimal.NewFromInt(usable),
	})
	require.NoError(t, err)
	return b
}

func (h *harness) batch(t *testing.T, id uuid.UUID) *relief.Batch {
	t.Helper()
	b, err := h.batches.FindByID(h.ctx, id)
	require.NoError(t, err)
	return b
}

func (h *harness) aggregate(t *testing.T, warehouseID uuid.UUID) *relief.Inventory {
	t.Helper()
	inv, err := h.inventory.FindByStockKey(h.ctx, relief.StockKey{ItemID: h.item.ID, WarehouseID: warehouseID})
	require.NoError(t, err)
	return inv
}

func (h *harness) line(b *relief.Batch, q int64) relief.AllocationLine {
	return relief.AllocationLine{
		ItemID:      b.ItemID,
		WarehouseID: b.WarehouseID,
		BatchID:     b.ID,
		Quantity:    decimal.NewFromInt(q),
		UOMCode:     b.UOMCode,
	}
}

func (h *harness) saveDraft(user relief.LockHolder, requestID uuid.UUID, lines ...relief.AllocationLine) (*relief.ReliefPackage, error) {
	return h.packaging.SaveDraft(h.ctx, appRelief.SaveDraftCommand{
		RequestID: requestID,
		User:      user,
		Lines:     lines,
	})
}

func newUser(name string) relief.LockHolder {
	return relief.LockHolder{UserID: uuid.New(), Name: name, Email: name + "@odpem.example"}
}

func assertQty(t *testing.T, expected int64, actual decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.NewFromInt(expected).Equal(actual), "expected %d, got %s", expected, actual.String())
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code, de.Message)
}
