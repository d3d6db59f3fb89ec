package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newSQLiteDB opens a private in-memory database with the relief schema.
// A single connection keeps the database alive for the whole test.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), NewGormConfig(nil))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.ReliefModels()...))
	return db
}

type stockFixture struct {
	item      *relief.Item
	warehouse *relief.Warehouse
}

func seedStock(t *testing.T, db *gorm.DB) stockFixture {
	t.Helper()
	ctx := context.Background()

	item := relief.NewItem("Bottled water 500ml", "EA", true, relief.IssuanceFEFO)
	require.NoError(t, NewGormItemRepository(db).Create(ctx, item))
	warehouse := relief.NewWarehouse("Kingston Central")
	require.NoError(t, NewGormWarehouseRepository(db).Create(ctx, warehouse))
	inv := relief.NewInventory(relief.StockKey{ItemID: item.ID, WarehouseID: warehouse.ID})
	require.NoError(t, NewGormInventoryRepository(db).Create(ctx, inv))

	return stockFixture{item: item, warehouse: warehouse}
}

func (f stockFixture) batch(t *testing.T, db *gorm.DB, batchNo string, usable, reserved int64, expiry *time.Time) *relief.Batch {
	t.Helper()
	no := batchNo
	batchDate := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	b := relief.NewBatch(f.item.ID, f.warehouse.ID, &no, &batchDate, expiry, "EA")
	b.UsableQty = decimal.NewFromInt(usable)
	b.ReservedQty = decimal.NewFromInt(reserved)
	require.NoError(t, NewGormBatchRepository(db).Create(context.Background(), b))
	return b
}

func (f stockFixture) key() relief.StockKey {
	return relief.StockKey{ItemID: f.item.ID, WarehouseID: f.warehouse.ID}
}

func dateUTC(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func qty(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
