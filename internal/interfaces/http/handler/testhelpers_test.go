package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/infrastructure/persistence"
	"github.com/drims/backend/internal/infrastructure/persistence/models"
	"github.com/drims/backend/internal/interfaces/http/dto"
	"github.com/drims/backend/internal/interfaces/http/middleware"
	"github.com/drims/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var farExpiry = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// apiHarness serves the relief API against an in-memory sqlite database.
type apiHarness struct {
	t      *testing.T
	ctx    context.Context
	engine *gin.Engine
	intake *appRelief.IntakeService
	items  relief.ItemRepository

	item      *relief.Item
	warehouse *relief.Warehouse
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), persistence.NewGormConfig(nil))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.ReliefModels()...))

	ctx := context.Background()
	log := zap.NewNop()

	items := persistence.NewGormItemRepository(db)
	warehouses := persistence.NewGormWarehouseRepository(db)
	batches := persistence.NewGormBatchRepository(db)
	packages := persistence.NewGormPackageRepository(db)
	locks := persistence.NewGormFulfillmentLockRepository(db)
	statusRepo := persistence.NewGormItemStatusRepository(db)
	require.NoError(t, statusRepo.Upsert(ctx, []relief.RequestItemStatus{
		{Code: relief.ItemStatusRequested, Description: "REQUESTED", Active: true},
		{Code: relief.ItemStatusUnavailable, Description: "UNAVAILABLE", Active: true},
		{Code: relief.ItemStatusDenied, Description: "DENIED", Active: true},
		{Code: relief.ItemStatusAwaiting, Description: "AWAITING AVAILABILITY", Active: true},
		{Code: relief.ItemStatusPartlyFill, Description: "PARTLY FILLED", Active: true},
		{Code: relief.ItemStatusLimit, Description: "ALLOWED LIMIT", Active: true},
		{Code: relief.ItemStatusFilled, Description: "FILLED", Active: true},
	}))

	scope := persistence.NewGormTransactionScope(db)
	allocator := relief.NewAllocator()
	ledger := appRelief.NewReservationLedger(scope, packages, allocator, log)
	lockSvc := appRelief.NewFulfillmentLockService(scope, locks, ledger, log)
	packaging := appRelief.NewPackagingService(scope, packages, ledger, lockSvc, log)
	allocation := appRelief.NewAllocationService(items, warehouses, batches, packages, allocator, log)
	intake := appRelief.NewIntakeService(scope, ledger, log)
	statuses := appRelief.NewItemStatusService(appRelief.NewStatusCache(statusRepo, log), log)

	engine, err := router.NewEngine(router.EngineConfig{ServiceName: "drims-test"}, log)
	require.NoError(t, err)
	router.NewRouter(engine).
		Register(NewAllocationHandler(allocation, ledger)).
		Register(NewPackageHandler(packaging)).
		Register(NewLockHandler(lockSvc)).
		Register(NewItemStatusHandler(statuses)).
		Register(NewStockHandler(intake)).
		Setup()

	h := &apiHarness{
		t:      t,
		ctx:    ctx,
		engine: engine,
		intake: intake,
		items:  items,
	}
	h.item = relief.NewItem("Tarpaulin 4x6m", "EA", true, relief.IssuanceFEFO)
	require.NoError(t, items.Create(ctx, h.item))
	h.warehouse = relief.NewWarehouse("Montego Bay Depot")
	require.NoError(t, warehouses.Create(ctx, h.warehouse))
	return h
}

// receive books a batch directly through the intake service.
func (h *apiHarness) receive(batchNo string, qty int64, expiry time.Time) *relief.Batch {
	h.t.Helper()
	no := batchNo
	b, err := h.intake.ReceiveStock(h.ctx, appRelief.ReceiveCommand{
		ItemID:      h.item.ID,
		WarehouseID: h.warehouse.ID,
		BatchNo:     &no,
		ExpiryDate:  &expiry,
		Quantity:    decimal.NewFromInt(qty),
	})
	require.NoError(h.t, err)
	return b
}

type apiUser struct {
	ID   uuid.UUID
	Name string
}

func newAPIUser(name string) apiUser {
	return apiUser{ID: uuid.New(), Name: name}
}

// do sends a request as user (nil for anonymous) and decodes the envelope.
func (h *apiHarness) do(method, path string, user *apiUser, body any) (*httptest.ResponseRecorder, dto.Response) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set(middleware.UserIDHeader, user.ID.String())
		req.Header.Set(middleware.UserNameHeader, user.Name)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

// decodeData re-decodes the envelope's data into out.
func decodeData(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func errorCode(resp dto.Response) string {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}
