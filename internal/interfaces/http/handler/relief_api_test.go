package handler

import (
	"net/http"
	"testing"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func TestLockEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	ana := newAPIUser("Ana Campbell")
	ben := newAPIUser("Ben Reid")
	path := "/relief-requests/" + uuid.NewString() + "/lock"

	w, _ := h.do(http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := h.do(http.MethodPost, path, &ana, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var acquired AcquireResponse
	decodeData(t, resp, &acquired)
	assert.False(t, acquired.AlreadyHeld)
	assert.Equal(t, ana.ID, acquired.Lock.UserID)

	w, resp = h.do(http.MethodPost, path, &ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &acquired)
	assert.True(t, acquired.AlreadyHeld)

	w, resp = h.do(http.MethodPost, path, &ben, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, relief.CodeLockHeld, errorCode(resp))
	assert.Contains(t, resp.Error.Message, "Ana Campbell")

	w, resp = h.do(http.MethodGet, path, &ben, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status LockStatusResponse
	decodeData(t, resp, &status)
	assert.False(t, status.CanEdit)
	assert.Equal(t, "Ana Campbell", status.BlockingUser)

	w, resp = h.do(http.MethodDelete, path, &ben, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, relief.CodeLockNotHeld, errorCode(resp))

	w, _ = h.do(http.MethodDelete, path+"?force=maybe", &ben, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = h.do(http.MethodDelete, path+"?force=true", &ben, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var released ReleaseResponse
	decodeData(t, resp, &released)
	assert.True(t, released.Released)

	w, resp = h.do(http.MethodGet, path, &ben, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var free LockStatusResponse
	decodeData(t, resp, &free)
	assert.True(t, free.CanEdit)
	assert.Nil(t, free.Lock)
}

func TestPackageLifecycleEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	ana := newAPIUser("Ana Campbell")
	b := h.receive("TARP-01", 10, farExpiry)
	requestID := uuid.NewString()
	base := "/relief-requests/" + requestID

	draft := SaveDraftRequest{Allocations: []AllocationLineRequest{{
		ItemID:      b.ItemID.String(),
		WarehouseID: b.WarehouseID.String(),
		BatchID:     b.ID.String(),
		Quantity:    decimal.NewFromInt(4),
	}}}

	w, _ := h.do(http.MethodPut, base+"/package", nil, draft)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := h.do(http.MethodPut, base+"/package", &ana, draft)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pkg PackageResponse
	decodeData(t, resp, &pkg)
	assert.Equal(t, string(relief.PackageDraft), pkg.Status)
	require.Len(t, pkg.Lines, 1)
	assertDecimal(t, "4", pkg.Lines[0].Quantity)

	w, resp = h.do(http.MethodGet, base+"/reservations?level=batch", &ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var held []ReservationResponse
	decodeData(t, resp, &held)
	require.Len(t, held, 1)
	require.NotNil(t, held[0].BatchID)
	assert.Equal(t, b.ID, *held[0].BatchID)
	assertDecimal(t, "4", held[0].Quantity)

	w, resp = h.do(http.MethodGet, "/batches/"+b.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var details BatchDetailsResponse
	decodeData(t, resp, &details)
	assertDecimal(t, "4", details.ReservedQty)
	assertDecimal(t, "6", details.AvailableQty)
	assert.Equal(t, "Tarpaulin 4x6m", details.ItemName)
	assert.Equal(t, "Montego Bay Depot", details.WarehouseName)

	w, resp = h.do(http.MethodPost, base+"/package/submit", &ana, TransitionRequest{Version: pkg.Version + 5})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "OPTIMISTIC_LOCK_FAILED", errorCode(resp))

	w, resp = h.do(http.MethodPost, base+"/package/submit", &ana, TransitionRequest{Version: pkg.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, resp, &pkg)
	assert.Equal(t, string(relief.PackageSubmitted), pkg.Status)

	w, resp = h.do(http.MethodPost, base+"/package/dispatch", &ana, TransitionRequest{Version: pkg.Version})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, resp, &pkg)
	assert.Equal(t, string(relief.PackageDispatched), pkg.Status)
	assert.NotNil(t, pkg.DispatchedAt)

	w, resp = h.do(http.MethodGet, "/batches/"+b.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &details)
	assertDecimal(t, "6", details.UsableQty)
	assertDecimal(t, "0", details.ReservedQty)

	w, resp = h.do(http.MethodPost, base+"/package/cancel", &ana, TransitionRequest{Version: pkg.Version})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, relief.CodePackageNotFound, errorCode(resp))
}

func TestSaveDraft_RejectsOverReservation(t *testing.T) {
	h := newAPIHarness(t)
	ana := newAPIUser("Ana Campbell")
	b := h.receive("TARP-02", 3, farExpiry)

	w, resp := h.do(http.MethodPut, "/relief-requests/"+uuid.NewString()+"/package", &ana, SaveDraftRequest{
		Allocations: []AllocationLineRequest{{
			ItemID:      b.ItemID.String(),
			WarehouseID: b.WarehouseID.String(),
			BatchID:     b.ID.String(),
			Quantity:    decimal.NewFromInt(5),
		}},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, relief.CodeInsufficientStock, errorCode(resp))
}

func TestSaveDraft_ValidatesBody(t *testing.T) {
	h := newAPIHarness(t)
	ana := newAPIUser("Ana Campbell")

	w, resp := h.do(http.MethodPut, "/relief-requests/"+uuid.NewString()+"/package", &ana, map[string]any{
		"allocations": []map[string]any{{"item_id": "nope", "quantity": -1}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, errorCode(resp))
	assert.NotEmpty(t, resp.Error.Details)
}

func TestAllocationQueries(t *testing.T) {
	h := newAPIHarness(t)
	later := h.receive("TARP-LATE", 5, farExpiry)
	sooner := h.receive("TARP-SOON", 4, farExpiry.AddDate(-10, 0, 0))
	itemPath := "/items/" + h.item.ID.String()

	w, resp := h.do(http.MethodGet, itemPath+"/batches/eligible", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var eligible []BatchResponse
	decodeData(t, resp, &eligible)
	require.Len(t, eligible, 2)
	assert.Equal(t, sooner.ID, eligible[0].ID, "earliest expiry first")
	assert.Equal(t, later.ID, eligible[1].ID)

	w, resp = h.do(http.MethodGet, itemPath+"/batches/available?warehouse_id="+h.warehouse.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var available []BatchResponse
	decodeData(t, resp, &available)
	assert.Len(t, available, 2)

	w, _ = h.do(http.MethodGet, itemPath+"/batches/available?warehouse_id=bad", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = h.do(http.MethodPost, itemPath+"/auto-allocate", nil, AutoAllocateRequest{RequestedQty: decimal.NewFromInt(6)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var auto AutoAllocateResponse
	decodeData(t, resp, &auto)
	require.Len(t, auto.Allocations, 2)
	assert.Equal(t, sooner.ID, auto.Allocations[0].BatchID)
	assertDecimal(t, "4", auto.Allocations[0].AllocatedQty)
	assertDecimal(t, "2", auto.Allocations[1].AllocatedQty)
	assertDecimal(t, "0", auto.Shortfall)

	w, resp = h.do(http.MethodPost, itemPath+"/auto-allocate", nil, AutoAllocateRequest{RequestedQty: decimal.Zero})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, errorCode(resp))

	w, resp = h.do(http.MethodGet, itemPath+"/batches/by-warehouse", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups []WarehouseBatchesResponse
	decodeData(t, resp, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, "Montego Bay Depot", groups[0].WarehouseName)
	assertDecimal(t, "9", groups[0].TotalAvailable)

	w, resp = h.do(http.MethodGet, "/batches/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, relief.CodeBatchNotFound, errorCode(resp))
}

func TestDrawerAndValidateEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	b := h.receive("TARP-03", 8, farExpiry)
	base := "/relief-requests/" + uuid.NewString()

	w, resp := h.do(http.MethodPost, base+"/drawer", nil, DrawerRequest{
		ItemID:       h.item.ID.String(),
		RemainingQty: decimal.NewFromInt(5),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var drawer DrawerResponse
	decodeData(t, resp, &drawer)
	require.Len(t, drawer.Batches, 1)
	assert.Equal(t, b.ID, drawer.Batches[0].ID)
	assertDecimal(t, "8", drawer.TotalAvailable)
	assertDecimal(t, "0", drawer.Shortfall)

	w, resp = h.do(http.MethodPost, base+"/allocations/validate", nil, ValidateAllocationRequest{
		BatchID:  b.ID.String(),
		ItemID:   h.item.ID.String(),
		Quantity: decimal.NewFromInt(8),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result ValidationResult
	decodeData(t, resp, &result)
	assert.True(t, result.Valid)

	w, resp = h.do(http.MethodPost, base+"/allocations/validate", nil, ValidateAllocationRequest{
		BatchID:  b.ID.String(),
		ItemID:   h.item.ID.String(),
		Quantity: decimal.NewFromInt(9),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, relief.CodeInsufficientStock, errorCode(resp))

	w, resp = h.do(http.MethodPost, base+"/allocations/validate", nil, ValidateAllocationRequest{
		BatchID:  b.ID.String(),
		ItemID:   uuid.NewString(),
		Quantity: decimal.NewFromInt(1),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, relief.CodeBatchItemMismatch, errorCode(resp))
}

func TestStockReceiptEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	body := ReceiptRequest{
		ItemID:      h.item.ID.String(),
		WarehouseID: h.warehouse.ID.String(),
		ExpiryDate:  ptr("2031-06-30"),
		Quantity:    decimal.RequireFromString("12.5"),
	}
	w, resp := h.do(http.MethodPost, "/stock/receipts", nil, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var batch BatchResponse
	decodeData(t, resp, &batch)
	assertDecimal(t, "12.5", batch.UsableQty)
	assert.Equal(t, "EA", batch.UOMCode)
	require.NotNil(t, batch.ExpiryDate)
	assert.Equal(t, "2031-06-30", *batch.ExpiryDate)

	body.WarehouseID = uuid.NewString()
	w, resp = h.do(http.MethodPost, "/stock/receipts", nil, body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(resp))

	body.ExpiryDate = ptr("30/06/2031")
	w, _ = h.do(http.MethodPost, "/stock/receipts", nil, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemStatusEndpoints(t *testing.T) {
	h := newAPIHarness(t)

	w, resp := h.do(http.MethodPost, "/item-statuses/allowed", nil, AllowedStatusesRequest{
		Current:        relief.ItemStatusRequested,
		TotalAllocated: decimal.NewFromInt(3),
		RequestedQty:   decimal.NewFromInt(10),
		HasActivity:    true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var allowed AllowedStatusesResponse
	decodeData(t, resp, &allowed)
	assert.Equal(t, relief.ItemStatusPartlyFill, allowed.AutoStatus)
	assert.Equal(t, []string{relief.ItemStatusPartlyFill, relief.ItemStatusLimit}, allowed.Allowed)
	assert.Equal(t, "PARTLY FILLED", allowed.Labels[relief.ItemStatusPartlyFill])
	assert.Equal(t, "REQUESTED", allowed.Labels[relief.ItemStatusRequested])

	itemID := uuid.NewString()
	w, resp = h.do(http.MethodPost, "/item-statuses/validate", nil, StatusTransitionRequest{
		ItemID:         itemID,
		Current:        relief.ItemStatusPartlyFill,
		New:            relief.ItemStatusFilled,
		TotalAllocated: decimal.NewFromInt(3),
		RequestedQty:   decimal.NewFromInt(10),
		HasActivity:    true,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, relief.CodeInvalidStatusTransition, errorCode(resp))

	w, resp = h.do(http.MethodPost, "/item-statuses/validate", nil, StatusTransitionRequest{
		ItemID:         itemID,
		Current:        relief.ItemStatusFilled,
		New:            relief.ItemStatusFilled,
		TotalAllocated: decimal.NewFromInt(12),
		RequestedQty:   decimal.NewFromInt(10),
		HasActivity:    true,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, relief.CodeQuantityLimitExceeded, errorCode(resp))

	w, _ = h.do(http.MethodPost, "/admin/item-statuses/reload", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	h := newAPIHarness(t)

	w, resp := h.do(http.MethodPost, "/admin/fulfillment-locks/cleanup", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]any
	decodeData(t, resp, &stats)
	assert.Equal(t, float64(0), stats["total_expired"])
}

func ptr(s string) *string {
	return &s
}
