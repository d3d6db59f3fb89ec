package handler

import (
	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationHandler serves batch lookups, automatic allocation and the
// per-request reservation view.
type AllocationHandler struct {
	BaseHandler
	allocation *appRelief.AllocationService
	ledger     *appRelief.ReservationLedger
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocation *appRelief.AllocationService, ledger *appRelief.ReservationLedger) *AllocationHandler {
	return &AllocationHandler{
		allocation: allocation,
		ledger:     ledger,
	}
}

// RegisterRoutes registers the allocation routes
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/items/:id")
	items.GET("/batches/available", h.GetAvailableBatches)
	items.GET("/batches/eligible", h.GetEligibleBatches)
	items.GET("/batches/by-warehouse", h.GetBatchesByWarehouse)
	items.POST("/auto-allocate", h.AutoAllocate)

	rg.GET("/batches/:id", h.GetBatch)

	requests := rg.Group("/relief-requests/:id")
	requests.POST("/drawer", h.GetDrawer)
	requests.POST("/allocations/validate", h.ValidateAllocation)
	requests.GET("/reservations", h.GetReservations)
}

// GetAvailableBatches godoc
// @ID           getAvailableBatches
// @Summary      List available batches
// @Description  Lists the item's batches with stock left, optionally limited to one warehouse and unit of measure.
// @Tags         allocation
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        warehouse_id query string false "Warehouse ID" format(uuid)
// @Param        uom query string false "Unit of measure"
// @Success      200 {object} dto.Response{data=[]BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /items/{id}/batches/available [get]
func (h *AllocationHandler) GetAvailableBatches(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	warehouseID, ok := h.optionalUUIDQuery(c, "warehouse_id")
	if !ok {
		return
	}

	batches, err := h.allocation.GetAvailableBatches(c.Request.Context(), itemID, warehouseID, c.Query("uom"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBatchResponses(batches))
}

// GetEligibleBatches godoc
// @ID           getEligibleBatches
// @Summary      List batches in issuance order
// @Description  Lists available batches ordered FEFO for expiring items and FIFO otherwise.
// @Tags         allocation
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        warehouse_id query string false "Warehouse ID" format(uuid)
// @Param        uom query string false "Unit of measure"
// @Success      200 {object} dto.Response{data=[]BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /items/{id}/batches/eligible [get]
func (h *AllocationHandler) GetEligibleBatches(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	warehouseID, ok := h.optionalUUIDQuery(c, "warehouse_id")
	if !ok {
		return
	}

	batches, err := h.allocation.GetEligibleBatches(c.Request.Context(), itemID, warehouseID, c.Query("uom"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBatchResponses(batches))
}

// GetBatchesByWarehouse godoc
// @ID           getBatchesByWarehouse
// @Summary      Group eligible batches per warehouse
// @Description  Groups the item's eligible batches by warehouse with the warehouse total.
// @Tags         allocation
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]WarehouseBatchesResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /items/{id}/batches/by-warehouse [get]
func (h *AllocationHandler) GetBatchesByWarehouse(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	groups, err := h.allocation.GetBatchesByWarehouse(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := make([]WarehouseBatchesResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, WarehouseBatchesResponse{
			WarehouseID:    g.WarehouseID,
			WarehouseName:  g.WarehouseName,
			TotalAvailable: g.TotalAvailable,
			Batches:        toBatchResponses(g.Batches),
		})
	}
	h.Success(c, resp)
}

// AutoAllocateRequest asks for a suggested allocation.
type AutoAllocateRequest struct {
	RequestedQty decimal.Decimal `json:"requested_qty" binding:"decimal_gt0"`
	WarehouseID  *string         `json:"warehouse_id" binding:"omitempty,uuid"`
	UOMCode      string          `json:"uom" binding:"max=25"`
}

// AutoAllocate godoc
// @ID           autoAllocate
// @Summary      Suggest an allocation
// @Description  Walks the eligible batches in issuance order until the requested quantity is covered. Nothing is reserved.
// @Tags         allocation
// @Accept       json
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        request body AutoAllocateRequest true "Requested quantity"
// @Success      200 {object} dto.Response{data=AutoAllocateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /items/{id}/auto-allocate [post]
func (h *AllocationHandler) AutoAllocate(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req AutoAllocateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	query := appRelief.AutoAllocateQuery{
		ItemID:       itemID,
		RequestedQty: req.RequestedQty,
		UOMCode:      req.UOMCode,
	}
	if req.WarehouseID != nil {
		id := uuid.MustParse(*req.WarehouseID)
		query.WarehouseID = &id
	}

	result, err := h.allocation.AutoAllocate(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAutoAllocateResponse(result))
}

// GetBatch godoc
// @ID           getBatch
// @Summary      Get batch details
// @Description  Returns one batch with its item and warehouse names.
// @Tags         allocation
// @Produce      json
// @Param        id path string true "Batch ID" format(uuid)
// @Success      200 {object} dto.Response{data=BatchDetailsResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /batches/{id} [get]
func (h *AllocationHandler) GetBatch(c *gin.Context) {
	batchID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	details, err := h.allocation.GetBatchDetails(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, BatchDetailsResponse{
		BatchResponse: toBatchResponse(details.Batch),
		ItemName:      details.ItemName,
		WarehouseName: details.WarehouseName,
		IsExpired:     details.IsExpired,
	})
}

// DrawerRequest opens the batch drawer for one request item.
type DrawerRequest struct {
	ItemID       string          `json:"item_id" binding:"required,uuid"`
	RemainingQty decimal.Decimal `json:"remaining_qty" binding:"decimal_gte0"`
	UOMCode      string          `json:"uom" binding:"max=25"`
}

// GetDrawer godoc
// @ID           getDrawer
// @Summary      Open the batch drawer
// @Description  Returns the limited batch list for one request item. Batches the request already holds stay listed with their own share added back.
// @Tags         allocation
// @Accept       json
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        request body DrawerRequest true "Request item"
// @Success      200 {object} dto.Response{data=DrawerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/drawer [post]
func (h *AllocationHandler) GetDrawer(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req DrawerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := reliefContext(c, requestID)

	view, err := h.allocation.GetDrawerBatches(ctx, appRelief.DrawerQuery{
		RequestID:    requestID,
		ItemID:       uuid.MustParse(req.ItemID),
		RemainingQty: req.RemainingQty,
		UOMCode:      req.UOMCode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toDrawerResponse(view))
}

// ValidateAllocationRequest checks one proposed batch line.
type ValidateAllocationRequest struct {
	BatchID  string          `json:"batch_id" binding:"required,uuid"`
	ItemID   string          `json:"item_id" binding:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ValidationResult is the answer of ValidateAllocation.
type ValidationResult struct {
	Valid bool `json:"valid"`
}

// ValidateAllocation godoc
// @ID           validateAllocation
// @Summary      Validate an allocation line
// @Description  Checks a proposed batch line without reserving anything. Rule violations come back as errors with their domain code.
// @Tags         allocation
// @Accept       json
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        request body ValidateAllocationRequest true "Proposed line"
// @Success      200 {object} dto.Response{data=ValidationResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/allocations/validate [post]
func (h *AllocationHandler) ValidateAllocation(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req ValidateAllocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := reliefContext(c, requestID)

	err := h.allocation.ValidateBatchAllocation(ctx, requestID,
		uuid.MustParse(req.BatchID), uuid.MustParse(req.ItemID), req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ValidationResult{Valid: true})
}

// GetReservations godoc
// @ID           getReservations
// @Summary      List current reservations
// @Description  Reports what the request's open package holds, per batch or per warehouse aggregate.
// @Tags         allocation
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        level query string false "Aggregation level" Enums(batch, warehouse) default(warehouse)
// @Success      200 {object} dto.Response{data=[]ReservationResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/reservations [get]
func (h *AllocationHandler) GetReservations(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := reliefContext(c, requestID)

	switch level := c.DefaultQuery("level", "warehouse"); level {
	case "batch":
		held, err := h.ledger.GetCurrentBatchReservations(ctx, requestID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		keys := make([]relief.BatchKey, 0, len(held))
		for k := range held {
			keys = append(keys, k)
		}
		relief.SortBatchKeys(keys)
		resp := make([]ReservationResponse, 0, len(keys))
		for _, k := range keys {
			batchID := k.BatchID
			resp = append(resp, ReservationResponse{
				ItemID:      k.ItemID,
				WarehouseID: k.WarehouseID,
				BatchID:     &batchID,
				Quantity:    held[k],
			})
		}
		h.Success(c, resp)
	case "warehouse":
		held, err := h.ledger.GetCurrentReservations(ctx, requestID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		keys := make([]relief.StockKey, 0, len(held))
		for k := range held {
			keys = append(keys, k)
		}
		relief.SortStockKeys(keys)
		resp := make([]ReservationResponse, 0, len(keys))
		for _, k := range keys {
			resp = append(resp, ReservationResponse{
				ItemID:      k.ItemID,
				WarehouseID: k.WarehouseID,
				Quantity:    held[k],
			})
		}
		h.Success(c, resp)
	default:
		h.BadRequest(c, "level must be batch or warehouse")
	}
}
