package handler

import (
	"context"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/domain/relief"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PackageHandler drives relief packages through their lifecycle.
type PackageHandler struct {
	BaseHandler
	packaging *appRelief.PackagingService
}

// NewPackageHandler creates a new PackageHandler
func NewPackageHandler(packaging *appRelief.PackagingService) *PackageHandler {
	return &PackageHandler{packaging: packaging}
}

// RegisterRoutes registers the package routes
func (h *PackageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	pkg := rg.Group("/relief-requests/:id/package")
	pkg.GET("", h.Get)
	pkg.PUT("", h.SaveDraft)
	pkg.POST("/submit", h.Submit)
	pkg.POST("/dispatch", h.Dispatch)
	pkg.POST("/cancel", h.Cancel)
}

// Get godoc
// @ID           getPackage
// @Summary      Get the relief package
// @Description  Returns the latest package of the request.
// @Tags         packages
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Success      200 {object} dto.Response{data=PackageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/package [get]
func (h *PackageHandler) Get(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := reliefContext(c, requestID)

	pkg, err := h.packaging.GetPackage(ctx, requestID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPackageResponse(pkg))
}

// AllocationLineRequest is one batch line of a draft.
type AllocationLineRequest struct {
	ItemID      string          `json:"item_id" binding:"required,uuid"`
	WarehouseID string          `json:"warehouse_id" binding:"required,uuid"`
	BatchID     string          `json:"batch_id" binding:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity" binding:"decimal_gte0"`
	UOMCode     string          `json:"uom" binding:"max=25"`
}

// SaveDraftRequest replaces the lines of the request's package. Version 0
// skips the concurrency check, which the first save of a new package needs.
type SaveDraftRequest struct {
	Version     int                     `json:"version" binding:"gte=0"`
	Allocations []AllocationLineRequest `json:"allocations" binding:"dive"`
	Reason      string                  `json:"reason" binding:"max=255"`
}

// SaveDraft godoc
// @ID           saveDraftPackage
// @Summary      Save the draft allocation
// @Description  Replaces the allocation lines of the request's draft and reserves the difference. Requires the caller's live fulfillment lock.
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        X-User-ID header string true "Acting user" format(uuid)
// @Param        request body SaveDraftRequest true "Allocation lines"
// @Success      200 {object} dto.Response{data=PackageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/package [put]
func (h *PackageHandler) SaveDraft(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.actor(c)
	if !ok {
		return
	}
	var req SaveDraftRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := reliefContext(c, requestID)

	lines := make([]relief.AllocationLine, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		lines = append(lines, relief.AllocationLine{
			ItemID:      uuid.MustParse(a.ItemID),
			WarehouseID: uuid.MustParse(a.WarehouseID),
			BatchID:     uuid.MustParse(a.BatchID),
			Quantity:    a.Quantity,
			UOMCode:     a.UOMCode,
		})
	}

	pkg, err := h.packaging.SaveDraft(ctx, appRelief.SaveDraftCommand{
		RequestID:       requestID,
		User:            user,
		Lines:           lines,
		ExpectedVersion: req.Version,
		Reason:          req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPackageResponse(pkg))
}

// TransitionRequest carries the version the caller last saw.
type TransitionRequest struct {
	Version int `json:"version" binding:"gte=0"`
}

type transitionFunc func(ctx context.Context, requestID, userID uuid.UUID, expectedVersion int) (*relief.ReliefPackage, error)

// Submit godoc
// @ID           submitPackage
// @Summary      Submit the package
// @Description  Sends the draft for approval and drops the caller's lock. Reservations stay until dispatch or cancel.
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        X-User-ID header string true "Acting user" format(uuid)
// @Param        request body TransitionRequest true "Expected version"
// @Success      200 {object} dto.Response{data=PackageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/package/submit [post]
func (h *PackageHandler) Submit(c *gin.Context) {
	h.transition(c, h.packaging.Submit)
}

// Dispatch godoc
// @ID           dispatchPackage
// @Summary      Dispatch the package
// @Description  Deducts the submitted package's reservations from stock and marks it dispatched. Only another user's live lock blocks it.
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        X-User-ID header string true "Acting user" format(uuid)
// @Param        request body TransitionRequest true "Expected version"
// @Success      200 {object} dto.Response{data=PackageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/package/dispatch [post]
func (h *PackageHandler) Dispatch(c *gin.Context) {
	h.transition(c, h.packaging.Dispatch)
}

// Cancel godoc
// @ID           cancelPackage
// @Summary      Cancel the package
// @Description  Releases the package's reservations and closes it.
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        X-User-ID header string true "Acting user" format(uuid)
// @Param        request body TransitionRequest true "Expected version"
// @Success      200 {object} dto.Response{data=PackageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/package/cancel [post]
func (h *PackageHandler) Cancel(c *gin.Context) {
	h.transition(c, h.packaging.Cancel)
}

func (h *PackageHandler) transition(c *gin.Context, step transitionFunc) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.actor(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := reliefContext(c, requestID)

	pkg, err := step(ctx, requestID, user.UserID, req.Version)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPackageResponse(pkg))
}
