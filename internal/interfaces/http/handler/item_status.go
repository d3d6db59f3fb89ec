package handler

import (
	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatusHandler answers status questions for relief request items.
type ItemStatusHandler struct {
	BaseHandler
	statuses *appRelief.ItemStatusService
}

// NewItemStatusHandler creates a new ItemStatusHandler
func NewItemStatusHandler(statuses *appRelief.ItemStatusService) *ItemStatusHandler {
	return &ItemStatusHandler{statuses: statuses}
}

// RegisterRoutes registers the item status routes
func (h *ItemStatusHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/item-statuses/allowed", h.Allowed)
	rg.POST("/item-statuses/validate", h.ValidateTransition)
	rg.POST("/admin/item-statuses/reload", h.Reload)
}

// AllowedStatusesRequest describes the allocation state of a request item.
type AllowedStatusesRequest struct {
	Current        string          `json:"current" binding:"max=1"`
	TotalAllocated decimal.Decimal `json:"total_allocated" binding:"decimal_gte0"`
	RequestedQty   decimal.Decimal `json:"requested_qty" binding:"decimal_gte0"`
	HasActivity    bool            `json:"has_activity"`
}

// AllowedStatusesResponse lists the codes an operator may pick.
type AllowedStatusesResponse struct {
	Current    string            `json:"current,omitempty"`
	AutoStatus string            `json:"auto_status"`
	Allowed    []string          `json:"allowed"`
	Labels     map[string]string `json:"labels"`
}

// Allowed godoc
// @ID           allowedItemStatuses
// @Summary      Compute allowed item statuses
// @Description  Computes the automatic status and the codes an operator may pick.
// @Tags         item-statuses
// @Accept       json
// @Produce      json
// @Param        request body AllowedStatusesRequest true "Allocation state"
// @Success      200 {object} dto.Response{data=AllowedStatusesResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /item-statuses/allowed [post]
func (h *ItemStatusHandler) Allowed(c *gin.Context) {
	var req AllowedStatusesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	allowed, err := h.statuses.ComputeAllowedStatuses(ctx, req.TotalAllocated, req.RequestedQty, req.HasActivity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	labels := make(map[string]string, len(allowed.Allowed)+1)
	for _, code := range allowed.Allowed {
		labels[code] = h.statuses.Label(ctx, code)
	}
	if req.Current != "" {
		labels[req.Current] = h.statuses.Label(ctx, req.Current)
	}
	h.Success(c, AllowedStatusesResponse{
		Current:    req.Current,
		AutoStatus: allowed.AutoStatus,
		Allowed:    allowed.Allowed,
		Labels:     labels,
	})
}

// StatusTransitionRequest asks whether a status change is allowed.
type StatusTransitionRequest struct {
	ItemID         string          `json:"item_id" binding:"required,uuid"`
	Current        string          `json:"current" binding:"max=1"`
	New            string          `json:"new" binding:"required,max=1"`
	TotalAllocated decimal.Decimal `json:"total_allocated" binding:"decimal_gte0"`
	RequestedQty   decimal.Decimal `json:"requested_qty" binding:"decimal_gte0"`
	HasActivity    bool            `json:"has_activity"`
}

// ValidateTransition godoc
// @ID           validateItemStatus
// @Summary      Validate an item status change
// @Description  Rejects a status the allocation state does not allow.
// @Tags         item-statuses
// @Accept       json
// @Produce      json
// @Param        request body StatusTransitionRequest true "Status change"
// @Success      200 {object} dto.Response{data=ValidationResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /item-statuses/validate [post]
func (h *ItemStatusHandler) ValidateTransition(c *gin.Context) {
	var req StatusTransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	itemID := uuid.MustParse(req.ItemID)
	ctx := c.Request.Context()

	err := h.statuses.ValidateStatusTransition(ctx, appRelief.StatusTransition{
		ItemID:         itemID,
		Current:        req.Current,
		New:            req.New,
		TotalAllocated: req.TotalAllocated,
		RequestedQty:   req.RequestedQty,
		HasActivity:    req.HasActivity,
	})
	if err == nil {
		err = h.statuses.ValidateQuantityLimit(itemID, req.TotalAllocated, req.RequestedQty)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ValidationResult{Valid: true})
}

// ReloadResponse confirms a status cache refresh.
type ReloadResponse struct {
	Reloaded bool `json:"reloaded"`
}

// Reload godoc
// @ID           reloadItemStatuses
// @Summary      Reload item statuses
// @Description  Refreshes the status cache from the database.
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=ReloadResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/item-statuses/reload [post]
func (h *ItemStatusHandler) Reload(c *gin.Context) {
	if err := h.statuses.Reload(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReloadResponse{Reloaded: true})
}
