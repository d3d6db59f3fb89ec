package handler

import (
	"time"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockHandler books donations and transfer receipts.
type StockHandler struct {
	BaseHandler
	intake *appRelief.IntakeService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(intake *appRelief.IntakeService) *StockHandler {
	return &StockHandler{intake: intake}
}

// RegisterRoutes registers the stock routes
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stock/receipts", h.Receive)
}

// ReceiptRequest puts stock of one item on hand at a warehouse. Dates use
// YYYY-MM-DD.
type ReceiptRequest struct {
	ItemID      string          `json:"item_id" binding:"required,uuid"`
	WarehouseID string          `json:"warehouse_id" binding:"required,uuid"`
	BatchNo     *string         `json:"batch_no" binding:"omitempty,max=20"`
	BatchDate   *string         `json:"batch_date" binding:"omitempty,datetime=2006-01-02"`
	ExpiryDate  *string         `json:"expiry_date" binding:"omitempty,datetime=2006-01-02"`
	Quantity    decimal.Decimal `json:"quantity" binding:"decimal_gt0"`
	UOMCode     string          `json:"uom" binding:"max=25"`
}

// Receive godoc
// @ID           receiveStock
// @Summary      Receive stock
// @Description  Creates or tops up a batch. Dates use YYYY-MM-DD.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body ReceiptRequest true "Receipt"
// @Success      201 {object} dto.Response{data=BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stock/receipts [post]
func (h *StockHandler) Receive(c *gin.Context) {
	var req ReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	batch, err := h.intake.ReceiveStock(c.Request.Context(), appRelief.ReceiveCommand{
		ItemID:      uuid.MustParse(req.ItemID),
		WarehouseID: uuid.MustParse(req.WarehouseID),
		BatchNo:     req.BatchNo,
		BatchDate:   parseDate(req.BatchDate),
		ExpiryDate:  parseDate(req.ExpiryDate),
		Quantity:    req.Quantity,
		UOMCode:     req.UOMCode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toBatchResponse(batch))
}

// parseDate reads a date the validator already checked.
func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}
