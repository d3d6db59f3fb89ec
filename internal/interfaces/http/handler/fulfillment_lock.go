package handler

import (
	"net/http"
	"strconv"

	appRelief "github.com/drims/backend/internal/application/relief"
	"github.com/drims/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// LockHandler exposes the fulfillment lock on relief requests.
type LockHandler struct {
	BaseHandler
	locks *appRelief.FulfillmentLockService
}

// NewLockHandler creates a new LockHandler
func NewLockHandler(locks *appRelief.FulfillmentLockService) *LockHandler {
	return &LockHandler{locks: locks}
}

// RegisterRoutes registers the lock routes
func (h *LockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	lock := rg.Group("/relief-requests/:id/lock")
	lock.POST("", h.Acquire)
	lock.GET("", h.Check)
	lock.DELETE("", h.Release)

	rg.POST("/admin/fulfillment-locks/cleanup", h.CleanupExpired)
}

// AcquireResponse is the outcome of Acquire.
type AcquireResponse struct {
	Lock        *LockResponse `json:"lock"`
	AlreadyHeld bool          `json:"already_held"`
}

// Acquire godoc
// @ID           acquireLock
// @Summary      Acquire the fulfillment lock
// @Description  Takes the lock for the acting user. A lock held by someone else answers 409 with the holder's name.
// @Description  An expired lock is swept first, which releases its draft's reservations.
// @Tags         locks
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        X-User-ID header string true "Acting user" format(uuid)
// @Success      201 {object} dto.Response{data=AcquireResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/lock [post]
func (h *LockHandler) Acquire(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.actor(c)
	if !ok {
		return
	}
	ctx := reliefContext(c, requestID)

	result, err := h.locks.Acquire(ctx, requestID, user)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := AcquireResponse{Lock: toLockResponse(result.Lock), AlreadyHeld: result.AlreadyHeld}
	if result.AlreadyHeld {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// LockStatusResponse tells the caller whether they may edit.
type LockStatusResponse struct {
	CanEdit      bool          `json:"can_edit"`
	BlockingUser string        `json:"blocking_user,omitempty"`
	Lock         *LockResponse `json:"lock,omitempty"`
}

// Check godoc
// @ID           checkLock
// @Summary      Check the fulfillment lock
// @Description  Reports whether the acting user may edit the request.
// @Tags         locks
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        X-User-ID header string true "Acting user" format(uuid)
// @Success      200 {object} dto.Response{data=LockStatusResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/lock [get]
func (h *LockHandler) Check(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.actor(c)
	if !ok {
		return
	}
	ctx := reliefContext(c, requestID)

	status, err := h.locks.Check(ctx, requestID, user.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, LockStatusResponse{
		CanEdit:      status.CanEdit,
		BlockingUser: status.BlockingUser,
		Lock:         toLockResponse(status.Lock),
	})
}

// ReleaseResponse is the outcome of Release.
type ReleaseResponse struct {
	Released bool   `json:"released"`
	Message  string `json:"message"`
}

// Release godoc
// @ID           releaseLock
// @Summary      Release the fulfillment lock
// @Description  Drops the lock. force=true releases another user's lock and release_reservations=true also gives back what the draft holds.
// @Tags         locks
// @Produce      json
// @Param        id path string true "Relief request ID" format(uuid)
// @Param        X-User-ID header string true "Acting user" format(uuid)
// @Param        force query bool false "Release a lock held by another user"
// @Param        release_reservations query bool false "Release the draft's reservations"
// @Success      200 {object} dto.Response{data=ReleaseResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /relief-requests/{id}/lock [delete]
func (h *LockHandler) Release(c *gin.Context) {
	requestID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	user, ok := h.actor(c)
	if !ok {
		return
	}
	force, ok := h.boolQuery(c, "force")
	if !ok {
		return
	}
	releaseReservations, ok := h.boolQuery(c, "release_reservations")
	if !ok {
		return
	}
	ctx := reliefContext(c, requestID)

	result, err := h.locks.Release(ctx, requestID, user.UserID, appRelief.ReleaseOptions{
		Force:               force,
		ReleaseReservations: releaseReservations,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReleaseResponse{Released: result.Released, Message: result.Message})
}

// CleanupExpired godoc
// @ID           cleanupExpiredLocks
// @Summary      Sweep expired locks
// @Description  Removes every expired lock and releases the reservations of the draft it guarded.
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=appRelief.CleanupStats}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/fulfillment-locks/cleanup [post]
func (h *LockHandler) CleanupExpired(c *gin.Context) {
	stats, err := h.locks.CleanupExpired(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

func (h *LockHandler) boolQuery(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, name+" must be true or false")
		return false, false
	}
	return v, true
}
