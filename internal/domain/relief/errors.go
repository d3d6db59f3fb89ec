package relief

import (
	"fmt"

	"github.com/drims/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes raised by the allocation and reservation core.
const (
	CodeBatchNotFound           = "BATCH_NOT_FOUND"
	CodeBatchItemMismatch       = "BATCH_ITEM_MISMATCH"
	CodeBatchWarehouseMismatch  = "BATCH_WAREHOUSE_MISMATCH"
	CodeBatchInactive           = "BATCH_INACTIVE"
	CodeBatchExpired            = "BATCH_EXPIRED"
	CodeInvalidQuantity         = "INVALID_QUANTITY"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeReservationExceedsStock = "RESERVATION_EXCEEDS_USABLE"
	CodeLockHeld                = "LOCK_HELD"
	CodeLockNotHeld             = "LOCK_NOT_HELD"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeQuantityLimitExceeded   = "QUANTITY_LIMIT_EXCEEDED"
	CodePackageNotFound         = "PACKAGE_NOT_FOUND"
	CodeInvalidPackageState     = "INVALID_PACKAGE_STATE"
	CodeDatabaseError           = "DATABASE_ERROR"
)

// qty renders quantities the way operators see them in messages.
func qty(d decimal.Decimal) string {
	return d.StringFixed(4)
}

// NewBatchNotFoundError reports a batch that no longer exists.
func NewBatchNotFoundError(batchID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeBatchNotFound, fmt.Sprintf("Batch %s not found", batchID))
}

// NewPackageNotFoundError reports a relief request without an open package.
func NewPackageNotFoundError(requestID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodePackageNotFound,
		fmt.Sprintf("No open relief package for request %s", requestID))
}

// NewLockHeldError reports that another user is preparing the request.
func NewLockHeldError(holder string) *shared.DomainError {
	return shared.NewDomainError(CodeLockHeld, fmt.Sprintf("Currently being prepared by %s", holder))
}

// NewDatabaseError hides an infrastructure failure behind a generic message.
func NewDatabaseError(operation string) *shared.DomainError {
	return shared.NewDomainError(CodeDatabaseError, fmt.Sprintf("Database error during %s", operation))
}
