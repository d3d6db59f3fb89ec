package dto

import (
	"net/http"

	"github.com/drims/backend/internal/domain/relief"
)

// Transport-level error codes. Domain errors keep the code they were raised
// with.
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeNotFound:     http.StatusNotFound,

	// Shared domain errors
	"NOT_FOUND":              http.StatusNotFound,
	"ALREADY_EXISTS":         http.StatusConflict,
	"INVALID_INPUT":          http.StatusBadRequest,
	"INVALID_STATE":          http.StatusUnprocessableEntity,
	"OPTIMISTIC_LOCK_FAILED": http.StatusConflict,

	// Missing resources
	relief.CodeBatchNotFound:   http.StatusNotFound,
	relief.CodePackageNotFound: http.StatusNotFound,

	// Bad input
	relief.CodeInvalidQuantity: http.StatusBadRequest,

	// Another user or another save got there first
	relief.CodeLockHeld:    http.StatusConflict,
	relief.CodeLockNotHeld: http.StatusConflict,

	// Business rules -> 422 Unprocessable Entity
	relief.CodeBatchItemMismatch:       http.StatusUnprocessableEntity,
	relief.CodeBatchWarehouseMismatch:  http.StatusUnprocessableEntity,
	relief.CodeBatchInactive:           http.StatusUnprocessableEntity,
	relief.CodeBatchExpired:            http.StatusUnprocessableEntity,
	relief.CodeInsufficientStock:       http.StatusUnprocessableEntity,
	relief.CodeReservationExceedsStock: http.StatusUnprocessableEntity,
	relief.CodeInvalidStatusTransition: http.StatusUnprocessableEntity,
	relief.CodeQuantityLimitExceeded:   http.StatusUnprocessableEntity,
	relief.CodeInvalidPackageState:     http.StatusUnprocessableEntity,

	relief.CodeDatabaseError: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
