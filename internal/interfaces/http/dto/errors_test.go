package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{"NOT_FOUND", http.StatusNotFound},
		{"OPTIMISTIC_LOCK_FAILED", http.StatusConflict},
		{relief.CodeBatchNotFound, http.StatusNotFound},
		{relief.CodePackageNotFound, http.StatusNotFound},
		{relief.CodeInvalidQuantity, http.StatusBadRequest},
		{relief.CodeLockHeld, http.StatusConflict},
		{relief.CodeLockNotHeld, http.StatusConflict},
		{relief.CodeInsufficientStock, http.StatusUnprocessableEntity},
		{relief.CodeBatchExpired, http.StatusUnprocessableEntity},
		{relief.CodeInvalidPackageState, http.StatusUnprocessableEntity},
		{relief.CodeQuantityLimitExceeded, http.StatusUnprocessableEntity},
		{relief.CodeDatabaseError, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(relief.CodeLockHeld, "Currently being prepared by Ana", "req-1")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errInfo := decoded["error"].(map[string]any)
	assert.Equal(t, "LOCK_HELD", errInfo["code"])
	assert.Equal(t, "req-1", errInfo["request_id"])
	assert.NotContains(t, errInfo, "details")
}

func TestValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-2", []ValidationDetail{
		{Field: "quantity", Message: "Must be greater than zero"},
	})

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-2", resp.Error.RequestID)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "quantity", resp.Error.Details[0].Field)
}

func TestSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]int{"count": 2})
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]int{"count": 2}, resp.Data)
}
