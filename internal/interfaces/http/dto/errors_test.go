package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected int
	}{
		{"not found", ErrCodeNotFound, http.StatusNotFound},
		{"forbidden", ErrCodeForbidden, http.StatusForbidden},
		{"unauthorized", ErrCodeUnauthorized, http.StatusUnauthorized},
		{"token expired", ErrCodeTokenExpired, http.StatusUnauthorized},
		{"validation", ErrCodeValidation, http.StatusUnprocessableEntity},
		{"invalid state", ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{"insufficient stock", ErrCodeInsufficientStock, http.StatusUnprocessableEntity},
		{"concurrency conflict", ErrCodeConcurrencyConflict, http.StatusConflict},
		{"rate limited", ErrCodeRateLimited, http.StatusTooManyRequests},
		{"internal", ErrCodeInternal, http.StatusInternalServerError},
		{"unknown code falls back to 500", "ERR_SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
	}{
		{"domain not found", "NOT_FOUND", ErrCodeNotFound},
		{"domain forbidden", "FORBIDDEN", ErrCodeForbidden},
		{"domain invalid state", "INVALID_STATE", ErrCodeInvalidState},
		{"domain insufficient stock", "INSUFFICIENT_STOCK", ErrCodeInsufficientStock},
		{"domain concurrency conflict", "CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		{"already normalized", ErrCodeNotFound, ErrCodeNotFound},
		{"unknown passes through", "CUSTOM_CODE", "CUSTOM_CODE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.code))
		})
	}
}

func TestDomainErrorToHTTPStatus(t *testing.T) {
	// Domain codes must resolve to a meaningful status after normalization.
	tests := []struct {
		domainCode string
		expected   int
	}{
		{"NOT_FOUND", http.StatusNotFound},
		{"ITEM_NOT_FOUND", http.StatusNotFound},
		{"FORBIDDEN", http.StatusForbidden},
		{"INVALID_STATE", http.StatusUnprocessableEntity},
		{"INVALID_INPUT", http.StatusUnprocessableEntity},
		{"INSUFFICIENT_STOCK", http.StatusUnprocessableEntity},
		{"NO_ITEMS", http.StatusUnprocessableEntity},
		{"ITEM_NOT_EDITABLE", http.StatusUnprocessableEntity},
		{"ALREADY_CONFIRMED", http.StatusUnprocessableEntity},
		{"UNCONFIRMED_ITEMS", http.StatusUnprocessableEntity},
		{"SAME_SERVICE", http.StatusUnprocessableEntity},
		{"PRODUCT_MISMATCH", http.StatusUnprocessableEntity},
		{"INVALID_QUANTITY", http.StatusUnprocessableEntity},
		{"QUANTITY_EXCEEDED", http.StatusUnprocessableEntity},
		{"INCOMPLETE_SELECTION", http.StatusUnprocessableEntity},
		{"INVALID_SELECTION", http.StatusUnprocessableEntity},
		{"INVALID_LOT", http.StatusUnprocessableEntity},
		{"INVALID_PRODUCT", http.StatusUnprocessableEntity},
		{"INVALID_SERVICE", http.StatusUnprocessableEntity},
		{"INVALID_USER", http.StatusUnprocessableEntity},
		{"INVALID_MOVEMENT_NUMBER", http.StatusUnprocessableEntity},
		{"CONCURRENCY_CONFLICT", http.StatusConflict},
		{"OPTIMISTIC_LOCK_FAILED", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.domainCode, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(NormalizeErrorCode(tt.domainCode)))
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	requestID := "req-12345"
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Movement not found", requestID)

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Movement not found", resp.Error.Message)
	assert.Equal(t, requestID, resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "providing_service_id", Message: "This field is required"},
		{Field: "quantity", Message: "Must be greater than 0"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-6789", details)

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-6789", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "providing_service_id", resp.Error.Details[0].Field)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]string{"a", "b"}, 41, 2, 20)

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Meta)
	assert.Equal(t, int64(41), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 20, resp.Meta.PageSize)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
