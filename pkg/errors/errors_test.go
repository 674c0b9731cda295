package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: test error", err.Error())
}

func TestAppError_WithCause(t *testing.T) {
	original := errors.New("disk full")
	err := WrapError(original, ErrCodeInternal, "room store failed", http.StatusInternalServerError)

	assert.Contains(t, err.Error(), "disk full")
	assert.ErrorIs(t, err, original)
}

func TestAppError_Body(t *testing.T) {
	err := NewNotFoundError("room").WithContext("exists", false)

	body := err.Body()
	assert.Equal(t, "room not found", body["error"])
	assert.Equal(t, ErrCodeNotFound, body["code"])
	assert.Equal(t, false, body["exists"])
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
}

func TestConstructors_Status(t *testing.T) {
	cases := map[ErrorCode]*AppError{
		ErrCodeInvalidInput:       NewInvalidInputError("x"),
		ErrCodeConflict:           NewConflictError("x"),
		ErrCodeRateLimit:          NewRateLimitError(),
		ErrCodeInternal:           NewInternalError("x"),
		ErrCodeServiceUnavailable: NewServiceUnavailableError("x"),
	}
	want := map[ErrorCode]int{
		ErrCodeInvalidInput:       http.StatusBadRequest,
		ErrCodeConflict:           http.StatusConflict,
		ErrCodeRateLimit:          http.StatusTooManyRequests,
		ErrCodeInternal:           http.StatusInternalServerError,
		ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	}
	for code, err := range cases {
		assert.Equal(t, code, err.Code)
		assert.Equal(t, want[code], err.HTTPStatus, string(code))
	}
}

func TestGetAppError_Wrapped(t *testing.T) {
	appErr := NewConflictError("room code taken")
	wrapped := fmt.Errorf("create room: %w", appErr)

	got := GetAppError(wrapped)
	require.NotNil(t, got)
	assert.Same(t, appErr, got)
	assert.True(t, IsAppError(wrapped))

	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}
