package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesCodeThroughWrapping(t *testing.T) {
	err := NotFound("Conversation", nil)
	wrapped := fmt.Errorf("loading conversation: %w", err)

	assert.True(t, Is(wrapped, "NOT_FOUND"))
	assert.False(t, Is(wrapped, "VALIDATION_ERROR"))
	assert.False(t, Is(nil, "NOT_FOUND"))
	assert.False(t, Is(fmt.Errorf("plain"), "NOT_FOUND"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Unavailable("store unreachable", nil)))
	assert.False(t, IsRetryable(Validation("bad input", nil)))
	assert.False(t, IsRetryable(Internal("boom", nil)))
}

func TestConstructorStatuses(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("x", nil).Status)
	assert.Equal(t, http.StatusNotFound, NotFound("x", nil).Status)
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("x", nil).Status)
	assert.Equal(t, http.StatusForbidden, Forbidden("x", nil).Status)
	assert.Equal(t, http.StatusConflict, Conflict("x").Status)
	assert.Equal(t, http.StatusServiceUnavailable, Unavailable("x", nil).Status)
	assert.Equal(t, http.StatusInternalServerError, Internal("x", nil).Status)
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("rpc error")
	err := Unavailable("store unreachable", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "UNAVAILABLE: store unreachable", err.Error())
}
