package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	err := Wrap(ErrInvalidCredentials, "invalid admin password")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "invalid admin password", err.Error())

	de := ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "INVALID_CREDENTIALS", de.Code)
	assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
}

func TestWrapCauseMatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapCause(ErrTransportFailure, cause)

	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "nil", err: nil},
		{name: "sentinel", err: ErrNotAuthorized, wantCode: "NOT_AUTHORIZED", wantStatus: http.StatusForbidden},
		{name: "wrapped by fmt", err: fmt.Errorf("delete: %w", ErrNotAuthenticated), wantCode: "NOT_AUTHENTICATED", wantStatus: http.StatusUnauthorized},
		{name: "no rows", err: sql.ErrNoRows, wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "validation", err: NewValidationError("title required", nil), wantCode: "VALIDATION_FAILED", wantStatus: http.StatusBadRequest},
		{name: "conflict", err: NewConflict("email already registered", nil), wantCode: "ALREADY_EXISTS", wantStatus: http.StatusConflict},
		{name: "unknown", err: errors.New("boom"), wantCode: "INTERNAL_ERROR", wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			if tc.err == nil {
				assert.Nil(t, de)
				return
			}
			require.NotNil(t, de)
			assert.Equal(t, tc.wantCode, de.Code)
			assert.Equal(t, tc.wantStatus, de.HTTPStatus)
		})
	}
}

func TestNewNotFoundIsNotFound(t *testing.T) {
	err := NewNotFound("complaint", map[string]any{"id": "complaint-1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "complaint not found", err.Error())
}
