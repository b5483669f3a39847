package compute

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{
			name:       "invalid request",
			err:        NewInvalidRequestError("Invalid flavorRef %q provided.", "9"),
			wantStatus: http.StatusBadRequest,
			wantKind:   "badRequest",
			wantMsg:    `Invalid flavorRef "9" provided.`,
		},
		{
			name:       "not found",
			err:        NewNotFoundError(MsgInstanceNotFound),
			wantStatus: http.StatusNotFound,
			wantKind:   "notFound",
			wantMsg:    MsgInstanceNotFound,
		},
		{
			name:       "malformed envelope",
			err:        NewMalformedEnvelopeError(errors.New("boom")),
			wantStatus: http.StatusBadRequest,
			wantKind:   "badRequest",
			wantMsg:    MsgMalformedBody,
		},
		{
			name:       "provider rejection at create",
			err:        NewProviderError(http.StatusBadRequest, errors.New("image not found")),
			wantStatus: http.StatusBadRequest,
			wantKind:   "badRequest",
			wantMsg:    "image not found",
		},
		{
			name:       "provider failure during action",
			err:        NewProviderError(http.StatusInternalServerError, errors.New("server locked")),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "computeFault",
			wantMsg:    "server locked",
		},
		{
			name:       "unauthorized",
			err:        NewUnauthorizedError(),
			wantStatus: http.StatusUnauthorized,
			wantKind:   "unauthorized",
			wantMsg:    MsgUnauthorized,
		},
		{
			name:       "forbidden",
			err:        NewForbiddenError(),
			wantStatus: http.StatusForbidden,
			wantKind:   "forbidden",
			wantMsg:    MsgForbidden,
		},
		{
			name:       "wrapped compute error",
			err:        fmt.Errorf("create: %w", NewNotFoundError(MsgInstanceNotFound)),
			wantStatus: http.StatusNotFound,
			wantKind:   "notFound",
			wantMsg:    MsgInstanceNotFound,
		},
		{
			name:       "unknown error",
			err:        errors.New("dial tcp 10.0.0.1:443: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "computeFault",
			wantMsg:    MsgComputeFault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := Envelope(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			require.Len(t, body, 1)
			fault, ok := body[tt.wantKind]
			require.True(t, ok, "missing %s key", tt.wantKind)
			assert.Equal(t, tt.wantStatus, fault.Code)
			assert.Equal(t, tt.wantMsg, fault.Message)
		})
	}
}

func TestEnvelope_ZeroStatusIsComputeFault(t *testing.T) {
	status, body := Envelope(&Error{Kind: KindProviderFailure, Message: "x"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "computeFault")
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewNotFoundError("gone"))
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindInvalidRequest))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
	assert.False(t, IsKind(nil, KindNotFound))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("rate limited")
	err := NewProviderError(http.StatusInternalServerError, cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "provider_failure", err.Kind.String())
}
