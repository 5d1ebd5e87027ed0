package llm

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/fixflow/types"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		msg           string
		wantCode      types.ErrorCode
		wantRetryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, "bad key", types.ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, "no access", types.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, "slow down", types.ErrRateLimited, true},
		{"bad request", http.StatusBadRequest, "malformed", types.ErrInvalidRequest, false},
		{"unavailable", http.StatusServiceUnavailable, "down", types.ErrServiceUnavailable, true},
		{"bad gateway", http.StatusBadGateway, "proxy error", types.ErrServiceUnavailable, true},
		{"overloaded", 529, "overloaded", types.ErrModelOverloaded, true},
		{"request timeout", http.StatusRequestTimeout, "slow", types.ErrUpstreamTimeout, false},
		{"timeout in message", http.StatusInternalServerError, "upstream timeout reached", types.ErrUpstreamTimeout, true},
		{"plain 500", http.StatusInternalServerError, "boom", types.ErrBackendError, true},
		{"client error", http.StatusNotFound, "no such model", types.ErrBackendError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "openai")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, "openai", err.Provider)
			assert.Equal(t, tt.msg, err.Message)
		})
	}
}
