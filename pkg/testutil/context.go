package testutil

import (
	"net/http"
	"time"

	"examgate/pkg/requestcontext"
)

// WithRequestID stamps a request ID onto the request context, simulating the
// request metadata middleware for handler tests that bypass the full chain.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request clock, so time-dependent assertions are
// deterministic.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}
