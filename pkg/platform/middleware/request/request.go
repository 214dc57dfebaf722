// Package request stamps per-request metadata onto the context: the request
// ID (propagated from X-Request-ID or generated) and the request arrival
// time, so services and stores observe one consistent clock per request.
package request

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"examgate/pkg/requestcontext"
)

// HeaderRequestID is the inbound and outbound request ID header.
const HeaderRequestID = "X-Request-ID"

// Metadata injects the request ID and arrival time into the context and
// echoes the ID on the response. Apply it first in the chain.
func Metadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
