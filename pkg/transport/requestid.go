package transport

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// requestIDHeader is the canonical request ID header.
const requestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns a unique request ID to each
// request. If the client supplied an X-Request-ID header, that value is
// used; otherwise a new unique ID is generated. The ID is stored in the
// request context (see RequestIDFromContext) and echoed back on the
// response so clients can correlate logs.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = generateRequestID()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), id)))
		})
	}
}

// generateRequestID creates a new unique request ID as a hex string.
func generateRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
