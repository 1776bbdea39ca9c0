package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/werkbank-dev/werkbank/pkg/api"
)

// Recovery returns middleware that catches panics in the handler chain and
// converts them to server error responses. The server continues to accept
// new requests after a panic is recovered. If the handler already started
// writing the response, the error body is skipped and only the panic is
// logged.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &recoveryWriter{ResponseWriter: w}
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						"request_id", RequestIDFromContext(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					if !rw.wrote {
						WriteAPIError(rw, api.NewServerError(fmt.Sprintf("internal server error: %v", rec)))
					}
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// recoveryWriter tracks whether the response has been started, so the
// recovery handler knows if it can still write an error body.
type recoveryWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *recoveryWriter) WriteHeader(status int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *recoveryWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer for http.ResponseController.
func (w *recoveryWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
