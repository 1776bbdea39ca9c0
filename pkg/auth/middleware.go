package auth

import (
	"log/slog"
	"net/http"

	"github.com/werkbank-dev/werkbank/pkg/observability"
	"github.com/werkbank-dev/werkbank/pkg/storage"
)

// Middleware creates HTTP middleware from a Chain and optional RateLimiter.
// It checks the bypass list, runs authentication, injects identity and
// tenant context, and enforces rate limits when a limiter is configured.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision == No {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				writeJSONError(w, http.StatusUnauthorized, "invalid_request", "authentication required")
				return
			}

			if result.Decision != Yes || result.Identity == nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid_request", "authentication required")
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeJSONError(w, http.StatusInternalServerError, "server_error", "internal authentication error")
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.ServiceTier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(result.Identity.ServiceTier).Inc()
					writeJSONError(w, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
					return
				}
			}

			ctx := SetIdentity(r.Context(), result.Identity)

			// Tenant scoping for conversation storage.
			if tenantID := result.Identity.TenantID(); tenantID != "" {
				ctx = storage.SetTenant(ctx, tenantID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeJSONError writes the structured error body. The messages here are
// fixed strings, so the body is assembled without a json.Marshal round.
func writeJSONError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"type":"` + errType + `","message":"` + message + `"}}`))
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/api/health", "/metrics"}
