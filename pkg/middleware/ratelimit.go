package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/docsearch-io/docsearch/internal/ratelimit"
	"github.com/docsearch-io/docsearch/internal/tenant"
)

// RateLimit enforces the per-tenant request quota. It runs after Tenant, so
// a request reaching it always carries a tenant id. Exempt paths skip the
// quota entirely.
func RateLimit(limiter *ratelimit.Limiter, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isTenantExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tenantID := tenant.FromContext(r.Context())
			if !limiter.Allow(r.Context(), tenantID) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded, retry later",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
