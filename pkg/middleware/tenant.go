package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/docsearch-io/docsearch/internal/tenant"
)

// Tenant resolves the caller's tenant and binds it to the request context.
// The X-Tenant-Id header is authoritative; on the search route a tenant
// query parameter is accepted as a fallback for browser clients. Requests
// without a tenant are rejected before they reach a handler. Health and
// metrics paths are exempt.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isTenantExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tenantID := strings.TrimSpace(r.Header.Get(tenant.Header))
		if tenantID == "" && strings.HasPrefix(r.URL.Path, "/api/v1/search") {
			tenantID = strings.TrimSpace(r.URL.Query().Get("tenant"))
		}
		if tenantID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "missing tenant: set the " + tenant.Header + " header",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithID(r.Context(), tenantID)))
	})
}

func isTenantExempt(path string) bool {
	return path == "/api/v1/health" ||
		strings.HasPrefix(path, "/health/") ||
		path == "/metrics"
}
