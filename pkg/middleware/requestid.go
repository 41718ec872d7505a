package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/docsearch-io/docsearch/pkg/logger"
)

// RequestIDHeader carries the request id on both request and response.
const RequestIDHeader = "X-Request-Id"

// RequestID binds a request id to the context, reusing the caller's header
// when present and minting one otherwise. The id is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
