package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/functree/pkg/composables"
)

// WithTenantFromHeader puts the tenant id carried by header into the request
// context. Requests without a parseable id pass through untouched so handlers
// can answer with their own error envelope.
func WithTenantFromHeader(header string) mux.MiddlewareFunc {
	if header == "" {
		header = "X-Tenant-ID"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			tenantID, err := uuid.Parse(raw)
			if err != nil || tenantID == uuid.Nil {
				if logger, ok := composables.TryUseLogger(r.Context()); ok {
					logger.WithField("tenant_header", raw).Warn("invalid tenant header")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), tenantID)))
		})
	}
}
