package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/functree/pkg/constants"
)

// Provide stores v under k in every request context.
func Provide(k constants.ContextKey, v any) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), k, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
