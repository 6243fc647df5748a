package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/httpapi"
)

func NotFound() http.Handler {
	return routeError(http.StatusNotFound, "NOT_FOUND", "route not found")
}

func MethodNotAllowed() http.Handler {
	return routeError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

func routeError(status int, code, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.NewError(status, code, message).
			WithPath(r).
			WithRequestID(composables.UseRequestID(r.Context())).
			Write(w)
	})
}

// HealthController reports process liveness and database reachability.
type HealthController struct {
	pool *pgxpool.Pool
}

func NewHealthController(pool *pgxpool.Pool) *HealthController {
	return &HealthController{pool: pool}
}

func (c *HealthController) Key() string {
	return "/health"
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc("/health", c.Health).Methods(http.MethodGet)
}

func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	type healthResponse struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	resp := healthResponse{Status: "ok", Database: "disabled"}
	if c.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.pool.Ping(ctx); err != nil {
			resp.Status, resp.Database = "degraded", "unreachable"
			_ = httpapi.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}
