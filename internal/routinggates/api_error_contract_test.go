package routinggates

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/functree/pkg/logging"
	"github.com/iota-uz/functree/pkg/middleware"
)

type apiError struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta"`
}

func TestAPIErrorContracts_JSONOnly_For404And405(t *testing.T) {
	srv := buildServer(t)

	t.Run("404_internal_api_is_json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/functionalities/api/__nonexistent__", nil)
		req.Header.Set("X-Request-ID", "req-404")
		rr := serve(t, srv, req)

		require.Equal(t, http.StatusNotFound, rr.Code)
		require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json"))

		var payload apiError
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
		require.Equal(t, "NOT_FOUND", payload.Code)
		require.Equal(t, "/functionalities/api/__nonexistent__", payload.Meta["path"])
		require.Equal(t, "req-404", payload.Meta["request_id"])
	})

	t.Run("405_internal_api_is_json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "http://example.com/functionalities/api/tree", nil)
		rr := serve(t, srv, req)

		require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		var payload apiError
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
		require.Equal(t, "METHOD_NOT_ALLOWED", payload.Code)
		require.Equal(t, "/functionalities/api/tree", payload.Meta["path"])
	})

	t.Run("missing_tenant_is_json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/functionalities/api/tree", nil)
		rr := serve(t, srv, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var payload apiError
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
		require.Equal(t, "FUNCTREE_NO_TENANT", payload.Code)
	})
}

func TestAPIErrorContracts_PanicRecovery_IsJSON(t *testing.T) {
	opts := middleware.DefaultLoggerOptions()
	opts.Entrypoint = "server"

	h := middleware.WithLogger(logging.ConsoleLogger(logrus.PanicLevel), opts)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com/functionalities/api/panic", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json"))

	var payload apiError
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Code)
	require.Equal(t, "/functionalities/api/panic", payload.Meta["path"])
	require.NotEmpty(t, payload.Meta["request_id"])
}
