package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/functree/pkg/httpapi"
)

func TestHealthController_WithoutDatabase(t *testing.T) {
	r := mux.NewRouter()
	NewHealthController(nil).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"disabled"}`, rec.Body.String())
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.Equal(t, "/nope", env.Meta["path"])

	rec = httptest.NewRecorder()
	MethodNotAllowed().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
