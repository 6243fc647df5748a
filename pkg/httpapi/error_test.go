package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Write(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/functionalities/api/nodes", nil)
	rec := httptest.NewRecorder()

	err := NewError(http.StatusBadRequest, "FUNCTREE_INVALID_BODY", "request validation failed").
		WithRequestID("req-1").
		WithPath(req).
		WithFields(map[string]string{"name": "required", "kind": ""}).
		Write(rec)
	require.NoError(t, err)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "FUNCTREE_INVALID_BODY", env.Code)
	assert.Equal(t, map[string]string{
		"request_id": "req-1",
		"path":       "/functionalities/api/nodes",
		"field.name": "required",
	}, env.Meta)
}

func TestError_EmptyMetaIsOmitted(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, NewError(http.StatusNotFound, "NOT_FOUND", "route not found").WithRequestID("").Write(rec))
	assert.JSONEq(t, `{"code":"NOT_FOUND","message":"route not found"}`, rec.Body.String())
}
