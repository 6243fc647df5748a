package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, srv *httptest.Server, tenantID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?tenant=" + tenantID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_ForEachReachesTenantChannelOnly(t *testing.T) {
	hub := NewHub(&HuberOptions{Logger: logrus.New()})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	tenantA, tenantB := uuid.New(), uuid.New()
	connA := dialHub(t, srv, tenantA)
	connB := dialHub(t, srv, tenantB)

	require.Eventually(t, func() bool {
		return hub.ConnectionsInChannel(TenantChannel(tenantA)) == 1 &&
			hub.ConnectionsInChannel(TenantChannel(tenantB)) == 1
	}, time.Second, 10*time.Millisecond)

	visited := 0
	require.NoError(t, hub.ForEach(TenantChannel(tenantA), func(_ context.Context, conn Connection) error {
		visited++
		assert.Equal(t, tenantA, conn.TenantID())
		return conn.SendMessage([]byte(`{"hello":"a"}`))
	}))
	assert.Equal(t, 1, visited)

	require.NoError(t, connA.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := connA.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"a"}`, string(msg))

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = connB.ReadMessage()
	require.Error(t, err)
}

func TestHub_LeavesChannelOnClose(t *testing.T) {
	hub := NewHub(&HuberOptions{Logger: logrus.New()})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	tenantID := uuid.New()
	conn := dialHub(t, srv, tenantID)
	require.Eventually(t, func() bool {
		return hub.ConnectionsInChannel(TenantChannel(tenantID)) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.ConnectionsInChannel(TenantChannel(tenantID)) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_RejectsMissingTenant(t *testing.T) {
	hub := NewHub(&HuberOptions{})
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
