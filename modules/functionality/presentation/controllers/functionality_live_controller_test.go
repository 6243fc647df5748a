package controllers_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/functree/modules/functionality"
	"github.com/iota-uz/functree/modules/functionality/domain/events"
	"github.com/iota-uz/functree/modules/functionality/infrastructure/persistence"
	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/application"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/logging"
)

func TestFunctionalityLive_StreamsNodeEvents(t *testing.T) {
	logger := logging.ConsoleLogger(logrus.ErrorLevel)
	hub := application.NewHub(&application.HuberOptions{Logger: logger})
	repo := persistence.NewMemoryRepository()
	app := application.New(&application.ApplicationOptions{Logger: logger, Huber: hub})
	require.NoError(t, functionality.NewModule(&functionality.ModuleOptions{
		Repository: repo,
		TxRunner:   repo,
		Tree:       &configuration.TreeOptions{Cache: "disabled"},
	}).Register(app))

	r := mux.NewRouter()
	for _, c := range app.Controllers() {
		c.Register(r)
	}
	srv := httptest.NewServer(r)
	defer srv.Close()

	tenantID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/functionalities/ws?tenant=" + tenantID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()
	require.Eventually(t, func() bool {
		return hub.ConnectionsInChannel(application.TenantChannel(tenantID)) == 1
	}, time.Second, 10*time.Millisecond)

	tree := app.Service(services.FunctionalityService{}).(*services.FunctionalityService)
	created, err := tree.CreateNode(t.Context(), tenantID, services.CreateNodeInput{
		Kind:     services.NodeKindFolder,
		Name:     "Root",
		Position: services.PositionLastChild,
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev events.NodeEventV1
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, events.ChangeNodeCreated, ev.ChangeType)
	assert.Equal(t, created.ID, ev.NodeID)
	assert.Equal(t, tenantID, ev.TenantID)
	require.NotNil(t, ev.NewPosition)
	assert.Nil(t, ev.NewPosition.ParentID)
}
