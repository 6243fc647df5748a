package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/functree/modules/functionality/domain/events"
	"github.com/iota-uz/functree/pkg/application"
	"github.com/iota-uz/functree/pkg/composables"
)

// FunctionalityLiveController exposes the websocket endpoint that streams
// committed node events to clients of the same tenant.
type FunctionalityLiveController struct {
	hub  application.Huber
	path string
}

func NewFunctionalityLiveController(app application.Application) application.Controller {
	return &FunctionalityLiveController{
		hub:  app.Websocket(),
		path: "/functionalities/ws",
	}
}

func (c *FunctionalityLiveController) Key() string {
	return c.path
}

func (c *FunctionalityLiveController) Register(r *mux.Router) {
	if c.hub == nil {
		return
	}
	r.Handle(c.path, c.hub).Methods(http.MethodGet)
}

// BroadcastNodeEvent returns an event bus handler pushing node events to the
// tenant channel of hub.
func BroadcastNodeEvent(hub application.Huber) func(ev *events.NodeEventV1) {
	return func(ev *events.NodeEventV1) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		_ = hub.ForEach(application.TenantChannel(ev.TenantID), func(ctx context.Context, conn application.Connection) error {
			if err := conn.SendMessage(payload); err != nil {
				if logger, ok := composables.TryUseLogger(ctx); ok {
					logger.WithError(err).WithField("node_id", ev.NodeID.String()).Debug("functree.live.send_failed")
				}
				return err
			}
			return nil
		})
	}
}
