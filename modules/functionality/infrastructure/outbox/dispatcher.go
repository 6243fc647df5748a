package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iota-uz/functree/modules/functionality/domain/events"
	"github.com/iota-uz/functree/pkg/eventbus"
	"github.com/iota-uz/functree/pkg/outbox"
)

// Dispatcher republishes relayed node events on the in-process bus, where the
// websocket broadcaster and other subscribers pick them up.
type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func NewDispatcher(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	_ = ctx
	if d == nil || d.bus == nil {
		return fmt.Errorf("functionality outbox dispatcher: bus is nil")
	}
	if msg.Meta.Topic != events.TopicNodeChangedV1 {
		return fmt.Errorf("functionality outbox dispatcher: unsupported topic %q", msg.Meta.Topic)
	}

	var ev events.NodeEventV1
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("functionality outbox dispatcher: decode payload: %w", err)
	}
	err := d.bus.PublishE(&ev)
	if errors.Is(err, eventbus.ErrNoSubscribers) {
		return nil
	}
	return err
}
