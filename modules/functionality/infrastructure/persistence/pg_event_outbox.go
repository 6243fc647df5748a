package persistence

import (
	"context"
	"encoding/json"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/functree/modules/functionality/domain/events"
	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/outbox"
)

// PgEventOutbox writes node events into the outbox table using the
// transaction of the tree write.
type PgEventOutbox struct {
	publisher outbox.Publisher
	table     pgx.Identifier
}

func NewPgEventOutbox(table pgx.Identifier) *PgEventOutbox {
	return &PgEventOutbox{publisher: outbox.NewPublisher(), table: table}
}

func (o *PgEventOutbox) Enqueue(txCtx context.Context, ev events.NodeEventV1) error {
	if !composables.HasTx(txCtx) {
		return gerrors.New("outbox enqueue requires a transaction")
	}
	tx, err := composables.UseTx(txCtx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return gerrors.Wrap(err, "encode node event")
	}
	_, err = o.publisher.Enqueue(txCtx, tx, o.table, outbox.Message{
		TenantID: ev.TenantID,
		Topic:    events.TopicNodeChangedV1,
		EventID:  ev.EventID,
		Payload:  payload,
	})
	return err
}
