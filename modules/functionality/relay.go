package functionality

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	fnoutbox "github.com/iota-uz/functree/modules/functionality/infrastructure/outbox"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/eventbus"
	"github.com/iota-uz/functree/pkg/outbox"
)

// NewOutboxRelay builds the relay that delivers stored node events to bus.
func NewOutboxRelay(pool *pgxpool.Pool, bus eventbus.EventBus, opts configuration.OutboxOptions, logger *logrus.Entry) (*outbox.Relay, error) {
	table, err := outbox.ParseIdentifier(opts.Table)
	if err != nil {
		return nil, err
	}
	eb, ok := bus.(eventbus.EventBusWithError)
	if !ok {
		return nil, errors.New("outbox relay: event bus does not support PublishE")
	}
	return outbox.NewRelay(pool, table, fnoutbox.NewDispatcher(eb), outbox.RelayOptions{
		PollInterval: opts.PollInterval,
		BatchSize:    opts.BatchSize,
		MaxAttempts:  opts.MaxAttempts,
		LockTTL:      opts.LockTTL,
		SingleActive: opts.SingleActive,
		Retention:    opts.Retention,
		Logger:       logger,
	})
}
