package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/functree/modules/functionality/infrastructure/persistence"
	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/eventbus"
	"github.com/iota-uz/functree/pkg/logging"
)

// backend is the service plus the context it must be called with.
type backend struct {
	ctx      context.Context
	tenantID uuid.UUID
	svc      *services.FunctionalityService
	memory   *persistence.MemoryRepository
	close    func()
}

type backendOptions struct {
	tenant  string
	fixture string
}

func (o *backendOptions) bind(flags interface {
	StringVar(p *string, name, value, usage string)
}) {
	flags.StringVar(&o.tenant, "tenant", "", "tenant uuid (defaults to the fixture tenant or "+defaultTenant+")")
	flags.StringVar(&o.fixture, "fixture", "", "YAML fixture to load into an in-memory store instead of PostgreSQL")
}

func openBackend(ctx context.Context, opts backendOptions) (*backend, error) {
	logger := logging.ConsoleLogger(logrus.WarnLevel)
	bus := eventbus.NewEventPublisher(logger)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(logger))

	if strings.TrimSpace(opts.fixture) != "" {
		fx, err := readFixture(opts.fixture)
		if err != nil {
			return nil, err
		}
		tenantID, err := resolveTenant(opts.tenant, fx.Tenant)
		if err != nil {
			return nil, err
		}
		repo := persistence.NewMemoryRepository()
		if err := fx.load(ctx, repo, tenantID); err != nil {
			return nil, err
		}
		return &backend{
			ctx:      ctx,
			tenantID: tenantID,
			svc:      services.NewFunctionalityService(repo, repo, nil, bus),
			memory:   repo,
			close:    func() {},
		}, nil
	}

	tenantID, err := resolveTenant(opts.tenant, "")
	if err != nil {
		return nil, err
	}
	pool, err := openPool(ctx)
	if err != nil {
		return nil, err
	}
	conf := configuration.Use()
	svc := services.NewFunctionalityService(
		persistence.NewFunctionalityRepository(),
		persistence.NewPgTxRunner(conf.Tree.TxIsolation),
		nil,
		bus,
	)
	return &backend{
		ctx:      composables.WithPool(ctx, pool),
		tenantID: tenantID,
		svc:      svc,
		close:    pool.Close,
	}, nil
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := configuration.Use()
	dsn := strings.TrimSpace(cfg.Database.Opts)
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	return pgxpool.New(ctx, dsn)
}

func resolveTenant(flag, fallback string) (uuid.UUID, error) {
	raw := strings.TrimSpace(flag)
	if raw == "" {
		raw = strings.TrimSpace(fallback)
	}
	if raw == "" {
		raw = defaultTenant
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --tenant: %w", err)
	}
	return id, nil
}

func parseOptionalUUID(raw, flag string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return &id, nil
}

// saveFixture writes the in-memory tree back as a fixture. It is a no-op when
// path is empty.
func (b *backend) saveFixture(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if b.memory == nil {
		return errors.New("--save requires --fixture")
	}
	roots, err := b.svc.GetTree(b.ctx, b.tenantID)
	if err != nil {
		return err
	}
	return writeFixture(path, fixtureFromTree(b.tenantID, roots))
}
