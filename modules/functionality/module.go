package functionality

import (
	"embed"
	"io/fs"

	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/functree/modules/functionality/infrastructure/persistence"
	"github.com/iota-uz/functree/modules/functionality/presentation/controllers"
	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/application"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/outbox"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

// ModuleOptions overrides the storage wiring. Zero values select the
// PostgreSQL repository and the cache backend named by configuration.
type ModuleOptions struct {
	Repository services.NodeRepository
	TxRunner   services.TxRunner
	Cache      services.TreeCache
	Tree       *configuration.TreeOptions
	Outbox     *configuration.OutboxOptions
	RedisURL   string
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{opts: opts}
}

type Module struct {
	opts *ModuleOptions
}

// Schema returns the goose migrations of the functionality tables.
func Schema() fs.FS {
	sub, err := fs.Sub(migrationFiles, "infrastructure/persistence/schema")
	if err != nil {
		panic(err)
	}
	return sub
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(Schema())

	repo, tx := m.opts.Repository, m.opts.TxRunner
	postgres := repo == nil || tx == nil
	if postgres {
		tree := m.treeOptions()
		repo = persistence.NewFunctionalityRepository()
		tx = persistence.NewPgTxRunner(tree.TxIsolation)
	}
	cache := m.opts.Cache
	if cache == nil {
		cache = m.newCache()
	}

	svc := services.NewFunctionalityService(repo, tx, cache, app.EventPublisher())
	if postgres {
		if box := m.outboxOptions(); box.Enabled {
			table, err := outbox.ParseIdentifier(box.Table)
			if err != nil {
				return err
			}
			svc.WithOutbox(persistence.NewPgEventOutbox(table))
		}
	}
	app.RegisterServices(svc)
	if hub := app.Websocket(); hub != nil {
		app.EventPublisher().Subscribe(controllers.BroadcastNodeEvent(hub))
	}

	app.RegisterControllers(
		controllers.NewFunctionalityAPIController(app),
		controllers.NewFunctionalityLiveController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "functionality"
}

func (m *Module) treeOptions() configuration.TreeOptions {
	if m.opts.Tree != nil {
		return *m.opts.Tree
	}
	return configuration.Use().Tree
}

func (m *Module) outboxOptions() configuration.OutboxOptions {
	if m.opts.Outbox != nil {
		return *m.opts.Outbox
	}
	return configuration.Use().Outbox
}

func (m *Module) newCache() services.TreeCache {
	tree := m.treeOptions()
	switch tree.Cache {
	case "memory":
		return services.NewMemoryTreeCache(tree.CacheTTL)
	case "redis":
		addr := m.opts.RedisURL
		if addr == "" {
			addr = configuration.Use().RedisURL
		}
		return persistence.NewRedisTreeCache(redis.NewClient(&redis.Options{Addr: addr}), tree.CacheTTL)
	default:
		return services.NewNoopTreeCache()
	}
}
