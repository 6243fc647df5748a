package application

import (
	"context"
	"io/fs"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/functree/pkg/eventbus"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Name() string
	Register(app Application) error
}

type MigrationManager interface {
	RegisterSchema(schemas ...fs.FS)
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) error
}

// Application is the dependency container shared by modules, the server and the CLI.
type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBus
	Websocket() Huber
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Migrations() MigrationManager
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
}
