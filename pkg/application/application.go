package application

import (
	"fmt"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/functree/pkg/eventbus"
)

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
	Logger   *logrus.Logger
	Huber    Huber
}

func New(opts *ApplicationOptions) Application {
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.NewEventPublisher(opts.Logger)
	}
	return &application{
		pool:           opts.Pool,
		eventPublisher: bus,
		websocket:      opts.Huber,
		controllers:    make(map[string]Controller),
		services:       make(map[reflect.Type]interface{}),
		migrations:     NewMigrationManager(opts.Pool, opts.Logger),
	}
}

// application with a dynamically extendable service registry
type application struct {
	pool           *pgxpool.Pool
	eventPublisher eventbus.EventBus
	websocket      Huber
	services       map[reflect.Type]interface{}
	controllers    map[string]Controller
	controllerKeys []string
	middleware     []mux.MiddlewareFunc
	migrations     MigrationManager
}

func (app *application) Websocket() Huber {
	return app.websocket
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.eventPublisher
}

func (app *application) Controllers() []Controller {
	controllers := make([]Controller, 0, len(app.controllerKeys))
	for _, key := range app.controllerKeys {
		controllers = append(controllers, app.controllers[key])
	}
	return controllers
}

func (app *application) Migrations() MigrationManager {
	return app.migrations
}

// RegisterControllers keeps first-registration order; a controller with a
// known key replaces the earlier one in place.
func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		if _, ok := app.controllers[c.Key()]; !ok {
			app.controllerKeys = append(app.controllerKeys, c.Key())
		}
		app.controllers[c.Key()] = c
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

// Service retrieves a service by its type
func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, exists := app.services[serviceType]
	if !exists {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}
