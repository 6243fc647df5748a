package server

import (
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/functree/pkg/application"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/constants"
	"github.com/iota-uz/functree/pkg/middleware"
	"github.com/iota-uz/functree/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
	Entrypoint    string
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.Entrypoint = options.Entrypoint
	middlewares := []mux.MiddlewareFunc{
		// Opens the root span of each request.
		middleware.WithLogger(options.Logger, loggerOpts),

		middleware.TracedMiddleware("database"),
		middleware.Provide(constants.AppKey, app),
		middleware.Provide(constants.PoolKey, options.Pool),

		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.AllowedOrigins...),

		middleware.TracedMiddleware("tenant"),
		middleware.WithTenantFromHeader(conf.TenantHeader),
	}
	app.RegisterMiddleware(middlewares...)
	app.RegisterControllers(NewHealthController(options.Pool))

	return server.NewHTTPServer(app, NotFound(), MethodNotAllowed()), nil
}
