package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/functree/internal/server"
	"github.com/iota-uz/functree/modules"
	"github.com/iota-uz/functree/modules/functionality"
	"github.com/iota-uz/functree/pkg/application"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/eventbus"
	"github.com/iota-uz/functree/pkg/logging"
	"github.com/iota-uz/functree/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to " + conf.OpenTelemetry.TempoURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Huber: application.NewHub(&application.HuberOptions{
			Pool:         pool,
			Logger:       logger,
			TenantHeader: conf.TenantHeader,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		}),
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
		Entrypoint:    "server",
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Outbox.Enabled && conf.Outbox.RelayEnabled {
		outboxLog := logger.WithField("component", "outbox")
		relay, err := functionality.NewOutboxRelay(pool, app.EventPublisher(), conf.Outbox, outboxLog)
		if err != nil {
			log.Fatalf("failed to create outbox relay: %v", err)
		}
		go func() {
			if err := relay.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				outboxLog.WithError(err).Error("outbox: relay stopped")
			}
		}()
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(runCtx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
