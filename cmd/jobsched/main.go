// Command jobsched runs the persistent CRON-driven HTTP job scheduler:
// catalog store, dispatch core, execution core, and REST API wired up as
// lifecycle-managed components.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nandlabs/jobsched/internal/api"
	"github.com/nandlabs/jobsched/internal/appconfig"
	"github.com/nandlabs/jobsched/internal/catalog"
	"github.com/nandlabs/jobsched/internal/dispatch"
	"github.com/nandlabs/jobsched/internal/execution"
	"github.com/nandlabs/jobsched/internal/registry"
	"github.com/nandlabs/jobsched/l3"
	"github.com/nandlabs/jobsched/lifecycle"
	"github.com/nandlabs/jobsched/rest/server"
	"github.com/nandlabs/jobsched/turbo/filters"
)

var logger = l3.Get()

func main() {
	cfg, err := appconfig.Load()
	if err != nil {
		logger.ErrorF("failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.ErrorF("failed to open catalog store: %v", err)
		os.Exit(1)
	}
	defer store.Close()
	registry.SetCatalogStore(store)

	executionCore := execution.New(store, execution.Config{
		Workers:        cfg.MaxWorkers,
		QueueSize:      cfg.WorkerQueueSize,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
	})
	registry.SetExecutionCore(executionCore)

	dispatchCore := dispatch.New(store, executionCore, cfg.RefreshInterval)
	registry.SetDispatchCore(dispatchCore)

	srv, err := server.NewServer(&server.Options{
		Id:         "jobsched-api",
		ListenHost: cfg.ListenHost,
		ListenPort: int16(cfg.ListenPort),
		Cors: &filters.CorsOptions{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Content-Type"},
		},
	})
	if err != nil {
		logger.ErrorF("failed to construct api server: %v", err)
		os.Exit(1)
	}
	if err := api.RegisterRoutes(srv); err != nil {
		logger.ErrorF("failed to register routes: %v", err)
		os.Exit(1)
	}

	manager := lifecycle.NewSimpleComponentManager()
	manager.Register(executionCore.Component())
	manager.Register(dispatchCore.Component())
	manager.Register(srv)

	manager.StartAll()
	logger.Info("jobsched started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("jobsched shutting down")
	manager.StopAll()
}

// openStore opens a Postgres-backed catalog store, or an in-memory one when
// no DATABASE_URL is configured (e.g. local development).
func openStore(ctx context.Context, databaseURL string) (catalog.Store, error) {
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory catalog store")
		return catalog.NewInMemoryStore(), nil
	}
	if err := catalog.Migrate(databaseURL); err != nil {
		return nil, err
	}
	return catalog.OpenPostgresStore(ctx, databaseURL)
}
