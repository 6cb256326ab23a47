// Package app assembles the shared runtime of the command binaries:
// configuration, logging, tracing, metrics and the backing stores.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vanshika/quickpay/internal/config"
	"github.com/vanshika/quickpay/internal/exporter"
	"github.com/vanshika/quickpay/internal/graph"
	"github.com/vanshika/quickpay/internal/logging"
	"github.com/vanshika/quickpay/internal/metrics"
	"github.com/vanshika/quickpay/internal/notify"
	"github.com/vanshika/quickpay/internal/pipeline"
	"github.com/vanshika/quickpay/internal/quality"
	"github.com/vanshika/quickpay/internal/telemetry"
	"github.com/vanshika/quickpay/internal/warehouse"
)

// Application holds what every command needs. Close releases it in reverse
// order of acquisition.
type Application struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Collectors

	closers []func(context.Context) error
}

// New loads configuration and starts logging, metrics and tracing.
func New(component string) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging).With("component", component, "environment", cfg.Environment)

	shutdown, err := telemetry.Setup(cfg.Tracing, logger)
	if err != nil {
		return nil, err
	}
	a := &Application{Config: cfg, Logger: logger, Metrics: metrics.New()}
	a.onClose(shutdown)
	return a, nil
}

func (a *Application) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close runs the registered closers and joins their errors.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Warehouse connects to PostgreSQL. The pool is closed with the application.
func (a *Application) Warehouse(ctx context.Context) (*warehouse.Warehouse, error) {
	db, err := warehouse.Open(ctx, a.Config.Warehouse, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	a.onClose(func(context.Context) error { return db.Close() })
	return warehouse.New(db, a.Logger, a.Metrics), nil
}

// Graph connects to Neo4j. It returns a nil client and no error when no
// graph URI is configured.
func (a *Application) Graph(ctx context.Context) (graph.Client, error) {
	if a.Config.Graph.URI == "" {
		return nil, nil
	}
	client, err := graph.NewNeo4jClient(ctx, a.Config.Graph)
	if err != nil {
		return nil, err
	}
	a.onClose(client.Close)
	return client, nil
}

// Notifier builds the webhook notifier.
func (a *Application) Notifier() *notify.Notifier {
	return notify.New(a.Config.Webhook, a.Config.Environment, a.Logger, notify.WithMetrics(a.Metrics))
}

// QualityRunner builds a check runner over db.
func (a *Application) QualityRunner(db *sql.DB) *quality.Runner {
	return quality.NewRunner(db, a.Logger,
		quality.WithMetrics(a.Metrics),
		quality.WithCheckTimeout(a.Config.Warehouse.QueryTimeout))
}

// Exporter builds the BI exporter for the configured export directory.
func (a *Application) Exporter() *exporter.Exporter {
	return exporter.New(a.Config.Paths.ExportDir, a.Logger, a.Metrics)
}

// Launcher wires the flows to the warehouse, quality runner, exporter and
// notifier.
func (a *Application) Launcher(wh *warehouse.Warehouse) *pipeline.Launcher {
	flows := pipeline.NewFlows(pipeline.Deps{
		Store:    wh,
		Quality:  a.QualityRunner(wh.DB()),
		Exporter: a.Exporter(),
		Notifier: a.Notifier(),
		Config:   a.Config,
		Logger:   a.Logger,
	})
	return pipeline.NewLauncher(pipeline.NewRunner(a.Config.Pipeline, a.Logger, a.Metrics), flows)
}
