package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanshika/quickpay/internal/app"
	"github.com/vanshika/quickpay/internal/generator"
	"github.com/vanshika/quickpay/internal/repository"
	"github.com/vanshika/quickpay/internal/service"
)

func main() {
	var (
		datasetDir = flag.String("dataset-dir", "", "directory containing the generated JSON files (default paths.data_dir)")
		skipGraph  = flag.Bool("skip-graph", false, "load the warehouse only, even when a graph is configured")
		workers    = flag.Int("workers", 0, "concurrent graph writers (default graph.workers)")
	)
	flag.Parse()

	a, err := app.New("ingest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := run(a, *datasetDir, *skipGraph, *workers); err != nil {
		a.Logger.Error("ingestion failed", "error", err)
		_ = a.Close(context.Background())
		os.Exit(1)
	}
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn("shutdown failed", "error", err)
	}
}

func run(a *app.Application, datasetDir string, skipGraph bool, workers int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if datasetDir == "" {
		datasetDir = a.Config.Paths.DataDir
	}
	dataset, err := generator.ReadDataset(datasetDir)
	if err != nil {
		return fmt.Errorf("read dataset from %s: %w", datasetDir, err)
	}
	if len(dataset.Users) == 0 {
		return fmt.Errorf("users dataset in %s is empty", datasetDir)
	}

	wh, err := a.Warehouse(ctx)
	if err != nil {
		return err
	}
	if err := wh.EnsureSchema(ctx); err != nil {
		return err
	}
	stats, err := wh.Load(ctx, dataset)
	if err != nil {
		return err
	}
	a.Logger.Info("warehouse loaded", "users", stats.Users, "events", stats.Events, "transactions", stats.Transactions)

	if skipGraph {
		return nil
	}
	client, err := a.Graph(ctx)
	if err != nil {
		return fmt.Errorf("connect graph: %w", err)
	}
	if client == nil {
		a.Logger.Info("graph not configured, skipping graph load")
		return nil
	}

	repo := repository.New(client)
	if err := repo.EnsureConstraints(ctx); err != nil {
		return err
	}
	if workers <= 0 {
		workers = a.Config.Graph.Workers
	}
	ingestor := service.NewBulkIngestor(repo, workers, a.Config.Graph.BatchSize, a.Logger, a.Metrics)
	_, err = ingestor.IngestDataset(ctx, dataset)
	return err
}
