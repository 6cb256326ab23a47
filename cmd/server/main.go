package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanshika/quickpay/internal/app"
	"github.com/vanshika/quickpay/internal/repository"
	"github.com/vanshika/quickpay/internal/server"
)

func main() {
	a, err := app.New("server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := a.Logger
	ctx := context.Background()

	wh, err := a.Warehouse(ctx)
	if err != nil {
		logger.Error("failed to connect warehouse", "error", err)
		os.Exit(1)
	}
	graphClient, err := a.Graph(ctx)
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		_ = a.Close(ctx)
		os.Exit(1)
	}

	var insights server.GraphInsights
	if graphClient != nil {
		insights = repository.New(graphClient)
	}
	apiHandlers := server.NewAPIHandlers(logger, a.Config.Paths.ReportDir, a.Exporter(), a.Launcher(wh), insights)

	metricsHandler := a.Metrics.Handler()
	if !a.Config.HTTP.MetricsEnabled {
		metricsHandler = nil
	}
	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.Probes{server.WarehouseHealth{DB: wh.DB()}, server.GraphHealth{Client: graphClient}},
		API:              apiHandlers,
		Metrics:          metricsHandler,
		AllowedOrigins:   a.Config.HTTP.AllowedOrigins,
		AllowCredentials: true,
	})

	srv := server.New(logger, a.Config.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("closing resources failed", "error", err)
	}
}
