package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vanshika/quickpay/internal/app"
	"github.com/vanshika/quickpay/internal/generator"
	"github.com/vanshika/quickpay/internal/stream"
)

func main() {
	defaults := generator.DefaultConfig()
	var (
		tablesPath  = flag.String("tables", "", "YAML file overriding the generator tables")
		users       = flag.Int("users", 0, fmt.Sprintf("number of users to generate (default %d)", defaults.NumUsers))
		days        = flag.Int("days", 0, fmt.Sprintf("days of activity to generate (default %d)", defaults.Days))
		start       = flag.String("start", "", "first day of the window, YYYY-MM-DD (default "+defaults.StartDate.Format("2006-01-02")+")")
		seed        = flag.Int64("seed", 0, fmt.Sprintf("random seed for deterministic generation (default %d)", defaults.Seed))
		outputDir   = flag.String("output-dir", "", "directory to write the dataset files (default paths.data_dir)")
		writeStdout = flag.Bool("stdout", false, "write the combined dataset to stdout instead of files")
		publish     = flag.Bool("publish", false, "also publish events to the configured Kafka topic")
	)
	flag.Parse()

	a, err := app.New("datagen")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := a.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := defaults
	if path := firstNonEmpty(*tablesPath, a.Config.Paths.Tables); path != "" {
		if cfg, err = generator.LoadConfig(path); err != nil {
			logger.Error("failed to load generator tables", "path", path, "error", err)
			os.Exit(1)
		}
	}
	if *users != 0 {
		cfg.NumUsers = *users
	}
	if *days != 0 {
		cfg.Days = *days
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *start != "" {
		if cfg.StartDate, err = time.Parse("2006-01-02", *start); err != nil {
			logger.Error("invalid start date", "start", *start, "error", err)
			os.Exit(1)
		}
	}

	gen, err := generator.New(cfg)
	if err != nil {
		logger.Error("invalid generator config", "error", err)
		os.Exit(1)
	}

	began := time.Now()
	dataset, err := gen.Generate(ctx)
	if err != nil {
		logger.Error("generation failed", "error", err)
		os.Exit(1)
	}
	a.Metrics.RecordsGenerated("users", len(dataset.Users))
	a.Metrics.RecordsGenerated("events", len(dataset.Events))
	a.Metrics.RecordsGenerated("transactions", len(dataset.Transactions))
	logger.Info("dataset generated",
		"users", len(dataset.Users),
		"events", len(dataset.Events),
		"transactions", len(dataset.Transactions),
		"seed", cfg.Seed,
		"elapsed", time.Since(began))

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			logger.Error("failed to write dataset to stdout", "error", err)
			os.Exit(1)
		}
	} else {
		dir := firstNonEmpty(*outputDir, a.Config.Paths.DataDir)
		if err := generator.WriteDataset(dataset, dir); err != nil {
			logger.Error("failed to write dataset", "dir", dir, "error", err)
			os.Exit(1)
		}
		logger.Info("dataset written", "dir", dir)
	}

	if *publish {
		if len(a.Config.Kafka.Brokers) == 0 {
			logger.Error("kafka publishing requested but no brokers are configured")
			os.Exit(1)
		}
		publisher := stream.NewPublisher(stream.NewWriter(a.Config.Kafka), a.Config.Kafka, logger, a.Metrics)
		sent, err := publisher.PublishEvents(ctx, dataset.Events)
		if cerr := publisher.Close(); cerr != nil {
			logger.Warn("closing kafka writer failed", "error", cerr)
		}
		if err != nil {
			logger.Error("event publishing failed", "sent", sent, "error", err)
			os.Exit(1)
		}
	}

	if err := a.Close(context.Background()); err != nil {
		logger.Warn("shutdown failed", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
