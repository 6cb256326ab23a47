package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanshika/quickpay/internal/analytics"
	"github.com/vanshika/quickpay/internal/app"
	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/generator"
)

func main() {
	var (
		fromFiles = flag.String("from-files", "", "build the views from generated JSON files in this directory instead of the warehouse")
		outputDir = flag.String("output-dir", "", "export directory (default paths.export_dir)")
	)
	flag.Parse()

	a, err := app.New("export")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		a.Config.Paths.ExportDir = *outputDir
	}

	code := 0
	if err := run(a, *fromFiles); err != nil {
		a.Logger.Error("export failed", "error", err)
		code = 1
	}
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn("shutdown failed", "error", err)
	}
	os.Exit(code)
}

func run(a *app.Application, fromFiles string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		ds  domain.Dataset
		err error
	)
	if fromFiles != "" {
		ds, err = generator.ReadDataset(fromFiles)
	} else {
		wh, werr := a.Warehouse(ctx)
		if werr != nil {
			return werr
		}
		ds, err = wh.Snapshot(ctx)
	}
	if err != nil {
		return err
	}

	views := analytics.Build(ds)
	if err := analytics.ValidateViews(views); err != nil {
		return err
	}
	res, err := a.Exporter().Export(ctx, views)
	if err != nil {
		return err
	}
	for _, f := range res.Files {
		fmt.Fprintln(os.Stdout, f)
	}
	return nil
}
