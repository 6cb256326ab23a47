package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanshika/quickpay/internal/app"
	"github.com/vanshika/quickpay/internal/quality"
)

func main() {
	var (
		reportDir      = flag.String("report-dir", "", "directory for quality_report_*.json (default paths.report_dir)")
		notify         = flag.Bool("notify", true, "send the report to the configured webhook")
		failOnCritical = flag.Bool("fail-on-critical", false, "exit non-zero when the score is below the critical threshold")
	)
	flag.Parse()

	a, err := app.New("quality")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	code := run(a, *reportDir, *notify, *failOnCritical)
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn("shutdown failed", "error", err)
	}
	os.Exit(code)
}

func run(a *app.Application, reportDir string, notify, failOnCritical bool) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wh, err := a.Warehouse(ctx)
	if err != nil {
		a.Logger.Error("quality run aborted", "error", err)
		return 1
	}

	report := a.QualityRunner(wh.DB()).Run(ctx, quality.DefaultChecks())
	quality.RenderTable(os.Stdout, report)

	if reportDir == "" {
		reportDir = a.Config.Paths.ReportDir
	}
	path, err := quality.SaveReport(reportDir, report)
	if err != nil {
		a.Logger.Error("failed to save quality report", "error", err)
		return 1
	}
	a.Logger.Info("quality report saved", "path", path, "score", report.QualityScore, "level", quality.Escalate(report.QualityScore))

	if notify {
		if err := a.Notifier().QualityReport(ctx, report); err != nil {
			a.Logger.Warn("quality notification failed", "error", err)
		}
	}

	if failOnCritical && quality.Escalate(report.QualityScore) == quality.LevelCritical {
		return 2
	}
	return 0
}
