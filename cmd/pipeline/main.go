package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vanshika/quickpay/internal/app"
	"github.com/vanshika/quickpay/internal/pipeline"
)

func main() {
	flowNames := strings.Join([]string{pipeline.FlowDailyMetrics, pipeline.FlowDataQuality, pipeline.FlowBIRefresh}, ", ")
	var (
		flowName = flag.String("flow", pipeline.FlowDailyMetrics, "flow to run: "+flowNames)
		asJSON   = flag.Bool("json", false, "print the run result as JSON")
	)
	flag.Parse()

	a, err := app.New("pipeline")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	code := 0
	if err := run(a, *flowName, *asJSON); err != nil {
		a.Logger.Error("flow run failed", "flow", *flowName, "error", err)
		code = 1
	}
	if err := a.Close(context.Background()); err != nil {
		a.Logger.Warn("shutdown failed", "error", err)
	}
	os.Exit(code)
}

func run(a *app.Application, name string, asJSON bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wh, err := a.Warehouse(ctx)
	if err != nil {
		return err
	}
	res, runErr := a.Launcher(wh).Launch(ctx, name)
	if res != nil {
		printResult(res, asJSON)
	}
	return runErr
}

func printResult(res *pipeline.Result, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}
	fmt.Fprintf(os.Stdout, "%s run %s: %s\n", res.Flow, res.RunID, res.Status)
	for _, st := range res.Steps {
		line := fmt.Sprintf("  %-26s %-9s attempts=%d", st.ID, st.Status, st.Attempts)
		if st.Error != "" {
			line += "  " + st.Error
		}
		fmt.Fprintln(os.Stdout, line)
	}
}
