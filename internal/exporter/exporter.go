// Package exporter writes the BI views as CSV files, a combined XLSX
// workbook and a daily KPI chart.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/vanshika/quickpay/internal/analytics"
	"github.com/vanshika/quickpay/internal/metrics"
)

// ErrUnknownView is returned by ViewPath for names outside Views.
var ErrUnknownView = errors.New("unknown export view")

// Exporter writes every artifact of a BI refresh into one directory.
type Exporter struct {
	dir     string
	logger  *slog.Logger
	metrics *metrics.Collectors
}

// New returns an Exporter writing into dir.
func New(dir string, logger *slog.Logger, m *metrics.Collectors) *Exporter {
	return &Exporter{dir: dir, logger: logger, metrics: m}
}

// Dir is the output directory.
func (e *Exporter) Dir() string { return e.dir }

// Result lists the files produced by Export.
type Result struct {
	Files []string       `json:"files"`
	Rows  map[string]int `json:"rows"`
}

// Export writes one CSV per view, the workbook and the chart. A KPI view too
// short to chart is logged and skipped.
func (e *Exporter) Export(ctx context.Context, views analytics.Views) (Result, error) {
	res := Result{Rows: map[string]int{}}
	tables := Tables(views)

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		path, err := WriteCSV(e.dir, table)
		if err != nil {
			return res, fmt.Errorf("export %s: %w", table.Name, err)
		}
		res.Files = append(res.Files, path)
		res.Rows[table.Name] = len(table.Rows)
		e.metrics.ExportRows(table.Name, len(table.Rows))
		e.logger.Info("view exported", slog.String("view", table.Name), slog.Int("rows", len(table.Rows)), slog.String("path", path))
	}

	path, err := WriteWorkbook(e.dir, tables)
	if err != nil {
		return res, fmt.Errorf("export workbook: %w", err)
	}
	res.Files = append(res.Files, path)

	path, err = WriteChart(e.dir, views.DailyKPI)
	switch {
	case errors.Is(err, ErrNotEnoughPoints):
		e.logger.Warn("chart skipped", slog.Int("days", len(views.DailyKPI)))
	case err != nil:
		return res, fmt.Errorf("export chart: %w", err)
	default:
		res.Files = append(res.Files, path)
	}
	return res, nil
}

// ViewPath resolves a view name to its CSV file inside the export directory.
func (e *Exporter) ViewPath(view string) (string, error) {
	if !slices.Contains(Views, view) {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	return filepath.Join(e.dir, view+".csv"), nil
}
