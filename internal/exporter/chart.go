package exporter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/vanshika/quickpay/internal/analytics"
)

// ChartFile is the name of the daily KPI chart.
const ChartFile = "daily_kpi.png"

// ErrNotEnoughPoints is returned when the KPI view spans fewer than two days.
var ErrNotEnoughPoints = errors.New("chart needs at least two days")

var (
	dauColor = drawing.Color{R: 77, G: 184, B: 255, A: 255}
	gmvColor = drawing.Color{R: 250, G: 134, B: 94, A: 255}
)

// WriteChart renders DAU (left axis) and GMV (right axis) per day to
// dir/daily_kpi.png.
func WriteChart(dir string, rows []analytics.DailyKPI) (string, error) {
	if len(rows) < 2 {
		return "", ErrNotEnoughPoints
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	days := make([]time.Time, len(rows))
	dau := make([]float64, len(rows))
	gmv := make([]float64, len(rows))
	for i, r := range rows {
		days[i] = r.Date
		dau[i] = float64(r.DAU)
		gmv[i] = float64(r.GMV)
	}

	graph := chart.Chart{
		Title: "QuickPay Daily KPI",
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 30},
		},
		Width:  1000,
		Height: 500,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "DAU",
			Range: &chart.ContinuousRange{Min: 0, Max: axisMax(dau)},
		},
		YAxisSecondary: chart.YAxis{
			Name:  "GMV (KRW)",
			Range: &chart.ContinuousRange{Min: 0, Max: axisMax(gmv)},
			ValueFormatter: func(v interface{}) string {
				if vf, ok := v.(float64); ok {
					return fmt.Sprintf("%.0fM", vf/1e6)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "DAU",
				XValues: days,
				YValues: dau,
				Style:   chart.Style{StrokeColor: dauColor, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "GMV",
				XValues: days,
				YValues: gmv,
				YAxis:   chart.YAxisSecondary,
				Style:   chart.Style{StrokeColor: gmvColor, StrokeWidth: 2},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	path := filepath.Join(dir, ChartFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return path, f.Close()
}

// axisMax pads the series maximum so flat or empty series still get a
// non-zero range.
func axisMax(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return 1
	}
	return peak * 1.1
}
