package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vanshika/quickpay/internal/analytics"
	"github.com/vanshika/quickpay/internal/logging"
	"github.com/vanshika/quickpay/internal/metrics"
)

var monday = time.Date(2025, 11, 17, 0, 0, 0, 0, time.UTC)

func sampleViews() analytics.Views {
	return analytics.Views{
		DailyKPI: []analytics.DailyKPI{
			{Date: monday, DayName: "Monday", DAU: 120, GMV: 5_000_000, SuccessRate: 92.5, GMVPerDAU: 41667},
			{Date: monday.AddDate(0, 0, 1), DayName: "Tuesday", DAU: 130, GMV: 6_100_000, SuccessRate: 91, GMVPerDAU: 46923},
		},
		Retention: []analytics.RetentionRow{
			{CohortWeek: monday, DayN: 0, ActiveUsers: 40, CohortSize: 50, RetentionRate: 80},
		},
		Funnel: []analytics.FunnelStep{
			{StepOrder: 1, StepName: "Step 1: Signup Started", Users: 10, PctFromStart: 100, PctFromPrev: 100},
			{StepOrder: 2, StepName: "Step 2: Info Submitted", Users: 8, PctFromStart: 80, PctFromPrev: 80},
		},
		TransactionSummary: []analytics.SummaryRow{
			{Month: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), TransactionType: "transfer", Status: "completed",
				BankName: "Toss Bank", Hour: 9, DayOfWeek: 1, TxnCount: 2, TotalAmount: 30000, AvgAmount: 15000, UniqueUsers: 1},
		},
	}
}

func TestWriteCSVHasBOMAndFormattedCells(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSV(dir, Tables(sampleViews())[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "daily_kpi.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "date", records[0][0])
	assert.Equal(t, "2025-11-17", records[1][0])
	assert.Equal(t, "Monday", records[1][1])
	assert.Equal(t, "120", records[1][2])
	assert.Equal(t, "5000000", records[1][8])
	assert.Equal(t, "92.5", records[1][14])
}

func TestWriteWorkbookOneSheetPerView(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteWorkbook(dir, Tables(sampleViews()))
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, Views, f.GetSheetList())

	rows, err := f.GetRows(ViewFunnel)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"step_order", "step_name", "users", "pct_from_start", "pct_from_prev"}, rows[0])
	assert.Equal(t, "Step 2: Info Submitted", rows[2][1])
	assert.Equal(t, "80", rows[2][3])
}

func TestWriteChart(t *testing.T) {
	dir := t.TempDir()
	views := sampleViews()

	path, err := WriteChart(dir, views.DailyKPI)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	_, err = WriteChart(dir, views.DailyKPI[:1])
	assert.ErrorIs(t, err, ErrNotEnoughPoints)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, logging.Discard(), metrics.New())

	res, err := e.Export(context.Background(), sampleViews())
	require.NoError(t, err)
	assert.Len(t, res.Files, 6)
	assert.Equal(t, map[string]int{ViewDailyKPI: 2, ViewRetention: 1, ViewFunnel: 2, ViewTransactionSummary: 1}, res.Rows)
	for _, f := range res.Files {
		assert.FileExists(t, f)
	}

	path, err := e.ViewPath(ViewRetention)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = e.ViewPath("../secrets")
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestExportSkipsChartForSingleDay(t *testing.T) {
	views := sampleViews()
	views.DailyKPI = views.DailyKPI[:1]

	res, err := New(t.TempDir(), logging.Discard(), nil).Export(context.Background(), views)
	require.NoError(t, err)
	assert.Len(t, res.Files, 5)
}

func TestExportHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(t.TempDir(), logging.Discard(), nil).Export(ctx, sampleViews())
	assert.ErrorIs(t, err, context.Canceled)
}
