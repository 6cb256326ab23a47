package exporter

import (
	"strconv"
	"time"

	"github.com/vanshika/quickpay/internal/analytics"
)

// View names double as file stems and workbook sheet names.
const (
	ViewDailyKPI           = "daily_kpi"
	ViewRetention          = "retention_cohort"
	ViewFunnel             = "funnel_data"
	ViewTransactionSummary = "transaction_summary"
)

// Views lists the exported views in workbook order.
var Views = []string{ViewDailyKPI, ViewRetention, ViewFunnel, ViewTransactionSummary}

// Table is one view flattened for file output. Cells keep their Go types so
// the workbook stores numbers as numbers.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Tables flattens every view in Views order.
func Tables(v analytics.Views) []Table {
	return []Table{
		dailyKPITable(v.DailyKPI),
		retentionTable(v.Retention),
		funnelTable(v.Funnel),
		summaryTable(v.TransactionSummary),
	}
}

func dailyKPITable(rows []analytics.DailyKPI) Table {
	t := Table{
		Name: ViewDailyKPI,
		Headers: []string{
			"date", "day_name", "dau", "dau_ios", "dau_android", "dau_web",
			"total_transactions", "completed_transactions", "gmv", "transfer_gmv",
			"qr_payment_gmv", "fee_revenue", "transfer_count", "qr_payment_count",
			"success_rate", "gmv_per_dau",
		},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.Date, r.DayName, r.DAU, r.DAUiOS, r.DAUAndroid, r.DAUWeb,
			r.TotalTransactions, r.CompletedTransactions, r.GMV, r.TransferGMV,
			r.QRPaymentGMV, r.FeeRevenue, r.TransferCount, r.QRPaymentCount,
			r.SuccessRate, r.GMVPerDAU,
		})
	}
	return t
}

func retentionTable(rows []analytics.RetentionRow) Table {
	t := Table{
		Name:    ViewRetention,
		Headers: []string{"cohort_week", "day_n", "active_users", "cohort_size", "retention_rate"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.CohortWeek, r.DayN, r.ActiveUsers, r.CohortSize, r.RetentionRate})
	}
	return t
}

func funnelTable(steps []analytics.FunnelStep) Table {
	t := Table{
		Name:    ViewFunnel,
		Headers: []string{"step_order", "step_name", "users", "pct_from_start", "pct_from_prev"},
	}
	for _, s := range steps {
		t.Rows = append(t.Rows, []any{s.StepOrder, s.StepName, s.Users, s.PctFromStart, s.PctFromPrev})
	}
	return t
}

func summaryTable(rows []analytics.SummaryRow) Table {
	t := Table{
		Name: ViewTransactionSummary,
		Headers: []string{
			"month", "transaction_type", "status", "bank_name", "merchant_category",
			"hour", "day_of_week", "txn_count", "total_amount", "total_fee",
			"avg_amount", "unique_users",
		},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.Month, r.TransactionType, r.Status, r.BankName, r.MerchantCategory,
			r.Hour, r.DayOfWeek, r.TxnCount, r.TotalAmount, r.TotalFee,
			r.AvgAmount, r.UniqueUsers,
		})
	}
	return t
}

// cellString renders a cell for CSV output.
func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format("2006-01-02")
	case nil:
		return ""
	default:
		return ""
	}
}
