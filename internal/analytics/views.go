package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/vanshika/quickpay/internal/domain"
)

// RetentionHorizon is the last day offset tracked by the cohort view.
const RetentionHorizon = 30

// DailyKPI is one row of the daily KPI view, keyed by a day with logins.
type DailyKPI struct {
	Date                  time.Time `json:"date"`
	DayName               string    `json:"day_name"`
	DAU                   int       `json:"dau"`
	DAUiOS                int       `json:"dau_ios"`
	DAUAndroid            int       `json:"dau_android"`
	DAUWeb                int       `json:"dau_web"`
	TotalTransactions     int       `json:"total_transactions"`
	CompletedTransactions int       `json:"completed_transactions"`
	GMV                   int64     `json:"gmv"`
	TransferGMV           int64     `json:"transfer_gmv"`
	QRPaymentGMV          int64     `json:"qr_payment_gmv"`
	FeeRevenue            int64     `json:"fee_revenue"`
	TransferCount         int       `json:"transfer_count"`
	QRPaymentCount        int       `json:"qr_payment_count"`
	SuccessRate           float64   `json:"success_rate"`
	GMVPerDAU             float64   `json:"gmv_per_dau"`
}

// RetentionRow is one (cohort week, day offset) cell of the retention matrix.
type RetentionRow struct {
	CohortWeek    time.Time `json:"cohort_week"`
	DayN          int       `json:"day_n"`
	ActiveUsers   int       `json:"active_users"`
	CohortSize    int       `json:"cohort_size"`
	RetentionRate float64   `json:"retention_rate"`
}

// FunnelStep is one step of the six-step onboarding funnel.
type FunnelStep struct {
	StepOrder    int     `json:"step_order"`
	StepName     string  `json:"step_name"`
	Users        int     `json:"users"`
	PctFromStart float64 `json:"pct_from_start"`
	PctFromPrev  float64 `json:"pct_from_prev"`
}

// SummaryRow aggregates transactions sharing every grouping dimension.
// DayOfWeek counts from Sunday = 0.
type SummaryRow struct {
	Month            time.Time `json:"month"`
	TransactionType  string    `json:"transaction_type"`
	Status           string    `json:"status"`
	BankName         string    `json:"bank_name"`
	MerchantCategory string    `json:"merchant_category"`
	Hour             int       `json:"hour"`
	DayOfWeek        int       `json:"day_of_week"`
	TxnCount         int       `json:"txn_count"`
	TotalAmount      int64     `json:"total_amount"`
	TotalFee         int64     `json:"total_fee"`
	AvgAmount        float64   `json:"avg_amount"`
	UniqueUsers      int       `json:"unique_users"`
}

// Views holds the four BI-ready views.
type Views struct {
	DailyKPI           []DailyKPI     `json:"daily_kpi"`
	Retention          []RetentionRow `json:"retention_cohort"`
	Funnel             []FunnelStep   `json:"funnel"`
	TransactionSummary []SummaryRow   `json:"transaction_summary"`
}

// Build computes every view from the three record sets.
func Build(ds domain.Dataset) Views {
	return Views{
		DailyKPI:           BuildDailyKPI(ds.Events, ds.Transactions),
		Retention:          BuildRetention(ds.Users, ds.Events),
		Funnel:             BuildFunnel(ds.Events),
		TransactionSummary: BuildTransactionSummary(ds.Transactions),
	}
}

// BuildDailyKPI derives DAU from login events and joins the day's ledger
// totals. Days without logins are omitted; days without transactions get zeros.
func BuildDailyKPI(events []domain.Event, txns []domain.Transaction) []DailyKPI {
	type dayUsers struct {
		all, ios, android, web map[string]struct{}
	}
	users := map[time.Time]*dayUsers{}
	for _, e := range events {
		if e.EventName != domain.EventLoginCompleted {
			continue
		}
		day := domain.Day(e.EventTimestamp)
		du, ok := users[day]
		if !ok {
			du = &dayUsers{all: set(), ios: set(), android: set(), web: set()}
			users[day] = du
		}
		du.all[e.UserID] = struct{}{}
		switch e.Platform {
		case domain.PlatformIOS:
			du.ios[e.UserID] = struct{}{}
		case domain.PlatformAndroid:
			du.android[e.UserID] = struct{}{}
		case domain.PlatformWeb:
			du.web[e.UserID] = struct{}{}
		}
	}

	ledger := map[time.Time]*DailyKPI{}
	for _, t := range txns {
		day := domain.Day(t.CreatedAt)
		row, ok := ledger[day]
		if !ok {
			row = &DailyKPI{}
			ledger[day] = row
		}
		row.TotalTransactions++
		if t.Status != domain.StatusCompleted {
			continue
		}
		row.CompletedTransactions++
		row.GMV += t.Amount
		row.FeeRevenue += t.Fee
		switch t.Type {
		case domain.TxnTransfer:
			row.TransferGMV += t.Amount
			row.TransferCount++
		case domain.TxnQRPayment:
			row.QRPaymentGMV += t.Amount
			row.QRPaymentCount++
		}
	}

	rows := make([]DailyKPI, 0, len(users))
	for day, du := range users {
		row := DailyKPI{}
		if l, ok := ledger[day]; ok {
			row = *l
			row.SuccessRate = round(float64(l.CompletedTransactions)*100/float64(l.TotalTransactions), 2)
		}
		row.Date = day
		row.DayName = day.Weekday().String()
		row.DAU = len(du.all)
		row.DAUiOS = len(du.ios)
		row.DAUAndroid = len(du.android)
		row.DAUWeb = len(du.web)
		row.GMVPerDAU = round(float64(row.GMV)/float64(row.DAU), 0)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}

// BuildRetention counts, per signup-week cohort and day offset 0..30, the
// distinct cohort members that logged in that many days after signup.
func BuildRetention(users []domain.User, events []domain.Event) []RetentionRow {
	type member struct {
		signup time.Time
		cohort time.Time
	}
	members := make(map[string]member, len(users))
	cohortSize := map[time.Time]int{}
	for _, u := range users {
		cohort := u.CohortWeek()
		members[u.UserID] = member{signup: domain.Day(u.SignupDate), cohort: cohort}
		cohortSize[cohort]++
	}

	type cell struct {
		cohort time.Time
		dayN   int
	}
	active := map[cell]map[string]struct{}{}
	for _, e := range events {
		if e.EventName != domain.EventLoginCompleted {
			continue
		}
		m, ok := members[e.UserID]
		if !ok {
			continue
		}
		dayN := daysBetween(m.signup, domain.Day(e.EventTimestamp))
		if dayN < 0 || dayN > RetentionHorizon {
			continue
		}
		k := cell{cohort: m.cohort, dayN: dayN}
		if active[k] == nil {
			active[k] = set()
		}
		active[k][e.UserID] = struct{}{}
	}

	rows := make([]RetentionRow, 0, len(active))
	for k, ids := range active {
		size := cohortSize[k.cohort]
		rows = append(rows, RetentionRow{
			CohortWeek:    k.cohort,
			DayN:          k.dayN,
			ActiveUsers:   len(ids),
			CohortSize:    size,
			RetentionRate: round(float64(len(ids))*100/float64(size), 2),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CohortWeek.Equal(rows[j].CohortWeek) {
			return rows[i].CohortWeek.Before(rows[j].CohortWeek)
		}
		return rows[i].DayN < rows[j].DayN
	})
	return rows
}

// FunnelSteps lists the event that marks each funnel step and its label.
var FunnelSteps = []struct {
	Event string
	Name  string
}{
	{domain.EventSignupStarted, "Step 1: Signup Started"},
	{domain.EventSignupSubmitted, "Step 2: Info Submitted"},
	{domain.EventSignupCompleted, "Step 3: Signup Completed"},
	{domain.EventIdentityVerified, "Step 4: Identity Verified"},
	{domain.EventTransferStarted, "Step 5: First Transfer Attempt"},
	{domain.EventTransferCompleted, "Step 6: First Transfer Completed"},
}

// BuildFunnel counts distinct users that ever emitted each step's event.
func BuildFunnel(events []domain.Event) []FunnelStep {
	index := map[string]int{}
	for i, s := range FunnelSteps {
		index[s.Event] = i
	}
	reached := make([]map[string]struct{}, len(FunnelSteps))
	for i := range reached {
		reached[i] = set()
	}
	for _, e := range events {
		if i, ok := index[e.EventName]; ok {
			reached[i][e.UserID] = struct{}{}
		}
	}

	steps := make([]FunnelStep, len(FunnelSteps))
	first := len(reached[0])
	for i, s := range FunnelSteps {
		n := len(reached[i])
		step := FunnelStep{StepOrder: i + 1, StepName: s.Name, Users: n}
		if i == 0 {
			step.PctFromStart, step.PctFromPrev = 100, 100
		} else {
			step.PctFromStart = pct(n, first)
			step.PctFromPrev = pct(n, len(reached[i-1]))
		}
		steps[i] = step
	}
	return steps
}

// BuildTransactionSummary groups the ledger by month, type, status, bank,
// merchant category, hour and day of week.
func BuildTransactionSummary(txns []domain.Transaction) []SummaryRow {
	type key struct {
		month    time.Time
		txType   string
		status   string
		bank     string
		category string
		hour     int
		dow      int
	}
	type acc struct {
		row   SummaryRow
		users map[string]struct{}
	}

	groups := map[key]*acc{}
	for _, t := range txns {
		created := t.CreatedAt.UTC()
		k := key{
			month:    time.Date(created.Year(), created.Month(), 1, 0, 0, 0, 0, time.UTC),
			txType:   string(t.Type),
			status:   string(t.Status),
			bank:     t.BankName,
			category: t.MerchantCategory,
			hour:     created.Hour(),
			dow:      int(created.Weekday()),
		}
		a, ok := groups[k]
		if !ok {
			a = &acc{
				row: SummaryRow{
					Month: k.month, TransactionType: k.txType, Status: k.status, BankName: k.bank,
					MerchantCategory: k.category, Hour: k.hour, DayOfWeek: k.dow,
				},
				users: set(),
			}
			groups[k] = a
		}
		a.row.TxnCount++
		a.row.TotalAmount += t.Amount
		a.row.TotalFee += t.Fee
		a.users[t.UserID] = struct{}{}
	}

	rows := make([]SummaryRow, 0, len(groups))
	for _, a := range groups {
		a.row.AvgAmount = round(float64(a.row.TotalAmount)/float64(a.row.TxnCount), 2)
		a.row.UniqueUsers = len(a.users)
		rows = append(rows, a.row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case !a.Month.Equal(b.Month):
			return a.Month.Before(b.Month)
		case a.TransactionType != b.TransactionType:
			return a.TransactionType < b.TransactionType
		case a.Status != b.Status:
			return a.Status < b.Status
		case a.BankName != b.BankName:
			return a.BankName < b.BankName
		case a.MerchantCategory != b.MerchantCategory:
			return a.MerchantCategory < b.MerchantCategory
		case a.Hour != b.Hour:
			return a.Hour < b.Hour
		default:
			return a.DayOfWeek < b.DayOfWeek
		}
	})
	return rows
}

func set() map[string]struct{} { return map[string]struct{}{} }

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// pct is part*100/whole rounded to one decimal, or 0 when whole is zero.
func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round(float64(part)*100/float64(whole), 1)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
