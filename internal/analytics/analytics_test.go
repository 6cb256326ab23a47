package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/generator"
)

var day0 = time.Date(2025, 11, 17, 0, 0, 0, 0, time.UTC) // Monday

func at(day int, hour int) time.Time {
	return day0.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

func login(user string, platform domain.Platform, ts time.Time) domain.Event {
	return domain.Event{EventID: user + ts.String(), UserID: user, EventName: domain.EventLoginCompleted, Platform: platform, EventTimestamp: ts}
}

func txn(user string, typ domain.TransactionType, status domain.TransactionStatus, amount, fee int64, ts time.Time) domain.Transaction {
	return domain.Transaction{UserID: user, Type: typ, Status: status, Amount: amount, Fee: fee, CreatedAt: ts, BankName: "Toss Bank"}
}

func TestBuildDailyKPI(t *testing.T) {
	events := []domain.Event{
		login("u1", domain.PlatformIOS, at(0, 9)),
		login("u1", domain.PlatformIOS, at(0, 21)),
		login("u2", domain.PlatformAndroid, at(0, 10)),
		login("u3", domain.PlatformWeb, at(1, 8)),
		{UserID: "u4", EventName: domain.EventScreenViewed, Platform: domain.PlatformWeb, EventTimestamp: at(1, 9)},
	}
	txns := []domain.Transaction{
		txn("u1", domain.TxnTransfer, domain.StatusCompleted, 200000, 500, at(0, 9)),
		txn("u2", domain.TxnQRPayment, domain.StatusCompleted, 10000, 0, at(0, 11)),
		txn("u2", domain.TxnTransfer, domain.StatusFailed, 50000, 0, at(0, 12)),
		txn("u9", domain.TxnCharge, domain.StatusCompleted, 30000, 0, at(0, 13)),
		txn("u5", domain.TxnTransfer, domain.StatusCompleted, 99999, 0, at(5, 13)),
	}

	rows := BuildDailyKPI(events, txns)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, day0, first.Date)
	assert.Equal(t, "Monday", first.DayName)
	assert.Equal(t, 2, first.DAU)
	assert.Equal(t, 1, first.DAUiOS)
	assert.Equal(t, 1, first.DAUAndroid)
	assert.Equal(t, 0, first.DAUWeb)
	assert.Equal(t, 4, first.TotalTransactions)
	assert.Equal(t, 3, first.CompletedTransactions)
	assert.Equal(t, int64(240000), first.GMV)
	assert.Equal(t, int64(200000), first.TransferGMV)
	assert.Equal(t, int64(10000), first.QRPaymentGMV)
	assert.Equal(t, int64(500), first.FeeRevenue)
	assert.Equal(t, 1, first.TransferCount)
	assert.Equal(t, 1, first.QRPaymentCount)
	assert.Equal(t, 75.0, first.SuccessRate)
	assert.Equal(t, 120000.0, first.GMVPerDAU)

	second := rows[1]
	assert.Equal(t, 1, second.DAU)
	assert.Equal(t, 1, second.DAUWeb)
	assert.Zero(t, second.TotalTransactions)
	assert.Zero(t, second.SuccessRate)
	assert.Zero(t, second.GMV)
}

func TestBuildRetention(t *testing.T) {
	users := []domain.User{
		{UserID: "a", SignupDate: at(0, 10)},
		{UserID: "b", SignupDate: at(2, 23)},
		{UserID: "c", SignupDate: at(7, 1)},
	}
	events := []domain.Event{
		login("a", domain.PlatformIOS, at(0, 11)),
		login("a", domain.PlatformIOS, at(0, 15)),
		login("a", domain.PlatformIOS, at(1, 9)),
		login("b", domain.PlatformIOS, at(3, 0)),
		login("c", domain.PlatformIOS, at(7, 2)),
		login("c", domain.PlatformIOS, at(7+RetentionHorizon+1, 2)),
		login("ghost", domain.PlatformIOS, at(1, 2)),
	}

	rows := BuildRetention(users, events)
	require.Len(t, rows, 3)

	assert.Equal(t, RetentionRow{CohortWeek: day0, DayN: 0, ActiveUsers: 1, CohortSize: 2, RetentionRate: 50}, rows[0])
	assert.Equal(t, RetentionRow{CohortWeek: day0, DayN: 1, ActiveUsers: 2, CohortSize: 2, RetentionRate: 100}, rows[1])
	assert.Equal(t, RetentionRow{CohortWeek: day0.AddDate(0, 0, 7), DayN: 0, ActiveUsers: 1, CohortSize: 1, RetentionRate: 100}, rows[2])
}

func TestBuildFunnel(t *testing.T) {
	var events []domain.Event
	add := func(name string, users ...string) {
		for _, u := range users {
			events = append(events, domain.Event{UserID: u, EventName: name})
		}
	}
	add(domain.EventSignupStarted, "1", "2", "3", "4", "5", "6")
	add(domain.EventSignupSubmitted, "1", "2", "3", "4", "5")
	add(domain.EventSignupCompleted, "1", "2", "3")
	add(domain.EventIdentityVerified, "1", "2", "3")
	add(domain.EventTransferStarted, "1", "1", "1")

	steps := BuildFunnel(events)
	require.Len(t, steps, 6)

	assert.Equal(t, FunnelStep{StepOrder: 1, StepName: "Step 1: Signup Started", Users: 6, PctFromStart: 100, PctFromPrev: 100}, steps[0])
	assert.Equal(t, 83.3, steps[1].PctFromStart)
	assert.Equal(t, 83.3, steps[1].PctFromPrev)
	assert.Equal(t, 50.0, steps[2].PctFromStart)
	assert.Equal(t, 60.0, steps[2].PctFromPrev)
	assert.Equal(t, 100.0, steps[3].PctFromPrev)
	assert.Equal(t, 1, steps[4].Users)
	assert.Equal(t, 33.3, steps[4].PctFromPrev)
	assert.Equal(t, 0, steps[5].Users)
	assert.Equal(t, 0.0, steps[5].PctFromPrev)
}

func TestBuildFunnelEmpty(t *testing.T) {
	steps := BuildFunnel(nil)
	require.Len(t, steps, 6)
	assert.Equal(t, 100.0, steps[0].PctFromStart)
	for _, s := range steps[1:] {
		assert.Zero(t, s.PctFromStart)
		assert.Zero(t, s.PctFromPrev)
	}
}

func TestBuildTransactionSummary(t *testing.T) {
	sunday := time.Date(2025, 11, 16, 14, 5, 0, 0, time.UTC)
	txns := []domain.Transaction{
		txn("u1", domain.TxnTransfer, domain.StatusCompleted, 100000, 500, sunday),
		txn("u1", domain.TxnTransfer, domain.StatusCompleted, 50001, 0, sunday.Add(10*time.Minute)),
		txn("u2", domain.TxnTransfer, domain.StatusCompleted, 20000, 0, sunday.Add(20*time.Minute)),
		txn("u2", domain.TxnTransfer, domain.StatusCompleted, 1000, 0, sunday.Add(24*time.Hour)),
	}

	rows := BuildTransactionSummary(txns)
	require.Len(t, rows, 2)

	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), rows[0].Month)
	assert.Equal(t, 0, rows[0].DayOfWeek)
	assert.Equal(t, 14, rows[0].Hour)
	assert.Equal(t, 3, rows[0].TxnCount)
	assert.Equal(t, int64(170001), rows[0].TotalAmount)
	assert.Equal(t, int64(500), rows[0].TotalFee)
	assert.Equal(t, 56667.0, rows[0].AvgAmount)
	assert.Equal(t, 2, rows[0].UniqueUsers)
	assert.Equal(t, 1, rows[1].DayOfWeek)
}

func TestStatsAndAnomalies(t *testing.T) {
	mean, std := Stats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	assert.InDelta(t, 2.138, std, 0.001)

	_, std = Stats([]float64{3})
	assert.Zero(t, std)
	assert.Zero(t, ZScore(10, 3, 0))

	series := make([]DayValue, 0, 15)
	for i := 0; i < 14; i++ {
		series = append(series, DayValue{Day: at(i, 0), Value: float64(1000 + i%3)})
	}
	series = append(series, DayValue{Day: at(14, 0), Value: 5000})

	found := DetectAnomalies(series, 3)
	require.Len(t, found, 1)
	assert.Equal(t, at(14, 0), found[0].Day)
	assert.Greater(t, found[0].ZScore, 3.0)

	latest, ok := LatestPoint(series)
	require.True(t, ok)
	assert.Equal(t, found[0], latest)

	_, ok = LatestPoint(nil)
	assert.False(t, ok)
	assert.Empty(t, DetectAnomalies(series[:14], 3))
}

func TestLatestSuccessRate(t *testing.T) {
	txns := []domain.Transaction{
		txn("u1", domain.TxnTransfer, domain.StatusFailed, 1000, 0, at(0, 1)),
		txn("u1", domain.TxnTransfer, domain.StatusCompleted, 1000, 0, at(3, 1)),
		txn("u1", domain.TxnTransfer, domain.StatusCompleted, 1000, 0, at(3, 2)),
		txn("u1", domain.TxnTransfer, domain.StatusPending, 1000, 0, at(3, 3)),
	}
	rate, total := LatestSuccessRate(txns)
	assert.Equal(t, 3, total)
	assert.Equal(t, 66.67, rate)

	rate, total = LatestSuccessRate(nil)
	assert.Zero(t, rate)
	assert.Zero(t, total)
}

func TestEventVolume(t *testing.T) {
	series := EventVolume([]domain.Event{
		login("a", domain.PlatformIOS, at(1, 3)),
		login("a", domain.PlatformIOS, at(0, 3)),
		login("b", domain.PlatformIOS, at(1, 4)),
	})
	assert.Equal(t, []DayValue{{Day: at(0, 0), Value: 1}, {Day: at(1, 0), Value: 2}}, series)
}

func TestValidateViews(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.NumUsers = 300
	cfg.Days = 14
	gen, err := generator.New(cfg)
	require.NoError(t, err)
	ds, err := gen.Generate(context.Background())
	require.NoError(t, err)

	views := Build(ds)
	require.NoError(t, ValidateViews(views))
	assert.NotEmpty(t, views.Retention)

	for _, r := range views.Retention {
		assert.LessOrEqual(t, r.ActiveUsers, r.CohortSize)
		assert.GreaterOrEqual(t, r.DayN, 0)
		assert.LessOrEqual(t, r.DayN, RetentionHorizon)
	}

	err = ValidateViews(Views{})
	require.ErrorIs(t, err, ErrInvalidViews)
	assert.Contains(t, err.Error(), "daily_kpi is empty")
	assert.Contains(t, err.Error(), "funnel has 0 steps")

	views.Funnel[0].PctFromStart = 90
	assert.ErrorIs(t, ValidateViews(views), ErrInvalidViews)
}
