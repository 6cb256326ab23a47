package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/sampling"
)

// SynthesizeTransactions builds the ledger day by day with a growing,
// weekend-boosted, noisy volume. Rows reference users drawn uniformly from
// the population and are not correlated with the event stream.
func (g *Generator) SynthesizeTransactions(ctx context.Context, users []domain.User) ([]domain.Transaction, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: empty user population", ErrInvalidConfig)
	}
	r := sampling.New(sampling.Derive(g.cfg.Seed, streamTransactions))

	var txns []domain.Transaction
	for day := 0; day < g.cfg.Days; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := g.cfg.StartDate.AddDate(0, 0, day)
		for i, n := 0, g.DailyVolume(r, day); i < n; i++ {
			txns = append(txns, g.randomTransaction(r, date, users))
		}
	}

	sortTransactions(txns)
	return txns, nil
}

// DailyVolume returns the number of transactions for the day at offset day.
func (g *Generator) DailyVolume(r *rand.Rand, day int) int {
	cfg := g.cfg.Ledger
	base := cfg.BaseDailyVolume + float64(day)*cfg.DailyGrowth
	factor := 1.0
	if isWeekend(g.cfg.StartDate.AddDate(0, 0, day)) {
		factor = cfg.WeekendFactor
	}
	return int(base * factor * sampling.Between(r, 1-cfg.Noise, 1+cfg.Noise))
}

func (g *Generator) randomTransaction(r *rand.Rand, date time.Time, users []domain.User) domain.Transaction {
	cfg := g.cfg.Ledger
	txType := domain.TransactionType(g.tables.txnTypes.Pick(r))
	status := domain.TransactionStatus(g.tables.statuses.Pick(r))
	amount := cfg.Amounts[string(txType)].Draw(r)
	created := g.randomTimeInDay(r, date, false)
	b := sampling.Choice(r, g.catalog.banks)

	txn := domain.Transaction{
		TransactionID: sampling.UUID(r),
		UserID:        sampling.Choice(r, users).UserID,
		Type:          txType,
		Amount:        amount,
		Fee:           cfg.Fee(txType, amount),
		Currency:      domain.CurrencyKRW,
		Status:        status,
		BankCode:      b.Code,
		BankName:      b.Name,
		CreatedAt:     created,
	}

	switch status {
	case domain.StatusCompleted:
		completed := created.Add(time.Duration(sampling.IntBetween(r, 1, 5)) * time.Second)
		txn.CompletedAt = &completed
	case domain.StatusFailed:
		txn.ErrorCode = fmt.Sprintf("ERR_%03d", sampling.IntBetween(r, 100, 999))
	}

	if txType == domain.TxnQRPayment {
		category := sampling.Choice(r, g.catalog.merchantCategory[:5])
		txn.MerchantCategory = category
		txn.MerchantID = fmt.Sprintf("mrc_%s_%03d", category, sampling.IntBetween(r, 1, 100))
	}
	return txn
}

// Draw samples an amount, buckets it to the rounding granularity and
// clamps it into [Min, Max].
func (m AmountModel) Draw(r *rand.Rand) int64 {
	if len(m.Choices) > 0 {
		return sampling.Choice(r, m.Choices)
	}
	amount := int64(sampling.LogNormal(r, m.MuLog, m.SigmaLog))
	if m.Round > 0 {
		amount = int64(math.Round(float64(amount)/float64(m.Round))) * m.Round
	}
	if amount < m.Min {
		amount = m.Min
	}
	if amount > m.Max {
		amount = m.Max
	}
	return amount
}

// Fee is a deterministic function of type and amount and never exceeds amount.
func (c TransactionConfig) Fee(txType domain.TransactionType, amount int64) int64 {
	var fee int64
	switch txType {
	case domain.TxnTransfer:
		if amount >= c.TransferFeeFrom {
			fee = c.TransferFee
		}
	case domain.TxnWithdraw:
		if amount < c.WithdrawFeeBelow {
			fee = c.WithdrawFee
		}
	}
	if fee > amount {
		fee = amount
	}
	return fee
}
