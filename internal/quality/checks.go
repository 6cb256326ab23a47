package quality

import (
	"fmt"
	"strings"

	"github.com/vanshika/quickpay/internal/domain"
)

// DefaultChecks returns the warehouse battery: envelope integrity of the
// event stream, ledger rules, cross-table references and a daily volume
// anomaly test.
func DefaultChecks() []Check {
	return []Check{
		{
			Name:        "events_not_null_event_id",
			Query:       "SELECT event_id FROM events WHERE event_id IS NULL LIMIT 10",
			Expectation: "event_id should never be NULL",
			Severity:    SeverityCritical,
		},
		{
			Name:        "events_unique_event_id",
			Query:       "SELECT event_id, COUNT(*) AS cnt FROM events GROUP BY event_id HAVING COUNT(*) > 1 LIMIT 10",
			Expectation: "event_id should be unique (no duplicates)",
			Severity:    SeverityCritical,
		},
		{
			Name:        "events_valid_event_name",
			Query:       fmt.Sprintf("SELECT DISTINCT event_name FROM events WHERE event_name NOT IN (%s)", sqlList(domain.EventTaxonomy)),
			Expectation: "event_name should be in the defined taxonomy",
			Severity:    SeverityCritical,
		},
		{
			Name:        "events_valid_platform",
			Query:       fmt.Sprintf("SELECT DISTINCT platform FROM events WHERE platform NOT IN (%s)", sqlList(domain.Platforms)),
			Expectation: "platform should be ios, android, or web",
			Severity:    SeverityWarning,
		},
		{
			Name:        "events_not_null_timestamp",
			Query:       "SELECT event_id FROM events WHERE event_timestamp IS NULL LIMIT 10",
			Expectation: "event_timestamp should never be NULL",
			Severity:    SeverityCritical,
		},
		{
			Name:        "events_received_after_timestamp",
			Query:       "SELECT event_id FROM events WHERE received_at <= event_timestamp LIMIT 10",
			Expectation: "received_at should be later than event_timestamp",
			Severity:    SeverityWarning,
		},
		{
			Name: "events_null_rate_user_id",
			Query: `SELECT null_pct FROM (
				SELECT ROUND(SUM(CASE WHEN user_id IS NULL THEN 1 ELSE 0 END) * 100.0 / NULLIF(COUNT(*), 0), 2) AS null_pct
				FROM events
			) s WHERE null_pct > 5`,
			Expectation: "user_id null rate should be less than 5%",
			Severity:    SeverityWarning,
		},
		{
			Name:        "txn_not_null_transaction_id",
			Query:       "SELECT transaction_id FROM transactions WHERE transaction_id IS NULL LIMIT 10",
			Expectation: "transaction_id should never be NULL",
			Severity:    SeverityCritical,
		},
		{
			Name:        "txn_unique_transaction_id",
			Query:       "SELECT transaction_id, COUNT(*) AS cnt FROM transactions GROUP BY transaction_id HAVING COUNT(*) > 1 LIMIT 10",
			Expectation: "transaction_id should be unique",
			Severity:    SeverityCritical,
		},
		{
			Name:        "txn_positive_amount",
			Query:       "SELECT transaction_id FROM transactions WHERE amount <= 0 LIMIT 10",
			Expectation: "amount should be positive",
			Severity:    SeverityCritical,
		},
		{
			Name:        "txn_non_negative_fee",
			Query:       "SELECT transaction_id FROM transactions WHERE fee < 0 LIMIT 10",
			Expectation: "fee should be non-negative",
			Severity:    SeverityCritical,
		},
		{
			Name:        "txn_valid_status",
			Query:       fmt.Sprintf("SELECT DISTINCT status FROM transactions WHERE status NOT IN (%s)", sqlList(domain.TransactionStatuses)),
			Expectation: "status should be in the valid set",
			Severity:    SeverityCritical,
		},
		{
			Name:        "txn_valid_type",
			Query:       fmt.Sprintf("SELECT DISTINCT transaction_type FROM transactions WHERE transaction_type NOT IN (%s)", sqlList(domain.TransactionTypes)),
			Expectation: "transaction_type should be in the valid set",
			Severity:    SeverityWarning,
		},
		{
			Name:        "txn_amount_gte_fee",
			Query:       "SELECT transaction_id FROM transactions WHERE amount < fee LIMIT 10",
			Expectation: "amount should always be >= fee",
			Severity:    SeverityWarning,
		},
		{
			Name: "txn_completed_at_matches_status",
			Query: `SELECT transaction_id FROM transactions
				WHERE (status = 'completed') <> (completed_at IS NOT NULL) LIMIT 10`,
			Expectation: "completed_at should be set exactly for completed transactions",
			Severity:    SeverityWarning,
		},
		{
			Name: "txn_users_exist",
			Query: `SELECT DISTINCT t.user_id FROM transactions t
				LEFT JOIN users u ON t.user_id = u.user_id
				WHERE u.user_id IS NULL LIMIT 10`,
			Expectation: "All transaction user_ids should exist in users table",
			Severity:    SeverityWarning,
		},
		{
			Name: "events_daily_volume_anomaly",
			Query: `WITH daily AS (
				SELECT CAST(event_timestamp AS DATE) AS dt, COUNT(*) AS cnt FROM events GROUP BY 1
			), stats AS (
				SELECT AVG(cnt) AS mean_cnt, STDDEV(cnt) AS std_cnt FROM daily
			)
			SELECT d.dt, d.cnt FROM daily d CROSS JOIN stats s
			WHERE ABS((d.cnt - s.mean_cnt) / NULLIF(s.std_cnt, 0)) > 3`,
			Expectation: "Daily event volume should not deviate more than 3 std from mean",
			Severity:    SeverityWarning,
		},
	}
}

func sqlList[T ~string](values []T) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(string(v), "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
