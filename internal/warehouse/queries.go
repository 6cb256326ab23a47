package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vanshika/quickpay/internal/analytics"
	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/quality"
)

// ErrStale is returned by CheckFreshness when the newest event is older than
// the allowed age, or when there are no events at all.
var ErrStale = errors.New("warehouse data is stale")

const (
	latestActivityQuery = `SELECT MAX(event_timestamp) FROM events`

	latestSuccessRateQuery = `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM transactions
		WHERE CAST(created_at AS DATE) = (SELECT MAX(CAST(created_at AS DATE)) FROM transactions)`

	dailyEventVolumeQuery = `SELECT CAST(event_timestamp AS DATE) AS dt, COUNT(*)
		FROM events GROUP BY 1 ORDER BY 1`

	schemaQuery = `SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name IN ('users', 'events', 'transactions')
		ORDER BY table_name, ordinal_position`

	selectUsersQuery = `SELECT user_id, device_id, platform, device_model, os_version,
		app_version, signup_date, signup_method, activity_level
		FROM users ORDER BY signup_date, user_id`

	selectEventsQuery = `SELECT event_id, event_name, event_timestamp, received_at, user_id,
		session_id, device_id, platform, app_version, os_version, device_model, event_properties
		FROM events ORDER BY event_timestamp, event_id`

	selectTransactionsQuery = `SELECT transaction_id, user_id, transaction_type, amount, fee, currency,
		status, bank_code, bank_name, created_at, completed_at, error_code, merchant_id, merchant_category
		FROM transactions ORDER BY created_at, transaction_id`
)

// LatestActivity returns the newest event timestamp. ok is false when the
// events table is empty.
func (w *Warehouse) LatestActivity(ctx context.Context) (latest time.Time, ok bool, err error) {
	var ts sql.NullTime
	if err := w.db.QueryRowContext(ctx, latestActivityQuery).Scan(&ts); err != nil {
		return time.Time{}, false, fmt.Errorf("query latest activity: %w", err)
	}
	return ts.Time, ts.Valid, nil
}

// CheckFreshness fails with ErrStale unless an event newer than maxAge
// before now exists.
func (w *Warehouse) CheckFreshness(ctx context.Context, maxAge time.Duration, now time.Time) (time.Time, error) {
	latest, ok, err := w.LatestActivity(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no events loaded", ErrStale)
	}
	if age := now.Sub(latest); age > maxAge {
		return latest, fmt.Errorf("%w: newest event is %s old", ErrStale, age.Round(time.Minute))
	}
	return latest, nil
}

// LatestSuccessRate returns the completed percentage (two decimals) of the
// transactions created on the most recent ledger day, and their count.
func (w *Warehouse) LatestSuccessRate(ctx context.Context) (rate float64, total int, err error) {
	var completed int
	if err := w.db.QueryRowContext(ctx, latestSuccessRateQuery).Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("query success rate: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return math.Round(float64(completed)*10000/float64(total)) / 100, total, nil
}

// DailyEventVolume returns the event count per day.
func (w *Warehouse) DailyEventVolume(ctx context.Context) ([]analytics.DayValue, error) {
	rows, err := w.db.QueryContext(ctx, dailyEventVolumeQuery)
	if err != nil {
		return nil, fmt.Errorf("query event volume: %w", err)
	}
	defer rows.Close()

	var series []analytics.DayValue
	for rows.Next() {
		var p analytics.DayValue
		var count int64
		if err := rows.Scan(&p.Day, &count); err != nil {
			return nil, fmt.Errorf("scan event volume: %w", err)
		}
		p.Day = domain.Day(p.Day)
		p.Value = float64(count)
		series = append(series, p)
	}
	return series, rows.Err()
}

// SchemaSnapshot reads the current column layout of the three tables.
func (w *Warehouse) SchemaSnapshot(ctx context.Context) (quality.Schema, error) {
	rows, err := w.db.QueryContext(ctx, schemaQuery)
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	defer rows.Close()

	schema := quality.Schema{}
	for rows.Next() {
		var table, column, typ string
		if err := rows.Scan(&table, &column, &typ); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		if schema[table] == nil {
			schema[table] = map[string]string{}
		}
		schema[table][column] = typ
	}
	return schema, rows.Err()
}

// Snapshot reads the three tables back into a Dataset.
func (w *Warehouse) Snapshot(ctx context.Context) (domain.Dataset, error) {
	var ds domain.Dataset
	var err error
	if ds.Users, err = w.users(ctx); err != nil {
		return ds, err
	}
	if ds.Events, err = w.events(ctx); err != nil {
		return ds, err
	}
	if ds.Transactions, err = w.transactions(ctx); err != nil {
		return ds, err
	}
	return ds, nil
}

func (w *Warehouse) users(ctx context.Context) ([]domain.User, error) {
	rows, err := w.db.QueryContext(ctx, selectUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		var platform, method string
		if err := rows.Scan(&u.UserID, &u.DeviceID, &platform, &u.DeviceModel, &u.OSVersion,
			&u.AppVersion, &u.SignupDate, &method, &u.ActivityLevel); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Platform = domain.Platform(platform)
		u.SignupMethod = domain.SignupMethod(method)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (w *Warehouse) events(ctx context.Context) ([]domain.Event, error) {
	rows, err := w.db.QueryContext(ctx, selectEventsQuery)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var platform string
		var props []byte
		if err := rows.Scan(&e.EventID, &e.EventName, &e.EventTimestamp, &e.ReceivedAt, &e.UserID,
			&e.SessionID, &e.DeviceID, &platform, &e.AppVersion, &e.OSVersion, &e.DeviceModel, &props); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Platform = domain.Platform(platform)
		e.Properties = map[string]any{}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &e.Properties); err != nil {
				return nil, fmt.Errorf("decode properties of %s: %w", e.EventID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (w *Warehouse) transactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := w.db.QueryContext(ctx, selectTransactionsQuery)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var typ, status string
		var completed sql.NullTime
		var errorCode, merchantID, category sql.NullString
		if err := rows.Scan(&t.TransactionID, &t.UserID, &typ, &t.Amount, &t.Fee, &t.Currency,
			&status, &t.BankCode, &t.BankName, &t.CreatedAt, &completed,
			&errorCode, &merchantID, &category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = domain.TransactionType(typ)
		t.Status = domain.TransactionStatus(status)
		if completed.Valid {
			ts := completed.Time
			t.CompletedAt = &ts
		}
		t.ErrorCode = errorCode.String
		t.MerchantID = merchantID.String
		t.MerchantCategory = category.String
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
