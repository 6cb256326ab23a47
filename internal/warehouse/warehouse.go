// Package warehouse loads synthesized records into PostgreSQL and answers
// the probes the quality flows need.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/vanshika/quickpay/internal/config"
	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/metrics"
)

// ErrNoDSN is returned by Open when no connection string is configured.
var ErrNoDSN = errors.New("warehouse dsn is not configured")

// Open connects to PostgreSQL and waits for the server, retrying the ping
// with a linearly growing backoff.
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *slog.Logger) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := waitForPing(ctx, db, cfg.ConnectRetries, cfg.ConnectBackoff, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func waitForPing(ctx context.Context, db *sql.DB, retries int, backoff time.Duration, logger *slog.Logger) error {
	attempts := retries + 1
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		logger.Warn("warehouse not reachable",
			slog.Int("attempt", i+1),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()))
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * backoff):
		}
	}
	return fmt.Errorf("failed to connect to warehouse after %d attempts: %w", attempts, err)
}

// Warehouse wraps a PostgreSQL handle.
type Warehouse struct {
	db      *sql.DB
	logger  *slog.Logger
	metrics *metrics.Collectors
}

// New wraps db. m may be nil.
func New(db *sql.DB, logger *slog.Logger, m *metrics.Collectors) *Warehouse {
	return &Warehouse{db: db, logger: logger, metrics: m}
}

// DB exposes the handle for the quality runner.
func (w *Warehouse) DB() *sql.DB { return w.db }

// EnsureSchema creates the three tables and their indexes if missing.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaDDL {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// LoadStats counts rows written per table.
type LoadStats struct {
	Users        int `json:"users"`
	Events       int `json:"events"`
	Transactions int `json:"transactions"`
}

// Load replaces the contents of each table with ds. Every table is truncated
// and bulk copied inside its own transaction, so a failure leaves that table
// as it was.
func (w *Warehouse) Load(ctx context.Context, ds domain.Dataset) (LoadStats, error) {
	var stats LoadStats

	n, err := w.copyTable(ctx, TableUsers, userColumns, len(ds.Users), func(i int) ([]any, error) {
		return userRow(ds.Users[i]), nil
	})
	if err != nil {
		return stats, err
	}
	stats.Users = n

	n, err = w.copyTable(ctx, TableEvents, eventColumns, len(ds.Events), func(i int) ([]any, error) {
		return eventRow(ds.Events[i])
	})
	if err != nil {
		return stats, err
	}
	stats.Events = n

	n, err = w.copyTable(ctx, TableTransactions, transactionColumns, len(ds.Transactions), func(i int) ([]any, error) {
		return transactionRow(ds.Transactions[i]), nil
	})
	if err != nil {
		return stats, err
	}
	stats.Transactions = n

	return stats, nil
}

func (w *Warehouse) copyTable(ctx context.Context, table string, columns []string, count int, row func(int) ([]any, error)) (n int, err error) {
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin %s load: %w", table, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "TRUNCATE TABLE "+pq.QuoteIdentifier(table)); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy into %s: %w", table, err)
	}
	for i := 0; i < count; i++ {
		var args []any
		if args, err = row(i); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("encode %s row %d: %w", table, i, err)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy %s row %d: %w", table, i, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flush copy into %s: %w", table, err)
	}
	if err = stmt.Close(); err != nil {
		return 0, fmt.Errorf("close copy into %s: %w", table, err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s load: %w", table, err)
	}

	w.metrics.RecordsLoaded("warehouse", table, count)
	w.logger.Info("table loaded",
		slog.String("table", table),
		slog.Int("rows", count),
		slog.Duration("elapsed", time.Since(start)))
	return count, nil
}

func userRow(u domain.User) []any {
	return []any{
		u.UserID, u.DeviceID, string(u.Platform), u.DeviceModel, u.OSVersion,
		u.AppVersion, u.SignupDate, string(u.SignupMethod), u.ActivityLevel,
	}
}

func eventRow(e domain.Event) ([]any, error) {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return nil, err
	}
	return []any{
		e.EventID, e.EventName, e.EventTimestamp, e.ReceivedAt, e.UserID,
		e.SessionID, e.DeviceID, string(e.Platform), e.AppVersion, e.OSVersion,
		e.DeviceModel, string(props),
	}, nil
}

func transactionRow(t domain.Transaction) []any {
	var completed any
	if t.CompletedAt != nil {
		completed = *t.CompletedAt
	}
	return []any{
		t.TransactionID, t.UserID, string(t.Type), t.Amount, t.Fee, t.Currency,
		string(t.Status), t.BankCode, t.BankName, t.CreatedAt, completed,
		nullable(t.ErrorCode), nullable(t.MerchantID), nullable(t.MerchantCategory),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
