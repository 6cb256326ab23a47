// Package service loads the dataset into the relationship graph with a
// bounded worker pool.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/metrics"
)

// GraphWriter is the repository surface the ingestor writes through.
type GraphWriter interface {
	UpsertUsers(ctx context.Context, users []domain.User) error
	UpsertTransactions(ctx context.Context, txns []domain.Transaction) error
}

// TaskError accumulates the errors of failed batches.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "multiple errors: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the batch errors to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Stats counts what one ingestion wrote.
type Stats struct {
	Users        int
	Transactions int
	Batches      int
}

// BulkIngestor writes users, then transactions, in fixed-size batches
// spread over a pool of workers.
type BulkIngestor struct {
	writer    GraphWriter
	workers   int
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Collectors
}

// NewBulkIngestor returns an ingestor with the given concurrency and batch
// size. Non-positive values fall back to 4 workers and 500 rows.
func NewBulkIngestor(w GraphWriter, workers, batchSize int, logger *slog.Logger, m *metrics.Collectors) *BulkIngestor {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &BulkIngestor{
		writer:    w,
		workers:   workers,
		batchSize: batchSize,
		logger:    logger.With("component", "graph-ingest"),
		metrics:   m,
	}
}

// IngestDataset loads every user before any transaction, since transactions
// attach to existing user nodes. A failed user phase skips the transactions.
func (bi *BulkIngestor) IngestDataset(ctx context.Context, ds domain.Dataset) (Stats, error) {
	var stats Stats
	n, batches, err := bi.IngestUsers(ctx, ds.Users)
	stats.Users, stats.Batches = n, batches
	if err != nil {
		return stats, err
	}
	n, batches, err = bi.IngestTransactions(ctx, ds.Transactions)
	stats.Transactions, stats.Batches = n, stats.Batches+batches
	if err != nil {
		return stats, err
	}
	bi.logger.Info("graph ingestion finished",
		"users", stats.Users, "transactions", stats.Transactions, "batches", stats.Batches)
	return stats, nil
}

// IngestUsers writes users and returns how many rows and batches succeeded.
func (bi *BulkIngestor) IngestUsers(ctx context.Context, users []domain.User) (int, int, error) {
	chunks := chunk(users, bi.batchSize)
	written, ok, err := bi.run(ctx, len(chunks), func(i int) (int, error) {
		return len(chunks[i]), bi.writer.UpsertUsers(ctx, chunks[i])
	})
	bi.metrics.RecordsLoaded("graph", "users", written)
	return written, ok, err
}

// IngestTransactions writes transactions and returns how many rows and
// batches succeeded.
func (bi *BulkIngestor) IngestTransactions(ctx context.Context, txns []domain.Transaction) (int, int, error) {
	chunks := chunk(txns, bi.batchSize)
	written, ok, err := bi.run(ctx, len(chunks), func(i int) (int, error) {
		return len(chunks[i]), bi.writer.UpsertTransactions(ctx, chunks[i])
	})
	bi.metrics.RecordsLoaded("graph", "transactions", written)
	return written, ok, err
}

func (bi *BulkIngestor) run(ctx context.Context, total int, workerFn func(idx int) (int, error)) (int, int, error) {
	if total == 0 {
		return 0, 0, nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		rows    int
		batches int
	)

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			n, err := workerFn(idx)
			if err != nil {
				errCh <- err
				continue
			}
			mu.Lock()
			rows += n
			batches++
			mu.Unlock()
		}
	}

	for i, n := 0, min(bi.workers, total); i < n; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return rows, batches, err
	}

	var taskErr TaskError
	for err := range errCh {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return rows, batches, err
		}
		taskErr.append(err)
	}
	if err := taskErr.asError(); err != nil {
		bi.logger.Error("graph batches failed", "failed", len(taskErr.Errors), "succeeded", batches)
		return rows, batches, err
	}
	return rows, batches, nil
}

func chunk[T any](items []T, size int) [][]T {
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		chunks = append(chunks, items[start:min(start+size, len(items))])
	}
	return chunks
}
