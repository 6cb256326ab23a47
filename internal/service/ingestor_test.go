package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/graph"
	"github.com/vanshika/quickpay/internal/logging"
	"github.com/vanshika/quickpay/internal/metrics"
	"github.com/vanshika/quickpay/internal/repository"
)

func dataset(users, txns int) domain.Dataset {
	var ds domain.Dataset
	for i := 0; i < users; i++ {
		ds.Users = append(ds.Users, domain.User{UserID: fmt.Sprintf("u%03d", i), DeviceID: fmt.Sprintf("d%03d", i)})
	}
	for i := 0; i < txns; i++ {
		ds.Transactions = append(ds.Transactions, domain.Transaction{
			TransactionID: fmt.Sprintf("t%03d", i),
			UserID:        fmt.Sprintf("u%03d", i%users),
			Type:          domain.TxnTransfer,
			Status:        domain.StatusCompleted,
		})
	}
	return ds
}

func TestIngestDatasetThroughRepository(t *testing.T) {
	mem := graph.NewMemoryClient()
	ingestor := NewBulkIngestor(repository.New(mem), 3, 10, logging.Discard(), metrics.New())

	stats, err := ingestor.IngestDataset(context.Background(), dataset(25, 42))
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 25, Transactions: 42, Batches: 3 + 5}, stats)

	writes := mem.Writes()
	require.Len(t, writes, 8)
	rows := 0
	for _, w := range writes {
		rows += len(w.Params["rows"].([]map[string]any))
	}
	assert.Equal(t, 67, rows)
}

type phaseWriter struct {
	mu         sync.Mutex
	usersDone  int
	txnsBefore bool
	failTxn    map[string]bool
}

func (w *phaseWriter) UpsertUsers(_ context.Context, users []domain.User) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.usersDone += len(users)
	return nil
}

func (w *phaseWriter) UpsertTransactions(_ context.Context, txns []domain.Transaction) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.usersDone < 20 {
		w.txnsBefore = true
	}
	if w.failTxn[txns[0].TransactionID] {
		return fmt.Errorf("batch at %s: %w", txns[0].TransactionID, errors.New("deadlock detected"))
	}
	return nil
}

func TestIngestDatasetUsersBeforeTransactions(t *testing.T) {
	w := &phaseWriter{}
	_, err := NewBulkIngestor(w, 4, 3, logging.Discard(), nil).IngestDataset(context.Background(), dataset(20, 30))
	require.NoError(t, err)
	assert.False(t, w.txnsBefore)
}

func TestIngestAggregatesBatchErrors(t *testing.T) {
	w := &phaseWriter{failTxn: map[string]bool{"t000": true, "t010": true}}
	ingestor := NewBulkIngestor(w, 2, 5, logging.Discard(), nil)

	stats, err := ingestor.IngestDataset(context.Background(), dataset(20, 30))
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Len(t, taskErr.Errors, 2)
	assert.Contains(t, err.Error(), "multiple errors")
	assert.Equal(t, 20, stats.Transactions)
}

func TestIngestStopsOnUserFailure(t *testing.T) {
	boom := errors.New("bolt: connection reset")
	mem := graph.NewMemoryClient().FailWritesAfter(0, boom)
	ingestor := NewBulkIngestor(repository.New(mem), 2, 10, logging.Discard(), nil)

	stats, err := ingestor.IngestDataset(context.Background(), dataset(15, 10))
	require.ErrorIs(t, err, boom)
	assert.Zero(t, stats.Users)
	assert.Zero(t, stats.Transactions)
}

func TestIngestHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewBulkIngestor(&phaseWriter{}, 2, 1, logging.Discard(), nil).IngestUsers(ctx, dataset(10, 0).Users)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunk(t *testing.T) {
	assert.Empty(t, chunk([]int{}, 3))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
}

func TestTaskErrorMessage(t *testing.T) {
	var te TaskError
	assert.NoError(t, te.asError())
	te.append(nil)
	te.append(errors.New("a"))
	assert.Equal(t, "a", te.Error())
	te.append(errors.New("b"))
	assert.Equal(t, "multiple errors: a; b", te.Error())
}
