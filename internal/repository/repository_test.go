package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/graph"
)

func TestRepository_UpsertUsers(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	signup := time.Date(2025, 11, 20, 10, 30, 0, 0, time.UTC)
	users := []domain.User{
		{UserID: "u1", DeviceID: "d1", Platform: domain.PlatformIOS, DeviceModel: "iPhone 15", OSVersion: "17.2", AppVersion: "3.2.0", SignupDate: signup, SignupMethod: domain.SignupPhone, ActivityLevel: 0.4},
		{UserID: "u2", DeviceID: "d1", Platform: domain.PlatformIOS, DeviceModel: "iPhone 15", OSVersion: "17.2", AppVersion: "3.1.0", SignupDate: signup, SignupMethod: domain.SignupEmail, ActivityLevel: 0.2},
	}

	if err := repo.UpsertUsers(context.Background(), users); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	writes := mem.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 batched write, got %d", len(writes))
	}
	if writes[0].Query != upsertUsersCypher {
		t.Fatalf("unexpected query:\n%s", writes[0].Query)
	}

	rows, ok := writes[0].Params["rows"].([]map[string]any)
	if !ok {
		t.Fatalf("expected rows slice, got %T", writes[0].Params["rows"])
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1]["deviceId"] != "d1" {
		t.Errorf("deviceId mismatch: got %v", rows[1]["deviceId"])
	}
	props := rows[0]["props"].(map[string]any)
	if props["signupDate"] != "2025-11-20T10:30:00Z" {
		t.Errorf("signupDate mismatch: got %v", props["signupDate"])
	}
	if props["platform"] != "ios" {
		t.Errorf("platform mismatch: got %v", props["platform"])
	}
}

func TestRepository_UpsertTransactions(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	created := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	done := created.Add(3 * time.Second)
	txns := []domain.Transaction{
		{TransactionID: "t1", UserID: "u1", Type: domain.TxnTransfer, Amount: 50000, Fee: 0, Currency: domain.CurrencyKRW, Status: domain.StatusCompleted, BankCode: "004", BankName: "KB Kookmin Bank", CreatedAt: created, CompletedAt: &done},
		{TransactionID: "t2", UserID: "u1", Type: domain.TxnQRPayment, Amount: 8000, Currency: domain.CurrencyKRW, Status: domain.StatusFailed, CreatedAt: created, ErrorCode: "E001", MerchantID: "M0042", MerchantCategory: "cafe"},
	}

	if err := repo.UpsertTransactions(context.Background(), txns); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	writes := mem.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 batched write, got %d", len(writes))
	}
	rows := writes[0].Params["rows"].([]map[string]any)

	first := rows[0]["props"].(map[string]any)
	if first["completedAt"] != "2025-12-01T09:00:03Z" {
		t.Errorf("completedAt mismatch: got %v", first["completedAt"])
	}
	if _, ok := first["errorCode"]; ok {
		t.Errorf("completed transaction should carry no errorCode")
	}

	second := rows[1]["props"].(map[string]any)
	if _, ok := second["completedAt"]; ok {
		t.Errorf("failed transaction should carry no completedAt")
	}
	if rows[1]["merchantId"] != "M0042" || rows[1]["bankCode"] != "" {
		t.Errorf("unexpected merchant/bank params: %v", rows[1])
	}
}

func TestRepository_RejectsMissingIDs(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	err := repo.UpsertTransactions(context.Background(), []domain.Transaction{{UserID: "u1"}})
	if !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if len(mem.Writes()) != 0 {
		t.Fatalf("expected no writes")
	}
}

func TestRepository_WrapsClientErrors(t *testing.T) {
	boom := errors.New("bolt: connection reset")
	mem := graph.NewMemoryClient().FailWritesAfter(0, boom)
	repo := New(mem)

	err := repo.UpsertUsers(context.Background(), []domain.User{{UserID: "u9", DeviceID: "d9"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
	if !strings.Contains(err.Error(), "starting at u9") {
		t.Errorf("error should name the batch: %v", err)
	}
}

func TestRepository_EnsureConstraints(t *testing.T) {
	mem := graph.NewMemoryClient()
	if err := New(mem).EnsureConstraints(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	writes := mem.Writes()
	if len(writes) != len(constraintCypher) {
		t.Fatalf("expected %d statements, got %d", len(constraintCypher), len(writes))
	}
	for _, w := range writes {
		if !strings.Contains(w.Query, "IF NOT EXISTS") {
			t.Errorf("constraint must be idempotent: %s", w.Query)
		}
	}
}

func TestRepository_SharedDevices(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"deviceId": "d1", "model": "Galaxy S24", "userIds": []any{"u1", "u2", "u3"}},
	}})
	repo := New(mem)

	devices, err := repo.SharedDevices(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(devices) != 1 || len(devices[0].UserIDs) != 3 {
		t.Fatalf("unexpected devices: %+v", devices)
	}

	params := mem.Reads()[0].Params
	if params["minUsers"] != 2 {
		t.Errorf("minUsers should be at least 2, got %v", params["minUsers"])
	}
	if params["limit"] != 20 {
		t.Errorf("default limit should be 20, got %v", params["limit"])
	}
}

func TestRepository_TopMerchants(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"merchantId": "M0001", "category": "convenience", "payments": int64(12), "totalAmount": int64(96000), "payers": int64(7)},
		{"merchantId": "M0002", "category": "cafe", "payments": int64(3), "totalAmount": int64(15000), "payers": int64(3)},
	}})
	repo := New(mem)

	merchants, err := repo.TopMerchants(context.Background(), 500)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(merchants) != 2 {
		t.Fatalf("expected 2 merchants, got %d", len(merchants))
	}
	if merchants[0].TotalAmount != 96000 || merchants[0].Payers != 7 {
		t.Errorf("unexpected first merchant: %+v", merchants[0])
	}
	if got := mem.Reads()[0].Params["limit"]; got != 200 {
		t.Errorf("limit should be capped at 200, got %v", got)
	}
}
