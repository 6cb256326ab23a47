// Package repository maps the QuickPay dataset onto the relationship graph:
// users and their devices, and transactions with the banks and merchants they
// touch.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/graph"
)

// ErrMissingID is returned when a record in a batch has no id.
var ErrMissingID = errors.New("record id is required")

// SharedDevice is a device id used by more than one user.
type SharedDevice struct {
	DeviceID string   `json:"device_id"`
	Model    string   `json:"model"`
	UserIDs  []string `json:"user_ids"`
}

// MerchantVolume aggregates completed payments to one merchant.
type MerchantVolume struct {
	MerchantID  string `json:"merchant_id"`
	Category    string `json:"category"`
	Payments    int64  `json:"payments"`
	TotalAmount int64  `json:"total_amount"`
	Payers      int64  `json:"payers"`
}

// Repository encapsulates graph persistence operations.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// EnsureConstraints creates the uniqueness constraints the MERGE statements
// rely on. It is idempotent.
func (r *Repository) EnsureConstraints(ctx context.Context) error {
	for _, stmt := range constraintCypher {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	return nil
}

// UpsertUsers merges a batch of users and links each to its device.
func (r *Repository) UpsertUsers(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(users))
	for _, u := range users {
		if u.UserID == "" {
			return fmt.Errorf("user: %w", ErrMissingID)
		}
		rows = append(rows, userRow(u))
	}
	if _, err := r.client.ExecuteWrite(ctx, upsertUsersCypher, map[string]any{"rows": rows}); err != nil {
		return fmt.Errorf("upsert %d users starting at %s: %w", len(users), users[0].UserID, err)
	}
	return nil
}

// UpsertTransactions merges a batch of transactions. Users must already be
// present; rows whose user is missing are dropped by the MATCH.
func (r *Repository) UpsertTransactions(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(txns))
	for _, t := range txns {
		if t.TransactionID == "" {
			return fmt.Errorf("transaction: %w", ErrMissingID)
		}
		rows = append(rows, transactionRow(t))
	}
	if _, err := r.client.ExecuteWrite(ctx, upsertTransactionsCypher, map[string]any{"rows": rows}); err != nil {
		return fmt.Errorf("upsert %d transactions starting at %s: %w", len(txns), txns[0].TransactionID, err)
	}
	return nil
}

// SharedDevices lists devices used by at least minUsers users, most shared
// first.
func (r *Repository) SharedDevices(ctx context.Context, minUsers, limit int) ([]SharedDevice, error) {
	res, err := r.client.ExecuteRead(ctx, sharedDevicesCypher, map[string]any{
		"minUsers": max(minUsers, 2),
		"limit":    clampLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("shared devices query: %w", err)
	}
	devices := make([]SharedDevice, 0, len(res.Records))
	for _, rec := range res.Records {
		devices = append(devices, SharedDevice{
			DeviceID: toString(rec["deviceId"]),
			Model:    toString(rec["model"]),
			UserIDs:  toStrings(rec["userIds"]),
		})
	}
	return devices, nil
}

// TopMerchants ranks merchants by completed payment amount.
func (r *Repository) TopMerchants(ctx context.Context, limit int) ([]MerchantVolume, error) {
	res, err := r.client.ExecuteRead(ctx, topMerchantsCypher, map[string]any{
		"status": string(domain.StatusCompleted),
		"limit":  clampLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("top merchants query: %w", err)
	}
	merchants := make([]MerchantVolume, 0, len(res.Records))
	for _, rec := range res.Records {
		merchants = append(merchants, MerchantVolume{
			MerchantID:  toString(rec["merchantId"]),
			Category:    toString(rec["category"]),
			Payments:    toInt64(rec["payments"]),
			TotalAmount: toInt64(rec["totalAmount"]),
			Payers:      toInt64(rec["payers"]),
		})
	}
	return merchants, nil
}

func userRow(u domain.User) map[string]any {
	return map[string]any{
		"userId":   u.UserID,
		"deviceId": u.DeviceID,
		"props": map[string]any{
			"platform":      string(u.Platform),
			"appVersion":    u.AppVersion,
			"signupDate":    formatTime(u.SignupDate),
			"signupMethod":  string(u.SignupMethod),
			"activityLevel": u.ActivityLevel,
		},
		"device": map[string]any{
			"model":     u.DeviceModel,
			"osVersion": u.OSVersion,
			"platform":  string(u.Platform),
		},
	}
}

func transactionRow(t domain.Transaction) map[string]any {
	props := map[string]any{
		"type":      string(t.Type),
		"amount":    t.Amount,
		"fee":       t.Fee,
		"currency":  t.Currency,
		"status":    string(t.Status),
		"createdAt": formatTime(t.CreatedAt),
	}
	if t.CompletedAt != nil {
		props["completedAt"] = formatTime(*t.CompletedAt)
	}
	if t.ErrorCode != "" {
		props["errorCode"] = t.ErrorCode
	}
	return map[string]any{
		"transactionId": t.TransactionID,
		"userId":        t.UserID,
		"bankCode":      t.BankCode,
		"bankName":      t.BankName,
		"merchantId":    t.MerchantID,
		"category":      t.MerchantCategory,
		"props":         props,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, 200)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toStrings(val any) []string {
	items, ok := val.([]any)
	if !ok {
		if s, ok := val.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, toString(item))
	}
	return out
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

var constraintCypher = []string{
	`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.userId IS UNIQUE`,
	`CREATE CONSTRAINT device_id IF NOT EXISTS FOR (d:Device) REQUIRE d.deviceId IS UNIQUE`,
	`CREATE CONSTRAINT transaction_id IF NOT EXISTS FOR (t:Transaction) REQUIRE t.transactionId IS UNIQUE`,
	`CREATE CONSTRAINT bank_code IF NOT EXISTS FOR (b:Bank) REQUIRE b.bankCode IS UNIQUE`,
	`CREATE CONSTRAINT merchant_id IF NOT EXISTS FOR (m:Merchant) REQUIRE m.merchantId IS UNIQUE`,
}

const upsertUsersCypher = `
UNWIND $rows AS row
MERGE (u:User {userId: row.userId})
SET u += row.props
MERGE (d:Device {deviceId: row.deviceId})
SET d += row.device
MERGE (u)-[:USES_DEVICE]->(d)
`

const upsertTransactionsCypher = `
UNWIND $rows AS row
MATCH (u:User {userId: row.userId})
MERGE (t:Transaction {transactionId: row.transactionId})
SET t += row.props
MERGE (u)-[:MADE]->(t)
FOREACH (_ IN CASE WHEN row.bankCode = "" THEN [] ELSE [1] END |
	MERGE (b:Bank {bankCode: row.bankCode})
	SET b.name = row.bankName
	MERGE (t)-[:VIA_BANK]->(b)
)
FOREACH (_ IN CASE WHEN row.merchantId = "" THEN [] ELSE [1] END |
	MERGE (m:Merchant {merchantId: row.merchantId})
	SET m.category = row.category
	MERGE (t)-[:PAID_TO]->(m)
)
`

const sharedDevicesCypher = `
MATCH (u:User)-[:USES_DEVICE]->(d:Device)
WITH d, collect(u.userId) AS userIds
WHERE size(userIds) >= $minUsers
RETURN d.deviceId AS deviceId, d.model AS model, userIds
ORDER BY size(userIds) DESC, deviceId
LIMIT $limit
`

const topMerchantsCypher = `
MATCH (u:User)-[:MADE]->(t:Transaction {status: $status})-[:PAID_TO]->(m:Merchant)
RETURN m.merchantId AS merchantId,
	m.category AS category,
	count(t) AS payments,
	sum(t.amount) AS totalAmount,
	count(DISTINCT u) AS payers
ORDER BY totalAmount DESC, merchantId
LIMIT $limit
`
