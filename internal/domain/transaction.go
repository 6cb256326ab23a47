package domain

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxnTransfer  TransactionType = "transfer"
	TxnQRPayment TransactionType = "qr_payment"
	TxnCharge    TransactionType = "charge"
	TxnWithdraw  TransactionType = "withdraw"
)

// TransactionTypes lists every accepted transaction type.
var TransactionTypes = []TransactionType{TxnTransfer, TxnQRPayment, TxnCharge, TxnWithdraw}

// TransactionStatus is the settlement state of a ledger entry.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusPending   TransactionStatus = "pending"
	StatusCancelled TransactionStatus = "cancelled"
)

// TransactionStatuses lists every accepted status.
var TransactionStatuses = []TransactionStatus{StatusCompleted, StatusFailed, StatusPending, StatusCancelled}

// CurrencyKRW is the only currency the ledger carries.
const CurrencyKRW = "KRW"

// Transaction is one ledger row. Amount and Fee are whole KRW.
// CompletedAt is set exactly when Status is completed.
type Transaction struct {
	TransactionID    string            `json:"transaction_id"`
	UserID           string            `json:"user_id"`
	Type             TransactionType   `json:"transaction_type"`
	Amount           int64             `json:"amount"`
	Fee              int64             `json:"fee"`
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	BankCode         string            `json:"bank_code"`
	BankName         string            `json:"bank_name"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at"`
	ErrorCode        string            `json:"error_code,omitempty"`
	MerchantID       string            `json:"merchant_id,omitempty"`
	MerchantCategory string            `json:"merchant_category,omitempty"`
}

// Dataset bundles the three synthesized record sets.
type Dataset struct {
	Users        []User        `json:"users"`
	Events       []Event       `json:"events"`
	Transactions []Transaction `json:"transactions"`
}
