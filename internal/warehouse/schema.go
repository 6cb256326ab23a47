package warehouse

// Table names.
const (
	TableUsers        = "users"
	TableEvents       = "events"
	TableTransactions = "transactions"
)

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id        TEXT PRIMARY KEY,
		device_id      TEXT NOT NULL,
		platform       TEXT NOT NULL,
		device_model   TEXT NOT NULL,
		os_version     TEXT NOT NULL,
		app_version    TEXT NOT NULL,
		signup_date    TIMESTAMPTZ NOT NULL,
		signup_method  TEXT NOT NULL,
		activity_level DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		event_id         TEXT,
		event_name       TEXT,
		event_timestamp  TIMESTAMPTZ,
		received_at      TIMESTAMPTZ,
		user_id          TEXT,
		session_id       TEXT,
		device_id        TEXT,
		platform         TEXT,
		app_version      TEXT,
		os_version       TEXT,
		device_model     TEXT,
		event_properties JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS events_user_ts_idx ON events (user_id, event_timestamp)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		transaction_id    TEXT,
		user_id           TEXT,
		transaction_type  TEXT,
		amount            BIGINT,
		fee               BIGINT,
		currency          TEXT,
		status            TEXT,
		bank_code         TEXT,
		bank_name         TEXT,
		created_at        TIMESTAMPTZ,
		completed_at      TIMESTAMPTZ,
		error_code        TEXT,
		merchant_id       TEXT,
		merchant_category TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_created_idx ON transactions (created_at)`,
}

var (
	userColumns = []string{
		"user_id", "device_id", "platform", "device_model", "os_version",
		"app_version", "signup_date", "signup_method", "activity_level",
	}
	eventColumns = []string{
		"event_id", "event_name", "event_timestamp", "received_at", "user_id",
		"session_id", "device_id", "platform", "app_version", "os_version",
		"device_model", "event_properties",
	}
	transactionColumns = []string{
		"transaction_id", "user_id", "transaction_type", "amount", "fee", "currency",
		"status", "bank_code", "bank_name", "created_at", "completed_at",
		"error_code", "merchant_id", "merchant_category",
	}
)
