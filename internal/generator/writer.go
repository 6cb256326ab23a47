package generator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/vanshika/quickpay/internal/domain"
)

// Dataset file names written by WriteDataset.
const (
	UsersFile        = "users.json"
	EventsFile       = "events.json"
	TransactionsFile = "transactions.json"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
	dateLayout      = "2006-01-02"
)

// WriteDataset serializes the dataset as JSON files plus flat CSV copies
// (event properties become prop_<key> columns) under dir.
func WriteDataset(dataset domain.Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	jsonFiles := []struct {
		name string
		data any
	}{
		{UsersFile, dataset.Users},
		{EventsFile, dataset.Events},
		{TransactionsFile, dataset.Transactions},
	}
	for _, f := range jsonFiles {
		if err := writeJSON(filepath.Join(dir, f.name), f.data); err != nil {
			return err
		}
	}

	if err := writeCSV(filepath.Join(dir, "users.csv"), userRows(dataset.Users)); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "events.csv"), eventRows(dataset.Events)); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, "transactions.csv"), transactionRows(dataset.Transactions))
}

// ReadDataset loads the JSON files written by WriteDataset.
func ReadDataset(dir string) (domain.Dataset, error) {
	var ds domain.Dataset
	if err := readJSON(filepath.Join(dir, UsersFile), &ds.Users); err != nil {
		return domain.Dataset{}, err
	}
	if err := readJSON(filepath.Join(dir, EventsFile), &ds.Events); err != nil {
		return domain.Dataset{}, err
	}
	if err := readJSON(filepath.Join(dir, TransactionsFile), &ds.Transactions); err != nil {
		return domain.Dataset{}, err
	}
	return ds, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	return nil
}

func userRows(users []domain.User) [][]string {
	rows := [][]string{{"user_id", "device_id", "platform", "device_model", "os_version", "app_version", "signup_date", "signup_method", "activity_level"}}
	for _, u := range users {
		rows = append(rows, []string{
			u.UserID, u.DeviceID, string(u.Platform), u.DeviceModel, u.OSVersion, u.AppVersion,
			u.SignupDate.Format(dateLayout), string(u.SignupMethod),
			strconv.FormatFloat(u.ActivityLevel, 'f', 6, 64),
		})
	}
	return rows
}

// eventRows flattens properties into one column per key seen anywhere in
// the stream, in sorted key order.
func eventRows(events []domain.Event) [][]string {
	keySet := map[string]struct{}{}
	for _, e := range events {
		for k := range e.Properties {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := []string{"event_id", "event_name", "event_timestamp", "received_at", "user_id", "session_id", "device_id", "platform", "app_version", "os_version", "device_model"}
	for _, k := range keys {
		header = append(header, "prop_"+k)
	}

	rows := [][]string{header}
	for _, e := range events {
		row := []string{
			e.EventID, e.EventName, e.EventTimestamp.Format(timestampLayout), e.ReceivedAt.Format(timestampLayout),
			e.UserID, e.SessionID, e.DeviceID, string(e.Platform), e.AppVersion, e.OSVersion, e.DeviceModel,
		}
		for _, k := range keys {
			row = append(row, formatValue(e.Properties[k]))
		}
		rows = append(rows, row)
	}
	return rows
}

func transactionRows(txns []domain.Transaction) [][]string {
	rows := [][]string{{"transaction_id", "user_id", "transaction_type", "amount", "fee", "currency", "status", "bank_code", "bank_name", "created_at", "completed_at", "error_code", "merchant_id", "merchant_category"}}
	for _, t := range txns {
		completed := ""
		if t.CompletedAt != nil {
			completed = t.CompletedAt.Format(timestampLayout)
		}
		rows = append(rows, []string{
			t.TransactionID, t.UserID, string(t.Type),
			strconv.FormatInt(t.Amount, 10), strconv.FormatInt(t.Fee, 10),
			t.Currency, string(t.Status), t.BankCode, t.BankName,
			t.CreatedAt.Format(timestampLayout), completed,
			t.ErrorCode, t.MerchantID, t.MerchantCategory,
		})
	}
	return rows
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(timestampLayout)
	default:
		return fmt.Sprint(val)
	}
}
