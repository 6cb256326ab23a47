package quality

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/internal/logging"
	"github.com/vanshika/quickpay/internal/metrics"
)

var fixedNow = time.Date(2026, 2, 12, 9, 30, 0, 0, time.UTC)

func newMockRunner(t *testing.T) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	runner := NewRunner(db, logging.Discard(),
		WithClock(func() time.Time { return fixedNow }),
		WithMetrics(metrics.New()),
		WithCheckTimeout(time.Second),
	)
	return runner, mock
}

func TestRunnerIsolatesCheckErrors(t *testing.T) {
	runner, mock := newMockRunner(t)
	checks := []Check{
		{Name: "clean", Query: "SELECT 1 WHERE false", Severity: SeverityCritical},
		{Name: "broken", Query: "SELECT * FROM missing_table", Severity: SeverityCritical},
		{Name: "dirty", Query: "SELECT id FROM bad_rows", Severity: SeverityWarning},
	}

	mock.ExpectQuery(checks[0].Query).WillReturnRows(sqlmock.NewRows([]string{"x"}))
	mock.ExpectQuery(checks[1].Query).WillReturnError(errors.New(`relation "missing_table" does not exist`))
	mock.ExpectQuery(checks[2].Query).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	report := runner.Run(context.Background(), checks)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 3, report.TotalChecks)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 33.3, report.QualityScore)
	assert.Equal(t, fixedNow, report.RunTimestamp)

	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Passed)
	assert.Equal(t, "No violations found", report.Results[0].Details)
	assert.False(t, report.Results[1].Passed)
	assert.True(t, strings.HasPrefix(report.Results[1].Details, "Error: "))
	assert.False(t, report.Results[2].Passed)
	assert.Equal(t, 2, report.Results[2].Violations)
	assert.Equal(t, "2 violations found", report.Results[2].Details)

	failed := report.FailedResults()
	require.Len(t, failed, 2)
	assert.Equal(t, "broken", failed[0].CheckName)
}

func TestDefaultBatteryAllPassing(t *testing.T) {
	runner, mock := newMockRunner(t)
	checks := DefaultChecks()
	for _, c := range checks {
		mock.ExpectQuery(c.Query).WillReturnRows(sqlmock.NewRows([]string{"x"}))
	}

	report := runner.Run(context.Background(), checks)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, len(checks), report.Passed)
	assert.Equal(t, 100.0, report.QualityScore)
	assert.Equal(t, LevelOK, Escalate(report.QualityScore))
}

func TestDefaultBatteryNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range DefaultChecks() {
		assert.False(t, seen[c.Name], c.Name)
		seen[c.Name] = true
		assert.NotEmpty(t, c.Expectation)
		assert.Contains(t, []Severity{SeverityCritical, SeverityWarning}, c.Severity)
	}
	assert.Contains(t, DefaultChecks()[2].Query, "'auth_signup_started'")
}

func TestScore(t *testing.T) {
	assert.Equal(t, 93.3, Score(14, 15))
	assert.Equal(t, 100.0, Score(15, 15))
	assert.Equal(t, 0.0, Score(0, 15))
	assert.Equal(t, 0.0, Score(0, 0))
}

func TestEscalate(t *testing.T) {
	cases := map[float64]Level{
		0:     LevelCritical,
		79.9:  LevelCritical,
		80:    LevelWarning,
		89.9:  LevelWarning,
		90:    LevelOK,
		100.0: LevelOK,
	}
	for score, want := range cases {
		assert.Equal(t, want, Escalate(score), "score %v", score)
	}
}

func TestSaveAndLoadLatestReport(t *testing.T) {
	dir := t.TempDir()
	_, _, err := LatestReport(dir)
	assert.ErrorIs(t, err, ErrNoReport)

	older := Report{RunTimestamp: fixedNow.Add(-time.Hour), TotalChecks: 1, Passed: 1, QualityScore: 100}
	newer := Report{RunTimestamp: fixedNow, TotalChecks: 2, Passed: 1, Failed: 1, QualityScore: 50,
		Results: []Result{{CheckName: "a", Passed: true}, {CheckName: "b", Details: "1 violations found"}}}

	_, err = SaveReport(dir, older)
	require.NoError(t, err)
	path, err := SaveReport(dir, newer)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "quality_report_20260212_093000.json"), path)

	latest, latestPath, err := LatestReport(dir)
	require.NoError(t, err)
	assert.Equal(t, path, latestPath)
	assert.Equal(t, 50.0, latest.QualityScore)
	assert.Len(t, latest.Results, 2)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, Report{
		TotalChecks: 2, Passed: 1, Failed: 1, QualityScore: 50,
		Results: []Result{
			{CheckName: "txn_positive_amount", Severity: SeverityCritical, Passed: true, Details: "No violations found"},
			{CheckName: "txn_valid_type", Severity: SeverityWarning, Details: "1 violations found"},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "txn_positive_amount")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, strings.ToLower(out), "critical")
}

func TestDiffSchemas(t *testing.T) {
	prev := Schema{
		"events": {"event_id": "text", "platform": "text", "legacy": "text"},
		"users":  {"user_id": "text"},
	}
	curr := Schema{
		"events": {"event_id": "text", "platform": "varchar", "campaign": "text"},
		"users":  {"user_id": "text"},
	}

	drifts := DiffSchemas(prev, curr)
	require.Len(t, drifts, 1)
	assert.Equal(t, Drift{Table: "events", Added: []string{"campaign"}, Removed: []string{"legacy"}, Retyped: []string{"platform"}}, drifts[0])
	assert.Empty(t, DiffSchemas(curr, curr))
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "schema.json")
	missing, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Nil(t, missing)

	s := Schema{"users": {"user_id": "text"}}
	require.NoError(t, SaveSnapshot(path, s))
	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}
