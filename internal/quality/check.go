package quality

import (
	"context"
	"database/sql"
	"math"
	"time"
)

// Severity tags a check for display and alerting. It does not weight the score.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Check is a declarative rule: Query selects violating rows, so the check
// passes exactly when the query returns zero rows.
type Check struct {
	Name        string
	Query       string
	Expectation string
	Severity    Severity
}

// Querier is the subset of *sql.DB the runner needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Result is the outcome of one check.
type Result struct {
	CheckName   string    `json:"check_name"`
	Expectation string    `json:"expectation"`
	Severity    Severity  `json:"severity"`
	Passed      bool      `json:"passed"`
	Details     string    `json:"details"`
	Violations  int       `json:"violations"`
	RunAt       time.Time `json:"run_at"`
}

// Report aggregates one run of a battery.
type Report struct {
	RunTimestamp time.Time `json:"run_timestamp"`
	TotalChecks  int       `json:"total_checks"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	QualityScore float64   `json:"quality_score"`
	Results      []Result  `json:"results"`
}

// FailedResults returns the results that did not pass, in battery order.
func (r Report) FailedResults() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Score is passed/total*100 rounded to one decimal. An empty battery
// scores zero.
func Score(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(passed)/float64(total)*1000) / 10
}

// Level is the alerting tier derived from a score.
type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Escalation thresholds.
const (
	CriticalBelow = 80.0
	WarningBelow  = 90.0
)

// Escalate maps a quality score to an alert level.
func Escalate(score float64) Level {
	switch {
	case score < CriticalBelow:
		return LevelCritical
	case score < WarningBelow:
		return LevelWarning
	default:
		return LevelOK
	}
}
