package quality

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanshika/quickpay/internal/metrics"
)

// Runner executes a battery against a warehouse connection. It never
// aborts: a check whose query faults is recorded as failed and the next
// check runs.
type Runner struct {
	db      Querier
	logger  *slog.Logger
	metrics *metrics.Collectors
	timeout time.Duration
	now     func() time.Time
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithMetrics records check outcomes and the score.
func WithMetrics(m *metrics.Collectors) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithCheckTimeout bounds each check's query.
func WithCheckTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner constructs a Runner.
func NewRunner(db Querier, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		db:     db,
		logger: logger.With("component", "quality"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every check in order and aggregates the report.
func (r *Runner) Run(ctx context.Context, checks []Check) Report {
	report := Report{
		RunTimestamp: r.now(),
		TotalChecks:  len(checks),
		Results:      make([]Result, 0, len(checks)),
	}

	for _, check := range checks {
		res := r.runCheck(ctx, check)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
		r.metrics.CheckResult(check.Name, string(check.Severity), res.Passed)

		level := slog.LevelInfo
		if !res.Passed {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "quality check finished",
			"check", check.Name, "severity", check.Severity, "passed", res.Passed, "details", res.Details)
	}

	report.QualityScore = Score(report.Passed, report.TotalChecks)
	r.metrics.QualityScore(report.QualityScore)
	r.logger.Info("quality run complete",
		"total", report.TotalChecks, "passed", report.Passed, "failed", report.Failed, "score", report.QualityScore)
	return report
}

func (r *Runner) runCheck(ctx context.Context, check Check) Result {
	res := Result{
		CheckName:   check.Name,
		Expectation: check.Expectation,
		Severity:    check.Severity,
	}

	n, err := r.countRows(ctx, check.Query)
	res.RunAt = r.now()
	switch {
	case err != nil:
		res.Details = fmt.Sprintf("Error: %v", err)
	case n == 0:
		res.Passed = true
		res.Details = "No violations found"
	default:
		res.Violations = n
		res.Details = fmt.Sprintf("%d violations found", n)
	}
	return res
}

func (r *Runner) countRows(ctx context.Context, query string) (int, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return n, nil
}
