package analytics

import (
	"errors"
	"fmt"
)

// ErrInvalidViews wraps every problem found by ValidateViews.
var ErrInvalidViews = errors.New("export views failed validation")

// ValidateViews checks the invariants a BI refresh relies on before
// publishing: non-empty KPI with positive DAU and non-negative GMV,
// non-empty retention with rates within [0, 100], a six-step funnel starting at 100 and a
// non-empty summary with non-negative totals.
func ValidateViews(v Views) error {
	var problems []error

	if len(v.DailyKPI) == 0 {
		problems = append(problems, errors.New("daily_kpi is empty"))
	}
	for _, r := range v.DailyKPI {
		if r.DAU <= 0 {
			problems = append(problems, fmt.Errorf("daily_kpi %s: dau %d", r.Date.Format("2006-01-02"), r.DAU))
		}
		if r.GMV < 0 {
			problems = append(problems, fmt.Errorf("daily_kpi %s: negative gmv", r.Date.Format("2006-01-02")))
		}
	}

	if len(v.Retention) == 0 {
		problems = append(problems, errors.New("retention_cohort is empty"))
	}
	for _, r := range v.Retention {
		if r.RetentionRate < 0 || r.RetentionRate > 100 {
			problems = append(problems, fmt.Errorf("retention %s day %d: rate %.2f", r.CohortWeek.Format("2006-01-02"), r.DayN, r.RetentionRate))
		}
	}

	if len(v.Funnel) != len(FunnelSteps) {
		problems = append(problems, fmt.Errorf("funnel has %d steps, want %d", len(v.Funnel), len(FunnelSteps)))
	} else if v.Funnel[0].PctFromStart != 100 {
		problems = append(problems, fmt.Errorf("funnel starts at %.1f%%", v.Funnel[0].PctFromStart))
	}

	if len(v.TransactionSummary) == 0 {
		problems = append(problems, errors.New("transaction_summary is empty"))
	}
	for _, r := range v.TransactionSummary {
		if r.TotalAmount < 0 {
			problems = append(problems, fmt.Errorf("transaction_summary %s/%s: negative total", r.TransactionType, r.Status))
			break
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidViews, errors.Join(problems...))
}
