package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/quickpay/internal/analytics"
	"github.com/vanshika/quickpay/internal/config"
	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/exporter"
	"github.com/vanshika/quickpay/internal/quality"
)

// Flow names.
const (
	FlowDailyMetrics = "daily-metrics"
	FlowDataQuality  = "data-quality"
	FlowBIRefresh    = "bi-refresh"
)

// State keys written by the flows.
const (
	KeyFreshness   = "latest_event"
	KeyReport      = "quality_report"
	KeyReportPath  = "quality_report_path"
	KeyLevel       = "alert_level"
	KeyViews       = "views"
	KeyExport      = "export"
	KeyVolume      = "event_volume"
	KeySuccessRate = "success_rate"
	KeyDrift       = "schema_drift"

	keySchemaChecked = "schema_checked"
)

var (
	// ErrUnknownFlow is returned by Flows.Get for names it does not know.
	ErrUnknownFlow = errors.New("unknown flow")
	// ErrVolumeAnomaly marks a latest-day event volume outside the threshold.
	ErrVolumeAnomaly = errors.New("event volume anomaly")
	// ErrLowSuccessRate marks a latest-day success rate below the minimum.
	ErrLowSuccessRate = errors.New("transaction success rate too low")
)

// Store is the warehouse surface the flows read.
type Store interface {
	CheckFreshness(ctx context.Context, maxAge time.Duration, now time.Time) (time.Time, error)
	Snapshot(ctx context.Context) (domain.Dataset, error)
	LatestSuccessRate(ctx context.Context) (float64, int, error)
	DailyEventVolume(ctx context.Context) ([]analytics.DayValue, error)
	SchemaSnapshot(ctx context.Context) (quality.Schema, error)
}

// QualityRunner executes a check battery.
type QualityRunner interface {
	Run(ctx context.Context, checks []quality.Check) quality.Report
}

// Exporter writes BI views.
type Exporter interface {
	Export(ctx context.Context, views analytics.Views) (exporter.Result, error)
}

// Notifier delivers alerts.
type Notifier interface {
	QualityReport(ctx context.Context, report quality.Report) error
	Anomaly(ctx context.Context, metric string, a analytics.Anomaly) error
	Text(ctx context.Context, text string) error
}

// Deps are the collaborators the flows are built from.
type Deps struct {
	Store    Store
	Quality  QualityRunner
	Checks   []quality.Check
	Exporter Exporter
	Notifier Notifier
	Config   config.Config
	Logger   *slog.Logger
	Now      func() time.Time
}

// Flows builds flows by name from one set of dependencies.
type Flows struct {
	deps Deps
}

// NewFlows returns the flow registry for deps.
func NewFlows(deps Deps) *Flows {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Checks == nil {
		deps.Checks = quality.DefaultChecks()
	}
	return &Flows{deps: deps}
}

// Names lists the available flows.
func (f *Flows) Names() []string {
	return []string{FlowDailyMetrics, FlowDataQuality, FlowBIRefresh}
}

// Get returns the flow called name.
func (f *Flows) Get(name string) (Flow, error) {
	switch name {
	case FlowDailyMetrics:
		return f.DailyMetrics(), nil
	case FlowDataQuality:
		return f.DataQuality(), nil
	case FlowBIRefresh:
		return f.BIRefresh(), nil
	default:
		return Flow{}, fmt.Errorf("%w: %q", ErrUnknownFlow, name)
	}
}

// DailyMetrics checks freshness, runs the quality battery and, depending on
// the score, either alerts or refreshes the BI exports and reports success.
func (f *Flows) DailyMetrics() Flow {
	return Flow{
		Name: FlowDailyMetrics,
		Steps: []Step{
			{ID: "check_freshness", Run: f.checkFreshness},
			{ID: "run_quality_checks", Run: f.runQuality},
			{ID: "notify_failure", When: scoreBelow(quality.CriticalBelow), Run: f.notifyQuality, ContinueOnError: true},
			{ID: "export_views", When: not(scoreBelow(quality.CriticalBelow)), Run: f.exportViews},
			{ID: "notify_success", When: not(scoreBelow(quality.CriticalBelow)), Run: f.notifyDailySuccess, ContinueOnError: true},
		},
	}
}

// DataQuality runs the volume, success-rate and schema-drift monitors
// concurrently, then the full battery, and alerts by escalation level.
func (f *Flows) DataQuality() Flow {
	return Flow{
		Name: FlowDataQuality,
		Steps: []Step{
			{ID: "monitors", Run: f.runMonitors},
			{ID: "run_full_quality_checks", Run: f.runQuality},
			{ID: "decide_alert", Run: f.decideAlert},
			{ID: "alert_critical", When: levelIs(quality.LevelCritical), Run: f.alertCritical, ContinueOnError: true},
			{ID: "alert_warning", When: levelIs(quality.LevelWarning), Run: f.alertWarning, ContinueOnError: true},
		},
	}
}

// BIRefresh exports the views, validates them and reports the refresh.
func (f *Flows) BIRefresh() Flow {
	return Flow{
		Name: FlowBIRefresh,
		Steps: []Step{
			{ID: "export_views", Run: f.exportViews},
			{ID: "validate_views", Run: f.validateViews},
			{ID: "notify_refresh", Run: f.notifyRefresh, ContinueOnError: true},
		},
	}
}

func (f *Flows) checkFreshness(ctx context.Context, s *State) error {
	latest, err := f.deps.Store.CheckFreshness(ctx, f.deps.Config.Warehouse.FreshnessMaxAge, f.deps.Now())
	if err != nil {
		return err
	}
	s.Set(KeyFreshness, latest)
	return nil
}

func (f *Flows) runQuality(ctx context.Context, s *State) error {
	report := f.deps.Quality.Run(ctx, f.deps.Checks)
	s.Set(KeyReport, report)
	path, err := quality.SaveReport(f.deps.Config.Paths.ReportDir, report)
	if err != nil {
		return err
	}
	s.Set(KeyReportPath, path)
	return nil
}

func (f *Flows) notifyQuality(ctx context.Context, s *State) error {
	report, ok := Get[quality.Report](s, KeyReport)
	if !ok {
		return errors.New("no quality report in flow state")
	}
	return f.deps.Notifier.QualityReport(ctx, report)
}

func (f *Flows) exportViews(ctx context.Context, s *State) error {
	ds, err := f.deps.Store.Snapshot(ctx)
	if err != nil {
		return err
	}
	views := analytics.Build(ds)
	s.Set(KeyViews, views)
	res, err := f.deps.Exporter.Export(ctx, views)
	if err != nil {
		return err
	}
	s.Set(KeyExport, res)
	return nil
}

func (f *Flows) validateViews(_ context.Context, s *State) error {
	views, ok := Get[analytics.Views](s, KeyViews)
	if !ok {
		return errors.New("no views in flow state")
	}
	return analytics.ValidateViews(views)
}

func (f *Flows) notifyDailySuccess(ctx context.Context, s *State) error {
	res, _ := Get[exporter.Result](s, KeyExport)
	return f.deps.Notifier.Text(ctx, fmt.Sprintf(
		":white_check_mark: Daily metrics pipeline completed for %s. %d BI files exported.",
		f.deps.Now().Format("2006-01-02"), len(res.Files)))
}

func (f *Flows) notifyRefresh(ctx context.Context, s *State) error {
	res, _ := Get[exporter.Result](s, KeyExport)
	views := make([]string, 0, len(res.Rows))
	for name, n := range res.Rows {
		views = append(views, fmt.Sprintf("%s: %d rows", name, n))
	}
	sort.Strings(views)
	return f.deps.Notifier.Text(ctx, fmt.Sprintf(":bar_chart: BI data refresh completed for %s\n%s",
		f.deps.Now().Format("2006-01-02"), strings.Join(views, "\n")))
}

func (f *Flows) decideAlert(_ context.Context, s *State) error {
	report, ok := Get[quality.Report](s, KeyReport)
	if !ok {
		s.Set(KeyLevel, quality.LevelCritical)
		return nil
	}
	s.Set(KeyLevel, quality.Escalate(report.QualityScore))
	return nil
}

func (f *Flows) alertCritical(ctx context.Context, s *State) error {
	report, _ := Get[quality.Report](s, KeyReport)
	return errors.Join(
		f.deps.Notifier.Text(ctx, fmt.Sprintf(":red_circle: CRITICAL: data quality score %.1f%% is below %.0f%%. Immediate action required.",
			report.QualityScore, quality.CriticalBelow)),
		f.deps.Notifier.QualityReport(ctx, report),
	)
}

func (f *Flows) alertWarning(ctx context.Context, s *State) error {
	report, _ := Get[quality.Report](s, KeyReport)
	return errors.Join(
		f.deps.Notifier.Text(ctx, fmt.Sprintf(":large_yellow_circle: WARNING: data quality score %.1f%% is below %.0f%%. Review within business hours.",
			report.QualityScore, quality.WarningBelow)),
		f.deps.Notifier.QualityReport(ctx, report),
	)
}

// runMonitors runs the three monitors concurrently and waits for all of
// them. Volume and success-rate breaches fail the step without a retry;
// schema drift is only reported.
func (f *Flows) runMonitors(ctx context.Context, s *State) error {
	monitors := []func(context.Context, *State) error{
		f.checkEventVolume,
		f.checkSuccessRate,
		f.checkSchemaDrift,
	}
	errs := make([]error, len(monitors))
	var g errgroup.Group
	for i, monitor := range monitors {
		i, monitor := i, monitor
		g.Go(func() error {
			errs[i] = monitor(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (f *Flows) checkEventVolume(ctx context.Context, s *State) error {
	series, err := f.deps.Store.DailyEventVolume(ctx)
	if err != nil {
		return err
	}
	latest, ok := analytics.LatestPoint(series)
	if !ok {
		return nil
	}
	s.Set(KeyVolume, latest)
	f.deps.Logger.Info("event volume checked",
		"day", latest.Day.Format("2006-01-02"), "count", latest.Value, "mean", math.Round(latest.Expected), "zscore", latest.ZScore)

	if math.Abs(latest.ZScore) <= f.deps.Config.Pipeline.AnomalyThreshold {
		return nil
	}
	if err := f.deps.Notifier.Anomaly(ctx, "Event volume", latest); err != nil {
		f.deps.Logger.Warn("anomaly alert failed", "error", err)
	}
	return Permanent(fmt.Errorf("%w: z-score %.2f", ErrVolumeAnomaly, latest.ZScore))
}

func (f *Flows) checkSuccessRate(ctx context.Context, s *State) error {
	rate, total, err := f.deps.Store.LatestSuccessRate(ctx)
	if err != nil {
		return err
	}
	s.Set(KeySuccessRate, rate)
	f.deps.Logger.Info("success rate checked", "rate", rate, "total", total)
	if total > 0 && rate < f.deps.Config.Pipeline.MinSuccessRate {
		return Permanent(fmt.Errorf("%w: %.2f%%", ErrLowSuccessRate, rate))
	}
	return nil
}

// checkSchemaDrift diffs against the stored snapshot at most once per run,
// then replaces it.
func (f *Flows) checkSchemaDrift(ctx context.Context, s *State) error {
	if _, done := s.Value(keySchemaChecked); done {
		return nil
	}
	path := f.deps.Config.Warehouse.SchemaSnapshot
	current, err := f.deps.Store.SchemaSnapshot(ctx)
	if err != nil {
		return err
	}
	previous, err := quality.LoadSnapshot(path)
	if err != nil {
		return err
	}
	if previous != nil {
		drifts := quality.DiffSchemas(previous, current)
		s.Set(KeyDrift, drifts)
		for _, d := range drifts {
			f.deps.Logger.Warn("schema drift detected",
				"table", d.Table, "added", d.Added, "removed", d.Removed, "retyped", d.Retyped)
		}
		if len(drifts) == 0 {
			f.deps.Logger.Info("schema unchanged")
		}
	}
	if err := quality.SaveSnapshot(path, current); err != nil {
		return err
	}
	s.Set(keySchemaChecked, true)
	return nil
}

func scoreBelow(threshold float64) func(*State) bool {
	return func(s *State) bool {
		report, ok := Get[quality.Report](s, KeyReport)
		return !ok || report.QualityScore < threshold
	}
}

func levelIs(level quality.Level) func(*State) bool {
	return func(s *State) bool {
		got, ok := Get[quality.Level](s, KeyLevel)
		return ok && got == level
	}
}

func not(pred func(*State) bool) func(*State) bool {
	return func(s *State) bool { return !pred(s) }
}

// Launcher runs registered flows by name.
type Launcher struct {
	runner *Runner
	flows  *Flows
}

// NewLauncher pairs a runner with a flow registry.
func NewLauncher(runner *Runner, flows *Flows) *Launcher {
	return &Launcher{runner: runner, flows: flows}
}

// Names lists the flows the launcher knows.
func (l *Launcher) Names() []string { return l.flows.Names() }

// Launch runs the flow called name once. Unknown names return
// ErrUnknownFlow and a nil Result.
func (l *Launcher) Launch(ctx context.Context, name string) (*Result, error) {
	flow, err := l.flows.Get(name)
	if err != nil {
		return nil, err
	}
	return l.runner.Run(ctx, flow)
}
