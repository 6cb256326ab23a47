// Package pipeline runs named flows: ordered steps with optional guards,
// retries, tracing and metrics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanshika/quickpay/internal/config"
	"github.com/vanshika/quickpay/internal/metrics"
	"github.com/vanshika/quickpay/internal/telemetry"
)

// ErrStepFailed wraps the error of a step that ended the flow.
var ErrStepFailed = errors.New("flow step failed")

// Permanent marks err as final: the runner fails the step without further
// attempts. errors.Is and errors.As still see the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// StepStatus is the lifecycle state of a step within one run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Step is one unit of a flow. When, if set, decides at run time whether the
// step executes; a false guard marks it skipped. A failing step with
// ContinueOnError is recorded as failed without stopping the flow.
type Step struct {
	ID              string
	Run             func(ctx context.Context, s *State) error
	When            func(s *State) bool
	ContinueOnError bool
}

// Flow is a named, ordered list of steps.
type Flow struct {
	Name  string
	Steps []Step
}

// StepState records the outcome of one step.
type StepState struct {
	ID        string     `json:"id"`
	Status    StepStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// State is shared by the steps of one run.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

func newState() *State {
	return &State{values: map[string]any{}}
}

// Set stores v under key.
func (s *State) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Value returns the value stored under key.
func (s *State) Value(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Get returns the value under key if it has type T.
func Get[T any](s *State, key string) (T, bool) {
	v, ok := s.Value(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Result summarizes a finished run.
type Result struct {
	RunID     string       `json:"run_id"`
	Flow      string       `json:"flow"`
	Status    StepStatus   `json:"status"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Steps     []*StepState `json:"steps"`
	Error     string       `json:"error,omitempty"`

	state *State
}

// State exposes the values the steps left behind.
func (r *Result) State() *State { return r.state }

// Step returns the state of the step with id, or nil.
func (r *Result) Step(id string) *StepState {
	for _, s := range r.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Runner executes flows.
type Runner struct {
	retries int
	delay   time.Duration
	logger  *slog.Logger
	metrics *metrics.Collectors
	tracer  trace.Tracer
	now     func() time.Time
}

// NewRunner builds a Runner that retries each step cfg.Retries times,
// waiting cfg.RetryDelay between attempts.
func NewRunner(cfg config.PipelineConfig, logger *slog.Logger, m *metrics.Collectors) *Runner {
	return &Runner{
		retries: cfg.Retries,
		delay:   cfg.RetryDelay,
		logger:  logger.With("component", "pipeline"),
		metrics: m,
		tracer:  telemetry.Tracer(),
		now:     time.Now,
	}
}

// Run executes flow once. The returned error is non-nil when a step without
// ContinueOnError failed or ctx ended; the Result is always populated.
func (r *Runner) Run(ctx context.Context, flow Flow) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Flow:      flow.Name,
		StartTime: r.now(),
		state:     newState(),
	}
	for _, step := range flow.Steps {
		res.Steps = append(res.Steps, &StepState{ID: step.ID, Status: StepStatusPending})
	}

	ctx, span := r.tracer.Start(ctx, "flow."+flow.Name, trace.WithAttributes(
		attribute.String("flow.name", flow.Name),
		attribute.String("flow.run_id", res.RunID),
	))
	defer span.End()

	logger := r.logger.With("flow", flow.Name, "run_id", res.RunID)
	logger.Info("flow started", "steps", len(flow.Steps))

	var runErr error
	for i, step := range flow.Steps {
		st := res.Steps[i]
		if runErr != nil {
			st.Status = StepStatusSkipped
			continue
		}
		if step.When != nil && !step.When(res.state) {
			st.Status = StepStatusSkipped
			logger.Info("step skipped", "step", step.ID)
			r.metrics.StepFinished(flow.Name, step.ID, string(StepStatusSkipped), 0)
			continue
		}

		err := r.runStep(ctx, logger, flow.Name, step, st, res.state)
		if err == nil {
			continue
		}
		if step.ContinueOnError && ctx.Err() == nil {
			logger.Warn("step failed, continuing", "step", step.ID, "error", err)
			continue
		}
		runErr = fmt.Errorf("%w: %s: %w", ErrStepFailed, step.ID, err)
	}

	res.EndTime = r.now()
	res.Status = StepStatusCompleted
	if runErr != nil {
		res.Status = StepStatusFailed
		res.Error = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Error("flow failed", "error", runErr, "elapsed", res.EndTime.Sub(res.StartTime))
		return res, runErr
	}
	logger.Info("flow completed", "elapsed", res.EndTime.Sub(res.StartTime))
	return res, nil
}

func (r *Runner) runStep(ctx context.Context, logger *slog.Logger, flow string, step Step, st *StepState, state *State) error {
	ctx, span := r.tracer.Start(ctx, "step."+step.ID, trace.WithAttributes(
		attribute.String("flow.name", flow),
		attribute.String("step.id", step.ID),
	))
	defer span.End()

	start := r.now()
	st.StartTime = &start
	st.Status = StepStatusActive

	var err error
	for attempt := 1; attempt <= r.retries+1; attempt++ {
		st.Attempts = attempt
		if err = step.Run(ctx, state); err == nil {
			break
		}
		logger.Warn("step attempt failed", "step", step.ID, "attempt", attempt, "max_attempts", r.retries+1, "error", err)
		if attempt > r.retries || isPermanent(err) {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(r.delay):
			continue
		}
		break
	}

	end := r.now()
	st.EndTime = &end
	elapsed := end.Sub(start)
	span.SetAttributes(attribute.Int("step.attempts", st.Attempts))

	if err != nil {
		st.Status = StepStatusFailed
		st.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.StepFinished(flow, step.ID, string(StepStatusFailed), elapsed)
		return err
	}
	st.Status = StepStatusCompleted
	r.metrics.StepFinished(flow, step.ID, string(StepStatusCompleted), elapsed)
	logger.Info("step completed", "step", step.ID, "attempts", st.Attempts, "elapsed", elapsed)
	return nil
}
