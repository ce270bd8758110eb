// Package chaos runs hypothesis-driven fault experiments against a live
// inventory service and reports whether its invariants survived.
package chaos

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrSteadyStateInvalid = errors.New("chaos: steady state does not hold")

// Experiment states a hypothesis, how to disturb the system and how to judge it.
type Experiment struct {
	Name       string
	Hypothesis string

	// SteadyState is measured before injection and sampled while observing.
	SteadyState []Signal
	Inject      []Step
	Rollback    []Step
	Checks      []Check

	// Observe is how long signals are sampled after injection.
	Observe time.Duration
}

// Signal measures one property of the system under test.
type Signal struct {
	Name      string
	Measure   func(context.Context) (float64, error)
	Tolerance Threshold
}

type Threshold struct {
	Operator string // one of > < >= <= ==
	Value    float64
}

func (t Threshold) Holds(v float64) bool {
	switch t.Operator {
	case ">":
		return v > t.Value
	case "<":
		return v < t.Value
	case ">=":
		return v >= t.Value
	case "<=":
		return v <= t.Value
	case "==":
		return v == t.Value
	}
	return false
}

// Step is one injection or rollback action, named by what it does and what it hits.
type Step struct {
	Kind   string
	Target string
	Run    func(context.Context) error
}

func (s Step) String() string {
	return s.Kind + "/" + s.Target
}

// Check is judged against the last sample taken of Signal.
type Check struct {
	Signal  string
	Pass    func(float64) bool
	Message string
}

type Sample struct {
	At    time.Time
	Value float64
}

type Violation struct {
	Signal string
	Want   Threshold
	Got    float64
	At     time.Time
}

// Failure is an error raised by a step or a signal. Source is the step or signal name.
type Failure struct {
	At     time.Time
	Source string
	Err    string
}

// Report is the outcome of one experiment run.
type Report struct {
	RunID      uuid.UUID
	Experiment string
	Started    time.Time
	Finished   time.Time

	SteadyStateHeld bool
	HypothesisHeld  bool

	Violations   []Violation
	FailedChecks []string
	Failures     []Failure
	Samples      map[string][]Sample

	// RecoveredAfter is the time from the first violation to the next sample
	// that held again. Nil when nothing was violated or nothing recovered.
	RecoveredAfter *time.Duration
}

func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

func (r *Report) fail(source string, err error) {
	r.Failures = append(r.Failures, Failure{At: time.Now(), Source: source, Err: err.Error()})
}

// Engine runs experiments and keeps their reports. It is safe for concurrent use.
type Engine struct {
	tracer      trace.Tracer
	sampleEvery time.Duration

	mu          sync.Mutex
	experiments []Experiment
	reports     []Report
}

// NewEngine returns an engine that samples signals every sampleEvery while observing.
func NewEngine(sampleEvery time.Duration) *Engine {
	if sampleEvery <= 0 {
		sampleEvery = time.Second
	}
	return &Engine{
		tracer:      otel.Tracer("libraryinventory/chaos"),
		sampleEvery: sampleEvery,
	}
}

func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Reports returns the reports of every completed run, oldest first.
// Runs aborted on an invalid steady state are not kept.
func (e *Engine) Reports() []Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Report(nil), e.reports...)
}

// Run measures the steady state, injects, observes, judges the checks and
// rolls back, in that order. Rollback runs even when checks fail.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Report, error) {
	report := &Report{
		RunID:      uuid.New(),
		Experiment: exp.Name,
		Started:    time.Now(),
		Samples:    make(map[string][]Sample),
	}

	ctx, span := e.tracer.Start(ctx, "chaos.run",
		trace.WithAttributes(
			attribute.String("chaos.experiment", exp.Name),
			attribute.String("chaos.run_id", report.RunID.String()),
		),
	)
	defer span.End()

	if violations := e.measureSteadyState(ctx, exp.SteadyState, report); len(violations) > 0 {
		report.Violations = violations
		report.Finished = time.Now()
		span.RecordError(ErrSteadyStateInvalid)
		return report, ErrSteadyStateInvalid
	}
	report.SteadyStateHeld = true

	span.AddEvent("inject")
	e.runSteps(ctx, span, exp.Inject, report)

	span.AddEvent("observe")
	e.observe(ctx, exp, report)
	report.HypothesisHeld = judge(exp.Checks, report)

	span.AddEvent("rollback")
	e.runSteps(ctx, span, exp.Rollback, report)

	report.Finished = time.Now()
	span.SetAttributes(
		attribute.Bool("chaos.hypothesis_held", report.HypothesisHeld),
		attribute.Int("chaos.violations", len(report.Violations)),
	)

	e.mu.Lock()
	e.reports = append(e.reports, *report)
	e.mu.Unlock()

	return report, nil
}

func (e *Engine) measureSteadyState(ctx context.Context, signals []Signal, report *Report) []Violation {
	var violations []Violation
	for _, sig := range signals {
		v, err := sig.Measure(ctx)
		if err != nil {
			report.fail(sig.Name, err)
			v = math.NaN()
		}
		if err != nil || !sig.Tolerance.Holds(v) {
			violations = append(violations, Violation{Signal: sig.Name, Want: sig.Tolerance, Got: v, At: time.Now()})
		}
	}
	return violations
}

func (e *Engine) runSteps(ctx context.Context, span trace.Span, steps []Step, report *Report) {
	for _, step := range steps {
		log.Debug().Str("experiment", report.Experiment).Stringer("step", step).Msg("running chaos step")
		if err := step.Run(ctx); err != nil {
			span.RecordError(err, trace.WithAttributes(attribute.Stringer("chaos.step", step)))
			report.fail(step.String(), err)
		}
	}
}

// observe samples every signal until exp.Observe elapses. At least one round
// of samples is always taken.
func (e *Engine) observe(ctx context.Context, exp Experiment, report *Report) {
	window, cancel := context.WithTimeout(ctx, exp.Observe)
	defer cancel()

	ticker := time.NewTicker(e.sampleEvery)
	defer ticker.Stop()

	var violatedAt time.Time
	for {
		for _, sig := range exp.SteadyState {
			v, err := sig.Measure(ctx)
			if err != nil {
				report.fail(sig.Name, err)
				continue
			}

			now := time.Now()
			report.Samples[sig.Name] = append(report.Samples[sig.Name], Sample{At: now, Value: v})

			switch {
			case !sig.Tolerance.Holds(v):
				report.Violations = append(report.Violations, Violation{Signal: sig.Name, Want: sig.Tolerance, Got: v, At: now})
				if violatedAt.IsZero() {
					violatedAt = now
				}
			case !violatedAt.IsZero() && report.RecoveredAfter == nil:
				d := now.Sub(violatedAt)
				report.RecoveredAfter = &d
			}
		}

		select {
		case <-window.Done():
			return
		case <-ticker.C:
		}
	}
}

func judge(checks []Check, report *Report) bool {
	for _, c := range checks {
		samples := report.Samples[c.Signal]
		if len(samples) == 0 || !c.Pass(samples[len(samples)-1].Value) {
			report.FailedChecks = append(report.FailedChecks, c.Message)
		}
	}
	return len(report.FailedChecks) == 0
}

// GameDay is a scheduled sequence of experiments.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	Pause     time.Duration
}

// RunGameDay runs every scenario in order, pausing between them, and returns
// how many did not hold their hypothesis.
func (e *Engine) RunGameDay(ctx context.Context, gd GameDay) (int, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("chaos.game_day", gd.Name)))
	defer span.End()

	log.Info().Str("game_day", gd.Name).Time("date", gd.Date).Int("scenarios", len(gd.Scenarios)).Msg("starting game day")

	failed := 0
	for i, exp := range gd.Scenarios {
		log.Info().Int("scenario", i+1).Str("name", exp.Name).Str("hypothesis", exp.Hypothesis).Msg("running experiment")

		report, err := e.Run(ctx, exp)
		if err != nil {
			log.Error().Err(err).Str("name", exp.Name).Msg("experiment aborted")
			failed++
			continue
		}
		logReport(report)
		if !report.HypothesisHeld {
			failed++
		}

		if i < len(gd.Scenarios)-1 && gd.Pause > 0 {
			select {
			case <-ctx.Done():
				return failed, ctx.Err()
			case <-time.After(gd.Pause):
			}
		}
	}
	return failed, nil
}

func logReport(r *Report) {
	event := log.Info()
	if !r.HypothesisHeld {
		event = log.Warn().Strs("failed_checks", r.FailedChecks)
	}
	if r.RecoveredAfter != nil {
		event = event.Dur("recovered_after", *r.RecoveredAfter)
	}
	event.
		Str("name", r.Experiment).
		Str("run_id", r.RunID.String()).
		Bool("hypothesis_held", r.HypothesisHeld).
		Int("violations", len(r.Violations)).
		Int("failures", len(r.Failures)).
		Dur("duration", r.Duration()).
		Msg("experiment finished")
}
