package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olavtom/postgresql-container/internal/config"
)

// Runner executes scenarios sequentially, in registration order, and
// aggregates their outcomes. Scenarios share nothing but the immutable
// configuration; every failure is caught at the scenario boundary and turned
// into an outcome, nothing propagates further than the aggregate exit code.
type Runner struct {
	cfg      config.Config
	reporter Reporter
	logger   Logger
}

// NewRunner creates a scenario runner.
func NewRunner(cfg config.Config, reporter Reporter, logger Logger) *Runner {
	return &Runner{cfg: cfg, reporter: reporter, logger: logger}
}

// Run executes the given scenarios one after another. With fail-fast set the
// first failure halts the run and the remaining scenarios are recorded as
// skipped. Context cancellation (interrupt) skips everything still pending
// the same way but additionally marks the result interrupted, so an aborted
// run never maps to exit code 0. The caller's deferred cleanup still sees a
// complete result either way.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) *SuiteResult {
	result := &SuiteResult{
		StartTime: time.Now(),
		Total:     len(scenarios),
		Scenarios: make([]ScenarioResult, 0, len(scenarios)),
		Config:    r.cfg,
	}

	r.reporter.ReportStart(r.cfg, len(scenarios))

	halted := false
	for i, scenario := range scenarios {
		if ctx.Err() != nil {
			result.Interrupted = true
		}
		if halted || result.Interrupted {
			res := ScenarioResult{
				Name:        scenario.Name,
				Description: scenario.Description,
				Outcome:     OutcomeSkipped,
				StartTime:   time.Now(),
				Error:       "run halted before this scenario",
			}
			result.Scenarios = append(result.Scenarios, res)
			result.Skipped++
			r.reporter.ReportScenarioResult(res)
			continue
		}

		r.reporter.ReportScenarioStart(scenario, i+1, len(scenarios))
		res := r.runScenario(ctx, scenario)
		result.Scenarios = append(result.Scenarios, res)

		switch res.Outcome {
		case OutcomePassed:
			result.Passed++
		case OutcomeFailed:
			result.Failed++
		case OutcomeSkipped:
			result.Skipped++
		}

		r.reporter.ReportScenarioResult(res)

		if res.Outcome == OutcomeFailed && r.cfg.FailFast {
			r.logger.Info("fail-fast: halting after scenario %q\n", scenario.Name)
			halted = true
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	r.reporter.ReportSuiteResult(*result)

	return result
}

// runScenario executes a single scenario and converts its error into an
// outcome. A panic inside a scenario is a harness bug but still must not
// leak resources, so it is caught and reported as a failure.
func (r *Runner) runScenario(ctx context.Context, scenario Scenario) (res ScenarioResult) {
	res = ScenarioResult{
		Name:        scenario.Name,
		Description: scenario.Description,
		Outcome:     OutcomeRunning,
		StartTime:   time.Now(),
	}

	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeFailed
			res.Error = fmt.Sprintf("scenario panicked: %v", p)
		}
		res.Duration = time.Since(res.StartTime)
	}()

	err := scenario.Run(ctx)
	switch {
	case err == nil:
		res.Outcome = OutcomePassed
	case errors.Is(err, ErrSkip):
		res.Outcome = OutcomeSkipped
		res.Error = err.Error()
	default:
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
	}
	return res
}
