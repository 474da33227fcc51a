package harness

import (
	"context"
	"errors"
	"time"

	"github.com/olavtom/postgresql-container/internal/config"
)

// Outcome is the terminal state of a scenario. A scenario moves
// pending -> running -> {passed, failed, skipped}; terminal states are final
// and there are no retries at this layer (bounded retries live inside a
// scenario's own convergence polls).
type Outcome string

const (
	// OutcomePending means the scenario has not started yet.
	OutcomePending Outcome = "PENDING"
	// OutcomeRunning means the scenario is currently executing.
	OutcomeRunning Outcome = "RUNNING"
	// OutcomePassed means every assertion in the scenario held.
	OutcomePassed Outcome = "PASSED"
	// OutcomeFailed means an assertion failed or a poll was exhausted.
	OutcomeFailed Outcome = "FAILED"
	// OutcomeSkipped means the scenario declined to run (missing optional
	// tooling, no upgrade source image, or the run was interrupted).
	OutcomeSkipped Outcome = "SKIPPED"
)

// ErrSkip is returned by a scenario run function to request OutcomeSkipped.
// Wrap it to explain why: fmt.Errorf("s2i binary not found: %w", ErrSkip).
var ErrSkip = errors.New("scenario skipped")

// Scenario is one named, ordered test case. Run performs orchestration and
// assertions against the image under test and returns nil when everything
// held. Any returned error marks the scenario failed (or skipped for ErrSkip).
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context) error
}

// ScenarioResult records the terminal state of one scenario.
type ScenarioResult struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// SuiteResult aggregates a whole run.
type SuiteResult struct {
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	// Interrupted is set when the run was cut short by context cancellation
	// (SIGINT/SIGTERM or the overall timeout) before every scenario had its
	// chance to execute.
	Interrupted bool             `json:"interrupted,omitempty"`
	Scenarios   []ScenarioResult `json:"scenarios"`
	Config      config.Config    `json:"configuration"`
}

// AllPassed reports whether the run completed with no scenario failed.
// Scenarios that declined to run on their own (missing optional tooling) do
// not count against the run; an interrupted run does.
func (r *SuiteResult) AllPassed() bool {
	return r.Failed == 0 && !r.Interrupted
}

// ExitCode maps the aggregate outcome to the process exit status: 0 when the
// run completed and every executed scenario passed, 1 otherwise. An aborted
// run must not go green in CI.
func (r *SuiteResult) ExitCode() int {
	if r.AllPassed() {
		return 0
	}
	return 1
}

// Reporter receives run progress and the final verdict.
type Reporter interface {
	// ReportStart is called once before the first scenario.
	ReportStart(cfg config.Config, total int)
	// ReportScenarioStart is called when a scenario enters the running state.
	ReportScenarioStart(s Scenario, ordinal, total int)
	// ReportScenarioResult is called when a scenario reaches a terminal state.
	ReportScenarioResult(res ScenarioResult)
	// ReportSuiteResult is called once after the last scenario.
	ReportSuiteResult(res SuiteResult)
}
