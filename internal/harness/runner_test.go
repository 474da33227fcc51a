package harness

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olavtom/postgresql-container/internal/config"
)

// nopReporter discards run progress; runner tests only inspect the result.
type nopReporter struct{}

func (nopReporter) ReportStart(config.Config, int)         {}
func (nopReporter) ReportScenarioStart(Scenario, int, int) {}
func (nopReporter) ReportScenarioResult(ScenarioResult)    {}
func (nopReporter) ReportSuiteResult(SuiteResult)          {}

func newTestRunner(cfg config.Config) *Runner {
	return NewRunner(cfg, nopReporter{}, NewSilentLogger())
}

func passing(name string) Scenario {
	return Scenario{Name: name, Run: func(context.Context) error { return nil }}
}

func failing(name string) Scenario {
	return Scenario{Name: name, Run: func(context.Context) error {
		return fmt.Errorf("assertion did not hold")
	}}
}

func TestRun_AggregatesOutcomes(t *testing.T) {
	runner := newTestRunner(config.Config{})

	result := runner.Run(context.Background(), []Scenario{
		passing("a"),
		failing("b"),
		passing("c"),
		{Name: "d", Run: func(context.Context) error {
			return fmt.Errorf("tool missing: %w", ErrSkip)
		}},
	})

	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.False(t, result.AllPassed())
	assert.Equal(t, 1, result.ExitCode())
}

func TestRun_AllPassedExitsZero(t *testing.T) {
	runner := newTestRunner(config.Config{})

	result := runner.Run(context.Background(), []Scenario{passing("a"), passing("b")})

	assert.True(t, result.AllPassed())
	assert.Equal(t, 0, result.ExitCode())
}

func TestRun_SkippedScenariosDoNotFailTheRun(t *testing.T) {
	runner := newTestRunner(config.Config{})

	result := runner.Run(context.Background(), []Scenario{
		passing("a"),
		{Name: "b", Run: func(context.Context) error { return ErrSkip }},
	})

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.ExitCode())
}

func TestRun_FailFastSkipsTheRemainder(t *testing.T) {
	runner := newTestRunner(config.Config{FailFast: true})

	executed := 0
	counting := func(name string) Scenario {
		return Scenario{Name: name, Run: func(context.Context) error {
			executed++
			return nil
		}}
	}

	result := runner.Run(context.Background(), []Scenario{
		counting("a"),
		failing("b"),
		counting("c"),
		counting("d"),
	})

	assert.Equal(t, 1, executed)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Skipped)

	require.Len(t, result.Scenarios, 4)
	assert.Equal(t, OutcomeSkipped, result.Scenarios[2].Outcome)
	assert.Equal(t, OutcomeSkipped, result.Scenarios[3].Outcome)
	assert.Equal(t, "run halted before this scenario", result.Scenarios[3].Error)
}

func TestRun_WithoutFailFastEverythingExecutes(t *testing.T) {
	runner := newTestRunner(config.Config{})

	executed := 0
	result := runner.Run(context.Background(), []Scenario{
		failing("a"),
		{Name: "b", Run: func(context.Context) error {
			executed++
			return nil
		}},
	})

	assert.Equal(t, 1, executed)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestRun_CancelledContextSkipsPendingScenarios(t *testing.T) {
	runner := newTestRunner(config.Config{})

	ctx, cancel := context.WithCancel(context.Background())

	result := runner.Run(ctx, []Scenario{
		{Name: "a", Run: func(context.Context) error {
			cancel()
			return nil
		}},
		passing("b"),
		passing("c"),
	})

	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Skipped)
	// An aborted run never goes green, even with zero failures.
	assert.True(t, result.Interrupted)
	assert.False(t, result.AllPassed())
	assert.Equal(t, 1, result.ExitCode())
}

func TestRun_InterruptBeforeAnyScenarioExitsNonZero(t *testing.T) {
	runner := newTestRunner(config.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := runner.Run(ctx, []Scenario{passing("a"), passing("b")})

	assert.Equal(t, 0, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.True(t, result.Interrupted)
	assert.Equal(t, 1, result.ExitCode())
}

func TestRun_FailFastHaltIsNotAnInterrupt(t *testing.T) {
	runner := newTestRunner(config.Config{FailFast: true})

	result := runner.Run(context.Background(), []Scenario{failing("a"), passing("b")})

	// The run was halted by a failure, not cut short from outside; the
	// failure alone accounts for the non-zero exit.
	assert.False(t, result.Interrupted)
	assert.Equal(t, 1, result.ExitCode())
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	runner := newTestRunner(config.Config{})

	result := runner.Run(context.Background(), []Scenario{
		{Name: "boom", Run: func(context.Context) error {
			panic("unexpected state")
		}},
		passing("after"),
	})

	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, OutcomeFailed, result.Scenarios[0].Outcome)
	assert.Contains(t, result.Scenarios[0].Error, "scenario panicked")
	// The panic is contained at the scenario boundary.
	assert.Equal(t, OutcomePassed, result.Scenarios[1].Outcome)
}

func TestRun_SkipReasonIsRecorded(t *testing.T) {
	runner := newTestRunner(config.Config{})

	result := runner.Run(context.Background(), []Scenario{
		{Name: "s", Run: func(context.Context) error {
			return fmt.Errorf("s2i binary not found: %w", ErrSkip)
		}},
	})

	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, OutcomeSkipped, result.Scenarios[0].Outcome)
	assert.Contains(t, result.Scenarios[0].Error, "s2i binary not found")
}
