// Package wait implements the bounded convergence polling the whole harness
// is built on. Service startup, login admission and replication visibility
// are all asynchronous; a fixed wait would be flaky and an unbounded wait
// would hang CI. Polling a predicate with a fixed delay and a hard attempt
// bound gives deterministic failure reporting instead of silent timeouts.
package wait

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"

	"github.com/olavtom/postgresql-container/internal/harness"
)

// Condition is one transient polling job: a predicate retried up to Attempts
// times with a fixed Delay between evaluations. There is no exponential
// backoff; total wait is bounded by Attempts * Delay.
type Condition struct {
	// Name describes what is being awaited, for logs ("replica visible", ...).
	Name string
	// Attempts is the maximum number of predicate evaluations.
	Attempts int
	// Delay is slept between evaluations (not after the last one).
	Delay time.Duration
	// Predicate reports whether the awaited state has been reached.
	Predicate func(ctx context.Context) bool
}

// Poller evaluates Conditions. The sleep function is injectable so tests can
// count attempts without waiting wall-clock time.
type Poller struct {
	logger   harness.Logger
	sleep    func(time.Duration)
	progress bool
}

// New creates a Poller. With progress enabled and stdout attached to a
// terminal, a spinner shows the attempt count while waiting.
func New(logger harness.Logger, progress bool) *Poller {
	return &Poller{
		logger:   logger,
		sleep:    time.Sleep,
		progress: progress && isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// Poll evaluates the condition until it holds or the attempt bound is
// exhausted. It returns true on the first true predicate result. The
// predicate is evaluated exactly once per attempt: an always-false predicate
// with Attempts=N sees exactly N evaluations. Context cancellation stops the
// poll early with a false result.
func (p *Poller) Poll(ctx context.Context, cond Condition) bool {
	if cond.Attempts < 1 || cond.Predicate == nil {
		return false
	}

	var spin *spinner.Spinner
	if p.progress {
		spin = spinner.New(spinner.CharSets[14], 120*time.Millisecond)
		spin.Suffix = fmt.Sprintf(" waiting for %s", cond.Name)
		spin.Start()
		defer spin.Stop()
	}

	for attempt := 1; attempt <= cond.Attempts; attempt++ {
		if ctx.Err() != nil {
			p.logger.Debug("poll %q cancelled on attempt %d/%d\n", cond.Name, attempt, cond.Attempts)
			return false
		}
		if spin != nil {
			spin.Suffix = fmt.Sprintf(" waiting for %s (attempt %d/%d)", cond.Name, attempt, cond.Attempts)
		}

		if cond.Predicate(ctx) {
			p.logger.Debug("poll %q satisfied on attempt %d/%d\n", cond.Name, attempt, cond.Attempts)
			return true
		}
		if attempt < cond.Attempts {
			p.sleep(cond.Delay)
		}
	}

	p.logger.Warn("condition %q not reached after %d attempts (%v apart)\n", cond.Name, cond.Attempts, cond.Delay)
	return false
}
