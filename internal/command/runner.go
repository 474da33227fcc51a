// Package command is the single place the harness spawns external processes:
// the container runtime CLI, the database client and the s2i build tool all
// go through Runner. Arguments are structured argv lists, never shell
// strings, so there is no quoting or injection surface.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/olavtom/postgresql-container/internal/harness"
)

// Result is the outcome of one external command. A non-zero exit code is not
// an error at this layer; many assertions intentionally expect failure and
// interpret the code themselves.
type Result struct {
	// ExitCode is the process exit status, or -1 when the process was
	// force-killed before exiting.
	ExitCode int
	// Stdout and Stderr hold the captured output.
	Stdout string
	Stderr string
	// TimedOut is set when the bounded wait expired and the process was
	// force-killed.
	TimedOut bool
}

// Options adjust how a command is spawned.
type Options struct {
	// Env entries (KEY=VALUE) appended to the parent environment.
	Env []string
	// Dir is the working directory; empty means inherit.
	Dir string
	// Stdin, when set, is fed to the process.
	Stdin io.Reader
	// Timeout bounds the wait for the process to exit. On expiry the
	// process is killed and the Result carries TimedOut. Zero means no bound.
	Timeout time.Duration
}

// Runner executes external commands synchronously.
type Runner interface {
	// Run spawns name with args and blocks until exit or bounded-wait
	// expiry. The returned error covers spawn problems only (binary not
	// found, context already cancelled); exit codes live in the Result.
	Run(ctx context.Context, name string, args []string, opts Options) (Result, error)
}

// execRunner is the production Runner on top of os/exec.
type execRunner struct {
	logger harness.Logger
}

// NewRunner creates the production command runner.
func NewRunner(logger harness.Logger) Runner {
	return &execRunner{logger: logger}
}

func (r *execRunner) Run(ctx context.Context, name string, args []string, opts Options) (Result, error) {
	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.Dir = opts.Dir
	cmd.Stdin = opts.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("$ %s %s\n", name, strings.Join(args, " "))

	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		res.ExitCode = 0
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		// The run itself was cancelled (interrupt); surface that, the
		// caller's scenario is over either way.
		return res, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		// Bounded wait expired: the process was killed, not failed.
		res.ExitCode = -1
		res.TimedOut = true
		r.logger.Debug("command %s killed after %v\n", name, opts.Timeout)
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, err
	}
}
