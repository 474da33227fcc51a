// Package container drives the container runtime through its command line
// interface. The harness only ever consumes exit codes, stdout text and
// inspected fields; runtime-internal state stays behind the CLI boundary.
package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olavtom/postgresql-container/internal/cleanup"
	"github.com/olavtom/postgresql-container/internal/command"
	"github.com/olavtom/postgresql-container/internal/harness"
)

// testLabel marks every container this harness creates, so stale leftovers
// from a crashed previous run can be found and pruned.
const testLabel = "postgresql-container-test"

// cidWaitTimeout bounds the wait for the runtime to write the cidfile after
// a detached create returns.
const cidWaitTimeout = 15 * time.Second

// Runtime wraps one container CLI binary (docker or podman; both speak the
// same argument surface the harness needs).
type Runtime struct {
	cli     string
	runner  command.Runner
	tracker *cleanup.Tracker
	logger  harness.Logger
	cidDir  string
}

// CreateOptions describe one container creation.
type CreateOptions struct {
	// Name is the logical container name. A unique suffix is appended so
	// repeated runs never collide.
	Name string
	// Image overrides the image to run; empty is invalid.
	Image string
	// Env is the container environment (the image's POSTGRESQL_* contract).
	Env map[string]string
	// Volumes are host:container[:opts] mount specifications.
	Volumes []string
	// ExtraArgs are appended to the run arguments verbatim (ports, ulimits).
	ExtraArgs []string
}

// NewRuntime creates the runtime wrapper and wires container/image releasers
// into the tracker. The cidfile directory is itself a tracked resource.
func NewRuntime(cli string, runner command.Runner, tracker *cleanup.Tracker, logger harness.Logger) (*Runtime, error) {
	cidDir, err := os.MkdirTemp("", "postgresql-container-cid-*")
	if err != nil {
		return nil, fmt.Errorf("create cidfile directory: %w", err)
	}

	r := &Runtime{
		cli:     cli,
		runner:  runner,
		tracker: tracker,
		logger:  logger,
		cidDir:  cidDir,
	}

	tracker.SetReleaser(cleanup.KindContainer, func(ctx context.Context, id string) error {
		res, err := runner.Run(ctx, cli, []string{"rm", "-f", id}, command.Options{})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("%s rm -f %s: %s", cli, id, strings.TrimSpace(res.Stderr))
		}
		return nil
	})
	tracker.SetReleaser(cleanup.KindImage, func(ctx context.Context, id string) error {
		res, err := runner.Run(ctx, cli, []string{"rmi", "-f", id}, command.Options{})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("%s rmi -f %s: %s", cli, id, strings.TrimSpace(res.Stderr))
		}
		return nil
	})
	tracker.Register(cleanup.KindFile, cidDir)

	return r, nil
}

// CLI returns the runtime binary name, for log messages.
func (r *Runtime) CLI() string { return r.cli }

// Create starts a detached container and waits for the runtime to report its
// identifier through the cidfile. The container and its cidfile are both
// registered for teardown. This is the "must succeed" path: any failure
// propagates immediately and halts the scenario.
func (r *Runtime) Create(ctx context.Context, opts CreateOptions) (*Handle, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("create %s: image must not be empty", opts.Name)
	}

	name := uniqueName(opts.Name)
	cidfile := filepath.Join(r.cidDir, name+".cid")

	args := []string{"run", "-d", "--cidfile", cidfile, "--name", name, "--label", testLabel}
	args = append(args, envArgs(opts.Env)...)
	for _, v := range opts.Volumes {
		args = append(args, "-v", v)
	}
	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.Image)

	// Register the name before the runtime acts: if create half-succeeds,
	// teardown still finds the container by name.
	r.tracker.Register(cleanup.KindContainer, name)
	r.tracker.Register(cleanup.KindFile, cidfile)

	res, err := r.runner.Run(ctx, r.cli, args, command.Options{})
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("create container %s: %s exited %d: %s",
			name, r.cli, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	id, err := waitForCIDFile(ctx, cidfile, cidWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", name, err)
	}

	r.logger.Info("🚀 started container %s (%s)\n", name, id[:min(12, len(id))])
	return &Handle{Name: name, ID: id}, nil
}

// CreateExpectFailure runs a container creation that must fail, in the
// foreground, bounded by wait. It returns nil when the creation failed fast
// (non-zero exit within the bound) and an error when the container came up
// cleanly or hung past the bound. A hung creation is force-killed and
// counted as "did not fail fast enough".
func (r *Runtime) CreateExpectFailure(ctx context.Context, opts CreateOptions, wait time.Duration) error {
	if opts.Image == "" {
		return fmt.Errorf("create %s: image must not be empty", opts.Name)
	}

	name := uniqueName(opts.Name)
	args := []string{"run", "--name", name, "--label", testLabel}
	args = append(args, envArgs(opts.Env)...)
	for _, v := range opts.Volumes {
		args = append(args, "-v", v)
	}
	args = append(args, opts.Image)

	// Even a failed create can leave a container record behind.
	r.tracker.Register(cleanup.KindContainer, name)

	res, err := r.runner.Run(ctx, r.cli, args, command.Options{Timeout: wait})
	if err != nil {
		return fmt.Errorf("create container %s: %w", name, err)
	}
	switch {
	case res.TimedOut:
		return fmt.Errorf("creation of %s did not fail within %v (force-killed)", name, wait)
	case res.ExitCode == 0:
		return fmt.Errorf("creation of %s succeeded, expected failure", name)
	default:
		r.logger.Debug("creation of %s failed as expected (exit %d)\n", name, res.ExitCode)
		return nil
	}
}

// IPAddress resolves the container's address on the default network. The
// result is cached on the handle; lookups on a removed handle fail, and an
// empty inspected address (stopped container) is a hard error, not retried.
func (r *Runtime) IPAddress(ctx context.Context, h *Handle) (string, error) {
	if err := h.check(); err != nil {
		return "", err
	}
	if ip, ok := h.cachedIP(); ok {
		return ip, nil
	}

	out, err := r.inspect(ctx, h.ID, "{{.NetworkSettings.IPAddress}}")
	if err != nil {
		return "", fmt.Errorf("resolve address of %s: %w", h.Name, err)
	}
	if out == "" {
		return "", fmt.Errorf("container %s has no address (not running?)", h.Name)
	}
	h.cacheIP(out)
	return out, nil
}

// ExitCode returns the container's recorded exit status.
func (r *Runtime) ExitCode(ctx context.Context, h *Handle) (int, error) {
	if err := h.check(); err != nil {
		return 0, err
	}
	out, err := r.inspect(ctx, h.ID, "{{.State.ExitCode}}")
	if err != nil {
		return 0, err
	}
	code, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse exit code %q of %s: %w", out, h.Name, err)
	}
	return code, nil
}

// Running reports whether the container is currently running.
func (r *Runtime) Running(ctx context.Context, h *Handle) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	out, err := r.inspect(ctx, h.ID, "{{.State.Running}}")
	if err != nil {
		return false, err
	}
	return out == "true", nil
}

// Exec runs a command inside the running container.
func (r *Runtime) Exec(ctx context.Context, h *Handle, argv ...string) (command.Result, error) {
	if err := h.check(); err != nil {
		return command.Result{}, err
	}
	args := append([]string{"exec", h.ID}, argv...)
	return r.runner.Run(ctx, r.cli, args, command.Options{})
}

// Stop stops the container, waiting for the engine's default grace period.
func (r *Runtime) Stop(ctx context.Context, h *Handle) error {
	if err := h.check(); err != nil {
		return err
	}
	res, err := r.runner.Run(ctx, r.cli, []string{"stop", h.ID}, command.Options{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("stop %s: %s", h.Name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Kill terminates the container immediately. The handle stays valid for
// inspection (exit code, logs) until Remove.
func (r *Runtime) Kill(ctx context.Context, h *Handle) error {
	if err := h.check(); err != nil {
		return err
	}
	res, err := r.runner.Run(ctx, r.cli, []string{"kill", h.ID}, command.Options{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("kill %s: %s", h.Name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Remove force-removes the container and invalidates the handle. The
// tracker forgets the resource since its owner released it here.
func (r *Runtime) Remove(ctx context.Context, h *Handle) error {
	if err := h.check(); err != nil {
		return err
	}
	res, err := r.runner.Run(ctx, r.cli, []string{"rm", "-f", h.ID}, command.Options{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("remove %s: %s", h.Name, strings.TrimSpace(res.Stderr))
	}
	h.markRemoved()
	r.tracker.Forget(cleanup.KindContainer, h.Name)
	return nil
}

// Logs returns the container's combined log output, for diagnostics when a
// convergence poll is exhausted.
func (r *Runtime) Logs(ctx context.Context, h *Handle) (string, error) {
	if h == nil || h.ID == "" {
		return "", fmt.Errorf("container handle is not initialized")
	}
	res, err := r.runner.Run(ctx, r.cli, []string{"logs", h.ID}, command.Options{})
	if err != nil {
		return "", err
	}
	return res.Stdout + res.Stderr, nil
}

// DumpLogs writes the container logs through the logger, used on assertion
// and polling failures so the operator sees why the database never converged.
func (r *Runtime) DumpLogs(ctx context.Context, h *Handle) {
	logs, err := r.Logs(ctx, h)
	if err != nil {
		r.logger.Warn("could not fetch logs of %s: %v\n", h.Name, err)
		return
	}
	r.logger.Error("--- logs of %s ---\n%s\n--- end of logs ---\n", h.Name, strings.TrimSpace(logs))
}

// Pull fetches an image. Used by the upgrade scenario for the older image.
func (r *Runtime) Pull(ctx context.Context, image string) error {
	res, err := r.runner.Run(ctx, r.cli, []string{"pull", image}, command.Options{})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pull %s: %s", image, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// PruneStale removes containers left behind by a previous harness run,
// identified by the test label. Best effort: errors are logged, not
// returned, since stale leftovers must not block a fresh run.
func (r *Runtime) PruneStale(ctx context.Context) {
	res, err := r.runner.Run(ctx, r.cli,
		[]string{"ps", "-aq", "--filter", "label=" + testLabel}, command.Options{})
	if err != nil || res.ExitCode != 0 {
		r.logger.Debug("could not list stale containers: %v\n", err)
		return
	}

	ids := strings.Fields(res.Stdout)
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)

	removed := 0
	for _, id := range ids {
		rm, err := r.runner.Run(ctx, r.cli, []string{"rm", "-f", id}, command.Options{})
		if err != nil || rm.ExitCode != 0 {
			r.logger.Debug("could not remove stale container %s\n", id)
			continue
		}
		removed++
	}
	if removed > 0 {
		r.logger.Warn("removed %d stale container(s) from a previous run\n", removed)
	}
}

func (r *Runtime) inspect(ctx context.Context, id, format string) (string, error) {
	res, err := r.runner.Run(ctx, r.cli, []string{"inspect", "-f", format, id}, command.Options{})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s inspect %s: %s", r.cli, id, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// envArgs renders the environment map as deterministic -e arguments.
func envArgs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, "-e", k+"="+env[k])
	}
	return args
}

func uniqueName(base string) string {
	if base == "" {
		base = "pgc"
	}
	return base + "-" + uuid.NewString()[:8]
}
