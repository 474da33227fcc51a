package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/olavtom/postgresql-container/internal/cleanup"
	"github.com/olavtom/postgresql-container/internal/command"
	"github.com/olavtom/postgresql-container/internal/config"
	"github.com/olavtom/postgresql-container/internal/container"
	"github.com/olavtom/postgresql-container/internal/database"
	"github.com/olavtom/postgresql-container/internal/harness"
	"github.com/olavtom/postgresql-container/internal/scenarios"
	"github.com/olavtom/postgresql-container/internal/topology"
	"github.com/olavtom/postgresql-container/internal/wait"
)

var (
	runConfigFile string
	runQuiet      bool
	runTimeout    time.Duration
)

// flagCfg receives the flag-bound values at parse time; runCfg is the fully
// resolved configuration (environment, then overrides file, then flags).
var (
	flagCfg config.Config
	runCfg  config.Config
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the test scenarios against the image under test",
	Long: `Run executes the registered scenarios sequentially, in registration
order, against the image named by IMAGE_NAME.

Scenario selection comes from TEST_LIST or the --scenario flag; FAIL_FAST or
--fail-fast stops the run at the first failure. The process exits 0 only when
every executed scenario passed. Every container, volume, image and temp file
created during the run is released on exit, including on interrupt.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if runConfigFile != "" {
			if cfg, err = cfg.MergeFile(runConfigFile); err != nil {
				return err
			}
		}
		// Explicitly set flags win over environment and file values.
		runCfg = cfg
		if cmd.Flags().Changed("fail-fast") {
			runCfg.FailFast = flagCfg.FailFast
		}
		if cmd.Flags().Changed("verbose") {
			runCfg.Verbose = flagCfg.Verbose
		}
		if cmd.Flags().Changed("debug") {
			runCfg.Debug = flagCfg.Debug
		}
		if cmd.Flags().Changed("progress") {
			runCfg.Progress = flagCfg.Progress
		}
		if cmd.Flags().Changed("report") {
			runCfg.ReportPath = flagCfg.ReportPath
		}
		if cmd.Flags().Changed("scenario") {
			runCfg.TestList = flagCfg.TestList
		}
		if cmd.Flags().Changed("create-fail-timeout") {
			runCfg.CreateFailTimeout = flagCfg.CreateFailTimeout
		}
		return runCfg.Validate()
	},
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flagCfg = config.Defaults()
	flagCfg.BindFlags(runCmd.Flags())
	runCmd.Flags().StringVar(&runConfigFile, "config", "", "Path to a YAML configuration overrides file")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Only print failures and the final verdict")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "Overall run timeout")
}

func runRun(cmd *cobra.Command, args []string) error {
	// An interrupt cancels the context; the runner skips everything still
	// pending and the deferred release pass below still runs.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	result, err := executeSuite(ctx, runCfg)
	if err != nil {
		return err
	}
	if result.ExitCode() != ExitCodeSuccess {
		os.Exit(ExitCodeFailure)
	}
	return nil
}

// executeSuite wires the components, runs the suite and guarantees the
// release pass on every exit path out of this function: normal completion,
// setup error or interrupt.
func executeSuite(ctx context.Context, cfg config.Config) (*harness.SuiteResult, error) {
	logger := harness.NewStdoutLogger(cfg.Verbose, cfg.Debug)
	tracker := cleanup.NewTracker(logger)

	// The release pass must not be cut short by the cancelled run context.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		tracker.ReleaseAll(releaseCtx)
	}()

	runner := command.NewRunner(logger)
	runtime, err := container.NewRuntime(cfg.ContainerCLI, runner, tracker, logger)
	if err != nil {
		return nil, fmt.Errorf("set up container runtime: %w", err)
	}
	runtime.PruneStale(ctx)

	poller := wait.New(logger, cfg.Progress)
	db := database.NewClient(cfg.DatabaseCLI, runner, logger)
	builder := topology.NewBuilder(cfg, runtime, db, runner, tracker, poller, logger)

	registry := harness.NewRegistry()
	scenarios.Register(registry, &scenarios.Env{
		Config:   cfg,
		Runtime:  runtime,
		DB:       db,
		Topology: builder,
		Poller:   poller,
		Runner:   runner,
		Tracker:  tracker,
		Logger:   logger,
	})

	selected, err := registry.Select(cfg.TestList)
	if err != nil {
		return nil, err
	}

	var reporter harness.Reporter
	if runQuiet {
		reporter = harness.NewQuietReporter()
	} else {
		reporter = harness.NewConsoleReporter(cfg.Verbose, cfg.ReportPath)
	}

	return harness.NewRunner(cfg, reporter, logger).Run(ctx, selected), nil
}
