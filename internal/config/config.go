// Package config resolves the harness configuration exactly once at startup
// and threads it through the rest of the program by value. The image under
// test and the target version are taken from the environment (the contract
// the CI jobs already speak); everything else has defaults that can be
// overridden by an optional YAML file and by command line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Environment variables consumed by the harness. IMAGE_NAME is the only hard
// prerequisite; a run aborts before any scenario executes when it is missing.
const (
	EnvImageName         = "IMAGE_NAME"
	EnvVersion           = "VERSION"
	EnvOS                = "OS"
	EnvTestList          = "TEST_LIST"
	EnvFailFast          = "FAIL_FAST"
	EnvContainerCLI      = "CONTAINER_CLI"
	EnvUpgradeFromImage  = "UPGRADE_FROM_IMAGE"
	EnvCreateFailTimeout = "CREATE_FAIL_TIMEOUT"
)

// PrerequisiteError indicates the environment is not usable for a test run.
// It is fatal: the runner never starts when one is reported.
type PrerequisiteError struct {
	Variable string
	Reason   string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite %s: %s", e.Variable, e.Reason)
}

// Config is the explicit, immutable configuration for one harness run.
type Config struct {
	// Image is the database image under test, e.g. quay.io/sclorg/postgresql-15-c9s.
	Image string `yaml:"image"`
	// Version is the PostgreSQL major version the image is expected to ship.
	Version string `yaml:"version"`
	// OS is the base OS family of the image (c9s, c10s, fedora, ...).
	OS string `yaml:"os"`
	// UpgradeFromImage is the older image used by the upgrade scenario.
	// The scenario is skipped when empty.
	UpgradeFromImage string `yaml:"upgrade_from_image"`

	// ContainerCLI is the container runtime binary (docker or podman).
	ContainerCLI string `yaml:"container_cli"`
	// DatabaseCLI is the PostgreSQL client binary.
	DatabaseCLI string `yaml:"database_cli"`
	// S2IBinary is the source-to-image build tool binary.
	S2IBinary string `yaml:"s2i_binary"`
	// S2IAppPath is the source directory for the build-variant scenario.
	S2IAppPath string `yaml:"s2i_app_path"`

	// TestList selects scenarios by name; empty means all registered scenarios.
	TestList []string `yaml:"test_list"`
	// FailFast stops the run at the first failed scenario.
	FailFast bool `yaml:"fail_fast"`
	// Verbose enables detailed per-step output.
	Verbose bool `yaml:"verbose"`
	// Debug enables debug logging, including every external command invoked.
	Debug bool `yaml:"debug"`
	// Progress enables the terminal spinner during convergence polling.
	Progress bool `yaml:"progress"`

	// PollAttempts and PollDelay bound every convergence poll (readiness,
	// login admission, replication visibility). Total wait = attempts * delay.
	PollAttempts int           `yaml:"poll_attempts"`
	PollDelay    time.Duration `yaml:"poll_delay"`
	// CreateFailTimeout bounds the "creation must fail" assertion. A creation
	// process still alive after this long is killed and counted as a failure.
	// Deliberately configurable: the threshold is a heuristic, not a contract.
	CreateFailTimeout time.Duration `yaml:"create_fail_timeout"`

	// ReportPath, when set, is a directory receiving a JSON report per run.
	ReportPath string `yaml:"report_path"`
}

// Defaults returns the built-in configuration, before environment, file and
// flag resolution.
func Defaults() Config {
	return Config{
		ContainerCLI:      "docker",
		DatabaseCLI:       "psql",
		S2IBinary:         "s2i",
		S2IAppPath:        "test/test-app",
		PollAttempts:      30,
		PollDelay:         time.Second,
		CreateFailTimeout: 10 * time.Second,
	}
}

// FromEnv resolves the configuration from the process environment on top of
// the defaults. It fails with a PrerequisiteError when IMAGE_NAME is unset.
func FromEnv() (Config, error) {
	v := viper.New()

	v.SetDefault("image", "")
	_ = v.BindEnv("image", EnvImageName)
	_ = v.BindEnv("version", EnvVersion)
	_ = v.BindEnv("os", EnvOS)
	_ = v.BindEnv("test_list", EnvTestList)
	_ = v.BindEnv("fail_fast", EnvFailFast)
	_ = v.BindEnv("container_cli", EnvContainerCLI)
	_ = v.BindEnv("upgrade_from_image", EnvUpgradeFromImage)
	_ = v.BindEnv("create_fail_timeout", EnvCreateFailTimeout)

	cfg := Defaults()
	cfg.Image = v.GetString("image")
	cfg.Version = v.GetString("version")
	cfg.OS = v.GetString("os")
	cfg.UpgradeFromImage = v.GetString("upgrade_from_image")
	cfg.FailFast = v.GetBool("fail_fast")
	if cli := v.GetString("container_cli"); cli != "" {
		cfg.ContainerCLI = cli
	}
	cfg.TestList = splitList(v.GetString("test_list"))
	if d := v.GetDuration("create_fail_timeout"); d > 0 {
		cfg.CreateFailTimeout = d
	}

	if strings.TrimSpace(cfg.Image) == "" {
		return Config{}, &PrerequisiteError{Variable: EnvImageName, Reason: "image under test must be set"}
	}
	return cfg, nil
}

// MergeFile overlays values from a YAML overrides file. Only keys present in
// the file replace the resolved values; a missing file is an error (the user
// asked for it explicitly).
func (c Config) MergeFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config overrides: %w", err)
	}

	// Unmarshal into a copy of the resolved config: only the keys present
	// in the file overwrite their current values.
	merged := c
	if err := yaml.Unmarshal(data, &merged); err != nil {
		return c, fmt.Errorf("apply config overrides %s: %w", path, err)
	}
	return merged, nil
}

// BindFlags registers the flag-overridable subset of the configuration on a
// flag set. Flag values take precedence over environment and file values, so
// binding happens last, after flag parsing.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.FailFast, "fail-fast", c.FailFast, "Stop the run on the first failed scenario")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Enable verbose scenario output")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging of every external command")
	fs.BoolVar(&c.Progress, "progress", c.Progress, "Show a spinner during convergence polling")
	fs.StringVar(&c.ReportPath, "report", c.ReportPath, "Directory to save a JSON report (default: stdout only)")
	fs.StringSliceVar(&c.TestList, "scenario", c.TestList, "Run only the named scenarios (repeatable)")
	fs.DurationVar(&c.CreateFailTimeout, "create-fail-timeout", c.CreateFailTimeout, "Bounded wait for creations that are expected to fail")
}

// Validate rejects configurations no run can work with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Image) == "" {
		return &PrerequisiteError{Variable: EnvImageName, Reason: "image under test must be set"}
	}
	if c.PollAttempts < 1 {
		return fmt.Errorf("poll attempts must be at least 1, got %d", c.PollAttempts)
	}
	if c.PollDelay < 0 {
		return fmt.Errorf("poll delay must not be negative, got %v", c.PollDelay)
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	// The CI contract allows both comma and whitespace separated lists.
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
