package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olavtom/postgresql-container/internal/harness"
)

func newTestRunner() Runner {
	return NewRunner(harness.NewSilentLogger())
}

func TestRun_CapturesOutput(t *testing.T) {
	res, err := newTestRunner().Run(context.Background(),
		"sh", []string{"-c", "echo out; echo err >&2"}, Options{})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.False(t, res.TimedOut)
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := newTestRunner().Run(context.Background(),
		"sh", []string{"-c", "exit 7"}, Options{})

	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestRun_MissingBinaryIsAnError(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(),
		"definitely-not-a-binary-on-path", nil, Options{})
	assert.Error(t, err)
}

func TestRun_EnvIsAppendedToParentEnvironment(t *testing.T) {
	res, err := newTestRunner().Run(context.Background(),
		"sh", []string{"-c", "echo $PGC_TEST_VALUE"},
		Options{Env: []string{"PGC_TEST_VALUE=hello"}})

	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(res.Stdout))
}

func TestRun_StdinIsFedToTheProcess(t *testing.T) {
	res, err := newTestRunner().Run(context.Background(),
		"sh", []string{"-c", "cat"},
		Options{Stdin: strings.NewReader("piped")})

	require.NoError(t, err)
	assert.Equal(t, "piped", res.Stdout)
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	res, err := newTestRunner().Run(context.Background(),
		"sh", []string{"-c", "pwd"}, Options{Dir: dir})

	require.NoError(t, err)
	assert.Contains(t, strings.TrimSpace(res.Stdout), dir)
}

func TestRun_TimeoutKillsAndReportsTimedOut(t *testing.T) {
	start := time.Now()
	res, err := newTestRunner().Run(context.Background(),
		"sh", []string{"-c", "sleep 30"},
		Options{Timeout: 100 * time.Millisecond})

	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_CancelledContextSurfacesAsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
		close(done)
	}()

	_, err := newTestRunner().Run(ctx, "sh", []string{"-c", "sleep 30"}, Options{})
	<-done

	assert.ErrorIs(t, err, context.Canceled)
}
