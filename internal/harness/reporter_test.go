package harness

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveReport_WritesValidJSON(t *testing.T) {
	dir := t.TempDir()
	reporter := &consoleReporter{reportPath: filepath.Join(dir, "reports")}

	res := SuiteResult{
		Total:  2,
		Passed: 1,
		Failed: 1,
		Scenarios: []ScenarioResult{
			{Name: "a", Outcome: OutcomePassed, Duration: time.Second},
			{Name: "b", Outcome: OutcomeFailed, Error: "assertion did not hold"},
		},
	}

	path, err := reporter.saveReport(res)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded SuiteResult
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, 2, loaded.Total)
	require.Len(t, loaded.Scenarios, 2)
	assert.Equal(t, OutcomeFailed, loaded.Scenarios[1].Outcome)
	assert.Equal(t, "assertion did not hold", loaded.Scenarios[1].Error)
}

func TestSuiteResult_ExitCodeMapping(t *testing.T) {
	assert.Equal(t, 0, (&SuiteResult{Total: 3, Passed: 3}).ExitCode())
	assert.Equal(t, 0, (&SuiteResult{Total: 3, Passed: 2, Skipped: 1}).ExitCode())
	assert.Equal(t, 1, (&SuiteResult{Total: 3, Passed: 2, Failed: 1}).ExitCode())
	assert.Equal(t, 1, (&SuiteResult{Total: 3, Passed: 1, Skipped: 2, Interrupted: true}).ExitCode())
}
