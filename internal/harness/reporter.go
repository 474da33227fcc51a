package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/olavtom/postgresql-container/internal/config"
)

// consoleReporter prints run progress to stdout and, when a report path is
// configured, writes a JSON report file next to the console output.
type consoleReporter struct {
	verbose    bool
	reportPath string
}

// NewConsoleReporter creates the default CLI reporter.
func NewConsoleReporter(verbose bool, reportPath string) Reporter {
	return &consoleReporter{verbose: verbose, reportPath: reportPath}
}

func (r *consoleReporter) ReportStart(cfg config.Config, total int) {
	fmt.Printf("🧪 Testing image %s (%d scenarios)\n", cfg.Image, total)
	if r.verbose {
		fmt.Printf("\n⚙️  Configuration:\n")
		fmt.Printf("   • Version: %s\n", stringOrDefault(cfg.Version, "unspecified"))
		fmt.Printf("   • OS: %s\n", stringOrDefault(cfg.OS, "unspecified"))
		fmt.Printf("   • Container CLI: %s\n", cfg.ContainerCLI)
		fmt.Printf("   • Database CLI: %s\n", cfg.DatabaseCLI)
		fmt.Printf("   • Fail fast: %t\n", cfg.FailFast)
		fmt.Printf("   • Poll bound: %d × %v\n", cfg.PollAttempts, cfg.PollDelay)
		if len(cfg.TestList) > 0 {
			fmt.Printf("   • Selected scenarios: %v\n", cfg.TestList)
		}
		if cfg.ReportPath != "" {
			fmt.Printf("   • Report path: %s\n", cfg.ReportPath)
		}
		fmt.Printf("\n")
	}
}

func (r *consoleReporter) ReportScenarioStart(s Scenario, ordinal, total int) {
	fmt.Printf("🎯 [%d/%d] %s\n", ordinal, total, s.Name)
	if r.verbose && s.Description != "" {
		fmt.Printf("   📝 %s\n", s.Description)
	}
}

func (r *consoleReporter) ReportScenarioResult(res ScenarioResult) {
	switch res.Outcome {
	case OutcomePassed:
		fmt.Printf("   ✅ %s (%v)\n", res.Name, res.Duration.Round(time.Millisecond))
	case OutcomeFailed:
		fmt.Printf("   ❌ %s: %s\n", res.Name, res.Error)
	case OutcomeSkipped:
		fmt.Printf("   ⏭️  %s: %s\n", res.Name, res.Error)
	}
}

func (r *consoleReporter) ReportSuiteResult(res SuiteResult) {
	fmt.Printf("\n🏁 Test run complete (%v)\n\n", res.Duration.Round(time.Millisecond))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Scenario", "Result", "Duration"})
	for i, s := range res.Scenarios {
		t.AppendRow(table.Row{i + 1, s.Name, outcomeCell(s.Outcome), s.Duration.Round(time.Millisecond)})
	}
	t.AppendFooter(table.Row{"", "total", fmt.Sprintf("%d passed, %d failed, %d skipped", res.Passed, res.Failed, res.Skipped), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignLeft},
	})
	t.Render()

	for _, s := range res.Scenarios {
		if s.Outcome == OutcomeFailed && s.Error != "" {
			fmt.Printf("   %s: %s\n", s.Name, s.Error)
		}
	}

	switch {
	case res.AllPassed():
		color.New(color.FgGreen, color.Bold).Printf("\nPASS")
		fmt.Printf(": all %d scenarios passed\n", res.Total)
	case res.Interrupted && res.Failed == 0:
		color.New(color.FgRed, color.Bold).Printf("\nFAIL")
		fmt.Printf(": run interrupted, %d of %d scenarios never ran\n", res.Skipped, res.Total)
	default:
		color.New(color.FgRed, color.Bold).Printf("\nFAIL")
		fmt.Printf(": %d of %d scenarios failed\n", res.Failed, res.Total)
	}

	if r.reportPath != "" {
		if path, err := r.saveReport(res); err != nil {
			fmt.Printf("⚠️  Failed to save report: %v\n", err)
		} else {
			fmt.Printf("📄 Report saved to %s\n", path)
		}
	}
}

// saveReport writes the suite result as JSON into the report directory.
func (r *consoleReporter) saveReport(res SuiteResult) (string, error) {
	if err := os.MkdirAll(r.reportPath, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	name := fmt.Sprintf("postgresql-container-report-%s.json", time.Now().Format("20060102-150405"))
	path := filepath.Join(r.reportPath, name)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func outcomeCell(o Outcome) string {
	switch o {
	case OutcomePassed:
		return color.GreenString(string(o))
	case OutcomeFailed:
		return color.RedString(string(o))
	case OutcomeSkipped:
		return color.YellowString(string(o))
	default:
		return string(o)
	}
}

func stringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// quietReporter only surfaces failures and the final verdict, for CI logs.
type quietReporter struct{}

// NewQuietReporter creates a reporter with minimal output.
func NewQuietReporter() Reporter { return &quietReporter{} }

func (r *quietReporter) ReportStart(cfg config.Config, total int)           {}
func (r *quietReporter) ReportScenarioStart(s Scenario, ordinal, total int) {}

func (r *quietReporter) ReportScenarioResult(res ScenarioResult) {
	if res.Outcome == OutcomeFailed {
		fmt.Printf("❌ %s: %s\n", res.Name, res.Error)
	}
}

func (r *quietReporter) ReportSuiteResult(res SuiteResult) {
	switch {
	case res.AllPassed():
		fmt.Printf("✅ All %d scenarios passed (%v)\n", res.Total, res.Duration.Round(time.Millisecond))
	case res.Interrupted && res.Failed == 0:
		fmt.Printf("❌ Run interrupted, %d/%d scenarios never ran (%v)\n", res.Skipped, res.Total, res.Duration.Round(time.Millisecond))
	default:
		fmt.Printf("❌ %d/%d scenarios failed (%v)\n", res.Failed, res.Total, res.Duration.Round(time.Millisecond))
	}
}
