// Package diagnose runs static checks (syntax compile, flake8, mypy) over a
// generated Python file and folds the tool output into a single report that
// the fix loop can feed back to a provider.
package diagnose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"codewriter/internal/sandbox"
)

// CheckStatus classifies the outcome of one check.
type CheckStatus string

const (
	// StatusPassed means the tool ran and found nothing.
	StatusPassed CheckStatus = "passed"

	// StatusFailed means the tool ran and reported problems.
	StatusFailed CheckStatus = "failed"

	// StatusToolMissing means the tool is not installed. The check is
	// informational and never fails the report.
	StatusToolMissing CheckStatus = "tool_missing"
)

// Check is the outcome of a single named check.
type Check struct {
	Name   string
	Status CheckStatus
	Output string
}

// Report aggregates check outcomes for one diagnostic round.
type Report struct {
	Checks []Check
}

// Add appends a named check outcome to the report.
func (r *Report) Add(name string, status CheckStatus, output string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: status, Output: output})
}

// Passed reports whether no check failed. Missing tools do not count as
// failures.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFailed {
			return false
		}
	}
	return true
}

// MissingTools lists the names of checks whose tool was not installed.
func (r *Report) MissingTools() []string {
	var names []string
	for _, c := range r.Checks {
		if c.Status == StatusToolMissing {
			names = append(names, c.Name)
		}
	}
	return names
}

// Text renders the report as named sections with the tool output verbatim.
// Checks that produced no output are omitted; an all-clean report renders
// as an empty string.
func (r *Report) Text() string {
	var parts []string
	for _, c := range r.Checks {
		if c.Output == "" {
			continue
		}
		parts = append(parts, "# "+c.Name+"\n"+c.Output)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// Options selects which checks to run.
type Options struct {
	Syntax    bool
	Lint      bool
	Typecheck bool
}

// Executor runs a subprocess and reports its outcome.
type Executor interface {
	Run(ctx context.Context, cmd sandbox.Command) (*sandbox.Result, error)
}

// Config holds runner settings.
type Config struct {
	// Python is the interpreter used to invoke the tools via -m.
	Python string

	// Timeout bounds each individual tool invocation.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Python:  "python3",
		Timeout: 60 * time.Second,
	}
}

// Runner executes the selected checks through a sandbox executor.
type Runner struct {
	exec   Executor
	config Config
	logger *zap.Logger
}

// NewRunner creates a runner with default config.
func NewRunner(exec Executor, logger *zap.Logger) *Runner {
	return NewRunnerWithConfig(exec, DefaultConfig(), logger)
}

// NewRunnerWithConfig creates a runner with custom config.
func NewRunnerWithConfig(exec Executor, config Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Python == "" {
		config.Python = DefaultConfig().Python
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Runner{exec: exec, config: config, logger: logger}
}

// Run executes the enabled checks against the file at path and returns the
// combined report. Tool output goes into the report untouched; the returned
// error covers executor infrastructure failures only.
func (r *Runner) Run(ctx context.Context, path string, opts Options) (*Report, error) {
	report := &Report{}

	if opts.Syntax {
		if err := r.syntaxCheck(ctx, path, report); err != nil {
			return report, err
		}
	}
	if opts.Lint {
		if err := r.toolCheck(ctx, path, "flake8", report); err != nil {
			return report, err
		}
	}
	if opts.Typecheck {
		if err := r.toolCheck(ctx, path, "mypy", report); err != nil {
			return report, err
		}
	}

	r.logger.Debug("diagnostics complete",
		zap.String("path", path),
		zap.Bool("passed", report.Passed()),
		zap.Strings("missing_tools", report.MissingTools()))

	return report, nil
}

// syntaxCheck compiles the file without executing it. A missing interpreter
// is reported as a missing tool rather than a syntax failure.
func (r *Runner) syntaxCheck(ctx context.Context, path string, report *Report) error {
	result, err := r.exec.Run(ctx, sandbox.Command{
		Binary:    r.config.Python,
		Arguments: []string{"-m", "py_compile", path},
		Timeout:   r.config.Timeout,
	})
	if err != nil {
		return fmt.Errorf("syntax check: %w", err)
	}

	switch {
	case result.ToolMissing:
		report.Add("syntax", StatusToolMissing, r.config.Python+" not found on PATH")
	case result.ExitCode == 0:
		report.Add("syntax", StatusPassed, "")
	default:
		report.Add("syntax", StatusFailed, strings.TrimSpace(result.Output()))
	}
	return nil
}

// toolCheck runs `python -m <tool> <path>`. Exit 0 is clean, the reserved
// not-installed code is informational, anything else is a failure with the
// tool's own output preserved.
func (r *Runner) toolCheck(ctx context.Context, path, tool string, report *Report) error {
	result, err := r.exec.Run(ctx, sandbox.Command{
		Binary:    r.config.Python,
		Arguments: []string{"-m", tool, path},
		Timeout:   r.config.Timeout,
	})
	if err != nil {
		return fmt.Errorf("%s check: %w", tool, err)
	}

	if result.ToolMissing {
		report.Add(tool, StatusToolMissing,
			fmt.Sprintf("%s not installed. Install with: pip install %s", tool, tool))
		return nil
	}

	status := StatusPassed
	if result.ExitCode != 0 {
		status = StatusFailed
	}
	report.Add(tool, status, strings.TrimSpace(result.Stdout))
	if status == StatusFailed && strings.TrimSpace(result.Stderr) != "" {
		report.Add(tool+"-stderr", status, strings.TrimSpace(result.Stderr))
	}
	return nil
}
