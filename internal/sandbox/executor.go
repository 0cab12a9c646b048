// Package sandbox runs checker tools and generated scripts as local
// subprocesses with bounded timeouts and capped output capture. It is the
// only place in the codebase that spawns processes; every check, test run,
// and smoke execution goes through an Executor.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExitToolMissing is the reserved exit code meaning "tool not installed".
// POSIX shells return 127 for command-not-found; tools invoked through
// `python -m` surface the same convention.
const ExitToolMissing = 127

// Command describes one subprocess invocation.
type Command struct {
	// Binary is the executable to run (e.g. "python3").
	Binary string

	// Arguments are the command-line arguments.
	Arguments []string

	// WorkingDirectory is the directory to execute in. Empty means the
	// executor default.
	WorkingDirectory string

	// Stdin provides input to the command's standard input.
	Stdin string

	// Timeout bounds wall-clock execution. Zero means the executor default.
	Timeout time.Duration

	// RequestID correlates log lines for this invocation. Assigned
	// automatically when empty.
	RequestID string
}

// String renders the command for logging.
func (c Command) String() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// Result is the outcome of one subprocess invocation.
type Result struct {
	// ExitCode is the command's exit code (-1 if it never ran or was killed).
	ExitCode int

	// Stdout and Stderr hold captured output, possibly truncated.
	Stdout string
	Stderr string

	// Duration is how long the command ran.
	Duration time.Duration

	// Killed indicates the command was terminated by timeout or cancellation.
	Killed bool

	// KillReason explains why the command was killed.
	KillReason string

	// ToolMissing indicates the binary was absent or the invocation
	// returned the reserved not-installed exit code.
	ToolMissing bool

	// Truncated indicates output was cut at the capture limit.
	Truncated bool
}

// Output returns stdout and stderr joined for display.
func (r *Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Config holds executor defaults.
type Config struct {
	// DefaultWorkingDir is used when Command.WorkingDirectory is empty.
	DefaultWorkingDir string

	// DefaultTimeout is used when Command.Timeout is zero.
	DefaultTimeout time.Duration

	// MaxOutputBytes caps captured stdout and stderr, each.
	MaxOutputBytes int64

	// AllowedEnvironment lists environment variables passed through to
	// child processes.
	AllowedEnvironment []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultWorkingDir:  ".",
		DefaultTimeout:     2 * time.Minute,
		MaxOutputBytes:     10 * 1024 * 1024,
		AllowedEnvironment: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "PYTHONPATH", "VIRTUAL_ENV", "TMPDIR"},
	}
}

// Executor runs commands directly on the host. All calls are blocking;
// the timeout is enforced through the context handed to os/exec.
type Executor struct {
	config Config
	logger *zap.Logger
}

// NewExecutor creates an executor with default config.
func NewExecutor(logger *zap.Logger) *Executor {
	return NewExecutorWithConfig(DefaultConfig(), logger)
}

// NewExecutorWithConfig creates an executor with custom config.
func NewExecutorWithConfig(config Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = DefaultConfig().MaxOutputBytes
	}
	return &Executor{config: config, logger: logger}
}

// Run executes the command and returns its result. A command that starts
// but exits non-zero, times out, or is missing entirely is NOT an error:
// the condition is reported in the Result so the caller can classify it.
// The returned error covers infrastructure failures only.
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}
	if cmd.RequestID == "" {
		cmd.RequestID = uuid.NewString()
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	dir := cmd.WorkingDirectory
	if dir == "" {
		dir = e.config.DefaultWorkingDir
	}

	e.logger.Debug("executing command",
		zap.String("request_id", cmd.RequestID),
		zap.String("command", cmd.String()),
		zap.Duration("timeout", timeout))

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCmd := exec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = dir
	execCmd.Env = e.buildEnvironment()
	if cmd.Stdin != "" {
		execCmd.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderrLimited := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}
	execCmd.Stdout = stdoutLimited
	execCmd.Stderr = stderrLimited

	started := time.Now()
	err := execCmd.Run()

	result := &Result{
		ExitCode:  -1,
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Duration:  time.Since(started),
		Truncated: stdoutLimited.truncated || stderrLimited.truncated,
	}

	switch {
	case err == nil:
		result.ExitCode = 0

	case execCtx.Err() == context.DeadlineExceeded:
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		e.logger.Warn("command killed",
			zap.String("request_id", cmd.RequestID),
			zap.String("reason", result.KillReason))

	case execCtx.Err() == context.Canceled:
		result.Killed = true
		result.KillReason = "canceled"

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			result.ToolMissing = true
			e.logger.Debug("binary not found",
				zap.String("request_id", cmd.RequestID),
				zap.String("binary", cmd.Binary))
		} else {
			return result, fmt.Errorf("executing %s: %w", cmd.Binary, err)
		}
	}

	if result.ExitCode == ExitToolMissing {
		result.ToolMissing = true
	}

	e.logger.Debug("command completed",
		zap.String("request_id", cmd.RequestID),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Bool("killed", result.Killed),
		zap.Bool("tool_missing", result.ToolMissing))

	return result, nil
}

// buildEnvironment passes through only the allowed variables.
func (e *Executor) buildEnvironment() []string {
	env := make([]string, 0, len(e.config.AllowedEnvironment))
	for _, key := range e.config.AllowedEnvironment {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	return env
}

// limitedWriter caps total bytes written, silently discarding the rest.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
