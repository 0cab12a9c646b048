package sandbox

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRun_Success(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	result, err := exec.Run(context.Background(), Command{
		Binary:    "echo",
		Arguments: []string{"hello"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if got := strings.TrimSpace(result.Stdout); got != "hello" {
		t.Errorf("Stdout = %q, want %q", got, "hello")
	}
	if result.Killed || result.ToolMissing {
		t.Errorf("unexpected flags: killed=%v tool_missing=%v", result.Killed, result.ToolMissing)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	result, err := exec.Run(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if result.ToolMissing {
		t.Error("non-zero exit misclassified as tool missing")
	}
}

func TestRun_MissingBinary(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	result, err := exec.Run(context.Background(), Command{
		Binary: "definitely-not-a-real-binary-12345",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.ToolMissing {
		t.Error("ToolMissing = false for absent binary")
	}
}

func TestRun_Exit127IsToolMissing(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	result, err := exec.Run(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "exit 127"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.ToolMissing {
		t.Error("exit 127 not classified as tool missing")
	}
	if result.ExitCode != ExitToolMissing {
		t.Errorf("ExitCode = %d, want %d", result.ExitCode, ExitToolMissing)
	}
}

func TestRun_Timeout(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	result, err := exec.Run(context.Background(), Command{
		Binary:    "sleep",
		Arguments: []string{"30"},
		Timeout:   100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Killed {
		t.Error("Killed = false after timeout")
	}
	if !strings.Contains(result.KillReason, "timeout") {
		t.Errorf("KillReason = %q, want timeout mention", result.KillReason)
	}
}

func TestRun_Stdin(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	result, err := exec.Run(context.Background(), Command{
		Binary: "cat",
		Stdin:  "piped input",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Stdout != "piped input" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "piped input")
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOutputBytes = 16
	exec := NewExecutorWithConfig(cfg, zap.NewNop())

	result, err := exec.Run(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "printf '%0.s=' $(seq 1 100)"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Truncated {
		t.Error("Truncated = false with output over the cap")
	}
	if len(result.Stdout) > 16 {
		t.Errorf("captured %d bytes, cap is 16", len(result.Stdout))
	}
}

func TestRun_RequiresBinary(t *testing.T) {
	exec := NewExecutor(zap.NewNop())
	if _, err := exec.Run(context.Background(), Command{}); err == nil {
		t.Fatal("Run() with empty binary did not error")
	}
}

func TestCommand_String(t *testing.T) {
	c := Command{Binary: "python3", Arguments: []string{"-m", "flake8", "x.py"}}
	if got := c.String(); got != "python3 -m flake8 x.py" {
		t.Errorf("String() = %q", got)
	}
	if got := (Command{Binary: "ls"}).String(); got != "ls" {
		t.Errorf("String() = %q", got)
	}
}

func TestResult_Output(t *testing.T) {
	r := &Result{Stdout: "out", Stderr: "err"}
	if got := r.Output(); got != "out\nerr" {
		t.Errorf("Output() = %q", got)
	}
	if got := (&Result{Stdout: "only"}).Output(); got != "only" {
		t.Errorf("Output() = %q", got)
	}
	if got := (&Result{Stderr: "only"}).Output(); got != "only" {
		t.Errorf("Output() = %q", got)
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 5}

	n, err := lw.Write([]byte("abcdefgh"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 8 {
		t.Errorf("Write() reported %d, want 8 (must not break the pipe)", n)
	}
	if buf.String() != "abcde" {
		t.Errorf("captured %q, want %q", buf.String(), "abcde")
	}
	if !lw.truncated {
		t.Error("truncated flag not set")
	}

	// Further writes are discarded but still report success.
	if n, _ := lw.Write([]byte("more")); n != 4 {
		t.Errorf("post-cap Write() reported %d, want 4", n)
	}
	if buf.String() != "abcde" {
		t.Errorf("post-cap capture grew to %q", buf.String())
	}
}
