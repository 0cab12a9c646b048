package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codewriter/internal/config"
	"codewriter/internal/diagnose"
	"codewriter/internal/fixloop"
	"codewriter/internal/prompt"
	"codewriter/internal/provider"
	"codewriter/internal/sandbox"
	"codewriter/internal/store"
	"codewriter/internal/writer"
)

var (
	genProvider     string
	genTask         string
	genOut          string
	genTemplate     string
	genDomain       string
	genModel        string
	genTemperature  float32
	genMaxTokens    int
	genFix          int
	genDryRun       bool
	genFormat       bool
	genLint         bool
	genTypecheck    bool
	genSyntaxCheck  bool
	genRequirements bool
	genInstallDeps  bool
	genExecTest     bool
	genExecArgs     []string
	genWithTests    bool
	genExpectOutput string
	genTestArgs     []string
	genRunTests     bool
	genPostCmd      string
	genHistoryDB    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a Python program from a task description",
	Long: `Builds the prompt from the task, template, and domain guidance, asks the
preferred provider (rotating to the others on failure or stub output),
writes the result, and optionally lints, type-checks, tests, and
auto-fixes it.

Examples:
  codewriter generate --provider gemini --task "CSV column stats" --out stats.py
  codewriter generate --provider openai --task "REST healthcheck" \
      --domain fastapi --lint --typecheck --fix 3 --with-tests --run-tests`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "Preferred provider: gemini, openai, anthropic (required)")
	generateCmd.Flags().StringVar(&genTask, "task", "", "Task description (required)")
	generateCmd.Flags().StringVar(&genOut, "out", "", "Output path (default generated.py)")
	generateCmd.Flags().StringVar(&genTemplate, "prompt-template", "", "Prompt template: basic, production, tested")
	generateCmd.Flags().StringVar(&genDomain, "domain", "", "Domain guidance: fastapi, pandas, pytorch, click, aiogram")
	generateCmd.Flags().StringVar(&genModel, "model", "", "Override model name for all providers")
	generateCmd.Flags().Float32Var(&genTemperature, "temperature", 0.2, "Sampling temperature (OpenAI/Anthropic)")
	generateCmd.Flags().IntVar(&genMaxTokens, "max-tokens", 6000, "Completion token limit")
	generateCmd.Flags().IntVar(&genFix, "fix", 0, "Auto-fix iterations using diagnostics")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Print generated code without writing")
	generateCmd.Flags().BoolVar(&genFormat, "format", false, "Format with isort + black after writing")
	generateCmd.Flags().BoolVar(&genLint, "lint", false, "Run flake8")
	generateCmd.Flags().BoolVar(&genTypecheck, "typecheck", false, "Run mypy")
	generateCmd.Flags().BoolVar(&genSyntaxCheck, "syntax-check", false, "Compile-check the output")
	generateCmd.Flags().BoolVar(&genRequirements, "requirements", false, "Emit requirements.txt for the domain")
	generateCmd.Flags().BoolVar(&genInstallDeps, "install-deps", false, "pip install -r requirements.txt")
	generateCmd.Flags().BoolVar(&genExecTest, "exec-test", false, "Run the generated script in a sandbox")
	generateCmd.Flags().StringSliceVar(&genExecArgs, "exec-args", nil, "Arguments passed to the script with --exec-test")
	generateCmd.Flags().BoolVar(&genWithTests, "with-tests", false, "Generate a pytest file alongside the script")
	generateCmd.Flags().StringVar(&genExpectOutput, "expect-output", "", "Assert stdout contains this text during tests")
	generateCmd.Flags().StringSliceVar(&genTestArgs, "test-args", nil, "Extra arguments passed to pytest")
	generateCmd.Flags().BoolVar(&genRunTests, "run-tests", false, "Run pytest on the generated test file")
	generateCmd.Flags().StringVar(&genPostCmd, "post-cmd", "", "Shell command to run after writing")
	generateCmd.Flags().StringVar(&genHistoryDB, "db", "", "History database path")

	generateCmd.MarkFlagRequired("provider")
	generateCmd.MarkFlagRequired("task")

	rootCmd.AddCommand(generateCmd)
}

// say prints a progress line unless --quiet is set.
func say(c *color.Color, format string, args ...interface{}) {
	if quiet {
		return
	}
	if c != nil {
		c.Printf(format+"\n", args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
)

// routerRefiner adapts the rotation router's single-provider call to the
// fix loop's Refiner interface.
type routerRefiner struct {
	router    *provider.Router
	preferred provider.Provider
}

func (r routerRefiner) Refine(ctx context.Context, feedbackPrompt string) (string, error) {
	return r.router.GenerateWith(ctx, r.preferred, feedbackPrompt)
}

// checkerAdapter binds the diagnostic runner to a fixed option set.
type checkerAdapter struct {
	runner *diagnose.Runner
	opts   diagnose.Options
}

func (c checkerAdapter) Check(ctx context.Context, path string) (*diagnose.Report, error) {
	return c.runner.Run(ctx, path, c.opts)
}

// filePersister writes candidates and optionally formats them in place.
type filePersister struct {
	exec   *sandbox.Executor
	python string
	format bool
}

func (p filePersister) Persist(path, code string) error {
	if err := writer.WriteCode(path, code); err != nil {
		return err
	}
	if p.format {
		formatFile(p.exec, p.python, path)
	}
	return nil
}

// formatFile runs isort and black over the file. Failures are warnings;
// an unformatted file is still a valid result.
func formatFile(exec *sandbox.Executor, python, path string) {
	for _, tool := range []string{"isort", "black"} {
		result, err := exec.Run(context.Background(), sandbox.Command{
			Binary:    python,
			Arguments: []string{"-m", tool, path},
			Timeout:   60 * time.Second,
		})
		if err != nil || result.ToolMissing || result.ExitCode != 0 {
			say(warnColor, "Formatting with %s failed; leaving file as-is", tool)
			return
		}
	}
	say(nil, "Formatted %s", path)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flags not set explicitly fall back to the config file.
	if !cmd.Flags().Changed("out") {
		genOut = cfg.Out
	}
	if !cmd.Flags().Changed("prompt-template") {
		genTemplate = cfg.Template
	}
	if genTemplate == "" {
		genTemplate = prompt.TemplateBasic
	}
	if !cmd.Flags().Changed("domain") && cfg.Domain != "" {
		genDomain = cfg.Domain
	}
	if !cmd.Flags().Changed("temperature") && cfg.Temperature != 0 {
		genTemperature = cfg.Temperature
	}
	if !cmd.Flags().Changed("max-tokens") && cfg.MaxTokens != 0 {
		genMaxTokens = cfg.MaxTokens
	}
	if !cmd.Flags().Changed("fix") && cfg.Fix != 0 {
		genFix = cfg.Fix
	}
	if !cmd.Flags().Changed("db") {
		genHistoryDB = cfg.HistoryDB
	}

	preferred, err := provider.Parse(genProvider)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	exec := sandbox.NewExecutor(logger.Named("sandbox"))
	settings := cfg.ProviderSettings(genModel, genTemperature, genMaxTokens)
	factory := provider.NewFactory(settings, logger.Named("provider"))
	router := provider.NewRouter(factory, logger.Named("router"))
	router.SetProgress(func(format string, args ...interface{}) {
		say(warnColor, format, args...)
	})

	// Requirements before generation so --install-deps can prime the env.
	if genRequirements {
		reqPath, err := writer.WriteRequirements(writer.RequirementsForDomain(genDomain), "")
		if err != nil {
			return err
		}
		if reqPath != "" {
			say(okColor, "Wrote %s", reqPath)
			if genInstallDeps {
				result, err := exec.Run(ctx, sandbox.Command{
					Binary:    cfg.Python,
					Arguments: []string{"-m", "pip", "install", "-r", reqPath},
					Timeout:   5 * time.Minute,
				})
				if err != nil || result.ExitCode != 0 {
					say(warnColor, "Dependency installation failed (see logs)")
				}
			}
		}
	}

	fullPrompt := prompt.Build(genTemplate, genTask, genDomain)
	gen := router.GenerateWithRotation(ctx, preferred, fullPrompt)

	if genDryRun {
		fmt.Println(gen.Code)
		return nil
	}

	persister := filePersister{exec: exec, python: cfg.Python, format: genFormat}
	if err := persister.Persist(genOut, gen.Code); err != nil {
		return err
	}
	say(okColor, "Wrote %s", genOut)
	if gen.Stub {
		say(warnColor, "Output is a stub fallback; no provider returned real code")
	}

	history, err := store.NewHistoryStore(genHistoryDB, logger.Named("store"))
	if err != nil {
		logger.Warn("history store unavailable", zap.Error(err))
		history = nil
	} else {
		defer history.Close()
	}
	var runID int64
	if history != nil {
		runID, err = history.StartRun(genTask, string(preferred), genTemplate, genDomain, genOut)
		if err != nil {
			logger.Warn("failed to record run", zap.Error(err))
		}
	}

	// Tests are generated before diagnostics so the fix loop can run them.
	testPath := ""
	if genWithTests || genRunTests {
		testPath, err = writer.WritePytest(genOut, genExpectOutput, genDomain)
		if err != nil {
			return err
		}
		say(okColor, "Wrote %s", testPath)
		if genFormat {
			formatFile(exec, cfg.Python, testPath)
		}
	}

	opts := diagnose.Options{
		Syntax:    genSyntaxCheck,
		Lint:      genLint,
		Typecheck: genTypecheck,
	}
	runner := diagnose.NewRunnerWithConfig(exec, diagnose.Config{Python: cfg.Python}, logger.Named("diagnose"))

	var tests fixloop.TestRunner
	if genRunTests {
		tests = func(ctx context.Context) (bool, string, error) {
			pytestArgs := append([]string{"-m", "pytest", "-q"}, genTestArgs...)
			pytestArgs = append(pytestArgs, testPath)
			result, err := exec.Run(ctx, sandbox.Command{
				Binary:    cfg.Python,
				Arguments: pytestArgs,
				Timeout:   2 * time.Minute,
			})
			if err != nil {
				return false, "", err
			}
			if result.ToolMissing {
				say(warnColor, "pytest not installed. Install with: pip install pytest")
				return true, "", nil
			}
			if result.ExitCode != 0 {
				if !quiet {
					fmt.Print(result.Output())
				}
				return false, "Tests failed. See output above.", nil
			}
			return true, "", nil
		}
	}

	ctrl := fixloop.NewController(
		routerRefiner{router: router, preferred: preferred},
		checkerAdapter{runner: runner, opts: opts},
		persister,
		tests,
		logger.Named("fixloop"),
	)
	ctrl.OnRound = func(round int, report *diagnose.Report, testsPassed bool) {
		if text := report.Text(); text != "" && !quiet {
			fmt.Println(text)
		}
		if history != nil && runID != 0 {
			if err := history.RecordAttempt(runID, round, report.Passed() && testsPassed, report.Text()); err != nil {
				logger.Warn("failed to record attempt", zap.Error(err))
			}
		}
	}

	outcome, err := ctrl.Run(ctx, genOut, gen.Code, genFix)
	if err != nil {
		return err
	}

	if history != nil && runID != 0 {
		stub := prompt.IsStub(outcome.Code)
		passed := outcome.State == fixloop.StatePassed
		if err := history.CompleteRun(runID, string(gen.Provider), string(outcome.State), stub, passed, outcome.Refinements); err != nil {
			logger.Warn("failed to complete run", zap.Error(err))
		}
	}

	checksRequested := genSyntaxCheck || genLint || genTypecheck || genRunTests
	if checksRequested && outcome.State != fixloop.StatePassed {
		say(warnColor, "Diagnostics remain after fixes. Inspect output above.")
	}
	if missing := outcome.Report.MissingTools(); len(missing) > 0 {
		say(warnColor, "Checks skipped for missing tools: %s", strings.Join(missing, ", "))
	}

	if genExecTest {
		say(nil, "Executing %s in sandbox...", genOut)
		result, err := exec.Run(ctx, sandbox.Command{
			Binary:    cfg.Python,
			Arguments: append([]string{genOut}, genExecArgs...),
			Timeout:   10 * time.Second,
		})
		switch {
		case err != nil:
			say(warnColor, "Sandbox error: %v", err)
		case result.Killed:
			say(failColor, "Execution killed: %s", result.KillReason)
		case result.ExitCode != 0:
			say(failColor, "Execution failed:")
			fmt.Print(result.Stderr)
		default:
			say(okColor, "Execution succeeded:")
			fmt.Print(result.Stdout)
		}
	}

	if genPostCmd != "" && !quiet {
		result, err := exec.Run(ctx, sandbox.Command{
			Binary:    "sh",
			Arguments: []string{"-c", genPostCmd},
		})
		if err != nil || result.ExitCode != 0 {
			logger.Debug("post-cmd failed", zap.String("cmd", genPostCmd))
		} else {
			say(nil, "Ran post-cmd: %s", genPostCmd)
		}
	}

	return nil
}
