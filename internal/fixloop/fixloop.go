// Package fixloop drives the diagnose-refine cycle: run checks over the
// current candidate, feed failures back to a provider, persist whatever
// comes back, and repeat until the checks pass or the iteration budget is
// spent. The loop never discards a candidate - the file on disk always
// holds the latest code, even when every round fails.
package fixloop

import (
	"context"

	"go.uber.org/zap"

	"codewriter/internal/diagnose"
	"codewriter/internal/extract"
	"codewriter/internal/prompt"
)

// State names the loop phases.
type State string

const (
	StateGenerating      State = "generating"
	StateDiagnosing      State = "diagnosing"
	StateRefining        State = "refining"
	StatePassed          State = "passed"
	StateBudgetExhausted State = "budget_exhausted"
)

// Refiner asks a provider for a corrected candidate. It receives the full
// feedback prompt and returns the raw completion text.
type Refiner interface {
	Refine(ctx context.Context, feedbackPrompt string) (string, error)
}

// Checker produces a diagnostic report for the candidate file.
type Checker interface {
	Check(ctx context.Context, path string) (*diagnose.Report, error)
}

// Persister writes a candidate to its destination. Implementations may
// also format the file; the loop re-reads nothing, so the code string it
// tracks stays pre-format.
type Persister interface {
	Persist(path, code string) error
}

// TestRunner runs the generated test file and reports the outcome. The
// section text is appended to the diagnostics shown to the provider when
// the tests fail.
type TestRunner func(ctx context.Context) (passed bool, section string, err error)

// Outcome is the final loop result.
type Outcome struct {
	// State is StatePassed or StateBudgetExhausted.
	State State

	// Code is the last candidate, persisted on disk.
	Code string

	// Report is the diagnostic report for the last candidate.
	Report *diagnose.Report

	// TestsPassed reflects the last test run; true when no TestRunner is
	// configured.
	TestsPassed bool

	// Refinements counts completed refinement rounds.
	Refinements int
}

// Controller runs the fix loop.
type Controller struct {
	refiner Refiner
	checker Checker
	persist Persister
	tests   TestRunner
	logger  *zap.Logger

	// OnRound is called after every diagnostic pass, including the initial
	// one (round 0), so callers can record history or print progress.
	OnRound func(round int, report *diagnose.Report, testsPassed bool)
}

// NewController wires a controller. tests may be nil when no test run is
// requested.
func NewController(refiner Refiner, checker Checker, persist Persister, tests TestRunner, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		refiner: refiner,
		checker: checker,
		persist: persist,
		tests:   tests,
		logger:  logger,
	}
}

// Run executes up to budget refinement rounds over the candidate at path.
// The initial code must already be persisted by the caller. A refiner
// error means no improvement that round: the unchanged candidate is
// re-diagnosed and the budget still shrinks, so the loop always
// terminates. Run fails only on infrastructure errors (checker or
// persister), never on provider behavior.
func (c *Controller) Run(ctx context.Context, path, initialCode string, budget int) (*Outcome, error) {
	outcome := &Outcome{Code: initialCode, TestsPassed: true}

	c.logger.Debug("fix loop starting", zap.String("path", path), zap.Int("budget", budget))

	report, testsPassed, err := c.diagnose(ctx, path)
	if err != nil {
		return outcome, err
	}
	outcome.Report = report
	outcome.TestsPassed = testsPassed
	c.notify(0, report, testsPassed)

	round := 0
	for budget > 0 && !(report.Passed() && testsPassed) {
		round++
		budget--

		c.logger.Debug("refinement round",
			zap.Int("round", round),
			zap.Int("budget_remaining", budget))

		feedback := prompt.Feedback(outcome.Code, report.Text())

		text, err := c.refiner.Refine(ctx, feedback)
		if err != nil {
			// No improvement this round. Keep the candidate and re-diagnose;
			// the budget decrement above guarantees progress toward exit.
			c.logger.Warn("refinement failed, keeping candidate",
				zap.Int("round", round), zap.Error(err))
		} else {
			code := extract.Code(text)
			if code == "" {
				code = prompt.Stub("Fix attempt produced no code.")
			}
			outcome.Code = code
			if err := c.persist.Persist(path, code); err != nil {
				return outcome, err
			}
		}
		outcome.Refinements = round

		report, testsPassed, err = c.diagnose(ctx, path)
		if err != nil {
			return outcome, err
		}
		outcome.Report = report
		outcome.TestsPassed = testsPassed
		c.notify(round, report, testsPassed)
	}

	if report.Passed() && testsPassed {
		outcome.State = StatePassed
	} else {
		outcome.State = StateBudgetExhausted
	}

	c.logger.Debug("fix loop finished",
		zap.String("state", string(outcome.State)),
		zap.Int("refinements", outcome.Refinements))
	return outcome, nil
}

// diagnose runs checks and the optional test runner, folding a test
// failure into the report as its own section.
func (c *Controller) diagnose(ctx context.Context, path string) (*diagnose.Report, bool, error) {
	report, err := c.checker.Check(ctx, path)
	if err != nil {
		return nil, false, err
	}

	testsPassed := true
	if c.tests != nil {
		passed, section, err := c.tests(ctx)
		if err != nil {
			c.logger.Warn("test run failed to execute", zap.Error(err))
		} else {
			testsPassed = passed
			if !passed {
				if section == "" {
					section = "Tests failed. See output above."
				}
				report.Add("pytest", diagnose.StatusFailed, section)
			}
		}
	}
	return report, testsPassed, nil
}

func (c *Controller) notify(round int, report *diagnose.Report, testsPassed bool) {
	if c.OnRound != nil {
		c.OnRound(round, report, testsPassed)
	}
}
