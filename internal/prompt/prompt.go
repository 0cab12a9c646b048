// Package prompt builds the generation, refinement, and fallback text
// exchanged with providers: task templates, domain guidance, the feedback
// prompt used by the fix loop, and the always-valid stub program.
package prompt

import (
	"fmt"
	"strings"
)

// Template identifiers accepted by Build.
const (
	TemplateBasic      = "basic"
	TemplateProduction = "production"
	TemplateTested     = "tested"
)

// Domain identifiers accepted by Guidance.
const (
	DomainFastAPI = "fastapi"
	DomainPandas  = "pandas"
	DomainPyTorch = "pytorch"
	DomainClick   = "click"
	DomainAiogram = "aiogram"
)

// Templates lists the valid template names, for CLI validation.
func Templates() []string {
	return []string{TemplateBasic, TemplateProduction, TemplateTested}
}

// Domains lists the valid domain hints, for CLI validation.
func Domains() []string {
	return []string{DomainFastAPI, DomainPandas, DomainPyTorch, DomainClick, DomainAiogram}
}

// Build assembles the full generation prompt: the named task template
// plus optional domain guidance. Unknown template names fall back to
// basic; an empty or unknown domain adds nothing.
func Build(template, task, domain string) string {
	base := taskTemplate(template, task)
	if extra := Guidance(domain); extra != "" {
		return base + "\n\n" + extra
	}
	return base
}

func taskTemplate(name, task string) string {
	switch name {
	case TemplateProduction:
		return strings.TrimSpace(fmt.Sprintf(`You are a senior Python engineer.
Write a production-ready Python 3.11+ module that accomplishes:

TASK:
%s

REQUIREMENTS:
- Robust error handling & logging
- Type annotations & docstrings
- Include unit tests or doctests
- Provide setup instructions`, task))

	case TemplateTested:
		return strings.TrimSpace(fmt.Sprintf(`You are a Python developer focused on testing.
Create a Python 3.11+ script and a corresponding pytest file for:

TASK:
%s

REQUIREMENTS:
- Script with main() and argparse
- Separate test file using pytest
- Tests cover edge cases`, task))

	default:
		return strings.TrimSpace(fmt.Sprintf(`You are an expert Python 3.11+ developer.
Write a COMPLETE, RUNNABLE single-file Python program that does:

TASK:
%s

Include main() and if __name__ == '__main__'.`, task))
	}
}

// Guidance returns domain-specific instructions appended to the task
// template, or an empty string for an unknown domain.
func Guidance(domain string) string {
	switch domain {
	case DomainFastAPI:
		return strings.TrimSpace(`DOMAIN:
- Use FastAPI. Provide a main FastAPI app with path operations.
- Add a '/debug' GET route that returns selected environment keys
  (filter out secrets: keys containing 'KEY', 'TOKEN', 'SECRET', 'PASS').
- Provide uvicorn run instructions in __main__.
- Use Pydantic models and type hints.
- Keep handlers small and documented.`)

	case DomainPandas:
		return strings.TrimSpace(`DOMAIN:
- Use pandas idioms (read_csv, groupby, assign, pipe).
- stdin-safe: if no args, only read stdin when data is present;
  otherwise fall back to a tiny demo DataFrame.
- Include CLI args for input/output paths.`)

	case DomainPyTorch:
		return strings.TrimSpace(`DOMAIN:
- Use a tiny PyTorch training loop that runs fast (small model/batch).
- Set seeds; device = cuda if available else cpu.
- Provide a __main__ entry that trains for a few steps and prints metrics.`)

	case DomainClick:
		return strings.TrimSpace(`DOMAIN:
- Use Click for CLI with clear options and help.
- Provide a single entry command and subcommands if useful.`)

	case DomainAiogram:
		return strings.TrimSpace(`DOMAIN:
- Use aiogram 3.x. Provide a minimal bot with router/handlers.
- Add a '/debug' command/handler that logs safe env keys
  (filter secrets) without leaking tokens.
- Structure for clean shutdown and error handling.`)
	}
	return ""
}

// Feedback builds the refinement prompt for a fix-loop round: the current
// candidate plus the diagnostic report, asking for one corrected code block.
func Feedback(currentCode, diagnostics string) string {
	if strings.TrimSpace(diagnostics) == "" {
		diagnostics = "No diagnostics available."
	}
	return strings.TrimSpace(fmt.Sprintf("You previously wrote this Python file:\n\n```python\n%s\n```\n\nTool diagnostics to fix:\n%s\n\nPlease return a corrected, COMPLETE single-file Python 3.11+ program that resolves these issues.\nOnly return one fenced Python code block.", currentCode, diagnostics))
}

// stubSentinel appears in every stub and is what IsStub keys on.
// Known limitation: a legitimate generation containing this phrase is
// misclassified as a stub.
const stubSentinel = "Stub fallback"

// Stub returns an always-valid Python program carrying the given note.
// It is the safe substitute whenever a provider declines, errors, or
// returns text with no extractable code.
func Stub(note string) string {
	if note == "" {
		note = "Stub fallback generated by codewriter."
	} else if !strings.Contains(note, stubSentinel) {
		note = stubSentinel + ": " + note
	}
	note = strings.ReplaceAll(note, "\n", " ")
	return fmt.Sprintf(`#!/usr/bin/env python3
'''
%s
'''

def main() -> None:
    print('STUB')

if __name__ == '__main__':
    main()
`, note)
}

// IsStub reports whether code carries the stub marker.
func IsStub(code string) bool {
	return strings.Contains(code, "print('STUB')") || strings.Contains(code, stubSentinel)
}
