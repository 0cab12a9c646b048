// Package extract pulls source code out of free-form model output.
// Providers wrap their answers in prose, markdown fences, or both; this
// package recovers the best-guess program text from that noise.
package extract

import (
	"regexp"
	"strings"
)

// codeFence matches a markdown code fence with an optional language tag.
// The inner text is captured non-greedily so only the first fence is taken.
var codeFence = regexp.MustCompile("(?is)```(?:python)?[ \t]*\r?\n(.*?)```")

// leadingTokens are line prefixes that plausibly begin program structure.
// Lines before the first such line are treated as prose and discarded.
var leadingTokens = []string{
	"import ",
	"from ",
	"def ",
	"class ",
	"#",
	"if __name__",
}

// Code returns the best-guess source code contained in text.
//
// If a fenced code block is present its inner text is used, otherwise the
// full text. Leading lines are then discarded until one plausibly begins
// program structure (import, definition, comment, shebang, entry guard);
// internal ordering and blank lines after that point are preserved.
// Empty or code-free input yields an empty string - the caller must treat
// that as a failed extraction.
func Code(text string) string {
	snippet := text
	if m := codeFence.FindStringSubmatch(text); m != nil {
		snippet = m[1]
	}
	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return ""
	}

	lines := strings.Split(snippet, "\n")
	start := 0
	for start < len(lines) && !beginsProgram(lines[start]) {
		start++
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}

// beginsProgram reports whether a line, ignoring indentation, starts with
// a token that can open a Python program.
func beginsProgram(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, tok := range leadingTokens {
		if strings.HasPrefix(trimmed, tok) {
			return true
		}
	}
	return false
}
