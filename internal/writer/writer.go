// Package writer puts generated artifacts on disk: the code file itself,
// an optional requirements.txt derived from the domain hint, and a
// generated pytest file exercising the script.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteCode writes the program to path, creating parent directories as
// needed. Content is normalized to end with exactly one trailing newline.
// The write goes through a temp file and rename so a crash never leaves a
// half-written script.
func WriteCode(path, code string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	content := strings.TrimRight(code, " \t\r\n") + "\n"

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// RequirementsForDomain returns the pinned dependency lines for a domain
// hint. Unknown or empty domains need nothing.
func RequirementsForDomain(domain string) []string {
	switch domain {
	case "pandas":
		return []string{"pandas>=2.2"}
	case "fastapi":
		return []string{"fastapi>=0.112", "uvicorn>=0.30"}
	case "click":
		return []string{"click>=8.1"}
	case "pytorch":
		return []string{"torch>=2.2; platform_system!='Darwin' or platform_machine!='arm64'"}
	case "aiogram":
		return []string{"aiogram>=3.4"}
	}
	return nil
}

// WriteRequirements writes the requirement lines to path and returns the
// path. Nothing is written for an empty list; the empty return string
// signals that.
func WriteRequirements(reqs []string, path string) (string, error) {
	if len(reqs) == 0 {
		return "", nil
	}
	if path == "" {
		path = "requirements.txt"
	}
	if err := os.WriteFile(path, []byte(strings.Join(reqs, "\n")+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// TestFilePath returns the pytest file path for a script:
// dir/app.py -> dir/test_app.py.
func TestFilePath(scriptPath string) string {
	dir := filepath.Dir(scriptPath)
	base := filepath.Base(scriptPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "test_"+stem+".py")
}

// WritePytest generates a smoke-test pytest file next to the script and
// returns its path. The pandas domain gets a variant that feeds the script
// a temporary CSV fixture; expectContains, when non-empty, adds a stdout
// assertion.
func WritePytest(scriptPath, expectContains, domain string) (string, error) {
	testPath := TestFilePath(scriptPath)
	scriptName := filepath.Base(scriptPath)

	var content string
	if domain == "pandas" {
		content = "import csv, pathlib, subprocess, sys, tempfile\n\n" +
			"def test_script_runs():\n" +
			fmt.Sprintf("    script = pathlib.Path(__file__).with_name('%s')\n", scriptName) +
			"    with tempfile.TemporaryDirectory() as td:\n" +
			"        path = pathlib.Path(td) / 'd.csv'\n" +
			"        with path.open('w', newline='') as f:\n" +
			"            w = csv.DictWriter(f, fieldnames=['value'])\n" +
			"            w.writeheader(); w.writerows([{'value':1},{'value':2},{'value':3}])\n" +
			"        proc = subprocess.run([sys.executable, str(script), str(path)], capture_output=True, text=True, timeout=10)\n" +
			"        assert proc.returncode == 0\n"
	} else {
		content = "import subprocess, sys, pathlib\n\n" +
			"def test_script_runs():\n" +
			fmt.Sprintf("    script = pathlib.Path(__file__).with_name('%s')\n", scriptName) +
			"    proc = subprocess.run([sys.executable, str(script)], capture_output=True, text=True, timeout=10)\n" +
			"    assert proc.returncode == 0\n"
	}
	if expectContains != "" {
		content += fmt.Sprintf("    assert %s in proc.stdout\n", pyStringLiteral(expectContains))
	}

	if err := os.WriteFile(testPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", testPath, err)
	}
	return testPath, nil
}

// pyStringLiteral renders s as a single-quoted Python string literal.
func pyStringLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return "'" + s + "'"
}
