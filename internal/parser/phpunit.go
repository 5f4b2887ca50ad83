package parser

import (
	"fmt"
	"regexp"
	"strings"

	"tshard/internal/domain"
)

// PHPUnitParser parses PHPUnit test output
type PHPUnitParser struct{}

// NewPHPUnitParser creates a new PHPUnitParser
func NewPHPUnitParser() *PHPUnitParser {
	return &PHPUnitParser{}
}

var (
	okPattern       = regexp.MustCompile(`OK\s*\(\s*(\d+)\s+tests`)
	testsPattern    = regexp.MustCompile(`Tests:\s*(\d+)`)
	failuresPattern = regexp.MustCompile(`Failures:\s*(\d+)`)
	errorsPattern   = regexp.MustCompile(`Errors:\s*(\d+)`)
)

// ParseTestCounts extracts passed and failed test case counts from PHPUnit output.
// Returns (passed, failed). If parsing fails, returns (1,0) for success or (0,1) for failure (file-level fallback).
func (p *PHPUnitParser) ParseTestCounts(result domain.TestResult) (passed, failed int) {
	output := result.Output

	// OK (N tests, ...) - all passed
	if okMatch := okPattern.FindStringSubmatch(output); len(okMatch) >= 2 {
		var total int
		fmt.Sscanf(okMatch[1], "%d", &total)
		return total, 0
	}

	// FAILURES! or ERRORS! - Tests: N, Assertions: ..., Failures: F, Errors: E
	var total, failures, errors int
	if m := testsPattern.FindStringSubmatch(output); len(m) >= 2 {
		fmt.Sscanf(m[1], "%d", &total)
	}
	if m := failuresPattern.FindStringSubmatch(output); len(m) >= 2 {
		fmt.Sscanf(m[1], "%d", &failures)
	}
	if m := errorsPattern.FindStringSubmatch(output); len(m) >= 2 {
		fmt.Sscanf(m[1], "%d", &errors)
	}
	failed = failures + errors
	if total >= failed {
		passed = total - failed
	}
	if passed > 0 || failed > 0 {
		return passed, failed
	}

	// Fallback: one "test" per file
	if result.Success {
		return 1, 0
	}
	return 0, 1
}

// ParseFailure parses test failures from PHPUnit output. The result's
// TestPath is expected to be project-relative so it lines up with the
// namespaced class names PHPUnit prints.
func (p *PHPUnitParser) ParseFailure(result domain.TestResult) []domain.TestFailure {
	var failures []domain.TestFailure
	lines := strings.Split(result.Output, "\n")

	testFileName := strings.TrimSuffix(result.TestPath, ".php")
	testFileName = strings.ReplaceAll(testFileName, "/", "\\")
	testFileName = testFileName + "::"

	match := regexp.MustCompile("(?i)" + regexp.QuoteMeta(testFileName))

	for i, line := range lines {
		if match.MatchString(line) {
			failures = append(failures, p.parseTestFailureCase(i, lines, match))
		}
	}

	return failures
}

func (p *PHPUnitParser) parseTestFailureCase(i int, lines []string, match *regexp.Regexp) domain.TestFailure {
	filePath, name := p.parseTestFailureLine(lines[i])
	failure := domain.TestFailure{
		TestName:   name,
		FilePath:   filePath,
		StackTrace: []string{},
	}

	var messageLines []string
	var jsonLines []string
	var stackTrace []string
	inJSONBlock := false
	jsonBraceCount := 0
	jsonBlockComplete := false

	// Parse from line after test name until next test or end
	for j := i + 1; j < len(lines); j++ {
		line := lines[j]
		trimmedLine := strings.TrimSpace(line)

		// Check if we hit the next test case
		if match.MatchString(line) {
			break
		}

		// Detect start of JSON block
		if trimmedLine == "{" && !inJSONBlock {
			inJSONBlock = true
			jsonBraceCount = 1
			jsonLines = append(jsonLines, line)
			continue
		}

		// If we're in JSON block, collect JSON lines
		if inJSONBlock {
			jsonLines = append(jsonLines, line)
			// Count braces to detect end of JSON
			jsonBraceCount += strings.Count(line, "{") - strings.Count(line, "}")
			if jsonBraceCount == 0 {
				failure.ErrorDetails = strings.Join(jsonLines, "\n")
				inJSONBlock = false
				jsonBlockComplete = true
			}
			continue
		}

		// After JSON block, collect stack trace (file paths with line numbers)
		if jsonBlockComplete {
			// Stack trace lines are file paths with line numbers: /path/to/file.php:123
			if strings.Contains(line, ".php:") && (strings.HasPrefix(line, "/") || strings.Contains(line, "tests/")) {
				stackTrace = append(stackTrace, line)
				// Extract file and line from the test file itself (not vendor files)
				if strings.Contains(line, "tests/") && failure.File == "" {
					parts := strings.Split(line, ":")
					if len(parts) >= 2 {
						failure.File = parts[0]
						fmt.Sscanf(parts[len(parts)-1], "%d", &failure.Line)
					}
				}
			}
			continue
		}

		// Before JSON block, collect message lines, skipping leading blanks
		if len(messageLines) == 0 && trimmedLine == "" {
			continue
		}
		messageLines = append(messageLines, line)
	}

	// Trim trailing empty lines from the message
	for len(messageLines) > 0 && strings.TrimSpace(messageLines[len(messageLines)-1]) == "" {
		messageLines = messageLines[:len(messageLines)-1]
	}
	failure.Message = strings.Join(messageLines, "\n")
	failure.StackTrace = stackTrace

	return failure
}

// parseTestFailureLine splits a header like
// "1) Tests\Feature\UserTest::testLogin" into a file path and a test name
func (p *PHPUnitParser) parseTestFailureLine(line string) (filePath string, name string) {
	split := strings.SplitN(line, "::", 2)
	if len(split) < 2 {
		return strings.TrimSpace(line), ""
	}

	head := split[0]
	if _, after, found := strings.Cut(head, ")"); found {
		head = after
	}
	head = strings.TrimSpace(head)
	// Replace backslashes with forward slashes for file path
	head = strings.ReplaceAll(head, "\\", "/")

	return head, strings.TrimSpace(split[1])
}
