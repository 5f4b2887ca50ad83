package discovery

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"tshard/internal/domain"
)

// Parser parses test files to extract test cases
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// Matches PHPUnit test methods in their usual spellings:
// - public function testCreateUser()
// - function test_user_login()
// - protected static function testSomething()
// - final public function testSomething()
var testMethodPattern = regexp.MustCompile(`(?m)^\s*(?:(?:public|protected|private|static|final)\s+)*(?:public|protected|private)?\s*function\s+(test\w+|test_\w+)\s*\(`)

// Matches methods marked with a @test annotation, in docblocks or inline
var annotatedPatterns = []*regexp.Regexp{
	// @test on previous line(s) followed by function
	regexp.MustCompile(`(?m)@test\s*\n\s*(?:/\*\*.*?\*/)?\s*(?:(?:public|protected|private|static|final)\s+)*(?:public|protected|private)?\s*function\s+(\w+)\s*\(`),
	// @test in docblock (handles multi-line docblocks)
	regexp.MustCompile(`(?m)/\*\*[\s\S]*?@test[\s\S]*?\*/\s*(?:(?:public|protected|private|static|final)\s+)*(?:public|protected|private)?\s*function\s+(\w+)\s*\(`),
	// @test on same line as function (less common but possible)
	regexp.MustCompile(`(?m)@test.*?function\s+(\w+)\s*\(`),
}

// FindTestCases finds all test cases in a test file
func (p *Parser) FindTestCases(test domain.Test) ([]domain.TestCase, error) {
	content, err := os.ReadFile(test.Path)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", test.Path, err)
	}

	fileContent := string(content)
	seen := make(map[string]bool) // Use map to avoid duplicates

	for _, match := range testMethodPattern.FindAllStringSubmatch(fileContent, -1) {
		if len(match) > 1 {
			seen[match[1]] = true
		}
	}

	for _, pattern := range annotatedPatterns {
		for _, match := range pattern.FindAllStringSubmatch(fileContent, -1) {
			if len(match) <= 1 {
				continue
			}
			methodName := match[1]
			// Skip if it's already a test method (starts with "test")
			if !strings.HasPrefix(methodName, "test") {
				seen[methodName] = true
			}
		}
	}

	// Sort for consistent output
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	cases := make([]domain.TestCase, 0, len(names))
	for _, name := range names {
		cases = append(cases, domain.TestCase{Name: name, FilePath: test.FilePath})
	}

	return cases, nil
}
