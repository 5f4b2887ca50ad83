package discovery

import (
	"path/filepath"
	"strings"

	"tshard/internal/domain"
)

// Filter filters test files by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName filters test files by name pattern using wildcard matching.
// Supports patterns like "*UserTest.php" or "*Payment*".
func (f *Filter) FilterByName(tests []domain.Test, pattern string) []domain.Test {
	if pattern == "" {
		return tests
	}

	var filtered []domain.Test

	for _, test := range tests {
		if matchesName(test.FileName, pattern) {
			filtered = append(filtered, test)
		}
	}

	return filtered
}

func matchesName(testName, pattern string) bool {
	// Try to match using filepath.Match (supports * and ? wildcards)
	matched, err := filepath.Match(pattern, testName)
	if err == nil && matched {
		return true
	}

	// If pattern contains wildcards but filepath.Match didn't match,
	// try a more flexible substring match for patterns like "*Payment*"
	if strings.Contains(pattern, "*") {
		patternParts := strings.Split(pattern, "*")
		hasNonEmptyPart := false
		for _, part := range patternParts {
			if part == "" {
				continue
			}
			hasNonEmptyPart = true
			if !strings.Contains(testName, part) {
				return false
			}
		}
		return hasNonEmptyPart
	}

	// If no wildcards, do a simple contains check
	if !strings.Contains(pattern, "?") {
		return strings.Contains(testName, pattern)
	}

	return false
}
