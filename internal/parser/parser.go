package parser

import "tshard/internal/domain"

// Parser extracts structured information from raw test runner output
type Parser interface {
	// ParseTestCounts returns (passed, failed) test case counts
	ParseTestCounts(result domain.TestResult) (int, int)
	// ParseFailure returns the failed test cases found in the output
	ParseFailure(result domain.TestResult) []domain.TestFailure
}
