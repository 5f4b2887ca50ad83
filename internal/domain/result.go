package domain

import "time"

// TestResult represents the result of executing a test file
type TestResult struct {
	TestPath string        // Path to the test file that was executed
	Success  bool          // Whether the test passed
	Output   string        // Raw output from PHPUnit
	Error    error         // Error if execution failed
	Duration time.Duration // Time taken to execute
}

// TestResultsMeta contains metadata about a sharded run
type TestResultsMeta struct {
	RunID           string  `json:"run_id,omitempty"`      // Set on the merged output of an auto-mode run
	ShardIndex      int     `json:"shard_index,omitempty"` // Set on per-shard result files
	Shards          int     `json:"shards"`
	Strategy        string  `json:"strategy"`
	TotalTestFiles  int     `json:"total_test_files"`
	FailedTestFiles int     `json:"failed_test_files"`
	PassedTestFiles int     `json:"passed_test_files"`
	FailedTestCases int     `json:"failed_test_cases"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Details []TestFailure   `json:"details"`
}
