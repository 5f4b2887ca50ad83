package domain

import "path/filepath"

// Test represents a test file eligible for shard assignment
type Test struct {
	Path     string // Full path to the test file
	FilePath string // Path relative to the project root
	FileName string // Just the filename
}

// Key returns the stable identifier used for hashing and duration history.
// It is the project-relative path with forward slashes so the same test maps
// to the same shard on every machine.
func (t Test) Key() string {
	return filepath.ToSlash(t.FilePath)
}

// TestCase represents a single test case within a test file
type TestCase struct {
	Name     string // Test method name
	FilePath string // Path to the test file containing this case
}
