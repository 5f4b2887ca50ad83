package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestPath is the default test path
	DefaultTestPath = "."
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = "storage"
	// DefaultCoverageDirName is the directory for per-shard coverage artifacts
	DefaultCoverageDirName = "coverage"
	// DefaultHistoryFile is the duration history file name
	DefaultHistoryFile = "test-durations.json"
	// DefaultShards is the default total number of shards
	DefaultShards = 4
	// DefaultParallel is the default number of concurrently running shard processes
	DefaultParallel = 4
	// DefaultStrategy is the default assignment strategy
	DefaultStrategy = "smart"
	// DefaultRetries is how many times a failed shard is re-run per invocation
	DefaultRetries = 1
	// DefaultStaleAfter is the age past which a shard lock is considered stale
	DefaultStaleAfter = 5 * time.Minute
	// DefaultMergeTool is the external coverage merge command
	DefaultMergeTool = "phpcov"
)

// DefaultMergeArgs are the arguments passed to the merge tool before the
// output and artifact locations
var DefaultMergeArgs = []string{"merge"}

// DefaultPathsToIgnore are the default directories to ignore when scanning for tests
var DefaultPathsToIgnore = []string{
	"vendor",
	"node_modules",
	"public",
	"storage",
	"bootstrap",
	"config",
	"database",
	"resources",
	"routes",
}
