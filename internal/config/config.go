package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string
	TestPath    string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string
	CoverageDir    string

	// Sharding settings
	Shards      int
	Parallel    int
	Strategy    string
	Retries     int
	StaleAfter  time.Duration
	HistoryFile string

	// Coverage merge collaborator
	MergeTool string
	MergeArgs []string

	// Paths to ignore when scanning
	PathsToIgnore []string

	// Command flags
	Flags Flags
}

// Flags holds command-line flags
type Flags struct {
	Shards     int
	Parallel   int
	Strategy   string
	Retries    int
	Index      int
	Auto       bool
	Merge      bool
	Provision  bool
	NoFresh    bool
	CleanFirst bool
	FailFast   bool
	StaleAfter time.Duration
	Filter     string
	TestPath   string
	TestCases  bool
	Plan       bool
	PrepareCmd string
	Watch      bool
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:    DefaultProjectPath,
		TestPath:       DefaultTestPath,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		CoverageDir:    DefaultCoverageDirName,
		Shards:         DefaultShards,
		Parallel:       DefaultParallel,
		Strategy:       DefaultStrategy,
		Retries:        DefaultRetries,
		StaleAfter:     DefaultStaleAfter,
		HistoryFile:    DefaultHistoryFile,
		MergeTool:      DefaultMergeTool,
		Flags:          Flags{Shards: DefaultShards, Parallel: DefaultParallel},
	}
	cfg.MergeArgs = make([]string, len(DefaultMergeArgs))
	copy(cfg.MergeArgs, DefaultMergeArgs)
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load creates a config, reads the project .env if present and applies flags
func Load(flags Flags) *Config {
	cfg := New()
	cfg.Flags = flags

	if v := os.Getenv("PROJECT_PATH"); v != "" {
		cfg.ProjectPath = v
	}

	// Database credentials and tooling overrides live in the project .env
	_ = godotenv.Load(filepath.Join(cfg.ProjectPath, ".env"))

	// Apply flag overrides
	if flags.Shards > 0 {
		cfg.Shards = flags.Shards
	}
	if flags.Parallel > 0 {
		cfg.Parallel = flags.Parallel
	}
	if flags.Strategy != "" {
		cfg.Strategy = flags.Strategy
	}
	if flags.Retries >= 0 {
		cfg.Retries = flags.Retries
	}
	if flags.StaleAfter > 0 {
		cfg.StaleAfter = flags.StaleAfter
	}

	return cfg
}

// Validate checks settings every command depends on
func (c *Config) Validate() error {
	if c.Shards < 1 {
		return fmt.Errorf("shard total must be at least 1, got %d", c.Shards)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive, got %s", c.StaleAfter)
	}
	return nil
}

// GetProjectRoot returns the absolute project path
func (c *Config) GetProjectRoot() string {
	if abs, err := filepath.Abs(c.ProjectPath); err == nil {
		return abs
	}
	return c.ProjectPath
}

// GetTestPath returns the test path, using flag if provided
func (c *Config) GetTestPath() string {
	if c.Flags.TestPath != "" {
		// If TestPath is provided, make it relative to PROJECT_PATH if it's not absolute
		if filepath.IsAbs(c.Flags.TestPath) {
			return c.Flags.TestPath
		}
		return filepath.Join(c.ProjectPath, c.Flags.TestPath)
	}

	// Default: combine project path and test path
	return filepath.Join(c.ProjectPath, c.TestPath)
}

// GetOutputPath returns the full path to the merged output JSON file.
// Resolves to an absolute path so run and faills always read/write the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetShardOutputPath returns the result file written by one shard process
func (c *Config) GetShardOutputPath(index int) string {
	ext := filepath.Ext(c.OutputJSONFile)
	base := c.OutputJSONFile[:len(c.OutputJSONFile)-len(ext)]
	name := fmt.Sprintf("%s.shard-%d%s", base, index, ext)
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, name)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetHistoryPath returns the duration history file location
func (c *Config) GetHistoryPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.HistoryFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetCoverageDir returns the directory holding per-shard coverage artifacts
func (c *Config) GetCoverageDir() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.CoverageDir)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetPHPUnitPath returns the path to PHPUnit binary
func (c *Config) GetPHPUnitPath() string {
	return filepath.Join(c.ProjectPath, "vendor", "bin", "phpunit")
}

// GetDatabaseName returns the database name for a shard
func (c *Config) GetDatabaseName(shardID int) string {
	prefix := os.Getenv("DB_DATABASE_PREFIX")
	if prefix == "" {
		prefix = "testing"
	}
	return fmt.Sprintf("%s_%d", prefix, shardID)
}
