package execution

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"tshard/internal/config"
	"tshard/internal/domain"
)

// Runner executes PHPUnit for a single test file inside one shard
type Runner struct {
	config *config.Config
}

// NewRunner creates a new Runner
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{config: cfg}
}

// Run executes one test file against the shard's database. When coveragePath
// is non-empty, PHPUnit is asked to write its coverage there. The result's
// TestPath is the project-relative path so failure parsing can match it
// against the namespaced class names PHPUnit prints.
func (r *Runner) Run(ctx context.Context, test domain.Test, shard domain.ShardDescriptor, coveragePath string) domain.TestResult {
	testPath := test.Path
	if abs, err := filepath.Abs(testPath); err == nil {
		testPath = abs
	}

	var args []string
	if coveragePath != "" {
		args = append(args, "--coverage-php", coveragePath)
	}
	args = append(args, testPath)

	cmd := exec.CommandContext(ctx, r.config.GetPHPUnitPath(), args...)
	cmd.Env = append(os.Environ(), "DB_DATABASE="+r.config.GetDatabaseName(shard.Index))
	cmd.Dir = r.config.ProjectPath

	start := time.Now()
	output, err := cmd.CombinedOutput()

	return domain.TestResult{
		TestPath: test.FilePath,
		Success:  err == nil,
		Output:   string(output),
		Error:    err,
		Duration: time.Since(start),
	}
}
