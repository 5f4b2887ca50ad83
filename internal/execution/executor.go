package execution

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"tshard/internal/config"
	"tshard/internal/coverage"
	"tshard/internal/domain"
	"tshard/internal/history"
	"tshard/internal/parser"
)

// FileRunner executes one test file inside a shard
type FileRunner interface {
	Run(ctx context.Context, test domain.Test, shard domain.ShardDescriptor, coveragePath string) domain.TestResult
}

// Progress receives per-file updates during a shard run
type Progress interface {
	Update(completedFiles, passedCases, failedCases int)
	Finish()
}

// ShardExecutor runs the subset of tests assigned to one shard, one file at
// a time. Tests in a shard share a single database, so they never run
// concurrently; parallelism lives at the process level.
type ShardExecutor struct {
	config   *config.Config
	runner   FileRunner
	parser   *parser.PHPUnitParser
	history  *history.Store
	progress Progress
}

// NewShardExecutor creates a new ShardExecutor
func NewShardExecutor(cfg *config.Config, runner FileRunner, phpUnitParser *parser.PHPUnitParser, hist *history.Store) *ShardExecutor {
	return &ShardExecutor{
		config:  cfg,
		runner:  runner,
		parser:  phpUnitParser,
		history: hist,
	}
}

// SetProgress sets the progress bar for the executor
func (e *ShardExecutor) SetProgress(progress Progress) {
	e.progress = progress
}

// Execute runs every test in order and returns the results, the extracted
// failures and the wall-clock duration. Durations are written through to the
// history store as each file finishes. With fail-fast configured the loop
// stops after the first failing file.
func (e *ShardExecutor) Execute(ctx context.Context, shard domain.ShardDescriptor, tests []domain.Test) ([]domain.TestResult, []domain.TestFailure, time.Duration) {
	start := time.Now()

	withCoverage := e.config.Flags.Merge
	if withCoverage {
		if err := os.MkdirAll(e.config.GetCoverageDir(), 0755); err != nil {
			slog.Warn("coverage dir not created, coverage disabled for this shard",
				slog.Any("error", err))
			withCoverage = false
		}
	}

	var results []domain.TestResult
	var failures []domain.TestFailure
	completedFiles, passedCases, failedCases := 0, 0, 0

	for i, test := range tests {
		if ctx.Err() != nil {
			break
		}

		coveragePath := ""
		if withCoverage {
			coveragePath = coverage.Artifact(e.config, shard.Index, i+1)
		}

		result := e.runner.Run(ctx, test, shard, coveragePath)
		results = append(results, result)

		if e.history != nil {
			e.history.Update(test.Key(), result.Duration.Milliseconds())
		}

		p, f := e.parser.ParseTestCounts(result)
		passedCases += p
		failedCases += f
		completedFiles++

		if !result.Success {
			failures = append(failures, e.extractFailures(result, test, shard)...)
		}

		if e.progress != nil {
			e.progress.Update(completedFiles, passedCases, failedCases)
		} else {
			slog.Info("test file finished",
				slog.String("test", test.FilePath),
				slog.Bool("ok", result.Success),
				slog.Duration("took", result.Duration))
		}

		if !result.Success && e.config.Flags.FailFast {
			slog.Warn("stopping shard after first failure",
				slog.String("test", test.FilePath))
			break
		}
	}

	if e.progress != nil {
		e.progress.Finish()
	}

	return results, failures, time.Since(start)
}

// extractFailures parses failure details out of a failing file's output and
// stamps them with the executing shard. When nothing parseable comes back,
// which is what fatal errors and crashes look like, a file-level failure
// carrying the output tail is synthesized so the report never loses a
// failing file.
func (e *ShardExecutor) extractFailures(result domain.TestResult, test domain.Test, shard domain.ShardDescriptor) []domain.TestFailure {
	parsed := e.parser.ParseFailure(result)
	for i := range parsed {
		parsed[i].ShardIndex = shard.Index
	}
	if len(parsed) > 0 {
		return parsed
	}

	return []domain.TestFailure{{
		TestName:   test.FileName,
		FilePath:   test.FilePath,
		ShardIndex: shard.Index,
		Message:    outputTail(result.Output, 20),
	}}
}

// outputTail returns the last n lines of output
func outputTail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
