package commands

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tshard/internal/config"
	"tshard/internal/discovery"
	"tshard/internal/domain"
	"tshard/internal/history"
	"tshard/internal/sharding"
	"tshard/internal/storage"
	"tshard/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	scanner   *discovery.Scanner
	filter    *discovery.Filter
	formatter *ui.Formatter
	storage   storage.Storage
}

// NewListCommand creates a new ListCommand
func NewListCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	formatter *ui.Formatter,
	st storage.Storage,
) *ListCommand {
	return &ListCommand{
		config:    cfg,
		scanner:   scanner,
		filter:    filter,
		formatter: formatter,
		storage:   st,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg := lc.config

	tests, err := lc.scanner.Scan(cfg.GetTestPath())
	if err != nil {
		return err
	}
	tests = lc.filter.FilterByName(tests, cfg.Flags.Filter)

	if len(tests) == 0 {
		color.Yellow("No tests found")
		return nil
	}

	if cfg.Flags.Plan || cfg.Flags.Index > 0 {
		return lc.printPlan(tests)
	}

	return lc.formatter.PrintTestList(tests, cfg.Flags.TestCases, lc.loadFailedPaths())
}

// printPlan shows the shard assignment without running anything: the whole
// partition with --plan, a single shard's subset with --index. CI authors
// use the latter to answer "which tests will shard 3 run?".
func (lc *ListCommand) printPlan(tests []domain.Test) error {
	cfg := lc.config

	hist := history.Load(cfg.GetHistoryPath())
	strategy, err := sharding.ForName(cfg.Strategy, hist)
	if err != nil {
		return err
	}

	if index := cfg.Flags.Index; index > 0 {
		shard := domain.ShardDescriptor{Index: index, Total: cfg.Shards}
		if err := shard.Validate(); err != nil {
			return err
		}
		subset := strategy.Distribute(tests, shard)
		color.Green("Shard %d of %d gets %d of %d test file(s) [strategy: %s]:\n",
			index, cfg.Shards, len(subset), len(tests), strategy.Name())
		return lc.formatter.PrintTestList(subset, cfg.Flags.TestCases, lc.loadFailedPaths())
	}

	assignments := sharding.Plan(strategy, tests, cfg.Shards)
	estimates := make([]time.Duration, len(assignments))
	for i, subset := range assignments {
		var millis int64
		for _, test := range subset {
			if ms, ok := hist.Duration(test.Key()); ok {
				millis += ms
			} else {
				millis += sharding.DefaultCostMillis
			}
		}
		estimates[i] = time.Duration(millis) * time.Millisecond
	}

	color.Green("Plan for %d test file(s) over %d shard(s) [strategy: %s]:\n",
		len(tests), cfg.Shards, strategy.Name())
	lc.formatter.PrintShardPlan(assignments, estimates)
	return nil
}

// loadFailedPaths returns the normalized paths of files that failed in the
// last run, for the [F] markers. No results is not an error here.
func (lc *ListCommand) loadFailedPaths() map[string]struct{} {
	output, err := lc.storage.Load()
	if err != nil || output == nil {
		return nil
	}
	failed := make(map[string]struct{}, len(output.Details))
	for _, failure := range output.Details {
		failed[normalizedPathForKey(failure.FilePath)] = struct{}{}
	}
	return failed
}

// normalizedPathForKey returns a path key for matching (same logic as ui package).
func normalizedPathForKey(path string) string {
	p := filepath.ToSlash(path)
	p = strings.TrimSuffix(p, ".php")
	return strings.ToLower(p)
}
