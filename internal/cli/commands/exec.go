package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tshard/internal/config"
	"tshard/internal/coordination"
	"tshard/internal/coverage"
	"tshard/internal/discovery"
	"tshard/internal/domain"
	"tshard/internal/execution"
	"tshard/internal/history"
	"tshard/internal/parser"
	"tshard/internal/sharding"
	"tshard/internal/storage"
	"tshard/internal/ui"
)

// ExecCommand handles the exec command: it runs exactly one shard's subset.
// In CI mode (the default) the process claims its shard through the shared
// directory and settles it on exit. With --auto the parent run process owns
// the claim and this process only executes tests; its exit code is the
// contract.
type ExecCommand struct {
	config  *config.Config
	scanner *discovery.Scanner
	filter  *discovery.Filter
	parser  *parser.PHPUnitParser
	storage storage.Storage
	merger  coverage.Merger
}

// NewExecCommand creates a new ExecCommand
func NewExecCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	phpunitParser *parser.PHPUnitParser,
	st storage.Storage,
	merger coverage.Merger,
) *ExecCommand {
	return &ExecCommand{
		config:  cfg,
		scanner: scanner,
		filter:  filter,
		parser:  phpunitParser,
		storage: st,
		merger:  merger,
	}
}

// Execute runs the command
func (ec *ExecCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := ec.config

	shard := domain.ShardDescriptor{Index: cfg.Flags.Index, Total: cfg.Shards}
	if err := shard.Validate(); err != nil {
		return err
	}

	coord, err := coordination.New(cfg.GetProjectRoot(), shard.Total, cfg.StaleAfter)
	if err != nil {
		return err
	}

	auto := cfg.Flags.Auto
	if !auto {
		// Workers of the same run must agree on the partition parameters;
		// a worker invoked with a different total would silently drop tests
		if err := coord.CheckRunMeta(cfg.Strategy); err != nil {
			return err
		}
		if err := coord.WriteRunMeta(cfg.Strategy); err != nil {
			return fmt.Errorf("write run meta: %w", err)
		}

		if !coord.Claim(shard.Index) {
			for _, rec := range coord.ShardRecords() {
				if rec.ID == shard.Index && rec.Status == domain.StatusCompleted {
					color.Yellow("Shard %d already completed, nothing to do", shard.Index)
					return nil
				}
			}
			return fmt.Errorf("shard %d is held by another process", shard.Index)
		}
	}

	// Every shard must distribute from the same durations or the subsets
	// overlap. Children of run read the snapshot the parent pinned; new
	// timings are still written through to the project history.
	histPath := cfg.GetHistoryPath()
	distPath := histPath
	if auto {
		if _, err := os.Stat(coord.SnapshotPath()); err == nil {
			distPath = coord.SnapshotPath()
		} else {
			slog.Warn("history snapshot missing, distributing from the project history",
				slog.String("path", coord.SnapshotPath()))
		}
	}
	hist := history.Load(histPath)
	distHist := hist
	if distPath != histPath {
		distHist = history.Load(distPath)
	}

	strategy, err := sharding.ForName(cfg.Strategy, distHist)
	if err != nil {
		return ec.fail(coord, shard, auto, err)
	}

	tests, err := ec.scanner.Scan(cfg.GetTestPath())
	if err != nil {
		return ec.fail(coord, shard, auto, err)
	}
	tests = ec.filter.FilterByName(tests, cfg.Flags.Filter)

	mine := strategy.Distribute(tests, shard)
	slog.Info("shard subset computed",
		slog.Int("shard", shard.Index),
		slog.Int("of", shard.Total),
		slog.String("strategy", strategy.Name()),
		slog.Int("files", len(mine)))

	executor := execution.NewShardExecutor(cfg, execution.NewRunner(cfg), ec.parser, hist)
	if !auto {
		executor.SetProgress(ui.NewShardProgressBar(shard, len(mine)))
	}

	results, failures, duration := executor.Execute(ctx, shard, mine)

	if err := ec.storage.SaveShard(shard, cfg.Strategy, results, failures, duration); err != nil {
		return ec.fail(coord, shard, auto, fmt.Errorf("save shard results: %w", err))
	}

	// An interrupted shard saved only part of its subset and must not
	// count as completed
	if ctx.Err() != nil {
		return ec.fail(coord, shard, auto, ctx.Err())
	}

	failedFiles := 0
	for _, result := range results {
		if !result.Success {
			failedFiles++
		}
	}
	if failedFiles > 0 {
		return ec.fail(coord, shard, auto, fmt.Errorf("%d of %d test file(s) failed", failedFiles, len(mine)))
	}

	if !auto {
		coord.MarkComplete(shard.Index, 0)

		// Once no shard is pending or running the run has converged and the
		// last finisher merges coverage; the merge lock elects exactly one
		// merger when shards race to be last
		if cfg.Flags.Merge && coord.AggregateStatus().Done() && coord.ClaimMergeLock() {
			if err := ec.merger.Merge(ctx); err != nil {
				return fmt.Errorf("coverage merge: %w", err)
			}
		}
	}

	return nil
}

// fail settles the shard as failed in CI mode and hands the error back. In
// auto mode the parent settles from the exit code instead.
func (ec *ExecCommand) fail(coord *coordination.Coordinator, shard domain.ShardDescriptor, auto bool, err error) error {
	if !auto {
		coord.MarkComplete(shard.Index, 1)
	}
	return err
}
