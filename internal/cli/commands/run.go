package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tshard/internal/config"
	"tshard/internal/coordination"
	"tshard/internal/coverage"
	"tshard/internal/discovery"
	"tshard/internal/domain"
	"tshard/internal/execution"
	"tshard/internal/history"
	"tshard/internal/isolation"
	"tshard/internal/sharding"
	"tshard/internal/storage"
	"tshard/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	config      *config.Config
	scanner     *discovery.Scanner
	filter      *discovery.Filter
	storage     storage.Storage
	formatter   *ui.Formatter
	provisioner *isolation.Provisioner
	merger      coverage.Merger
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	st storage.Storage,
	formatter *ui.Formatter,
	provisioner *isolation.Provisioner,
	merger coverage.Merger,
) *RunCommand {
	return &RunCommand{
		config:      cfg,
		scanner:     scanner,
		filter:      filter,
		storage:     st,
		formatter:   formatter,
		provisioner: provisioner,
		merger:      merger,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := rc.config

	// Discover tests
	tests, err := rc.scanner.Scan(cfg.GetTestPath())
	if err != nil {
		return err
	}
	tests = rc.filter.FilterByName(tests, cfg.Flags.Filter)
	if len(tests) == 0 {
		color.Yellow("No tests to execute")
		return nil
	}

	// The strategy name travels to every shard process, so reject a bad
	// one before spawning anything
	hist := history.Load(cfg.GetHistoryPath())
	if _, err := sharding.ForName(cfg.Strategy, hist); err != nil {
		return err
	}

	// Prepare databases if flag is set
	if cfg.Flags.Provision {
		if _, err := rc.provisioner.Provision(ctx, cfg.Shards, cfg.Flags.NoFresh); err != nil {
			return fmt.Errorf("provisioning failed: %w", err)
		}
		fmt.Println()
	}

	coord, err := rc.setupCoordination()
	if err != nil {
		return err
	}

	// Pin the history so every shard process distributes from identical
	// durations no matter when it starts
	if err := hist.SnapshotTo(coord.SnapshotPath()); err != nil {
		slog.Warn("history snapshot not written, shards fall back to the project history",
			slog.Any("error", err))
	}

	spawner := execution.NewCommandSpawner(cfg)
	supervisor := execution.NewSupervisor(cfg, coord, spawner.Spawn)
	supervisor.OnShardExit = func(id int, status domain.ShardStatus) {
		logPath := execution.ShardLogPath(cfg, id)
		if status == domain.StatusCompleted {
			color.Green("✓ shard %d completed (log: %s)", id, logPath)
		} else {
			color.Red("✗ shard %d failed (log: %s)", id, logPath)
		}
	}

	color.Cyan("Running %d test file(s) in %d shard(s), %d at a time [strategy: %s]",
		len(tests), cfg.Shards, cfg.Parallel, cfg.Strategy)

	runID := uuid.NewString()
	start := time.Now()
	runErr := supervisor.Run(ctx)

	// Merge whatever shard results exist, a failed run included: the
	// summary of a red run is the one people actually read
	merged, err := rc.storage.MergeShardOutputs(runID, cfg.Shards, cfg.Strategy, time.Since(start))
	if err != nil {
		slog.Warn("shard outputs not merged", slog.Any("error", err))
	} else {
		rc.formatter.PrintRunSummary(merged)
	}

	if runErr != nil {
		return runErr
	}

	// Coverage merge is the parent's job, children only write artifacts
	if cfg.Flags.Merge {
		if err := rc.merger.Merge(ctx); err != nil {
			return fmt.Errorf("coverage merge: %w", err)
		}
	}

	return nil
}

// setupCoordination readies the shared directory for this run: stale or
// mismatched state is discarded, an interrupted run with matching
// parameters is resumed. Cleanup removes the directory itself, so every
// reset rebuilds the coordinator to get it back.
func (rc *RunCommand) setupCoordination() (*coordination.Coordinator, error) {
	cfg := rc.config

	coord, err := coordination.New(cfg.GetProjectRoot(), cfg.Shards, cfg.StaleAfter)
	if err != nil {
		return nil, err
	}

	reset := func() error {
		if err := coord.Cleanup(); err != nil {
			return fmt.Errorf("reset coordination dir: %w", err)
		}
		coord, err = coordination.New(cfg.GetProjectRoot(), cfg.Shards, cfg.StaleAfter)
		return err
	}

	if cfg.Flags.CleanFirst {
		if err := reset(); err != nil {
			return nil, err
		}
	}

	if err := coord.CheckRunMeta(cfg.Strategy); err != nil {
		slog.Warn("coordination state belongs to a different run, resetting",
			slog.Any("error", err))
		if err := reset(); err != nil {
			return nil, err
		}
	}

	counts := coord.AggregateStatus()
	switch {
	case counts.Completed == coord.Total():
		// Leftover state of a finished run
		if err := reset(); err != nil {
			return nil, err
		}
	case counts.Completed > 0 || counts.Failed > 0:
		color.Cyan("Resuming: %d of %d shards already completed", counts.Completed, coord.Total())
	case counts.Running > 0:
		color.Cyan("Joining a run in progress: %d shard(s) held by other processes", counts.Running)
	}

	if stale := coord.StaleTableIDs(); len(stale) > 0 {
		slog.Warn("status table carries shard ids from a run with a different shard count, 'tshard clean' drops them",
			slog.Any("shards", stale))
	}

	if err := coord.WriteRunMeta(cfg.Strategy); err != nil {
		return nil, fmt.Errorf("write run meta: %w", err)
	}
	return coord, nil
}
