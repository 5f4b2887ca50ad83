package commands

import (
	"strings"

	"tshard/internal/cli"
	"tshard/internal/config"
	"tshard/internal/coverage"
	"tshard/internal/discovery"
	"tshard/internal/isolation"
	"tshard/internal/parser"
	"tshard/internal/sharding"
	"tshard/internal/storage"
	"tshard/internal/ui"

	"github.com/spf13/cobra"
)

// Commands holds all CLI commands
type Commands struct {
	Run       *RunCommand
	Exec      *ExecCommand
	List      *ListCommand
	Status    *StatusCommand
	Clean     *CleanCommand
	Provision *ProvisionCommand
	Faills    *FaillsCommand
}

// NewCommands creates all commands with dependencies
func NewCommands(cfg *config.Config) *Commands {
	// Initialize dependencies
	scanner := discovery.NewScanner(cfg.GetProjectRoot(), cfg.PathsToIgnore)
	filter := discovery.NewFilter()
	testCaseParser := discovery.NewParser()
	phpunitParser := parser.NewPHPUnitParser()
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(cfg, testCaseParser)
	dbManager := isolation.NewDatabaseManager(cfg)
	provisioner := isolation.NewProvisioner(cfg, dbManager)
	merger := coverage.NewCommandMerger(cfg)
	errorViewer := ui.NewErrorViewer(cfg, jsonStorage)

	return &Commands{
		Run:       NewRunCommand(cfg, scanner, filter, jsonStorage, formatter, provisioner, merger),
		Exec:      NewExecCommand(cfg, scanner, filter, phpunitParser, jsonStorage, merger),
		List:      NewListCommand(cfg, scanner, filter, formatter, jsonStorage),
		Status:    NewStatusCommand(cfg, formatter),
		Clean:     NewCleanCommand(cfg),
		Provision: NewProvisionCommand(cfg, provisioner),
		Faills:    NewFaillsCommand(cfg, jsonStorage, errorViewer),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	// Update config with flags after parsing
	apply := func(cmd *cobra.Command, args []string) error {
		cfg.Flags = flags.ToConfigFlags()
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
		return cfg.Validate()
	}

	// Run command
	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Run PHPUnit tests across shards",
		Long:    "Partition the test suite into shards and run them as parallel processes, each against its own database",
		RunE:    c.Run.Execute,
		PreRunE: apply,
	}
	runCmd.Flags().IntVarP(&flags.Shards, "shards", "n", config.DefaultShards, "Total number of shards to partition into")
	runCmd.Flags().IntVarP(&flags.Parallel, "parallel", "p", config.DefaultParallel, "Maximum number of shard processes running at once")
	runCmd.Flags().StringVarP(&flags.Strategy, "strategy", "s", config.DefaultStrategy, "Assignment strategy: "+availableStrategies())
	runCmd.Flags().IntVar(&flags.Retries, "retries", config.DefaultRetries, "How many times a failed shard is re-run")
	runCmd.Flags().DurationVar(&flags.StaleAfter, "stale-after", config.DefaultStaleAfter, "Age past which an unprobeable shard lock is considered abandoned")
	runCmd.Flags().BoolVarP(&flags.Merge, "merge", "m", false, "Collect per-shard coverage and merge it when the run completes")
	runCmd.Flags().BoolVar(&flags.Provision, "provision", false, "Prepare the per-shard databases before running")
	runCmd.Flags().BoolVar(&flags.NoFresh, "no-fresh", false, "Provision without dropping existing schema (only pending migrations)")
	runCmd.Flags().StringVar(&flags.PrepareCmd, "prepare-cmd", "", "Override the database preparation command")
	runCmd.Flags().BoolVar(&flags.CleanFirst, "clean-first", false, "Discard any previous coordination state instead of resuming")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop the whole run on the first failing shard")
	runCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter tests by name pattern (supports wildcards, e.g. '*UserTest.php' or '*Payment*')")
	runCmd.Flags().StringVarP(&flags.TestPath, "path", "t", "", "Path to the folder where test detection should start")
	rootCmd.AddCommand(runCmd)

	// Exec command
	execCmd := &cobra.Command{
		Use:     "exec",
		Short:   "Execute a single shard",
		Long:    "Run one shard's subset of the test suite. Designed for CI runners that start one process per shard; run uses it internally with --auto.",
		RunE:    c.Exec.Execute,
		PreRunE: apply,
	}
	execCmd.Flags().IntVarP(&flags.Index, "index", "i", 0, "1-based index of the shard to execute")
	execCmd.Flags().IntVarP(&flags.Shards, "total", "n", config.DefaultShards, "Total number of shards in the run")
	execCmd.Flags().StringVarP(&flags.Strategy, "strategy", "s", config.DefaultStrategy, "Assignment strategy: "+availableStrategies())
	execCmd.Flags().BoolVar(&flags.Auto, "auto", false, "Run as a child of run: skip claiming, the parent owns the shard")
	execCmd.Flags().BoolVarP(&flags.Merge, "merge", "m", false, "Collect coverage artifacts and merge once every shard completed")
	execCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop the shard on the first failing test file")
	execCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter tests by name pattern (supports wildcards)")
	execCmd.Flags().StringVarP(&flags.TestPath, "path", "t", "", "Path to the folder where test detection should start")
	execCmd.Flags().DurationVar(&flags.StaleAfter, "stale-after", config.DefaultStaleAfter, "Age past which an unprobeable shard lock is considered abandoned")
	_ = execCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(execCmd)

	// List command
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List discovered tests",
		Long:    "Scan and list all PHPUnit tests without executing them, optionally as the shard assignment plan",
		RunE:    c.List.Execute,
		PreRunE: apply,
	}
	listCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Filter tests by name pattern (supports wildcards, e.g. '*UserTest.php' or '*Payment*')")
	listCmd.Flags().StringVarP(&flags.TestPath, "path", "t", "", "Path to the folder where test detection should start")
	listCmd.Flags().BoolVarP(&flags.TestCases, "test-cases", "c", false, "List test cases instead of test files")
	listCmd.Flags().BoolVar(&flags.Plan, "plan", false, "Show which shard each test file would land on")
	listCmd.Flags().IntVarP(&flags.Index, "index", "i", 0, "Show only the subset of this shard (1-based)")
	listCmd.Flags().IntVarP(&flags.Shards, "shards", "n", config.DefaultShards, "Total number of shards for the plan")
	listCmd.Flags().StringVarP(&flags.Strategy, "strategy", "s", config.DefaultStrategy, "Assignment strategy for the plan: "+availableStrategies())
	rootCmd.AddCommand(listCmd)

	// Status command
	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the status of the current run",
		Long:    "Display the shared status table: which shards are pending, running, completed or failed",
		RunE:    c.Status.Execute,
		PreRunE: apply,
	}
	statusCmd.Flags().IntVarP(&flags.Shards, "shards", "n", config.DefaultShards, "Total number of shards in the run")
	statusCmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "Keep the table on screen and refresh it as shards progress")
	statusCmd.Flags().DurationVar(&flags.StaleAfter, "stale-after", config.DefaultStaleAfter, "Age past which an unprobeable shard lock is considered abandoned")
	rootCmd.AddCommand(statusCmd)

	// Clean command
	cleanCmd := &cobra.Command{
		Use:     "clean",
		Short:   "Remove coordination state",
		Long:    "Delete the shared coordination directory: status table, shard locks and the history snapshot",
		RunE:    c.Clean.Execute,
		PreRunE: apply,
	}
	rootCmd.AddCommand(cleanCmd)

	// Provision command
	provisionCmd := &cobra.Command{
		Use:     "provision",
		Short:   "Prepare the per-shard test databases",
		Long:    "Create and migrate one database per shard so shards never share state",
		RunE:    c.Provision.Execute,
		PreRunE: apply,
	}
	provisionCmd.Flags().IntVarP(&flags.Shards, "shards", "n", config.DefaultShards, "Number of shard databases to prepare")
	provisionCmd.Flags().IntVarP(&flags.Parallel, "parallel", "p", config.DefaultParallel, "How many databases to prepare at once")
	provisionCmd.Flags().BoolVar(&flags.NoFresh, "no-fresh", false, "Provision without dropping existing schema (only pending migrations)")
	provisionCmd.Flags().StringVar(&flags.PrepareCmd, "prepare-cmd", "", "Override the database preparation command")
	rootCmd.AddCommand(provisionCmd)

	// Faills command
	faillsCmd := &cobra.Command{
		Use:   "faills",
		Short: "View test failures interactively",
		Long:  "Display test failures from the last run in an interactive viewer",
		RunE:  c.Faills.Execute,
	}
	rootCmd.AddCommand(faillsCmd)
}

func availableStrategies() string {
	return strings.Join(sharding.Names(), ", ")
}
