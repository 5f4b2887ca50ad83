package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tshard/internal/cli"
	"tshard/internal/cli/commands"
	"tshard/internal/config"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:     "tshard",
		Short:   "Sharded PHPUnit test runner",
		Long:    `Partition a PHPUnit test suite into disjoint shards and run them as independent processes, coordinated through a shared directory. Shards can run as children of a single run command or as unrelated CI jobs executing one shard each.`,
		Version: version,
	}

	// Create initial config with defaults, project .env applied. Command
	// flags overlay in PreRunE; -1 marks retries as not set, since 0 is a
	// meaningful value.
	cfg := config.Load(config.Flags{Retries: -1})

	// Create flags struct (will be populated by command flags)
	flags := cli.Flags{Retries: -1}

	// Create commands with dependencies
	cmds := commands.NewCommands(cfg)

	// Register all commands
	cmds.Register(rootCmd, &flags, cfg)

	// An interrupt must reach the shard processes before this one exits
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute root command
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
