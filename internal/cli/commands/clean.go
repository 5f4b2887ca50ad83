package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tshard/internal/config"
	"tshard/internal/coordination"
)

// CleanCommand handles the clean command
type CleanCommand struct {
	config *config.Config
}

// NewCleanCommand creates a new CleanCommand
func NewCleanCommand(cfg *config.Config) *CleanCommand {
	return &CleanCommand{config: cfg}
}

// Execute runs the command
func (cc *CleanCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg := cc.config

	coord, err := coordination.New(cfg.GetProjectRoot(), cfg.Shards, cfg.StaleAfter)
	if err != nil {
		return err
	}
	if err := coord.Cleanup(); err != nil {
		return fmt.Errorf("clean coordination dir: %w", err)
	}

	color.Green("✓ Coordination state cleared (%s)", coord.Dir())
	return nil
}
