package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tshard/internal/config"
	"tshard/internal/coordination"
	"tshard/internal/ui"
)

// StatusCommand handles the status command
type StatusCommand struct {
	config    *config.Config
	formatter *ui.Formatter
}

// NewStatusCommand creates a new StatusCommand
func NewStatusCommand(cfg *config.Config, formatter *ui.Formatter) *StatusCommand {
	return &StatusCommand{
		config:    cfg,
		formatter: formatter,
	}
}

// Execute runs the command
func (sc *StatusCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg := sc.config

	coord, err := coordination.New(cfg.GetProjectRoot(), cfg.Shards, cfg.StaleAfter)
	if err != nil {
		return err
	}

	// The run that set the directory up knows its own shard count better
	// than this command's flag default does
	if meta, err := coord.ReadRunMeta(); err == nil && meta != nil && meta.Total != coord.Total() {
		coord, err = coordination.NewAt(coord.Dir(), meta.Total, cfg.StaleAfter)
		if err != nil {
			return err
		}
	}

	if !cfg.Flags.Watch {
		sc.formatter.PrintStatusTable(coord.ShardRecords())
		return nil
	}

	return ui.WatchDir(cmd.Context(), coord.Dir(), 200*time.Millisecond, func() {
		// Clear terminal screen
		fmt.Print("\033[2J\033[H")
		color.Cyan("Coordination dir: %s\n", coord.Dir())
		sc.formatter.PrintStatusTable(coord.ShardRecords())
	})
}
