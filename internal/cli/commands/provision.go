package commands

import (
	"github.com/spf13/cobra"

	"tshard/internal/config"
	"tshard/internal/isolation"
)

// ProvisionCommand handles the provision command
type ProvisionCommand struct {
	config      *config.Config
	provisioner *isolation.Provisioner
}

// NewProvisionCommand creates a new ProvisionCommand
func NewProvisionCommand(cfg *config.Config, provisioner *isolation.Provisioner) *ProvisionCommand {
	return &ProvisionCommand{
		config:      cfg,
		provisioner: provisioner,
	}
}

// Execute runs the command
func (pc *ProvisionCommand) Execute(cmd *cobra.Command, args []string) error {
	_, err := pc.provisioner.Provision(cmd.Context(), pc.config.Shards, pc.config.Flags.NoFresh)
	return err
}
