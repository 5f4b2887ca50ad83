package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"tshard/internal/domain"
)

// ShardProgressBar renders one shard's file-by-file progress
type ShardProgressBar struct {
	bar   *progressbar.ProgressBar
	label string
}

// NewShardProgressBar creates a progress bar sized to the shard's file count
func NewShardProgressBar(shard domain.ShardDescriptor, fileCount int) *ShardProgressBar {
	label := color.CyanString("Shard %d/%d: ", shard.Index, shard.Total)
	bar := progressbar.NewOptions(fileCount,
		progressbar.OptionSetDescription(
			label+
				color.GreenString("[passed: 0")+
				" | "+
				color.RedString("failed: 0]"),
		),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ShardProgressBar{bar: bar, label: label}
}

// Update advances the bar to the completed file count and refreshes the
// per-case tallies in the description
func (p *ShardProgressBar) Update(completedFiles, passedCases, failedCases int) {
	p.bar.Set(completedFiles)
	p.bar.Describe(
		p.label +
			color.GreenString("[passed: %d", passedCases) +
			" | " +
			color.RedString("failed: %d]", failedCases),
	)
}

// Finish completes the progress bar
func (p *ShardProgressBar) Finish() {
	p.bar.Finish()
}
