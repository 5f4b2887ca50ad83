package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tshard/internal/config"
)

// Merger combines per-shard coverage artifacts into one report.
type Merger interface {
	Merge(ctx context.Context) error
}

// CommandMerger shells out to an external merge tool, phpcov by default.
// The tool is an opaque collaborator: this side only decides when to invoke
// it and where the artifacts live.
type CommandMerger struct {
	cfg *config.Config
}

// NewCommandMerger creates a new CommandMerger
func NewCommandMerger(cfg *config.Config) *CommandMerger {
	return &CommandMerger{cfg: cfg}
}

// Artifact returns the coverage file for one test file run inside a shard.
// Every PHPUnit invocation writes its own file; the merge tool folds the
// whole directory together.
func Artifact(cfg *config.Config, shardIndex, ordinal int) string {
	return filepath.Join(cfg.GetCoverageDir(), fmt.Sprintf("shard-%d-%04d.cov", shardIndex, ordinal))
}

// ReportPath is where the merged clover report lands.
func (m *CommandMerger) ReportPath() string {
	return filepath.Join(m.cfg.GetCoverageDir(), "clover.xml")
}

// Merge runs the merge tool over every artifact in the coverage directory.
func (m *CommandMerger) Merge(ctx context.Context) error {
	dir := m.cfg.GetCoverageDir()
	artifacts, err := listArtifacts(dir)
	if err != nil {
		return fmt.Errorf("scan coverage artifacts: %w", err)
	}
	if len(artifacts) == 0 {
		return fmt.Errorf("no coverage artifacts in %s", dir)
	}

	name, args := m.command(dir)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = m.cfg.GetProjectRoot()

	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("coverage merge failed: %w: %s", err, msg)
		}
		return fmt.Errorf("coverage merge failed: %w", err)
	}

	slog.Info("coverage merged",
		slog.Int("artifacts", len(artifacts)),
		slog.String("report", m.ReportPath()))
	return nil
}

// command builds the merge tool invocation.
func (m *CommandMerger) command(dir string) (string, []string) {
	args := append([]string{}, m.cfg.MergeArgs...)
	args = append(args, dir, "--clover", m.ReportPath())
	return m.cfg.MergeTool, args
}

// listArtifacts returns the per-shard coverage files in dir. A missing
// directory means no shard wrote coverage, not an error.
func listArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var artifacts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".cov") {
			artifacts = append(artifacts, filepath.Join(dir, e.Name()))
		}
	}
	return artifacts, nil
}
