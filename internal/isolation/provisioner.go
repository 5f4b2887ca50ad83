package isolation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"tshard/internal/config"
	"tshard/internal/domain"
)

// Provisioner prepares one isolated database per shard so shard processes
// never share schema state.
type Provisioner struct {
	cfg *config.Config
	db  *DatabaseManager
}

// NewProvisioner creates a new Provisioner
func NewProvisioner(cfg *config.Config, db *DatabaseManager) *Provisioner {
	return &Provisioner{cfg: cfg, db: db}
}

// Provision ensures the shard databases exist and runs the prepare command
// against each one in parallel. It returns one result per shard and an error
// if any shard's database could not be prepared.
func (p *Provisioner) Provision(ctx context.Context, shards int, noFresh bool) ([]domain.ProvisionResult, error) {
	names, err := p.db.EnsureDatabases(ctx, shards)
	if err != nil {
		return nil, fmt.Errorf("check databases: %w", err)
	}

	color.Cyan("\nPreparing %d shard databases\n", len(names))

	bar := progressbar.NewOptions(len(names),
		progressbar.OptionSetDescription(color.CyanString("Preparing: ")),
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

	results := make([]domain.ProvisionResult, shards)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallel)

	for i := 1; i <= shards; i++ {
		i := i
		g.Go(func() error {
			results[i-1] = p.prepareShard(gctx, i, noFresh)
			bar.Add(1)
			return nil
		})
	}
	// Workers report failures through their results, never as errors.
	_ = g.Wait()
	bar.Finish()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			color.Red("✗ shard %d (%s): %v", r.ShardIndex, r.Database, r.Error)
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("database preparation failed for %d shard(s)", failed)
	}

	color.Green("✓ %d shard databases ready", len(names))
	return results, nil
}

// prepareShard runs the prepare command against one shard's database.
func (p *Provisioner) prepareShard(ctx context.Context, index int, noFresh bool) domain.ProvisionResult {
	database := p.cfg.GetDatabaseName(index)
	result := domain.ProvisionResult{ShardIndex: index, Database: database}

	projectRoot, err := filepath.Abs(p.cfg.ProjectPath)
	if err != nil {
		result.Error = fmt.Errorf("resolve project path: %w", err)
		return result
	}

	name, args := p.prepareCommand(projectRoot, noFresh)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = projectRoot
	cmd.Env = append(os.Environ(), "DB_DATABASE="+database)

	out, err := cmd.CombinedOutput()
	result.Output = string(out)
	if err != nil {
		result.Error = fmt.Errorf("prepare database %s: %w", database, err)
		return result
	}

	result.Success = true
	return result
}

// prepareCommand builds the per-shard preparation command. The default runs
// Laravel's migrate:fresh against the shard database; a custom --prepare-cmd
// replaces it wholesale.
func (p *Provisioner) prepareCommand(projectRoot string, noFresh bool) (string, []string) {
	if raw := strings.TrimSpace(p.cfg.Flags.PrepareCmd); raw != "" {
		parts := strings.Fields(raw)
		return parts[0], parts[1:]
	}

	migrate := "migrate:fresh"
	if noFresh {
		migrate = "migrate"
	}
	artisan := filepath.Join(projectRoot, "artisan")
	return "php", []string{artisan, migrate, "--env=testing", "--force"}
}
