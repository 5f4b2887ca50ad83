package execution

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"tshard/internal/config"
	"tshard/internal/domain"
)

// ProcessHandle is one live shard process
type ProcessHandle interface {
	PID() int
	Wait() error
	Kill() error
}

// SpawnFunc launches the process that will claim and execute one shard
type SpawnFunc func(ctx context.Context, shard domain.ShardDescriptor) (ProcessHandle, error)

// CommandSpawner starts shard processes by re-executing this binary's exec
// command. Everything a shard needs arrives as explicit flags; nothing is
// smuggled through the environment.
type CommandSpawner struct {
	cfg *config.Config
}

// NewCommandSpawner creates a new CommandSpawner
func NewCommandSpawner(cfg *config.Config) *CommandSpawner {
	return &CommandSpawner{cfg: cfg}
}

// ShardLogPath returns the log file capturing one shard process's output
func ShardLogPath(cfg *config.Config, index int) string {
	return filepath.Join(cfg.GetProjectRoot(), cfg.OutputJSONDir, fmt.Sprintf("shard-%d.log", index))
}

// Spawn starts `tshard exec` for one shard with its output wired to the
// shard's log file
func (cs *CommandSpawner) Spawn(ctx context.Context, shard domain.ShardDescriptor) (ProcessHandle, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	logPath := ShardLogPath(cs.cfg, shard.Index)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create shard log: %w", err)
	}

	cmd := exec.CommandContext(ctx, self, cs.execArgs(shard)...)
	cmd.Dir = cs.cfg.GetProjectRoot()
	cmd.Env = os.Environ()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start shard process: %w", err)
	}

	return &processHandle{cmd: cmd, log: logFile}, nil
}

// execArgs builds the shard's command line: which slice of the run it owns,
// that a coordinating parent exists, and whether coverage merging is on.
func (cs *CommandSpawner) execArgs(shard domain.ShardDescriptor) []string {
	args := []string{"exec",
		"--index", strconv.Itoa(shard.Index),
		"--total", strconv.Itoa(shard.Total),
		"--auto",
		"--strategy", cs.cfg.Strategy,
	}
	if cs.cfg.Flags.Merge {
		args = append(args, "--merge")
	}
	if cs.cfg.Flags.FailFast {
		args = append(args, "--fail-fast")
	}
	if cs.cfg.Flags.Filter != "" {
		args = append(args, "--filter", cs.cfg.Flags.Filter)
	}
	if cs.cfg.Flags.TestPath != "" {
		args = append(args, "--path", cs.cfg.Flags.TestPath)
	}
	if cs.cfg.Flags.StaleAfter > 0 {
		args = append(args, "--stale-after", cs.cfg.Flags.StaleAfter.String())
	}
	return args
}

type processHandle struct {
	cmd *exec.Cmd
	log *os.File
}

func (h *processHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *processHandle) Wait() error {
	err := h.cmd.Wait()
	h.log.Close()
	return err
}

func (h *processHandle) Kill() error {
	return h.cmd.Process.Kill()
}
