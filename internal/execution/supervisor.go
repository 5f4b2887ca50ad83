package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"tshard/internal/config"
	"tshard/internal/coordination"
	"tshard/internal/domain"
)

// ErrShardsFailed reports that at least one shard never completed
var ErrShardsFailed = errors.New("one or more shards did not complete")

const defaultRescanEvery = 2 * time.Second

// Supervisor keeps up to Parallel shard processes in flight until every
// shard of the run completes or is beyond saving. It claims shards through
// the coordinator on the children's behalf and settles each claim from the
// child's exit; the children themselves only run tests. Shards held by
// processes outside this run are left alone and rechecked periodically.
type Supervisor struct {
	cfg   *config.Config
	coord *coordination.Coordinator
	spawn SpawnFunc

	// RescanEvery bounds how long the run sits idle before rechecking the
	// coordinator for shards freed by foreign processes
	RescanEvery time.Duration

	// OnShardExit, when set, is called after each shard process ends with
	// the shard's settled status
	OnShardExit func(id int, status domain.ShardStatus)

	active    map[int]ProcessHandle
	attempts  map[int]int
	exhausted map[int]bool
	exits     chan shardExit
}

type shardExit struct {
	id  int
	err error
}

// NewSupervisor creates a new Supervisor
func NewSupervisor(cfg *config.Config, coord *coordination.Coordinator, spawn SpawnFunc) *Supervisor {
	return &Supervisor{
		cfg:         cfg,
		coord:       coord,
		spawn:       spawn,
		RescanEvery: defaultRescanEvery,
		active:      make(map[int]ProcessHandle),
		attempts:    make(map[int]int),
		exhausted:   make(map[int]bool),
		// One slot per shard: a watcher can always deliver without blocking
		exits: make(chan shardExit, coord.Total()),
	}
}

// Run drives the whole run and returns nil only when every shard completed
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.RescanEvery)
	defer ticker.Stop()

	for !s.allCompleted() {
		if s.remainingBeyondSaving() {
			break
		}
		if s.cfg.Flags.FailFast && len(s.exhausted) > 0 {
			s.killAll()
			break
		}

		s.fill(ctx)

		if len(s.active) == 0 {
			// Every claimable shard is spoken for by foreign processes;
			// wait for them to finish, die or go stale, then rescan
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.killAll()
			return ctx.Err()
		case exit := <-s.exits:
			s.handleExit(exit)
		case <-ticker.C:
			// A foreign owner may have died leaving a breakable lock
		}
	}

	counts := s.coord.AggregateStatus()
	if counts.Completed == s.coord.Total() {
		return nil
	}
	return fmt.Errorf("%w: %d of %d shards completed", ErrShardsFailed, counts.Completed, s.coord.Total())
}

func (s *Supervisor) allCompleted() bool {
	return s.coord.AggregateStatus().Completed == s.coord.Total()
}

// remainingBeyondSaving reports whether every shard that has not completed
// has exhausted its attempts, so more spawning cannot change the outcome
func (s *Supervisor) remainingBeyondSaving() bool {
	for _, rec := range s.coord.ShardRecords() {
		if rec.Status == domain.StatusCompleted {
			continue
		}
		if !s.exhausted[rec.ID] {
			return false
		}
	}
	return true
}

// fill claims shards and spawns their processes until the parallelism limit
// is reached or nothing is claimable
func (s *Supervisor) fill(ctx context.Context) {
	for len(s.active) < s.parallel() {
		skip := make(map[int]bool, len(s.active)+len(s.exhausted))
		for id := range s.active {
			skip[id] = true
		}
		for id := range s.exhausted {
			skip[id] = true
		}

		id, err := s.coord.NextAvailableShard(skip)
		if err != nil {
			return
		}

		shard := domain.ShardDescriptor{Index: id, Total: s.coord.Total()}
		handle, err := s.spawn(ctx, shard)
		if err != nil {
			// The claim is already recorded; settle it as failed so the
			// shard stays claimable by whoever can still reach it. The
			// synthetic -1 marks a shard that never got to run.
			s.coord.MarkComplete(id, -1)
			s.noteFailure(id, fmt.Errorf("spawn shard %d: %w", id, err))
			continue
		}

		s.active[id] = handle
		slog.Info("shard process started",
			slog.Int("shard", id),
			slog.Int("pid", handle.PID()))
		go s.watch(id, handle)
	}
}

func (s *Supervisor) watch(id int, handle ProcessHandle) {
	s.exits <- shardExit{id: id, err: handle.Wait()}
}

// handleExit settles one shard from its process's exit: a clean exit
// completes the shard, anything else fails it and burns an attempt
func (s *Supervisor) handleExit(exit shardExit) {
	delete(s.active, exit.id)

	if exit.err == nil {
		s.coord.MarkComplete(exit.id, 0)
		slog.Info("shard completed", slog.Int("shard", exit.id))
		if s.OnShardExit != nil {
			s.OnShardExit(exit.id, domain.StatusCompleted)
		}
		return
	}

	s.coord.MarkComplete(exit.id, exitCode(exit.err))
	s.noteFailure(exit.id, exit.err)
	if s.OnShardExit != nil {
		s.OnShardExit(exit.id, domain.StatusFailed)
	}
}

// exitCode extracts the child's exit code so the status table shows what
// the process actually returned. Waits that fail without an exit status,
// like a kill, count as 1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// noteFailure burns one attempt for the shard and retires it once the
// budget is spent. The next fill pass re-claims anything still retriable.
func (s *Supervisor) noteFailure(id int, cause error) {
	s.attempts[id]++
	if s.attempts[id] > s.retries() {
		s.exhausted[id] = true
		slog.Error("shard exhausted its attempts",
			slog.Int("shard", id),
			slog.Int("attempts", s.attempts[id]),
			slog.Any("error", cause))
		return
	}
	slog.Warn("shard attempt failed, retrying",
		slog.Int("shard", id),
		slog.Int("attempt", s.attempts[id]),
		slog.Any("error", cause))
}

func (s *Supervisor) retries() int {
	if s.cfg.Flags.FailFast {
		return 0
	}
	return s.cfg.Retries
}

func (s *Supervisor) parallel() int {
	if s.cfg.Parallel > 0 {
		return s.cfg.Parallel
	}
	return 1
}

// killAll stops every child and settles their shards, releasing the claims
// for whoever picks the run up next. Exits that were already queued keep
// their real outcome.
func (s *Supervisor) killAll() {
	for id, handle := range s.active {
		if err := handle.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Warn("shard process not killed",
				slog.Int("shard", id), slog.Any("error", err))
		}
	}
	for len(s.active) > 0 {
		exit := <-s.exits
		delete(s.active, exit.id)
		if exit.err == nil {
			s.coord.MarkComplete(exit.id, 0)
		} else {
			s.coord.MarkComplete(exit.id, exitCode(exit.err))
		}
	}
}
