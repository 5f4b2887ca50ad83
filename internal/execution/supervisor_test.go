package execution

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"tshard/internal/config"
	"tshard/internal/coordination"
	"tshard/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errKilled = errors.New("killed")

// fakeHandle stands in for a shard process. Its exit is fed through done;
// a handle with nothing feeding done hangs until killed.
type fakeHandle struct {
	pid  int
	done chan error
}

func (h *fakeHandle) PID() int    { return h.pid }
func (h *fakeHandle) Wait() error { return <-h.done }

func (h *fakeHandle) Kill() error {
	select {
	case h.done <- errKilled:
	default:
	}
	return nil
}

// spawnTracker records how often and how concurrently shards were spawned
type spawnTracker struct {
	mu     sync.Mutex
	active int
	peak   int
	starts map[int]int
}

func newSpawnTracker() *spawnTracker {
	return &spawnTracker{starts: make(map[int]int)}
}

func (st *spawnTracker) started(id int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active++
	st.starts[id]++
	if st.active > st.peak {
		st.peak = st.active
	}
}

func (st *spawnTracker) finished() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.active--
}

func (st *spawnTracker) snapshot() (peak, total int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, n := range st.starts {
		total += n
	}
	return st.peak, total
}

func (st *spawnTracker) startsFor(id int) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.starts[id]
}

func newTestCoordinator(t *testing.T, dir string, total int) *coordination.Coordinator {
	t.Helper()
	coord, err := coordination.NewAt(dir, total, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return coord
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSupervisor_RunsAllShards(t *testing.T) {
	st := newSpawnTracker()
	spawn := func(ctx context.Context, shard domain.ShardDescriptor) (ProcessHandle, error) {
		st.started(shard.Index)
		h := &fakeHandle{pid: 4000 + shard.Index, done: make(chan error, 1)}
		go func() {
			time.Sleep(time.Duration(shard.Index) * time.Millisecond)
			st.finished()
			h.done <- nil
		}()
		return h, nil
	}

	cfg := config.New()
	cfg.Parallel = 2
	coord := newTestCoordinator(t, t.TempDir(), 5)
	s := NewSupervisor(cfg, coord, spawn)
	s.RescanEvery = 10 * time.Millisecond

	var settled []int
	s.OnShardExit = func(id int, status domain.ShardStatus) {
		if status == domain.StatusCompleted {
			settled = append(settled, id)
		}
	}

	if err := s.Run(testContext(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	counts := coord.AggregateStatus()
	if counts.Completed != 5 {
		t.Errorf("completed = %d, want 5", counts.Completed)
	}
	peak, total := st.snapshot()
	if total != 5 {
		t.Errorf("spawned %d processes, want 5", total)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
	if len(settled) != 5 {
		t.Errorf("settled shards = %v, want all 5", settled)
	}
}

func TestSupervisor_RetriesFailingShardThenGivesUp(t *testing.T) {
	st := newSpawnTracker()
	spawn := func(ctx context.Context, shard domain.ShardDescriptor) (ProcessHandle, error) {
		st.started(shard.Index)
		h := &fakeHandle{pid: 4000 + shard.Index, done: make(chan error, 1)}
		go func() {
			st.finished()
			if shard.Index == 2 {
				h.done <- errors.New("exit status 1")
				return
			}
			h.done <- nil
		}()
		return h, nil
	}

	cfg := config.New()
	cfg.Parallel = 2
	cfg.Retries = 1
	coord := newTestCoordinator(t, t.TempDir(), 3)
	s := NewSupervisor(cfg, coord, spawn)
	s.RescanEvery = 10 * time.Millisecond

	err := s.Run(testContext(t))
	if !errors.Is(err, ErrShardsFailed) {
		t.Fatalf("Run() error = %v, want ErrShardsFailed", err)
	}

	counts := coord.AggregateStatus()
	if counts.Completed != 2 || counts.Failed != 1 {
		t.Errorf("counts = %+v, want 2 completed 1 failed", counts)
	}
	if got := st.startsFor(2); got != 2 {
		t.Errorf("shard 2 spawned %d times, want 2 (one retry)", got)
	}
	for _, rec := range coord.ShardRecords() {
		if rec.ID == 2 && rec.Status != domain.StatusFailed {
			t.Errorf("shard 2 status = %s, want failed", rec.Status)
		}
	}
}

func TestSupervisor_FailFastStopsSpawning(t *testing.T) {
	st := newSpawnTracker()
	spawn := func(ctx context.Context, shard domain.ShardDescriptor) (ProcessHandle, error) {
		st.started(shard.Index)
		h := &fakeHandle{pid: 4000 + shard.Index, done: make(chan error, 1)}
		go func() {
			st.finished()
			h.done <- errors.New("exit status 2")
		}()
		return h, nil
	}

	cfg := config.New()
	cfg.Parallel = 1
	cfg.Flags.FailFast = true
	coord := newTestCoordinator(t, t.TempDir(), 4)
	s := NewSupervisor(cfg, coord, spawn)
	s.RescanEvery = 10 * time.Millisecond

	err := s.Run(testContext(t))
	if !errors.Is(err, ErrShardsFailed) {
		t.Fatalf("Run() error = %v, want ErrShardsFailed", err)
	}

	if _, total := st.snapshot(); total != 1 {
		t.Errorf("spawned %d processes, want 1 under fail-fast", total)
	}
	counts := coord.AggregateStatus()
	if counts.Failed != 1 || counts.Pending != 3 {
		t.Errorf("counts = %+v, want 1 failed 3 pending", counts)
	}
}

func TestSupervisor_CancelKillsChildren(t *testing.T) {
	st := newSpawnTracker()
	spawn := func(ctx context.Context, shard domain.ShardDescriptor) (ProcessHandle, error) {
		st.started(shard.Index)
		// Hangs until killed
		return &fakeHandle{pid: 4000 + shard.Index, done: make(chan error, 1)}, nil
	}

	cfg := config.New()
	cfg.Parallel = 2
	coord := newTestCoordinator(t, t.TempDir(), 2)
	s := NewSupervisor(cfg, coord, spawn)
	s.RescanEvery = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	counts := coord.AggregateStatus()
	if counts.Failed != 2 {
		t.Errorf("counts = %+v, want both shards failed after kill", counts)
	}
}

func TestSupervisor_WaitsForForeignShard(t *testing.T) {
	dir := t.TempDir()
	coord := newTestCoordinator(t, dir, 3)

	// Shard 2 is held by a fresh lock from another machine
	rec := domain.LockRecord{OwnerPID: 4242, CreatedAt: time.Now().Unix(), Hostname: "elsewhere"}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shard-2.lock"), data, 0644); err != nil {
		t.Fatal(err)
	}

	// The foreign owner finishes its shard a little later
	foreignDone := make(chan struct{})
	go func() {
		defer close(foreignDone)
		time.Sleep(50 * time.Millisecond)
		foreign, err := coordination.NewAt(dir, 3, 5*time.Minute)
		if err != nil {
			return
		}
		foreign.MarkComplete(2, 0)
	}()

	st := newSpawnTracker()
	spawn := func(ctx context.Context, shard domain.ShardDescriptor) (ProcessHandle, error) {
		st.started(shard.Index)
		h := &fakeHandle{pid: 4000 + shard.Index, done: make(chan error, 1)}
		go func() {
			st.finished()
			h.done <- nil
		}()
		return h, nil
	}

	cfg := config.New()
	cfg.Parallel = 2
	s := NewSupervisor(cfg, coord, spawn)
	s.RescanEvery = 10 * time.Millisecond

	if err := s.Run(testContext(t)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	<-foreignDone

	if counts := coord.AggregateStatus(); counts.Completed != 3 {
		t.Errorf("completed = %d, want 3", counts.Completed)
	}
	if st.startsFor(2) != 0 {
		t.Error("shard 2 was spawned locally despite the foreign hold")
	}
}
