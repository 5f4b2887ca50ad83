package coordination

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tshard/internal/domain"
)

// ErrNoShardAvailable is returned when no shard can be claimed right now
var ErrNoShardAvailable = errors.New("no claimable shard available")

const (
	statusFileName = "status.json"
	// SnapshotFileName is the pinned duration history spawned shards read
	SnapshotFileName = "history-snapshot.json"

	tableLockTimeout    = 2 * time.Second
	tableLockRetryDelay = 10 * time.Millisecond
	tableLockStaleAfter = 10 * time.Second
)

// Coordinator mediates shard ownership between unrelated OS processes
// through a shared directory. The per-shard lock file is the source of truth
// for exclusivity; the status table is an aggregated view that may briefly
// lag behind it.
type Coordinator struct {
	dir        string
	total      int
	staleAfter time.Duration
	pid        int
	hostname   string
}

// DirFor derives the shared coordination directory for a project. Every
// process working on the same project computes the same path without any
// configuration handshake.
func DirFor(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	sum := sha1.Sum([]byte(abs))
	return filepath.Join(os.TempDir(), "tshard-"+hex.EncodeToString(sum[:])[:12])
}

// New creates a Coordinator for a run of total shards over the project at
// projectRoot. The coordination directory is created if needed.
func New(projectRoot string, total int, staleAfter time.Duration) (*Coordinator, error) {
	return NewAt(DirFor(projectRoot), total, staleAfter)
}

// NewAt is New with an explicit coordination directory
func NewAt(dir string, total int, staleAfter time.Duration) (*Coordinator, error) {
	if total < 1 {
		return nil, fmt.Errorf("shard total must be at least 1, got %d", total)
	}
	if staleAfter <= 0 {
		return nil, fmt.Errorf("stale-after must be positive, got %s", staleAfter)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create coordination dir: %w", err)
	}
	hostname, _ := os.Hostname()
	return &Coordinator{
		dir:        dir,
		total:      total,
		staleAfter: staleAfter,
		pid:        os.Getpid(),
		hostname:   hostname,
	}, nil
}

// Dir returns the coordination directory
func (c *Coordinator) Dir() string {
	return c.dir
}

// Total returns the shard count this coordinator was built for
func (c *Coordinator) Total() int {
	return c.total
}

// SnapshotPath returns where the pinned duration history lives for this run
func (c *Coordinator) SnapshotPath() string {
	return filepath.Join(c.dir, SnapshotFileName)
}

func (c *Coordinator) statusPath() string {
	return filepath.Join(c.dir, statusFileName)
}

func (c *Coordinator) lockPath(id int) string {
	return filepath.Join(c.dir, fmt.Sprintf("shard-%d.lock", id))
}

// Claim attempts to take ownership of one shard. It returns false when the
// shard is held by a live owner, already completed, or any filesystem
// trouble makes ownership uncertain; a failed claim never aborts the
// caller's scan. A lock judged stale is broken and re-attempted exactly
// once.
func (c *Coordinator) Claim(id int) bool {
	if id < 1 || id > c.total {
		return false
	}
	if rec, ok := c.readTable()[id]; ok && rec.Status == domain.StatusCompleted {
		return false
	}

	for attempt := 0; attempt < 2; attempt++ {
		if c.tryLock(id) {
			// Re-check under the lock: the shard may have completed between
			// the scan and the lock creation
			if rec, ok := c.readTable()[id]; ok && rec.Status == domain.StatusCompleted {
				os.Remove(c.lockPath(id))
				return false
			}
			c.recordClaim(id)
			return true
		}

		if !isStale(c.lockPath(id), c.staleAfter, c.hostname, time.Now()) {
			return false
		}
		slog.Warn("breaking stale shard lock",
			slog.Int("shard", id), slog.String("path", c.lockPath(id)))
		if err := os.Remove(c.lockPath(id)); err != nil && !os.IsNotExist(err) {
			return false
		}
	}
	return false
}

func (c *Coordinator) tryLock(id int) bool {
	rec := domain.LockRecord{
		OwnerPID:  c.pid,
		CreatedAt: time.Now().Unix(),
		Hostname:  c.hostname,
	}
	return tryCreateLock(c.lockPath(id), rec)
}

// recordClaim moves the shard's row to running. The lock file already
// decides ownership, so a failed table write only delays the visible state.
func (c *Coordinator) recordClaim(id int) {
	c.withTableLock(func() {
		table := c.readTable()
		rec := table[id]
		rec.ID = id
		rec.Status = domain.StatusRunning
		rec.OwnerPID = c.pid
		rec.StartedAt = time.Now().Unix()
		rec.EndedAt = 0
		rec.ExitCode = 0
		rec.Attempts++
		table[id] = rec
		if err := c.writeTable(table); err != nil {
			slog.Warn("status table not updated after claim",
				slog.Int("shard", id), slog.Any("error", err))
		}
	})
}

// NextAvailableShard scans ids in ascending order and claims the first
// available one, skipping any id in skip. Completed shards are never
// touched; running shards are only won when their lock turns out stale or
// missing, which is how shards of crashed owners come back into play.
func (c *Coordinator) NextAvailableShard(skip map[int]bool) (int, error) {
	table := c.readTable()
	for id := 1; id <= c.total; id++ {
		if skip[id] {
			continue
		}
		if rec, ok := table[id]; ok && rec.Status == domain.StatusCompleted {
			continue
		}
		if c.Claim(id) {
			return id, nil
		}
	}
	return 0, ErrNoShardAvailable
}

// MarkComplete finalizes a shard: exit code zero completes it, anything
// else fails it and leaves it claimable for a retry. The shard's lock is
// released either way. Filesystem trouble is logged and swallowed; a row
// left behind unblocks itself through the staleness threshold.
func (c *Coordinator) MarkComplete(id int, exitCode int) {
	if id < 1 || id > c.total {
		return
	}

	status := domain.StatusCompleted
	if exitCode != 0 {
		status = domain.StatusFailed
	}

	c.withTableLock(func() {
		table := c.readTable()
		rec := table[id]
		if rec.Status == domain.StatusCompleted {
			// A finished shard is never rewritten
			slog.Warn("ignoring completion for already completed shard", slog.Int("shard", id))
			return
		}
		if rec.Status != "" && !rec.Status.CanTransition(status) {
			slog.Warn("unexpected shard status transition",
				slog.Int("shard", id),
				slog.String("from", string(rec.Status)),
				slog.String("to", string(status)))
		}
		rec.ID = id
		rec.Status = status
		rec.EndedAt = time.Now().Unix()
		rec.ExitCode = exitCode
		table[id] = rec
		if err := c.writeTable(table); err != nil {
			slog.Warn("shard completion not recorded",
				slog.Int("shard", id), slog.Any("error", err))
		}
	})

	if err := os.Remove(c.lockPath(id)); err != nil && !os.IsNotExist(err) {
		slog.Warn("shard lock not released",
			slog.Int("shard", id), slog.Any("error", err))
	}
}

// Counts is the aggregate view of a run
type Counts struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// Done reports whether no shard is waiting or in flight
func (c Counts) Done() bool {
	return c.Pending == 0 && c.Running == 0
}

// AggregateStatus folds the status table into per-status counts. Ids the
// table has never seen count as pending; rows outside 1..total are ignored.
func (c *Coordinator) AggregateStatus() Counts {
	table := c.readTable()
	counts := Counts{}
	for id := 1; id <= c.total; id++ {
		switch table[id].Status {
		case domain.StatusRunning:
			counts.Running++
		case domain.StatusCompleted:
			counts.Completed++
		case domain.StatusFailed:
			counts.Failed++
		default:
			counts.Pending++
		}
	}
	return counts
}

// ShardRecords returns one row per shard id, materializing pending rows for
// ids the table has never seen
func (c *Coordinator) ShardRecords() []domain.ShardRecord {
	table := c.readTable()
	records := make([]domain.ShardRecord, 0, c.total)
	for id := 1; id <= c.total; id++ {
		rec, ok := table[id]
		if !ok {
			rec = domain.ShardRecord{ID: id, Status: domain.StatusPending}
		}
		rec.ID = id
		if rec.Status == "" {
			rec.Status = domain.StatusPending
		}
		records = append(records, rec)
	}
	return records
}

// StaleTableIDs returns ids present in the status table but outside this
// run's 1..total range: the footprint of an earlier run with a different
// shard count. Callers decide whether to warn or clean.
func (c *Coordinator) StaleTableIDs() []int {
	table := c.readTable()
	var ids []int
	for id := range table {
		if id < 1 || id > c.total {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Cleanup removes the coordination directory and everything in it
func (c *Coordinator) Cleanup() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("remove coordination dir: %w", err)
	}
	return nil
}

// readTable loads the status table. Any read problem yields an empty table:
// the table is a view, the lock files arbitrate.
func (c *Coordinator) readTable() map[int]domain.ShardRecord {
	table := make(map[int]domain.ShardRecord)
	data, err := os.ReadFile(c.statusPath())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("status table unreadable, treating as empty",
				slog.String("path", c.statusPath()), slog.Any("error", err))
		}
		return table
	}
	if err := json.Unmarshal(data, &table); err != nil {
		slog.Warn("status table corrupt, treating as empty",
			slog.String("path", c.statusPath()), slog.Any("error", err))
		return make(map[int]domain.ShardRecord)
	}
	return table
}

// writeTable atomically replaces the status table, so readers never observe
// a torn file
func (c *Coordinator) writeTable(table map[int]domain.ShardRecord) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status table: %w", err)
	}
	return c.replaceFile(c.statusPath(), data, ".status-*")
}

// replaceFile writes data to a temp file in the coordination dir and renames
// it over path
func (c *Coordinator) replaceFile(path string, data []byte, tmpPattern string) error {
	tmp, err := os.CreateTemp(c.dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// withTableLock serializes read-modify-write cycles on the status table
// across processes. Waiting is bounded: on timeout the update proceeds
// unserialized rather than stalling a run. The shard locks still arbitrate
// ownership, so the worst case is a briefly stale row, never a double
// claim.
func (c *Coordinator) withTableLock(fn func()) {
	lockPath := filepath.Join(c.dir, ".table.lock")
	deadline := time.Now().Add(tableLockTimeout)
	locked := false
	for time.Now().Before(deadline) {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			locked = true
			break
		}
		// A table lock never legitimately outlives one rewrite
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > tableLockStaleAfter {
			os.Remove(lockPath)
			continue
		}
		time.Sleep(tableLockRetryDelay)
	}
	if !locked {
		slog.Warn("status table lock timeout, updating unserialized", slog.String("dir", c.dir))
	}

	fn()

	if locked {
		os.Remove(lockPath)
	}
}
