package coordination

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"

	"tshard/internal/domain"
)

// tryCreateLock atomically creates a shard lock file. O_EXCL guarantees
// exactly one process wins when several race for the same shard.
func tryCreateLock(path string, rec domain.LockRecord) bool {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		// EEXIST: another process holds the shard
		return false
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		f.Close()
		os.Remove(path)
		return false
	}
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(path)
		return false
	}
	return true
}

// readLock loads the lock record at path
func readLock(path string) (domain.LockRecord, error) {
	var rec domain.LockRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse lock %s: %w", path, err)
	}
	return rec, nil
}

// isStale judges whether an existing lock may be broken. When the lock was
// created on this host the liveness probe is authoritative: a dead owner
// makes the lock stale immediately, a live one keeps it no matter how old it
// is, so shards may run longer than the threshold. Locks that cannot be
// probed, from other hosts or on platforms without signal 0, fall back to
// the age threshold: breaking a healthy claim is worse than waiting it out.
func isStale(path string, staleAfter time.Duration, hostname string, now time.Time) bool {
	rec, err := readLock(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Lock vanished between attempts; nothing to break
			return false
		}
		// Unreadable or torn record: judge by file age alone
		info, statErr := os.Stat(path)
		if statErr != nil {
			return false
		}
		return now.Sub(info.ModTime()) > staleAfter
	}

	if rec.Hostname == hostname && canProbeLiveness() {
		return !processAlive(rec.OwnerPID)
	}
	return rec.Age(now) > staleAfter
}

// processAlive checks whether pid is still running. Signal 0 probes
// existence without delivering anything, the kill -0 trick.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// canProbeLiveness reports whether signal 0 means anything here. On windows
// FindProcess succeeds for any pid, so locks there live until the age
// threshold breaks them.
func canProbeLiveness() bool {
	return runtime.GOOS != "windows"
}
