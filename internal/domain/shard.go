package domain

import (
	"fmt"
	"time"
)

// ShardDescriptor identifies one shard of a partitioned run
type ShardDescriptor struct {
	Index int // 1-based shard id
	Total int // Total number of shards in the run
}

// Validate checks that the descriptor addresses a real shard
func (d ShardDescriptor) Validate() error {
	if d.Total < 1 {
		return fmt.Errorf("shard total must be at least 1, got %d", d.Total)
	}
	if d.Index < 1 || d.Index > d.Total {
		return fmt.Errorf("shard index %d out of range 1..%d", d.Index, d.Total)
	}
	return nil
}

// ShardStatus is the lifecycle state of a shard within a run
type ShardStatus string

const (
	StatusPending   ShardStatus = "pending"
	StatusRunning   ShardStatus = "running"
	StatusCompleted ShardStatus = "completed"
	StatusFailed    ShardStatus = "failed"
)

// Terminal reports whether the status is an end state
func (s ShardStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to the given status is a
// legal lifecycle step. Re-claiming a running shard whose lock was judged
// stale goes through the claim path instead of this guard.
func (s ShardStatus) CanTransition(to ShardStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusRunning
	default:
		return false
	}
}

// ShardRecord is one shard's row in the shared status table
type ShardRecord struct {
	ID        int         `json:"id"`
	Status    ShardStatus `json:"status"`
	OwnerPID  int         `json:"owner_pid,omitempty"`
	StartedAt int64       `json:"started_at,omitempty"` // Unix seconds of the last claim
	EndedAt   int64       `json:"ended_at,omitempty"`   // Unix seconds of the last completion
	ExitCode  int         `json:"exit_code,omitempty"`
	Attempts  int         `json:"attempts,omitempty"` // Number of times the shard was claimed
}

// LockRecord is the content of a shard's lock file
type LockRecord struct {
	OwnerPID  int    `json:"owner_pid"`
	CreatedAt int64  `json:"created_at"` // Unix seconds
	Hostname  string `json:"hostname"`
}

// Age returns how long ago the lock was created
func (l LockRecord) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(l.CreatedAt, 0))
}
