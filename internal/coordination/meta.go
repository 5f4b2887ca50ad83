package coordination

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tshard/internal/domain"
)

const (
	metaFileName      = "run-meta.json"
	mergeLockFileName = ".merge.lock"
)

// RunMeta pins the parameters a coordination directory was set up for. A
// status table written for one shard count is meaningless under another:
// shard 2 of 5 and shard 2 of 3 hold different tests.
type RunMeta struct {
	Total     int    `json:"total"`
	Strategy  string `json:"strategy"`
	CreatedAt int64  `json:"created_at"`
}

func (c *Coordinator) metaPath() string {
	return filepath.Join(c.dir, metaFileName)
}

// WriteRunMeta records this run's parameters in the coordination directory.
// Concurrent writers racing with the same parameters land on identical
// content, so the atomic replace makes the race harmless.
func (c *Coordinator) WriteRunMeta(strategy string) error {
	meta := RunMeta{
		Total:     c.total,
		Strategy:  strategy,
		CreatedAt: time.Now().Unix(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run meta: %w", err)
	}
	return c.replaceFile(c.metaPath(), data, ".meta-*")
}

// ReadRunMeta returns the directory's recorded parameters, or nil when no
// run has written them yet.
func (c *Coordinator) ReadRunMeta() (*RunMeta, error) {
	data, err := os.ReadFile(c.metaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run meta: %w", err)
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse run meta: %w", err)
	}
	return &meta, nil
}

// CheckRunMeta verifies the directory's recorded parameters match this
// process's. A missing meta file passes: the process that starts a run is
// expected to write it.
func (c *Coordinator) CheckRunMeta(strategy string) error {
	meta, err := c.ReadRunMeta()
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}

	if meta.Total != c.total {
		return fmt.Errorf("coordination dir was set up for %d shards, this run uses %d", meta.Total, c.total)
	}
	if strategy != "" && meta.Strategy != "" && meta.Strategy != strategy {
		return fmt.Errorf("coordination dir was set up with strategy %q, this run uses %q", meta.Strategy, strategy)
	}
	return nil
}

// ClaimMergeLock elects the one process allowed to merge coverage for this
// run. The first caller wins; the lock lives until Cleanup.
func (c *Coordinator) ClaimMergeLock() bool {
	rec := domain.LockRecord{
		OwnerPID:  c.pid,
		CreatedAt: time.Now().Unix(),
		Hostname:  c.hostname,
	}
	return tryCreateLock(filepath.Join(c.dir, mergeLockFileName), rec)
}
