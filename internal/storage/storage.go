package storage

import (
	"time"

	"tshard/internal/config"
	"tshard/internal/domain"
)

// Storage persists and loads test run results (e.g. for the faills viewer).
type Storage interface {
	// SaveShard writes one shard's results to its own file next to the
	// aggregate output.
	SaveShard(shard domain.ShardDescriptor, strategy string, results []domain.TestResult, failures []domain.TestFailure, duration time.Duration) error
	// MergeShardOutputs combines the per-shard files into the aggregate
	// output file and returns the merged output.
	MergeShardOutputs(runID string, shards int, strategy string, duration time.Duration) (*domain.TestResultsOutput, error)
	Load() (*domain.TestResultsOutput, error)
	// SaveOutput writes the full output (e.g. after partial re-run updates).
	SaveOutput(output *domain.TestResultsOutput) error
}

// JSONStorage stores results in JSON files under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON paths.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}
