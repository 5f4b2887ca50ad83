package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tshard/internal/domain"
)

// SaveShard writes one shard's results and failures to that shard's JSON file.
func (s *JSONStorage) SaveShard(shard domain.ShardDescriptor, strategy string, results []domain.TestResult, failures []domain.TestFailure, duration time.Duration) error {
	passed := 0
	failed := 0
	for _, r := range results {
		if r.Success {
			passed++
		} else {
			failed++
		}
	}

	output := domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			ShardIndex:      shard.Index,
			Shards:          shard.Total,
			Strategy:        strategy,
			TotalTestFiles:  len(results),
			FailedTestFiles: failed,
			PassedTestFiles: passed,
			FailedTestCases: len(failures),
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Timestamp:       time.Now().Format(time.RFC3339),
		},
		Details: failures,
	}

	return s.write(s.cfg.GetShardOutputPath(shard.Index), &output)
}

// MergeShardOutputs reads every per-shard results file, combines them into
// one aggregate output, writes it to the configured JSON output file and
// returns it. Shard files that are missing or unreadable are skipped with a
// warning, so a crashed shard does not block reporting on the rest.
func (s *JSONStorage) MergeShardOutputs(runID string, shards int, strategy string, duration time.Duration) (*domain.TestResultsOutput, error) {
	merged := &domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			RunID:           runID,
			Shards:          shards,
			Strategy:        strategy,
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Timestamp:       time.Now().Format(time.RFC3339),
		},
		Details: []domain.TestFailure{},
	}

	for i := 1; i <= shards; i++ {
		path := s.cfg.GetShardOutputPath(i)
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping shard results",
				slog.Int("shard", i),
				slog.Any("error", err))
			continue
		}
		var out domain.TestResultsOutput
		if err := json.Unmarshal(data, &out); err != nil {
			slog.Warn("skipping unreadable shard results",
				slog.Int("shard", i),
				slog.Any("error", err))
			continue
		}

		merged.Meta.TotalTestFiles += out.Meta.TotalTestFiles
		merged.Meta.FailedTestFiles += out.Meta.FailedTestFiles
		merged.Meta.PassedTestFiles += out.Meta.PassedTestFiles
		merged.Details = append(merged.Details, out.Details...)
	}
	merged.Meta.FailedTestCases = len(merged.Details)

	if err := s.SaveOutput(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Load reads the last merged test results from the configured JSON output file.
func (s *JSONStorage) Load() (*domain.TestResultsOutput, error) {
	path := s.cfg.GetOutputPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var output domain.TestResultsOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &output, nil
}

// SaveOutput writes the full output to the configured JSON file (e.g. after re-running selected tests).
func (s *JSONStorage) SaveOutput(output *domain.TestResultsOutput) error {
	return s.write(s.cfg.GetOutputPath(), output)
}

func (s *JSONStorage) write(path string, output *domain.TestResultsOutput) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
