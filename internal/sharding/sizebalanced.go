package sharding

import (
	"os"

	"tshard/internal/domain"
)

// SizeBalanced equalizes the total byte size of test files per shard, a
// crude but history-free stand-in for runtime cost.
type SizeBalanced struct{}

// NewSizeBalanced creates a new SizeBalanced strategy
func NewSizeBalanced() *SizeBalanced {
	return &SizeBalanced{}
}

// Name returns the registered strategy name
func (s *SizeBalanced) Name() string {
	return NameSizeBalanced
}

// Distribute assigns tests largest-file-first onto the least-loaded shard
func (s *SizeBalanced) Distribute(tests []domain.Test, shard domain.ShardDescriptor) []domain.Test {
	return assignLargestFirst(tests, shard, fileSize)
}

// fileSize weighs a test by its file size. Unreadable files weigh the
// minimum so they still spread across shards.
func fileSize(test domain.Test) int64 {
	info, err := os.Stat(test.Path)
	if err != nil {
		return 1
	}
	return info.Size()
}
