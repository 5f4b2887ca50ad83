package sharding

import (
	"tshard/internal/domain"
	"tshard/internal/history"
)

// DefaultCostMillis is the assumed duration of a test with no recorded
// history yet
const DefaultCostMillis = 1000

// Smart equalizes predicted runtime per shard using recorded durations from
// earlier runs. Tests never seen before count as DefaultCostMillis. With no
// history at all every test weighs the same and the assignment degrades to
// an even spread.
type Smart struct {
	store *history.Store
}

// NewSmart creates a new Smart strategy reading from the given history
// store. A nil store behaves like an empty one.
func NewSmart(store *history.Store) *Smart {
	return &Smart{store: store}
}

// Name returns the registered strategy name
func (s *Smart) Name() string {
	return NameSmart
}

// Distribute assigns tests longest-expected-first onto the least-loaded shard
func (s *Smart) Distribute(tests []domain.Test, shard domain.ShardDescriptor) []domain.Test {
	return assignLargestFirst(tests, shard, s.expectedCost)
}

func (s *Smart) expectedCost(test domain.Test) int64 {
	if s.store == nil {
		return DefaultCostMillis
	}
	if millis, ok := s.store.Duration(test.Key()); ok {
		return millis
	}
	return DefaultCostMillis
}
