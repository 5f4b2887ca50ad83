package sharding

import "tshard/internal/domain"

// RoundRobin deals tests out by list position: position p goes to shard
// (p mod total)+1. Balanced by count, ignores cost.
type RoundRobin struct{}

// NewRoundRobin creates a new RoundRobin strategy
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Name returns the registered strategy name
func (s *RoundRobin) Name() string {
	return NameRoundRobin
}

// Distribute returns every total-th test starting at the shard's index
func (s *RoundRobin) Distribute(tests []domain.Test, shard domain.ShardDescriptor) []domain.Test {
	if shard.Total < 1 || shard.Index < 1 || shard.Index > shard.Total {
		return nil
	}

	var subset []domain.Test
	for i, test := range tests {
		if i%shard.Total == shard.Index-1 {
			subset = append(subset, test)
		}
	}
	return subset
}
