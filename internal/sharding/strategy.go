package sharding

import (
	"fmt"
	"strings"

	"tshard/internal/domain"
	"tshard/internal/history"
)

// Strategy selects the subset of tests one shard executes. Implementations
// are pure: for a fixed test list and total, the subsets of indices 1..Total
// are disjoint and their union is exactly the input. An index outside that
// range selects nothing.
type Strategy interface {
	// Name returns the identifier the strategy is registered under
	Name() string
	// Distribute returns the subset of tests belonging to the given shard
	Distribute(tests []domain.Test, shard domain.ShardDescriptor) []domain.Test
}

// Registered strategy names
const (
	NameRoundRobin   = "round-robin"
	NameHash         = "hash"
	NameSizeBalanced = "size"
	NameSmart        = "smart"
)

// Names returns all registered strategy names
func Names() []string {
	return []string{NameRoundRobin, NameHash, NameSizeBalanced, NameSmart}
}

// ForName creates the strategy registered under name. The history store is
// only consulted by the smart strategy; passing it everywhere keeps the
// call sites uniform.
func ForName(name string, hist *history.Store) (Strategy, error) {
	switch name {
	case NameRoundRobin:
		return NewRoundRobin(), nil
	case NameHash:
		return NewHashed(), nil
	case NameSizeBalanced:
		return NewSizeBalanced(), nil
	case NameSmart, "":
		return NewSmart(hist), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
}

// Plan materializes the full assignment: element i holds the subset of
// shard i+1. Used for previewing a distribution before a run.
func Plan(strategy Strategy, tests []domain.Test, total int) [][]domain.Test {
	if total < 1 {
		return nil
	}
	plan := make([][]domain.Test, total)
	for i := range plan {
		plan[i] = strategy.Distribute(tests, domain.ShardDescriptor{Index: i + 1, Total: total})
	}
	return plan
}
