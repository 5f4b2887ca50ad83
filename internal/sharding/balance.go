package sharding

import (
	"sort"

	"tshard/internal/domain"
)

// assignLargestFirst is the greedy longest-processing-time assignment shared
// by the cost-aware strategies: walk tests by descending cost and place each
// on the currently least-loaded shard. Cost ties keep input order, load ties
// pick the lowest shard index, so every process computes the same partition.
func assignLargestFirst(tests []domain.Test, shard domain.ShardDescriptor, cost func(domain.Test) int64) []domain.Test {
	if shard.Total < 1 || shard.Index < 1 || shard.Index > shard.Total {
		return nil
	}

	type item struct {
		test domain.Test
		cost int64
	}
	items := make([]item, len(tests))
	for i, test := range tests {
		c := cost(test)
		// A zero-cost item would never change shard loads and everything
		// weightless would pile onto shard 1
		if c < 1 {
			c = 1
		}
		items[i] = item{test: test, cost: c}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].cost > items[j].cost
	})

	loads := make([]int64, shard.Total)
	var subset []domain.Test
	for _, it := range items {
		target := 0
		for i := 1; i < len(loads); i++ {
			if loads[i] < loads[target] {
				target = i
			}
		}
		loads[target] += it.cost
		if target == shard.Index-1 {
			subset = append(subset, it.test)
		}
	}
	return subset
}
