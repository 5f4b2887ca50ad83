package sharding

import (
	"testing"

	"tshard/internal/domain"
)

func TestRoundRobin_ConcreteDistribution(t *testing.T) {
	input := mkTests("a", "b", "c", "d", "e", "f")
	strategy := NewRoundRobin()

	expected := map[int][]string{
		1: {"a", "d"},
		2: {"b", "e"},
		3: {"c", "f"},
	}

	for index, want := range expected {
		subset := strategy.Distribute(input, domain.ShardDescriptor{Index: index, Total: 3})
		if len(subset) != len(want) {
			t.Fatalf("shard %d: got %d tests, want %d", index, len(subset), len(want))
		}
		for i, rel := range want {
			if subset[i].FilePath != rel {
				t.Errorf("shard %d position %d: got %s, want %s", index, i, subset[i].FilePath, rel)
			}
		}
	}
}

func TestRoundRobin_MoreShardsThanTests(t *testing.T) {
	input := mkTests("a", "b")
	strategy := NewRoundRobin()

	for index := 1; index <= 5; index++ {
		subset := strategy.Distribute(input, domain.ShardDescriptor{Index: index, Total: 5})
		if index <= 2 && len(subset) != 1 {
			t.Errorf("shard %d: got %d tests, want 1", index, len(subset))
		}
		if index > 2 && len(subset) != 0 {
			t.Errorf("shard %d: got %d tests, want none", index, len(subset))
		}
	}
}
