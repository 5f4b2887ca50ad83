package sharding

import (
	"hash/fnv"

	"tshard/internal/domain"
)

// Hashed assigns each test by a stable hash of its identifier. Adding or
// removing other tests never moves a test between shards, at the price of
// rougher balance.
type Hashed struct{}

// NewHashed creates a new Hashed strategy
func NewHashed() *Hashed {
	return &Hashed{}
}

// Name returns the registered strategy name
func (s *Hashed) Name() string {
	return NameHash
}

// Distribute returns the tests whose identifier hashes onto the shard
func (s *Hashed) Distribute(tests []domain.Test, shard domain.ShardDescriptor) []domain.Test {
	if shard.Total < 1 || shard.Index < 1 || shard.Index > shard.Total {
		return nil
	}

	var subset []domain.Test
	for _, test := range tests {
		if shardForKey(test.Key(), shard.Total) == shard.Index {
			subset = append(subset, test)
		}
	}
	return subset
}

// shardForKey maps an identifier onto a 1-based shard id using FNV-1a and
// modulo. The key is the project-relative path, so the mapping holds across
// machines running the same checkout.
func shardForKey(key string, total int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32()%uint32(total)) + 1
}
