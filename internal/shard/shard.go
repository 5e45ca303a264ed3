// Package shard provides stable key-to-shard assignment for striped in-memory structures.
package shard

import (
	"hash/fnv"
)

// MaxShards caps the number of shards a structure may be split into.
const MaxShards = 256

// Clamp bounds numShards to [1, MaxShards].
func Clamp(numShards int) int {
	if numShards < 1 {
		return 1
	}
	if numShards > MaxShards {
		return MaxShards
	}
	return numShards
}

// Index returns the shard for key.
// With numShards<=1, every key goes to shard 0.
// With numShards>1, keys are distributed by their FNV-1a hash.
func Index(key string, numShards int) int {
	numShards = Clamp(numShards)
	if numShards == 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numShards))
}
