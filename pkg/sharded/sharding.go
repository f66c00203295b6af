package sharded

import "hash/fnv"

// shardIndex maps key onto one of numShards shards using FNV-1a.
// numShards must be a power of two.
func shardIndex(key string, numShards int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() & uint32(numShards-1))
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
