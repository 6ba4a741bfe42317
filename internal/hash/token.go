// Package hash provides identity tokens for partition readers.
package hash

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// ReaderToken derives the registry token of a partition reader.
//
// The partition id is folded first (seeded by the supervisor's seed), then the
// spawn generation, using the previous hash as the seed. Restarting a reader for
// the same partition therefore yields a different token, while the same
// (seed, partition, generation) triple is always stable.
//
// Parameters:
//   - seed: Per-supervisor seed (0 means unseeded)
//   - partition: Partition identity
//   - generation: Monotonic spawn counter of the supervisor
//
// Returns:
//   - uint64: Registry token
func ReaderToken(seed uint64, partition string, generation uint64) uint64 {
	var h uint64
	if seed != 0 {
		h = xxh3.HashStringSeed(partition, seed)
	} else {
		h = xxh3.HashString(partition)
	}

	var ib [8]byte
	binary.LittleEndian.PutUint64(ib[:], generation)

	return xxh3.HashSeed(ib[:], h)
}
