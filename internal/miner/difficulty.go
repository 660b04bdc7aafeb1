// Package miner implements the proof-of-work nonce search (spec §4.9): a
// worker pool that hashes candidate preimages supplied by the chain until
// one satisfies the bit-level difficulty predicate, or the search is
// cancelled because a new candidate has replaced the one in flight.
package miner

import "github.com/Klingon-tech/klingnet-chain/pkg/types"

// MeetsDifficulty reports whether hash satisfies difficulty d: its binary
// expansion must start with zeros = d/16 zero bits, and the 5 bits that
// follow, read as an unsigned integer, must be >= adjust = d%16. This
// gives a granular 16-step difficulty between each whole leading-zero bit.
func MeetsDifficulty(hash types.Hash, d uint64) bool {
	zeros := int(d / 16)
	adjust := d % 16

	for i := 0; i < zeros; i++ {
		if bitAt(hash, i) != 0 {
			return false
		}
	}

	var next5 uint64
	for i := 0; i < 5; i++ {
		next5 = next5<<1 | uint64(bitAt(hash, zeros+i))
	}
	return next5 >= adjust
}

// bitAt returns the pos-th bit of hash, counting from the most significant
// bit of hash[0] as position 0. Positions past the end of the hash read
// as zero, so MeetsDifficulty stays well-defined for difficulties whose
// zeros+5 window runs past 256 bits.
func bitAt(h types.Hash, pos int) byte {
	byteIdx := pos / 8
	if byteIdx >= len(h) {
		return 0
	}
	bitIdx := 7 - pos%8
	return (h[byteIdx] >> bitIdx) & 1
}

// RetargetDifficulty applies the ±1-per-period retarget rule (spec §4.10):
// if the measured median inter-block time over the last period ran faster
// than target, difficulty rises by one step; if slower, it falls by one
// step. The result is clamped to [min, max] and never moves more than 1.
func RetargetDifficulty(current uint64, medianBlockTime, targetBlockTime int64, min, max uint64) uint64 {
	next := current
	switch {
	case medianBlockTime < targetBlockTime:
		next++
	case medianBlockTime > targetBlockTime:
		if next > 0 {
			next--
		}
	}
	if next < min {
		next = min
	}
	if next > max {
		next = max
	}
	return next
}
