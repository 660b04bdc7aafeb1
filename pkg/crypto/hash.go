// Package crypto provides cryptographic primitives for klingnet-chain.
package crypto

import (
	"crypto/sha256"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes the canonical consensus hash (SHA-256) of the input data.
// Every transaction id, block hash, and signing digest in the protocol is
// a Hash value.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// HashConcat hashes the concatenation of two hashes. Used for building
// merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// DiagnosticHash computes a BLAKE3-256 hash of the input data. Unlike Hash,
// this is never consensus-critical: it backs the UTXO set's commitment
// digest (internal/utxo), a cross-check value used for corruption
// detection and diagnostics, never for transaction or block identity.
func DiagnosticHash(data []byte) types.Hash {
	return blake3.Sum256(data)
}
