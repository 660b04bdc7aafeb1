package utxo

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Commitment computes a merkle root over all UTXOs in the store.
// Each UTXO is hashed deterministically, the hashes are sorted, and
// a merkle tree is built from them. Returns a zero hash for an empty set.
func Commitment(store *Store) (types.Hash, error) {
	var hashes []types.Hash

	err := store.ForEach(func(u *UTXO) error {
		hashes = append(hashes, hashUTXO(u))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}

	if len(hashes) == 0 {
		return types.Hash{}, nil
	}

	// Sort for deterministic ordering (map iteration order varies).
	sort.Slice(hashes, func(i, j int) bool {
		return hashLess(hashes[i], hashes[j])
	})

	return block.ComputeMerkleRoot(hashes), nil
}

// hashUTXO produces a deterministic BLAKE3 hash of a UTXO.
// Format: height(8) | txIndex(4) | outputIndex(4) | amount(8) | addrType(1) | addrHash(20) | ruleType(1)
func hashUTXO(u *UTXO) types.Hash {
	var buf []byte
	buf = binary.LittleEndian.AppendUint64(buf, u.Anchor.Height)
	buf = binary.LittleEndian.AppendUint32(buf, u.Anchor.TxIndex)
	buf = binary.LittleEndian.AppendUint32(buf, u.Anchor.OutputIndex)
	buf = binary.LittleEndian.AppendUint64(buf, u.Amount)
	buf = append(buf, byte(u.Address.Type))
	buf = append(buf, u.Address.Hash[:]...)
	buf = append(buf, byte(u.Rule.Type))
	return crypto.DiagnosticHash(buf)
}

func hashLess(a, b types.Hash) bool {
	for i := 0; i < types.HashSize; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
