package block

import (
	"bytes"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Block version constants.
const (
	CurrentVersion = 1 // The current block version produced by this software.
	MaxVersion     = 1 // Bump when a fork introduces a new block version.
)

// Validate checks block structure and internal consistency: shape,
// merkle root, canonical tx ordering, and per-tx structural conformity
// (spec §4.6). It does not touch the UTXO set, difficulty predicate, or
// reward schedule — those are the digestion layer's responsibility.
func (b *Block) Validate() error {
	if b.Header == nil {
		return kind.Wrap(kind.Malformed, fmt.Errorf("block has nil header"))
	}

	if b.Header.Version < 1 || b.Header.Version > MaxVersion {
		return kind.Wrap(kind.Malformed, fmt.Errorf("unsupported block version %d, want 1..%d", b.Header.Version, MaxVersion))
	}

	if b.Header.Timestamp == 0 {
		return kind.Wrap(kind.Malformed, fmt.Errorf("block timestamp is zero"))
	}

	if len(b.Transactions) < 2 {
		return kind.Wrap(kind.Malformed, fmt.Errorf("block must carry at least a coinbase and a PoS-reward transaction, got %d", len(b.Transactions)))
	}
	if len(b.Transactions) > config.MaxBlockTxs {
		return kind.Wrap(kind.Malformed, fmt.Errorf("%d txs, max %d", len(b.Transactions), config.MaxBlockTxs))
	}

	blockSize := len(b.Header.SigningBytes())
	for _, t := range b.Transactions {
		blockSize += t.EncodedLen()
	}
	if blockSize > config.MaxBlockSize {
		return kind.Wrap(kind.Malformed, fmt.Errorf("block is %d bytes, max %d", blockSize, config.MaxBlockSize))
	}

	// Txs[0] is the PoW coinbase, Txs[1] the PoS-reward; both carry the
	// zero-anchor marker. No other transaction may.
	if !b.Transactions[0].IsSpecial() {
		return kind.Wrap(kind.Malformed, fmt.Errorf("tx 0 must be the coinbase transaction"))
	}
	if !b.Transactions[1].IsSpecial() {
		return kind.Wrap(kind.Malformed, fmt.Errorf("tx 1 must be the PoS-reward transaction"))
	}
	for i, t := range b.Transactions[2:] {
		if t.IsSpecial() {
			return kind.Wrap(kind.Malformed, fmt.Errorf("tx %d: only tx 0 and tx 1 may carry the zero-anchor marker", i+2))
		}
	}

	txHashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		txHashes[i] = t.HashID()
	}
	expectedRoot := ComputeMerkleRoot(txHashes)
	if b.Header.MerkleRoot != expectedRoot {
		return kind.Wrap(kind.Malformed, fmt.Errorf("merkle root mismatch: header=%s computed=%s", b.Header.MerkleRoot, expectedRoot))
	}

	// Canonical ordering: coinbase, then PoS-reward, then remaining txs
	// sorted by id ascending.
	for i := 3; i < len(txHashes); i++ {
		if bytes.Compare(txHashes[i-1][:], txHashes[i][:]) >= 0 {
			return kind.Wrap(kind.Malformed, fmt.Errorf("transactions not in canonical order: tx %d id >= tx %d id", i-1, i))
		}
	}

	for i, t := range b.Transactions {
		if err := tx.ValidateConformity(t); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	// Block-level double-spend (spec §4.6 stage 6): no two user
	// transactions may share an anchor.
	spent := make(map[types.Anchor]int, len(b.Transactions))
	for i, t := range b.Transactions {
		if t.IsSpecial() {
			continue
		}
		for _, anchor := range t.Inputs {
			if prevTx, exists := spent[anchor]; exists {
				return kind.Wrap(kind.DoubleSpend, fmt.Errorf("tx %d: anchor %s also spent in tx %d", i, anchor, prevTx))
			}
			spent[anchor] = i
		}
	}

	return nil
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
