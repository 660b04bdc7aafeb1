package chain

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// MempoolSelector selects fee-paying transactions for block inclusion.
// internal/mempool.Pool satisfies this.
type MempoolSelector interface {
	SelectForBlock(limit int) []*tx.Transaction
	GetFee(txHash types.Hash) uint64
}

// AssembleCandidate builds an unsealed block extending the current tip:
// a coinbase paying minerAddr, a PoS-reward paying whoever the VSS draw
// elects for round, and as many fee-paying transactions as pool offers.
// The returned block's Nonce is zero and ValidatorSig is nil — pass it to
// Propose to find a satisfying nonce, then Sign to attach the validator
// signature, before handing it to ProcessBlock.
func (c *Chain) AssembleCandidate(pool MempoolSelector, minerAddr types.Address, round uint64) (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsGenesis() {
		return nil, fmt.Errorf("chain has no genesis block yet")
	}

	height := c.state.Height + 1
	timestamp := c.state.TipTimestamp + 1
	if now := uint64(time.Now().Unix()); now > timestamp {
		timestamp = now
	}

	var selected []*tx.Transaction
	var totalFees uint64
	if pool != nil {
		selected = pool.SelectForBlock(config.MaxBlockTxs - 2) // reserve the coinbase + pos-reward slots
		for _, t := range selected {
			totalFees += pool.GetFee(t.HashID())
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		hi, hj := selected[i].HashID(), selected[j].HashID()
		return bytes.Compare(hi[:], hj[:]) < 0
	})

	coinbaseReward := capToSupply(coinbaseRewardAt(c.rules, height), c.state.Supply, c.rules.MaxSupply)
	if coinbaseReward == 0 {
		coinbaseReward = rewardDust
	}
	posReward := capToSupply(posRewardAt(c.rules, height), c.state.Supply+coinbaseReward, c.rules.MaxSupply)
	if posReward == 0 {
		posReward = rewardDust
	}

	signer := c.registry.SelectSigner(c.state.TipHash, round, c.rules.ValidatorStake)
	if signer.IsZero() {
		// No eligible validator yet: fall back to the same treasury
		// placeholder genesis uses, so the slot still has a valid recipient.
		signer = genesisTreasury
	}

	coinbase := &tx.Transaction{
		Version: 1,
		Inputs:  []types.Anchor{{}},
		Outputs: []tx.Output{{Amount: coinbaseReward + totalFees, Address: minerAddr, Rule: types.Rule{Type: types.RuleSig}}},
	}
	coinbase.SetID()

	posRewardTx := &tx.Transaction{
		Version: 1,
		Inputs:  []types.Anchor{{}},
		Outputs: []tx.Output{{Amount: posReward, Address: signer, Rule: types.Rule{Type: types.RuleSig}}},
	}
	posRewardTx.SetID()

	txs := make([]*tx.Transaction, 0, 2+len(selected))
	txs = append(txs, coinbase, posRewardTx)
	txs = append(txs, selected...)

	txHashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		txHashes[i] = t.HashID()
	}

	header := &block.Header{
		Version:      block.CurrentVersion,
		PrevHash:     c.state.TipHash,
		MerkleRoot:   block.ComputeMerkleRoot(txHashes),
		Timestamp:    timestamp,
		PosTimestamp: uint64(time.Now().Unix()),
		Height:       height,
		Difficulty:   c.expectedDifficulty(height),
		Legitimacy:   round,
	}

	return block.NewBlock(header, txs), nil
}

// Propose searches for a nonce satisfying cand's difficulty using m, and
// returns a new block with that nonce set. cand itself is left untouched.
//
// internal/miner.Miner.Search hashes preimage||nonce directly (not
// Header.Hash()'s own preimage, which already ends in the nonce field) —
// passing SigningBytes() with its trailing 8 nonce bytes trimmed makes
// Search's own nonce-append reproduce exactly the bytes Header.Hash()
// would hash once Nonce is set to the value Search finds.
func (c *Chain) Propose(ctx context.Context, cand *block.Block, m *miner.Miner) (*block.Block, error) {
	full := cand.Header.SigningBytes()
	preimage := full[:len(full)-8]

	result, err := m.Search(ctx, preimage, cand.Header.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("search nonce: %w", err)
	}

	sealed := *cand.Header
	sealed.Nonce = result.Nonce
	return block.NewBlock(&sealed, cand.Transactions), nil
}

// Sign attaches the validator's signature over blk's hash. Call this
// after Propose, once Nonce is fixed, so the signature covers the final
// header.
func (c *Chain) Sign(blk *block.Block, key *crypto.PrivateKey) error {
	hash := blk.Hash()
	sig, err := key.Sign(hash.Bytes())
	if err != nil {
		return fmt.Errorf("sign block: %w", err)
	}
	blk.Header.ValidatorSig = sig
	return nil
}
