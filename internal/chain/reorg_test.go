package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// mineBlockExtending builds and seals a block extending parent directly,
// bypassing AssembleCandidate's dependency on the chain's active tip so
// tests can grow a side branch the chain hasn't adopted yet.
func mineBlockExtending(t *testing.T, c *Chain, parent *block.Block, minerAddr types.Address, round uint64) *block.Block {
	t.Helper()

	height := parent.Header.Height + 1
	timestamp := parent.Header.Timestamp + 1

	coinbase := &tx.Transaction{
		Version: 1,
		Inputs:  []types.Anchor{{}},
		Outputs: []tx.Output{{Amount: 50, Address: minerAddr, Rule: types.Rule{Type: types.RuleSig}}},
	}
	coinbase.SetID()
	posReward := &tx.Transaction{
		Version: 1,
		Inputs:  []types.Anchor{{}},
		Outputs: []tx.Output{{Amount: 10, Address: genesisTreasury, Rule: types.Rule{Type: types.RuleSig}}},
	}
	posReward.SetID()

	txs := []*tx.Transaction{coinbase, posReward}
	txHashes := make([]types.Hash, len(txs))
	for i, t2 := range txs {
		txHashes[i] = t2.HashID()
	}

	header := &block.Header{
		Version:      block.CurrentVersion,
		PrevHash:     parent.Hash(),
		MerkleRoot:   block.ComputeMerkleRoot(txHashes),
		Timestamp:    timestamp,
		PosTimestamp: timestamp,
		Height:       height,
		Difficulty:   c.expectedDifficulty(height),
		Legitimacy:   round,
	}
	cand := block.NewBlock(header, txs)

	m := miner.New(1)
	full := cand.Header.SigningBytes()
	preimage := full[:len(full)-8]
	result, err := m.Search(context.Background(), preimage, cand.Header.Difficulty)
	if err != nil {
		t.Fatalf("search nonce: %v", err)
	}

	sealed := *cand.Header
	sealed.Nonce = result.Nonce
	return block.NewBlock(&sealed, cand.Transactions)
}

func TestProcessBlock_SideBranchTieDoesNotReorg(t *testing.T) {
	c, minerAddr := newTestChain(t)
	genesis, err := c.GetBlockByHeight(0)
	if err != nil {
		t.Fatalf("GetBlockByHeight(0): %v", err)
	}

	a1 := mineBlockExtending(t, c, genesis, minerAddr, 1)
	b1 := mineBlockExtending(t, c, genesis, minerAddr, 2)

	if err := c.ProcessBlock(a1, 0); err != nil {
		t.Fatalf("process a1: %v", err)
	}
	if err := c.ProcessBlock(b1, 0); err != nil {
		t.Fatalf("process b1 (side branch): %v", err)
	}

	if c.TipHash() != a1.Hash() {
		t.Error("equal-work side branch should not have displaced the current tip")
	}
	if c.Height() != 1 {
		t.Errorf("height = %d, want 1", c.Height())
	}
}

func TestProcessBlock_LongerBranchReorgs(t *testing.T) {
	c, minerAddr := newTestChain(t)
	genesis, err := c.GetBlockByHeight(0)
	if err != nil {
		t.Fatalf("GetBlockByHeight(0): %v", err)
	}

	a1 := mineBlockExtending(t, c, genesis, minerAddr, 1)
	if err := c.ProcessBlock(a1, 0); err != nil {
		t.Fatalf("process a1: %v", err)
	}

	b1 := mineBlockExtending(t, c, genesis, minerAddr, 2)
	if err := c.ProcessBlock(b1, 0); err != nil {
		t.Fatalf("process b1 (side branch): %v", err)
	}
	b2 := mineBlockExtending(t, c, b1, minerAddr, 3)
	if err := c.ProcessBlock(b2, 0); err != nil {
		t.Fatalf("process b2 (triggers reorg): %v", err)
	}

	if c.Height() != 2 {
		t.Fatalf("height = %d, want 2 after reorg", c.Height())
	}
	if c.TipHash() != b2.Hash() {
		t.Error("chain did not reorg onto the heavier branch")
	}
	got, err := c.GetBlockByHeight(1)
	if err != nil {
		t.Fatalf("GetBlockByHeight(1): %v", err)
	}
	if got.Hash() != b1.Hash() {
		t.Error("height index at 1 should now point to the winning branch's block")
	}
}

func TestCollectBranch_RejectsForeignGenesis(t *testing.T) {
	c, minerAddr := newTestChain(t)

	foreignGenesis := &block.Block{
		Header: &block.Header{
			Version:    block.CurrentVersion,
			Timestamp:  1,
			Difficulty: 4,
		},
		Transactions: []*tx.Transaction{},
	}
	foreignGenesis.Header.MerkleRoot = block.ComputeMerkleRoot(nil)
	if err := c.blocks.StoreBlock(foreignGenesis); err != nil {
		t.Fatalf("store foreign genesis: %v", err)
	}

	foreignChild := mineBlockExtending(t, c, foreignGenesis, minerAddr, 1)
	if err := c.blocks.StoreBlock(foreignChild); err != nil {
		t.Fatalf("store foreign child: %v", err)
	}

	_, _, err := c.collectBranch(foreignChild.Hash())
	if !errors.Is(err, ErrGenesisReorg) {
		t.Errorf("collectBranch(foreign branch) = %v, want ErrGenesisReorg", err)
	}
}
