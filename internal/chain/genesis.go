package chain

import (
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// genesisRewardUnit is the nominal amount minted by the genesis block's
// PoS-reward slot, and by its coinbase when the genesis allocation is
// empty. Genesis has no elected validator (the VSS registry is empty
// until the first real block stakes something) and an empty allocation
// still needs a shape-conformant coinbase, since pkg/tx.ValidateConformity
// rejects zero-amount outputs even on special transactions.
const genesisRewardUnit = 1

// genesisTreasury is the protocol-reserved sink address that receives the
// genesis block's placeholder PoS-reward output, and its coinbase output
// when the allocation map is empty.
var genesisTreasury = types.Address{Type: types.AddressProtocol}

// CreateGenesisBlock builds the height-0 block for gen: a coinbase
// transaction minting the genesis allocation, followed by a placeholder
// PoS-reward transaction. Genesis bypasses the PoW/VSS consensus checks
// that every later block goes through (see Chain.InitFromGenesis).
//
// A coinbase (like any special transaction) may carry exactly one output
// (spec §4.6 stage 1's "coinbase shape: 1 input marker, 1 output"), so
// gen.Alloc must name at most one recipient; further distribution happens
// via ordinary transfer transactions once the chain is running.
func CreateGenesisBlock(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis config is nil")
	}

	coinbase, err := buildGenesisCoinbase(gen.Alloc)
	if err != nil {
		return nil, fmt.Errorf("build genesis coinbase: %w", err)
	}
	posReward := buildGenesisPosReward()

	txs := []*tx.Transaction{coinbase, posReward}
	txHashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		txHashes[i] = t.HashID()
	}

	header := &block.Header{
		Version:      block.CurrentVersion,
		PrevHash:     types.Hash{},
		MerkleRoot:   block.ComputeMerkleRoot(txHashes),
		Timestamp:    gen.Timestamp,
		PosTimestamp: gen.Timestamp,
		Height:       0,
		Difficulty:   gen.Protocol.Consensus.InitialDifficulty,
	}

	return block.NewBlock(header, txs), nil
}

// buildGenesisCoinbase mints the single genesis allocation, if any, to a
// sorted-first recipient. An alloc with more than one recipient is
// rejected up front — sort is kept only so the zero/one-entry case is
// deterministic across implementations reading the same genesis file.
func buildGenesisCoinbase(alloc map[string]uint64) (*tx.Transaction, error) {
	if len(alloc) > 1 {
		return nil, fmt.Errorf("genesis coinbase must have exactly one output, got %d allocations", len(alloc))
	}

	addrs := make([]string, 0, len(alloc))
	for a := range alloc {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	var out tx.Output
	if len(addrs) == 1 {
		addrStr := addrs[0]
		amount := alloc[addrStr]
		if amount == 0 {
			return nil, fmt.Errorf("alloc address %q: amount must be positive", addrStr)
		}
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("alloc address %q: %w", addrStr, err)
		}
		out = tx.Output{Amount: amount, Address: addr, Rule: types.Rule{Type: types.RuleSig}}
	} else {
		out = tx.Output{Amount: genesisRewardUnit, Address: genesisTreasury, Rule: types.Rule{Type: types.RuleSig}}
	}

	coinbase := &tx.Transaction{
		Version: 1,
		Inputs:  []types.Anchor{{}},
		Outputs: []tx.Output{out},
	}
	coinbase.SetID()
	return coinbase, nil
}

func buildGenesisPosReward() *tx.Transaction {
	posReward := &tx.Transaction{
		Version: 1,
		Inputs:  []types.Anchor{{}},
		Outputs: []tx.Output{{
			Amount:  genesisRewardUnit,
			Address: genesisTreasury,
			Rule:    types.Rule{Type: types.RuleSig},
		}},
	}
	posReward.SetID()
	return posReward
}
