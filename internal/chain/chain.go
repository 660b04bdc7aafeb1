// Package chain implements the blockchain state machine (spec §4): block
// storage, UTXO digestion, the hybrid PoW+PoS consensus checks, and reorg.
package chain

import (
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/address"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/internal/utxo"
	"github.com/Klingon-tech/klingnet-chain/internal/vss"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Chain ties block storage, the UTXO set, and the VSS validator registry
// together into the node's blockchain state machine.
type Chain struct {
	mu sync.Mutex // protects state mutation across ProcessBlock/Reorg

	chainID  string
	blocks   *BlockStore
	utxos    *utxo.Store
	registry *vss.Registry
	cache    *address.Cache

	state       State
	genesisHash types.Hash
	rules       config.ConsensusRules

	events    chan Event
	blockInfo *BlockInfoWriter
}

// New recovers (or creates, if fresh) a chain backed by db, utxos, and
// registry. cache is used to resolve witness ownership during block
// validation (pkg/tx.VerifyOwnership).
func New(chainID string, db storage.DB, utxos *utxo.Store, registry *vss.Registry, cache *address.Cache) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if utxos == nil {
		return nil, fmt.Errorf("utxo store is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("vss registry is nil")
	}

	blocks := NewBlockStore(db)

	tipHash, height, supply, err := blocks.GetTip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}
	cumDiff := blocks.GetCumulativeDifficulty()

	var genesisHash types.Hash
	if genBlk, err := blocks.GetBlockByHeight(0); err == nil {
		genesisHash = genBlk.Hash()
	}

	var tipTimestamp uint64
	if tipBlk, err := blocks.GetBlock(tipHash); err == nil {
		tipTimestamp = tipBlk.Header.Timestamp
	}

	c := &Chain{
		chainID:  chainID,
		blocks:   blocks,
		utxos:    utxos,
		registry: registry,
		cache:    cache,
		state: State{
			TipHash:              tipHash,
			Height:               height,
			Supply:               supply,
			CumulativeDifficulty: cumDiff,
			TipTimestamp:         tipTimestamp,
		},
		genesisHash: genesisHash,
		events:      make(chan Event, 64),
	}

	// A reorg checkpoint left behind means the node crashed mid-rebuild;
	// the UTXO/VSS state may be half-applied. Rebuild from genesis,
	// trusting every already-indexed block (it was accepted before the
	// crash, so re-running consensus checks on it is redundant).
	if _, found := blocks.GetReorgCheckpoint(); found {
		if err := c.RebuildUTXOs(); err != nil {
			return nil, fmt.Errorf("recover from interrupted reorg: %w", err)
		}
	}

	return c, nil
}

// SetConsensusRules configures the economic and difficulty parameters used
// for runtime validation. Call this on startup for both fresh and resumed
// chains — genesis initialization sets it automatically.
func (c *Chain) SetConsensusRules(r config.ConsensusRules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = r
}

// SetBlockInfoWriter attaches the blockchain-info CSV sink (spec §6). Optional.
func (c *Chain) SetBlockInfoWriter(w *BlockInfoWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockInfo = w
}

// InitFromGenesis initializes a fresh chain from genesis configuration.
// Returns an error if the chain already has blocks.
func (c *Chain) InitFromGenesis(gen *config.Genesis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsGenesis() {
		return fmt.Errorf("chain already initialized at height %d", c.state.Height)
	}

	blk, err := CreateGenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("create genesis: %w", err)
	}

	// Genesis bypasses PoW/VSS consensus checks — there is no parent to
	// retarget against and no elected validator yet.
	newStakes, _, err := c.utxos.DigestChainPart([]*block.Block{blk})
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	c.registry.NewStakes(newStakes)

	if err := c.blocks.PutBlock(blk); err != nil {
		return fmt.Errorf("store genesis: %w", err)
	}

	var supply uint64
	for _, v := range gen.Alloc {
		supply += v
	}

	hash := blk.Hash()
	c.state = State{TipHash: hash, Height: 0, Supply: supply, TipTimestamp: blk.Header.Timestamp}
	c.genesisHash = hash
	c.rules = gen.Protocol.Consensus

	if err := c.blocks.SetTip(hash, 0, supply); err != nil {
		return fmt.Errorf("set genesis tip: %w", err)
	}
	if err := c.blocks.SetCumulativeDifficulty(0); err != nil {
		return fmt.Errorf("set genesis cumulative difficulty: %w", err)
	}

	if c.blockInfo != nil {
		if err := c.blockInfo.Append(blk, 0, 0); err != nil {
			return fmt.Errorf("write genesis blockchain-info row: %w", err)
		}
	}
	c.emit(Event{Type: EventFinalizedBlock, FinalizedBlock: blk})

	return nil
}

// State returns a copy of the current chain state.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetBlock retrieves a block by its hash.
func (c *Chain) GetBlock(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlock(hash)
}

// GetBlockByHeight retrieves a block by its height.
func (c *Chain) GetBlockByHeight(height uint64) (*block.Block, error) {
	return c.blocks.GetBlockByHeight(height)
}

// Height returns the current chain height.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Height
}

// TipHash returns the hash of the current chain tip.
func (c *Chain) TipHash() types.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TipHash
}

// TipTimestamp returns the wall-clock timestamp of the current tip block.
func (c *Chain) TipTimestamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TipTimestamp
}

// Supply returns the total coins in circulation.
func (c *Chain) Supply() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Supply
}

// Rules returns the consensus rules currently in effect.
func (c *Chain) Rules() config.ConsensusRules {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules
}

// Registry exposes the VSS validator registry, for diagnostics and the
// miner's own signer-eligibility checks.
func (c *Chain) Registry() *vss.Registry {
	return c.registry
}

// GetTransaction looks up a confirmed transaction by hash via the tx index.
func (c *Chain) GetTransaction(hash types.Hash) (*tx.Transaction, error) {
	_, blockHash, err := c.blocks.GetTxLocation(hash)
	if err != nil {
		return nil, err
	}
	blk, err := c.blocks.GetBlock(blockHash)
	if err != nil {
		return nil, fmt.Errorf("load block for tx: %w", err)
	}
	for _, t := range blk.Transactions {
		if t.HashID() == hash {
			return t, nil
		}
	}
	return nil, fmt.Errorf("tx %s not found in block %s (index corrupt)", hash, blockHash)
}
