package chain

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/internal/utxo"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// ErrForkDetected indicates a valid block whose parent is known but is not
// the current tip. The caller should decide whether to reorg.
var ErrForkDetected = fmt.Errorf("fork detected")

// ErrReorgTooDeep is returned when a reorg exceeds MaxReorgDepth.
var ErrReorgTooDeep = fmt.Errorf("reorg too deep")

// ErrGenesisReorg is returned when a reorg would replace the genesis block.
var ErrGenesisReorg = fmt.Errorf("reorg would replace genesis block")

// MaxReorgDepth is the maximum number of blocks a reorg's new branch may
// carry above the fork point.
const MaxReorgDepth = 1000

// Reorg switches the active chain to the branch ending at newTipHash, if
// that branch carries more cumulative work than the current tip. Callers
// must not be holding c.mu.
func (c *Chain) Reorg(newTipHash types.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reorgLocked(newTipHash)
}

// reorgLocked is Reorg's body, called both from the public Reorg entry and
// from ProcessBlock once it has already classified an incoming block as a
// side branch — both hold c.mu for their whole call, so reorgLocked must
// never try to re-acquire it.
func (c *Chain) reorgLocked(newTipHash types.Hash) error {
	newBranch, forkHeight, err := c.collectBranch(newTipHash)
	if err != nil {
		return err
	}

	var newBranchWork uint64
	for _, blk := range newBranch {
		newBranchWork += blk.Header.Difficulty
	}
	var oldBranchWork uint64
	for h := forkHeight + 1; h <= c.state.Height; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			break
		}
		oldBranchWork += blk.Header.Difficulty
	}
	if newBranchWork <= oldBranchWork {
		return nil // current chain still wins, nothing to do
	}

	oldTipHash := c.state.TipHash
	prevState := c.state

	// Make the new branch visible by height so rebuildFrom's GetBlockByHeight
	// walk follows it, not the old chain.
	for _, blk := range newBranch {
		if err := c.blocks.PutBlock(blk); err != nil {
			return fmt.Errorf("index new branch block %s: %w", blk.Hash(), err)
		}
	}
	newTipHeight := forkHeight + uint64(len(newBranch))
	for h := newTipHeight + 1; h <= prevState.Height; h++ {
		if err := c.blocks.DeleteHeightIndex(h); err != nil {
			return fmt.Errorf("truncate stale height index %d: %w", h, err)
		}
	}

	if err := c.blocks.PutReorgCheckpoint(forkHeight); err != nil {
		return fmt.Errorf("set reorg checkpoint: %w", err)
	}

	if err := c.rebuildFrom(forkHeight); err != nil {
		// New branch doesn't validate after all (or digestion failed
		// partway through). Restore the old branch's height index and
		// trust-replay it back to a known-good state before surfacing
		// the error.
		if rerr := c.restoreBranchIndex(oldTipHash, forkHeight, newTipHeight); rerr != nil {
			return kind.Wrap(kind.ReorgRejected, fmt.Errorf("reorg failed (%v) and recovery failed: %w", err, rerr))
		}
		c.state = prevState
		if rerr := c.rebuildFrom(prevState.Height); rerr != nil {
			return kind.Wrap(kind.ReorgRejected, fmt.Errorf("reorg failed (%v) and state recovery failed: %w", err, rerr))
		}
		return kind.Wrap(kind.ReorgRejected, err)
	}

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("clear reorg checkpoint: %w", err)
	}

	c.emit(Event{Type: EventFinalizedBlock, FinalizedBlock: newBranch[len(newBranch)-1]})
	c.emit(Event{Type: EventNodeInfo, NodeInfo: &NodeInfo{
		Height: c.state.Height, TipHash: c.state.TipHash,
		Supply: c.state.Supply, Difficulty: newBranch[len(newBranch)-1].Header.Difficulty,
	}})

	return nil
}

// collectBranch walks backward from tipHash via PrevHash until it finds a
// block whose parent is the current chain's block at that height (the
// fork point), returning the new branch in ascending height order and the
// fork height.
func (c *Chain) collectBranch(tipHash types.Hash) (branch []*block.Block, forkHeight uint64, err error) {
	hash := tipHash
	for {
		blk, gerr := c.blocks.GetBlock(hash)
		if gerr != nil {
			return nil, 0, fmt.Errorf("collect branch: block %s: %w", hash, gerr)
		}
		branch = append(branch, blk)
		if len(branch) > MaxReorgDepth {
			return nil, 0, ErrReorgTooDeep
		}

		if blk.Header.Height == 0 {
			// Walked all the way back without meeting our chain: the
			// branch has its own, different genesis.
			return nil, 0, ErrGenesisReorg
		}

		existing, eerr := c.blocks.GetBlockByHeight(blk.Header.Height - 1)
		if eerr == nil && existing.Hash() == blk.Header.PrevHash {
			forkHeight = blk.Header.Height - 1
			break
		}
		hash = blk.Header.PrevHash
	}

	// Reverse into ascending height order.
	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}
	return branch, forkHeight, nil
}

// restoreBranchIndex walks the old branch backward from oldTipHash via
// PrevHash and re-indexes each block above forkHeight by height, undoing
// a failed reorg's overwrite of the height index. The old branch's blocks
// are still independently reachable by hash even after their height slots
// were overwritten. Any height slots above the old tip that still point
// into the abandoned new branch (it was taller) are deleted too.
func (c *Chain) restoreBranchIndex(oldTipHash types.Hash, forkHeight, newTipHeight uint64) error {
	oldTip, err := c.blocks.GetBlock(oldTipHash)
	if err != nil {
		return fmt.Errorf("restore branch index: old tip %s: %w", oldTipHash, err)
	}
	oldTipHeight := oldTip.Header.Height

	hash := oldTipHash
	for {
		blk, err := c.blocks.GetBlock(hash)
		if err != nil {
			return fmt.Errorf("restore branch index: block %s: %w", hash, err)
		}
		if blk.Header.Height <= forkHeight {
			break
		}
		if err := c.blocks.PutBlock(blk); err != nil {
			return fmt.Errorf("restore branch index: reindex %s: %w", hash, err)
		}
		hash = blk.Header.PrevHash
	}

	for h := oldTipHeight + 1; h <= newTipHeight; h++ {
		if err := c.blocks.DeleteHeightIndex(h); err != nil {
			return fmt.Errorf("restore branch index: truncate %d: %w", h, err)
		}
	}
	return nil
}

// rebuildFrom clears the UTXO set, VSS registry, and address cache, then
// replays every block from genesis to the current tip height index, one
// block at a time.
// Blocks at height <= verifyFromHeight are trusted (they were already
// accepted before, or are the shared prefix of a reorg's common ancestor);
// blocks above it go through the same structural, transaction, and
// consensus checks as ProcessBlock's fast path before being trusted.
//
// This is the chain's single reorg mechanism: unlike an incremental
// undo-log approach, a full rebuild never needs to revert partially
// applied state when a new branch turns out invalid partway through —
// rebuildFrom itself just stops and returns the error, and the caller
// (reorgLocked) re-runs it trusting the old branch to recover.
func (c *Chain) rebuildFrom(verifyFromHeight uint64) error {
	if err := c.utxos.ClearAll(); err != nil {
		return fmt.Errorf("clear utxo set: %w", err)
	}
	c.registry.Reset()
	c.cache.Reset()

	tip, err := c.tipHeightAfterRebuild()
	if err != nil {
		return err
	}

	var supply uint64
	var cumDiff uint64
	var tipHash types.Hash
	var tipTimestamp uint64

	for h := uint64(0); h <= tip; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("rebuild: load block at height %d: %w", h, err)
		}

		var reward uint64
		if h == 0 {
			// Only a real allocation counts toward supply, as in
			// InitFromGenesis; the placeholder paid to genesisTreasury does not.
			if blk.Transactions[0].Outputs[0].Address != genesisTreasury {
				reward, err = blk.Transactions[0].TotalOutputValue()
				if err != nil {
					return fmt.Errorf("rebuild: genesis coinbase total: %w", err)
				}
			}
		} else if h > verifyFromHeight {
			if err := c.verifyConsensus(blk); err != nil {
				return fmt.Errorf("rebuild: block %d consensus: %w", h, err)
			}
			totalFees, err := c.validateTransactions(blk)
			if err != nil {
				return fmt.Errorf("rebuild: block %d transactions: %w", h, err)
			}
			reward, err = verifyRewardSchedule(c.rules, blk, totalFees, supply)
			if err != nil {
				return fmt.Errorf("rebuild: block %d reward: %w", h, err)
			}
			if err := c.checkCoinbaseMaturity(blk); err != nil {
				return fmt.Errorf("rebuild: block %d maturity: %w", h, err)
			}
		} else {
			// Same minted amount ProcessBlock recorded: coinbase minus the
			// fees it collected, plus the PoS reward.
			provider := utxo.Provider{Store: c.utxos}
			var fees uint64
			for _, t := range blk.Transactions[2:] {
				fee, _ := tx.ComputeFee(t, provider)
				fees += fee
			}
			coinbaseTotal, _ := blk.Transactions[0].TotalOutputValue()
			posTotal, _ := blk.Transactions[1].TotalOutputValue()
			if coinbaseTotal > fees {
				reward = coinbaseTotal - fees
			}
			reward += posTotal
		}

		newStakes, spentStakes, err := c.utxos.DigestChainPart([]*block.Block{blk})
		if err != nil {
			return kind.Wrap(kind.InconsistentDigest, fmt.Errorf("rebuild: block %d: %w", h, err))
		}
		c.registry.NewStakes(newStakes)
		c.registry.RemoveStakes(spentStakes)

		supply += reward
		cumDiff += blk.Header.Difficulty
		tipHash = blk.Hash()
		tipTimestamp = blk.Header.Timestamp
	}

	c.state.Height = tip
	c.state.TipHash = tipHash
	c.state.Supply = supply
	c.state.CumulativeDifficulty = cumDiff
	c.state.TipTimestamp = tipTimestamp

	if err := c.blocks.SetTip(tipHash, tip, supply); err != nil {
		return fmt.Errorf("rebuild: persist tip: %w", err)
	}
	if err := c.blocks.SetCumulativeDifficulty(cumDiff); err != nil {
		return fmt.Errorf("rebuild: persist cumulative difficulty: %w", err)
	}

	return nil
}

// tipHeightAfterRebuild finds the highest height the height index reaches
// by walking up from genesis. rebuildFrom may be replaying onto a height
// index that a reorg just rewrote (possibly to a shorter branch), so the
// chain's previously stored height isn't a safe starting point.
func (c *Chain) tipHeightAfterRebuild() (uint64, error) {
	if _, err := c.blocks.GetBlockByHeight(0); err != nil {
		return 0, fmt.Errorf("no genesis block indexed: %w", err)
	}
	h := uint64(0)
	for {
		if _, err := c.blocks.GetBlockByHeight(h + 1); err != nil {
			return h, nil
		}
		h++
	}
}

// RebuildUTXOs fully rebuilds the UTXO set and VSS registry from the
// indexed chain, trusting every block already on it. Used on startup when
// a reorg checkpoint shows the previous run crashed mid-rebuild. Callers
// must not be holding c.mu — New calls it before the chain is shared with
// any other goroutine, so it locks here rather than assuming the caller did.
func (c *Chain) RebuildUTXOs() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildFrom(c.state.Height)
}
