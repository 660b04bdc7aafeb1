package chain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/internal/utxo"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Sentinel errors surfaced by block processing.
var (
	ErrBlockKnown               = errors.New("block already known")
	ErrPrevNotFound             = errors.New("parent block not found")
	ErrBadHeight                = errors.New("block height does not follow parent")
	ErrBadPrevHash              = errors.New("block prev hash does not match stored parent")
	ErrApplyUTXO                = errors.New("failed to apply block to utxo set")
	ErrCoinbaseNotMature        = errors.New("spent reward output has not matured")
	ErrTimestampTooFuture       = errors.New("block timestamp too far in the future")
	ErrTimestampBeforeParent    = errors.New("block timestamp not after parent")
	ErrPosTimestampBeforeParent = errors.New("pos timestamp not after parent")
	ErrBadCoinbaseTx            = errors.New("malformed coinbase or pos-reward transaction")
	ErrCoinbaseRewardExceeded   = errors.New("block mints more than the reward schedule allows")
)

// maxFutureDrift bounds how far ahead of local wall-clock a block's
// timestamp may be, mirroring the leniency most PoW chains give miners
// with imperfect clocks.
const maxFutureDrift = 2 * 60 * 60 // 2 hours, in seconds

// ProcessBlock validates and applies blk to the chain. now is the
// caller's wall-clock time (0 skips the future-drift check, for
// deterministic tests). If blk doesn't extend the current tip but does
// extend some other known block, it is stored and a reorg is attempted
// if its branch now carries more cumulative work.
func (c *Chain) ProcessBlock(blk *block.Block, now uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := blk.Hash()
	if _, err := c.blocks.GetBlock(hash); err == nil {
		return ErrBlockKnown
	}

	extendsTip, parent, err := c.checkParentLink(blk)
	if err != nil {
		return err
	}

	if err := c.checkTimestamp(blk, parent, now); err != nil {
		return err
	}

	if !extendsTip {
		// Side branch: store it and let fork-choice decide whether to
		// reorg onto it. Its transactions are validated inside
		// rebuildFrom if its branch turns out to win.
		if err := c.blocks.StoreBlock(blk); err != nil {
			return fmt.Errorf("store side-branch block: %w", err)
		}
		return c.reorgLocked(hash)
	}

	if err := c.verifyConsensus(blk); err != nil {
		return err
	}

	totalFees, err := c.validateTransactions(blk)
	if err != nil {
		return err
	}

	minted, err := verifyRewardSchedule(c.rules, blk, totalFees, c.state.Supply)
	if err != nil {
		return err
	}

	if err := c.checkCoinbaseMaturity(blk); err != nil {
		return err
	}

	newStakes, spentStakes, err := c.utxos.DigestChainPart([]*block.Block{blk})
	if err != nil {
		return kind.Wrap(kind.InconsistentDigest, fmt.Errorf("%w: %v", ErrApplyUTXO, err))
	}
	c.registry.NewStakes(newStakes)
	c.registry.RemoveStakes(spentStakes)

	if err := c.blocks.PutBlock(blk); err != nil {
		return fmt.Errorf("store block: %w", err)
	}

	var timeBetween uint64
	if parent != nil && blk.Header.Timestamp > parent.Header.Timestamp {
		timeBetween = blk.Header.Timestamp - parent.Header.Timestamp
	}

	c.state.Height = blk.Header.Height
	c.state.TipHash = hash
	c.state.Supply += minted
	c.state.CumulativeDifficulty += blk.Header.Difficulty
	c.state.TipTimestamp = blk.Header.Timestamp

	if err := c.blocks.SetTip(hash, c.state.Height, c.state.Supply); err != nil {
		return fmt.Errorf("persist tip: %w", err)
	}
	if err := c.blocks.SetCumulativeDifficulty(c.state.CumulativeDifficulty); err != nil {
		return fmt.Errorf("persist cumulative difficulty: %w", err)
	}

	if c.blockInfo != nil {
		coinbaseTotal, _ := blk.Transactions[0].TotalOutputValue()
		if err := c.blockInfo.Append(blk, coinbaseTotal, timeBetween); err != nil {
			return fmt.Errorf("append blockchain-info row: %w", err)
		}
	}

	c.emit(Event{Type: EventFinalizedBlock, FinalizedBlock: blk})
	c.emit(Event{Type: EventNodeInfo, NodeInfo: &NodeInfo{
		Height: c.state.Height, TipHash: c.state.TipHash,
		Supply: c.state.Supply, Difficulty: blk.Header.Difficulty,
	}})

	return nil
}

// checkParentLink classifies blk against known chain state: genesis,
// tip-extending, or a side branch. Returns the parent block (nil only for
// genesis) and whether blk extends the current tip.
func (c *Chain) checkParentLink(blk *block.Block) (extendsTip bool, parent *block.Block, err error) {
	if blk.Header.Height == 0 {
		if !c.state.IsGenesis() {
			return false, nil, ErrBlockKnown
		}
		return true, nil, nil
	}

	parentBlk, gerr := c.blocks.GetBlock(blk.Header.PrevHash)
	if gerr != nil {
		return false, nil, fmt.Errorf("%w: %s", ErrPrevNotFound, blk.Header.PrevHash)
	}
	if blk.Header.Height != parentBlk.Header.Height+1 {
		return false, nil, fmt.Errorf("%w: block height %d, parent height %d", ErrBadHeight, blk.Header.Height, parentBlk.Header.Height)
	}

	extendsTip = parentBlk.Hash() == c.state.TipHash
	return extendsTip, parentBlk, nil
}

func (c *Chain) checkTimestamp(blk *block.Block, parent *block.Block, now uint64) error {
	if now != 0 && blk.Header.Timestamp > now+maxFutureDrift {
		return fmt.Errorf("%w: %d > now %d + drift", ErrTimestampTooFuture, blk.Header.Timestamp, now)
	}
	if parent != nil && blk.Header.Timestamp <= parent.Header.Timestamp {
		return fmt.Errorf("%w: %d <= parent %d", ErrTimestampBeforeParent, blk.Header.Timestamp, parent.Header.Timestamp)
	}
	if parent != nil && blk.Header.PosTimestamp <= parent.Header.Timestamp {
		return fmt.Errorf("%w: %d <= parent %d", ErrPosTimestampBeforeParent, blk.Header.PosTimestamp, parent.Header.Timestamp)
	}
	return nil
}

// verifyConsensus checks the two consensus facts a block must satisfy
// beyond plain structural validity: the PoW puzzle was actually solved at
// the difficulty the retarget schedule demands, and the PoS-reward output
// pays the address the VSS draw actually elected.
func (c *Chain) verifyConsensus(blk *block.Block) error {
	if err := blk.Validate(); err != nil {
		return kind.Wrap(kind.Malformed, err)
	}

	expected := c.expectedDifficulty(blk.Header.Height)
	if blk.Header.Difficulty != expected {
		return kind.Wrap(kind.BadDifficulty, fmt.Errorf("block difficulty %d, expected %d", blk.Header.Difficulty, expected))
	}
	if !miner.MeetsDifficulty(blk.Hash(), blk.Header.Difficulty) {
		return kind.Wrap(kind.BadDifficulty, fmt.Errorf("hash %s does not meet difficulty %d", blk.Hash(), blk.Header.Difficulty))
	}

	return c.verifySigner(blk)
}

// verifySigner checks that the PoS-reward transaction pays the validator
// the VSS draw elected for this round, and that a validator signature is
// present. Full cryptographic verification against a known public key
// isn't possible here: the registry only ever stores the elected
// validator's types.Address, a one-way argon2id image with no recorded
// public key to verify against, so presence of a non-empty signature is
// the strongest check available without a validator identity directory.
func (c *Chain) verifySigner(blk *block.Block) error {
	expected := c.registry.SelectSigner(blk.Header.PrevHash, blk.Header.Legitimacy, c.rules.ValidatorStake)
	if expected.IsZero() {
		// No eligible validator yet (bootstrap phase): any recipient is
		// accepted, mirroring genesis's own treasury placeholder.
		return nil
	}
	if blk.Transactions[1].Outputs[0].Address != expected {
		return kind.Wrap(kind.RuleViolation, fmt.Errorf("pos-reward pays %s, vss elected %s", blk.Transactions[1].Outputs[0].Address, expected))
	}
	if len(blk.Header.ValidatorSig) == 0 {
		return kind.Wrap(kind.InvalidSignature, fmt.Errorf("missing validator signature"))
	}
	return nil
}

// validateTransactions runs the full per-transaction validation pipeline
// over every non-special transaction in blk, plus a block-wide
// double-spend check across all of them, and returns their summed fee.
// Coinbase/PoS-reward shape is checked separately since pkg/tx.Validate's
// fee/ownership stages don't apply to special transactions.
func (c *Chain) validateTransactions(blk *block.Block) (totalFees uint64, err error) {
	if len(blk.Transactions) < 2 || !blk.Transactions[0].IsSpecial() || !blk.Transactions[1].IsSpecial() {
		return 0, fmt.Errorf("%w: missing coinbase/pos-reward slots", ErrBadCoinbaseTx)
	}
	if err := tx.ValidateConformity(blk.Transactions[0]); err != nil {
		return 0, fmt.Errorf("%w: coinbase: %v", ErrBadCoinbaseTx, err)
	}
	if err := tx.ValidateConformity(blk.Transactions[1]); err != nil {
		return 0, fmt.Errorf("%w: pos-reward: %v", ErrBadCoinbaseTx, err)
	}

	provider := utxo.Provider{Store: c.utxos}
	seen := make(map[types.Anchor]bool)

	for i, t := range blk.Transactions[2:] {
		idx := i + 2
		if t.IsSpecial() {
			return 0, fmt.Errorf("%w: transaction %d: only slots 0 and 1 may be special", ErrBadCoinbaseTx, idx)
		}
		for _, anchor := range t.Inputs {
			if seen[anchor] {
				return 0, kind.Wrap(kind.DoubleSpend, fmt.Errorf("transaction %d: anchor %s spent twice in block", idx, anchor))
			}
			seen[anchor] = true
		}
		if err := tx.Validate(t, provider, c.cache); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", idx, err)
		}
		fee, err := tx.ComputeFee(t, provider)
		if err != nil {
			return 0, fmt.Errorf("transaction %d: %w", idx, err)
		}
		totalFees += fee
	}

	return totalFees, nil
}

// checkCoinbaseMaturity rejects any transaction spending a coinbase or
// PoS-reward output before config.CoinbaseMaturity confirmations have
// passed. Block shape fixes index 0/1 as the reward slots, so any anchor
// with TxIndex <= 1 names one.
func (c *Chain) checkCoinbaseMaturity(blk *block.Block) error {
	for _, t := range blk.Transactions {
		if t.IsSpecial() {
			continue
		}
		for _, anchor := range t.Inputs {
			if anchor.TxIndex > 1 {
				continue
			}
			if blk.Header.Height < anchor.Height+config.CoinbaseMaturity {
				return fmt.Errorf("%w: anchor %s spent at height %d, matures at %d", ErrCoinbaseNotMature, anchor, blk.Header.Height, anchor.Height+config.CoinbaseMaturity)
			}
		}
	}
	return nil
}

// expectedDifficulty returns the difficulty a block at height must carry:
// the initial difficulty at genesis, the parent's difficulty carried
// forward, or a retargeted value at a period boundary.
func (c *Chain) expectedDifficulty(height uint64) uint64 {
	if height == 0 {
		return c.rules.InitialDifficulty
	}
	parent, err := c.blocks.GetBlockByHeight(height - 1)
	if err != nil {
		return c.rules.InitialDifficulty
	}
	median := c.medianInterBlockTime(height, c.rules.RetargetPeriod)
	return retargetDifficulty(c.rules, height, parent.Header.Difficulty, median)
}

// medianInterBlockTime gathers the inter-block time deltas over the last
// period blocks ending at height-1 and returns their median, falling back
// to the configured target block time when there isn't enough history.
func (c *Chain) medianInterBlockTime(height, period uint64) int64 {
	if period == 0 || height < period+1 {
		return int64(c.rules.BlockTime)
	}

	timestamps := make([]uint64, 0, period+1)
	for h := height - period - 1; h < height; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return int64(c.rules.BlockTime)
		}
		timestamps = append(timestamps, blk.Header.Timestamp)
	}

	deltas := make([]int64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		deltas = append(deltas, int64(timestamps[i])-int64(timestamps[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[len(deltas)/2]
}
