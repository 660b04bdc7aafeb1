package chain

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
)

// rewardDust is the minimum amount a special transaction's sole output may
// carry once the reward schedule has decayed to zero for that slot.
// pkg/tx.ValidateConformity requires every output's amount to be positive
// even on coinbase/PoS-reward transactions, so the block shape stays
// satisfiable past full emission at this fixed, negligible cost.
const rewardDust = 1

// coinbaseRewardAt returns the PoW coinbase reward for the block at the
// given height: geometric halving every HalvingInterval blocks (spec
// §4.10, "coinbaseReward decays geometrically every halving interval").
// A zero HalvingInterval disables halving. Pure function of height alone
// so any verifier can recompute it independently.
func coinbaseRewardAt(rules config.ConsensusRules, height uint64) uint64 {
	reward := rules.CoinbaseReward
	if rules.HalvingInterval == 0 {
		return reward
	}
	halvings := height / rules.HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return reward >> halvings
}

// posRewardAt returns the PoS-reward amount for the block at the given
// height: a fixed fraction of the coinbase reward at that height (spec
// §4.10, "posReward equals a fixed fraction of the coinbase").
func posRewardAt(rules config.ConsensusRules, height uint64) uint64 {
	if rules.PosRewardDenominator == 0 {
		return 0
	}
	return coinbaseRewardAt(rules, height) * rules.PosRewardNumerator / rules.PosRewardDenominator
}

// capToSupply trims reward so that supply+reward never exceeds maxSupply
// (0 = unlimited).
func capToSupply(reward, supply, maxSupply uint64) uint64 {
	if maxSupply == 0 {
		return reward
	}
	if supply >= maxSupply {
		return 0
	}
	if supply+reward > maxSupply {
		return maxSupply - supply
	}
	return reward
}

// retargetDifficulty applies the retarget rule at a period boundary:
// every RetargetPeriod blocks, compare the median inter-block time over
// the period against BlockTime and step difficulty by at most one in the
// matching direction (spec §4.10). Returns current unchanged outside a
// period boundary.
func retargetDifficulty(rules config.ConsensusRules, height, current uint64, medianBlockTime int64) uint64 {
	if rules.RetargetPeriod == 0 || height == 0 || height%rules.RetargetPeriod != 0 {
		return current
	}
	return miner.RetargetDifficulty(current, medianBlockTime, int64(rules.BlockTime), rules.MinDifficulty, rules.MaxDifficulty)
}

// verifyRewardSchedule checks that blk's coinbase and PoS-reward outputs
// mint no more than the schedule allows at blk's height, given the fees
// it collected and the circulating supply before this block (spec
// §4.10). supply is passed explicitly rather than read off Chain.state
// so the same check works both live (current supply) and while replaying
// a batch of blocks (a running accumulator that hasn't reached state yet).
// Returns the total amount actually minted by this block, for the caller
// to add to its own running supply.
func verifyRewardSchedule(rules config.ConsensusRules, blk *block.Block, totalFees, supply uint64) (uint64, error) {
	coinbaseTotal, err := blk.Transactions[0].TotalOutputValue()
	if err != nil {
		return 0, fmt.Errorf("coinbase output total: %w", err)
	}
	posTotal, err := blk.Transactions[1].TotalOutputValue()
	if err != nil {
		return 0, fmt.Errorf("pos-reward output total: %w", err)
	}

	expectedCoinbase := capToSupply(coinbaseRewardAt(rules, blk.Header.Height), supply, rules.MaxSupply)
	expectedPos := capToSupply(posRewardAt(rules, blk.Header.Height), supply+expectedCoinbase, rules.MaxSupply)
	if expectedCoinbase == 0 {
		expectedCoinbase = rewardDust
	}
	if expectedPos == 0 {
		expectedPos = rewardDust
	}

	var mintedCoinbase uint64
	if coinbaseTotal > totalFees {
		mintedCoinbase = coinbaseTotal - totalFees
	}
	if mintedCoinbase > expectedCoinbase {
		return 0, fmt.Errorf("%w: coinbase minted %d exceeds allowed %d at height %d", ErrCoinbaseRewardExceeded, mintedCoinbase, expectedCoinbase, blk.Header.Height)
	}
	if posTotal > expectedPos {
		return 0, fmt.Errorf("%w: pos-reward minted %d exceeds allowed %d at height %d", ErrCoinbaseRewardExceeded, posTotal, expectedPos, blk.Header.Height)
	}

	return mintedCoinbase + posTotal, nil
}
