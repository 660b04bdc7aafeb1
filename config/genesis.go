package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants.
// 1 coin = 10^12 base units. All on-chain values are in base units.
const (
	Decimals  = 12
	Coin      = 1_000_000_000_000 // 10^12 base units per coin
	MilliCoin = 1_000_000_000     // 10^9
	MicroCoin = 1_000_000         // 10^6
)

// CoinbaseMaturity is the number of blocks a coinbase or PoS-reward output
// must wait before it can be spent. Prevents issues during reorgs.
const CoinbaseMaturity uint64 = 20

// StakeMaturity is the confirmation depth (D) a sigOrSlash stake output
// must clear before it counts as spendable (§4.7 "spendable excludes
// outputs still bound by sigOrSlash until a confirmation depth of D
// blocks has passed"). Mirrors CoinbaseMaturity: both guard against
// reorg-driven double-withdrawal.
const StakeMaturity uint64 = 20

// Block and transaction size limits (consensus-critical).
const (
	MaxBlockSize  = 2_000_000 // 2 MB max block size (header + all tx signing bytes)
	MaxBlockTxs   = 500       // Max transactions per block (including coinbase + PoS-reward)
	MaxTxInputs   = 2500      // Max inputs per transaction
	MaxTxOutputs  = 2500      // Max outputs per transaction
	MaxRuleData   = 65_536    // 64 KB max rule data per output
)

// Genesis holds the genesis block configuration and protocol rules.
// This is immutable after chain launch - changes require a hard fork.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Symbol    string `json:"symbol,omitempty"`

	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Alloc maps an address string to its genesis balance in base units.
	Alloc map[string]uint64 `json:"alloc"`

	Protocol ProtocolConfig `json:"protocol"`
}

// ProtocolConfig holds consensus-critical rules. All nodes MUST agree on
// these values.
type ProtocolConfig struct {
	Consensus ConsensusRules `json:"consensus"`
}

// ConsensusRules defines the hybrid PoW+PoS consensus parameters (spec
// §4.9, §4.10).
type ConsensusRules struct {
	// BlockTime is the target number of seconds between blocks, used by
	// the difficulty retarget rule.
	BlockTime int `json:"block_time"`

	// InitialDifficulty is the bit-count difficulty target (see §4.9) new
	// chains start at.
	InitialDifficulty uint64 `json:"initial_difficulty"`
	// MinDifficulty and MaxDifficulty clamp every retarget step.
	MinDifficulty uint64 `json:"min_difficulty"`
	MaxDifficulty uint64 `json:"max_difficulty"`
	// RetargetPeriod is K: the number of blocks between difficulty
	// adjustments.
	RetargetPeriod uint64 `json:"retarget_period"`

	// CoinbaseReward is the base units paid to the PoW miner per block
	// before any halving has occurred.
	CoinbaseReward uint64 `json:"coinbase_reward"`
	// HalvingInterval is the number of blocks between reward halvings
	// (0 disables halving).
	HalvingInterval uint64 `json:"halving_interval,omitempty"`
	// PosRewardNumerator/PosRewardDenominator express posReward as a
	// fraction of coinbaseReward (spec §4.10: "posReward equals a fixed
	// fraction of the coinbase").
	PosRewardNumerator   uint64 `json:"pos_reward_numerator"`
	PosRewardDenominator uint64 `json:"pos_reward_denominator"`

	// MaxSupply caps total issuance in base units (0 = unlimited).
	MaxSupply uint64 `json:"max_supply"`
	// MinFeeRate is the minimum fee rate (base units per byte of a
	// transaction's canonical encoding).
	MinFeeRate uint64 `json:"min_fee_rate"`

	// ValidatorStake is the minimum stake amount to be eligible for VSS
	// selection (0 = no minimum).
	ValidatorStake uint64 `json:"validator_stake,omitempty"`
}

// =============================================================================
// Testnet Identity
//
// Derived from the well-known BIP-39 test mnemonic (DO NOT use on mainnet):
//
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon abandon
//	abandon abandon abandon abandon abandon abandon abandon art
// =============================================================================

const (
	// TestnetMnemonic is the well-known seed phrase for the testnet validator.
	TestnetMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

	// TestnetValidatorPubKey is the compressed public key (hex) derived from TestnetMnemonic.
	TestnetValidatorPubKey = "030bef68f8657df88098a0546da1712c88b459788bea1a6bbe964004166a25144f"

	// TestnetValidatorPrivKey is the private key (hex) derived from TestnetMnemonic.
	TestnetValidatorPrivKey = "1f0717e6e34acc6721021f4dfed54558ec8452452b6195545d06dd348b220091"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "klingnet-mainnet-1",
		ChainName: "Klingnet Mainnet",
		Symbol:    "KGX",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Klingnet Genesis",
		Alloc:     map[string]uint64{},
		Protocol: ProtocolConfig{
			Consensus: ConsensusRules{
				BlockTime:            10,
				InitialDifficulty:    32,
				MinDifficulty:        16,
				MaxDifficulty:        512,
				RetargetPeriod:       2016,
				CoinbaseReward:       50 * Coin,
				HalvingInterval:      210_000,
				PosRewardNumerator:   1,
				PosRewardDenominator: 5, // posReward = 20% of coinbaseReward
				MaxSupply:            21_000_000 * Coin,
				MinFeeRate:           10_000,
				ValidatorStake:       2000 * Coin,
			},
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "klingnet-testnet-1"
	g.ChainName = "Klingnet Testnet"
	g.ExtraData = "Klingnet Testnet Genesis"

	// More relaxed rules for testnet.
	g.Protocol.Consensus.InitialDifficulty = 16
	g.Protocol.Consensus.RetargetPeriod = 50
	g.Protocol.Consensus.MinFeeRate = 10
	g.Protocol.Consensus.ValidatorStake = 100 * Coin

	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}

	c := g.Protocol.Consensus
	if c.BlockTime <= 0 {
		return fmt.Errorf("block_time must be positive")
	}
	if c.InitialDifficulty == 0 {
		return fmt.Errorf("initial_difficulty must be positive")
	}
	if c.MinDifficulty == 0 || c.MaxDifficulty < c.MinDifficulty {
		return fmt.Errorf("min_difficulty/max_difficulty are inconsistent")
	}
	if c.InitialDifficulty < c.MinDifficulty || c.InitialDifficulty > c.MaxDifficulty {
		return fmt.Errorf("initial_difficulty must fall within [min_difficulty, max_difficulty]")
	}
	if c.RetargetPeriod == 0 {
		return fmt.Errorf("retarget_period must be positive")
	}
	if c.CoinbaseReward == 0 {
		return fmt.Errorf("coinbase_reward must be positive")
	}
	if c.PosRewardDenominator == 0 {
		return fmt.Errorf("pos_reward_denominator must be positive")
	}

	var totalAlloc uint64
	for addrStr, v := range g.Alloc {
		if _, err := types.ParseAddress(addrStr); err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		totalAlloc += v
	}
	if c.MaxSupply > 0 && totalAlloc > c.MaxSupply {
		return fmt.Errorf("genesis allocations (%d) exceed max_supply (%d)", totalAlloc, c.MaxSupply)
	}

	return nil
}

// Hash returns a canonical hash of the genesis configuration, used to
// identify the chain and detect genesis mismatches between peers.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
