package chain

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/address"
	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/internal/utxo"
	"github.com/Klingon-tech/klingnet-chain/internal/vss"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// testGenesis returns a genesis config tuned for fast, deterministic
// tests: a low initial difficulty so mining a block takes a handful of
// hashes, and a retarget period of zero so difficulty never moves.
func testGenesis() *config.Genesis {
	return &config.Genesis{
		ChainID:   "test-chain",
		ChainName: "Test Chain",
		Timestamp: 1700000000,
		Alloc:     map[string]uint64{},
		Protocol: config.ProtocolConfig{
			Consensus: config.ConsensusRules{
				BlockTime:            10,
				InitialDifficulty:    4,
				MinDifficulty:        4,
				MaxDifficulty:        64,
				RetargetPeriod:       0,
				CoinbaseReward:       50,
				HalvingInterval:      0,
				PosRewardNumerator:   1,
				PosRewardDenominator: 5,
				MaxSupply:            0,
				MinFeeRate:           1,
				ValidatorStake:       100,
			},
		},
	}
}

// newTestChain builds a fresh chain over an in-memory store and
// initializes it from testGenesis, returning the chain and an arbitrary
// wallet address to use as the miner's payout recipient.
func newTestChain(t *testing.T) (*Chain, types.Address) {
	t.Helper()

	db := storage.NewMemory()
	utxoStore := utxo.NewStore(db)
	registry := vss.NewRegistry()
	cache := address.NewCache(address.DevParams())

	c, err := New("test-chain", db, utxoStore, registry, cache)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.InitFromGenesis(testGenesis()); err != nil {
		t.Fatalf("InitFromGenesis: %v", err)
	}

	return c, testMinerAddr()
}

// testMinerAddr returns an arbitrary well-formed wallet address for use as
// a test block's reward recipient. Its argon2id security check is never
// exercised: special transactions skip pkg/tx.VerifyOwnership entirely.
func testMinerAddr() types.Address {
	return types.Address{Type: types.AddressWallet, Hash: [types.AddressHashSize]byte{1, 2, 3}}
}

// mineNext assembles, seals, and applies the next block extending the
// chain's current tip, with no mempool transactions.
func mineNext(t *testing.T, c *Chain, minerAddr types.Address) *block.Block {
	t.Helper()

	cand, err := c.AssembleCandidate(nil, minerAddr, c.Height()+1)
	if err != nil {
		t.Fatalf("AssembleCandidate: %v", err)
	}

	m := miner.New(1)
	sealed, err := c.Propose(context.Background(), cand, m)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	if err := c.ProcessBlock(sealed, 0); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	return sealed
}

// deriveTestWallet generates key pairs until one derives a wallet address
// passing the argon2id security check under DevParams, then returns the
// address, the signing key, and the key's hex-encoded public key. Wallet
// addresses require 8 leading zero bits, so this usually succeeds within
// a few hundred attempts.
func deriveTestWallet(t *testing.T) (types.Address, *crypto.PrivateKey, string) {
	t.Helper()

	params := address.DevParams()
	for i := 0; i < 100000; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		pubHex := hex.EncodeToString(key.PublicKey())
		addr, err := address.Derive(pubHex, types.AddressWallet, params)
		if err == nil {
			return addr, key, pubHex
		}
	}
	t.Fatal("could not derive a wallet address satisfying the security check")
	return types.Address{}, nil, ""
}
