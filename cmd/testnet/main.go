// Command testnet boots a 2-node local testnet from scratch.
//
// Usage: go run ./cmd/testnet/
//
// It loads the fixed testnet validator key, creates a genesis config, boots two
// in-process chain instances (one block producer, one follower), produces
// a handful of blocks, replays each one onto the follower (standing in
// for the gossip an external p2p transport would perform; see
// internal/p2p's thin wire-contract-only scope), and verifies both chains
// converge to the same tip. Ctrl+C for early shutdown.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/address"
	"github.com/Klingon-tech/klingnet-chain/internal/chain"
	klog "github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/internal/mempool"
	"github.com/Klingon-tech/klingnet-chain/internal/miner"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/internal/utxo"
	"github.com/Klingon-tech/klingnet-chain/internal/vss"
	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

const (
	numBlocks = 10
)

// nodeBundle groups the components for one logical chain participant.
type nodeBundle struct {
	name  string
	chain *chain.Chain
	pool  *mempool.Pool
}

func main() {
	klog.Init("info", false, "")
	logger := klog.WithComponent("testnet")

	logger.Info().Msg("=== Klingnet 2-Node Local Testnet ===")

	// ── Phase 1: Load well-known testnet identity + genesis ─────────────

	privKeyBytes, err := hex.DecodeString(config.TestnetValidatorPrivKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("decode testnet private key")
	}
	validatorKey, err := crypto.PrivateKeyFromBytes(privKeyBytes)
	if err != nil {
		logger.Fatal().Err(err).Msg("load testnet validator key")
	}
	pubHex := hex.EncodeToString(validatorKey.PublicKey())

	params := address.ProtocolParams(address.Testnet)
	coinbaseAddr, err := address.Derive(pubHex, types.AddressWallet, params)
	if err != nil {
		logger.Fatal().Err(err).Msg("derive coinbase address")
	}

	logger.Info().
		Str("validator_pub", pubHex[:16]+"...").
		Str("coinbase_addr", coinbaseAddr.String()).
		Msg("Using well-known testnet identity")

	gen := config.TestnetGenesis()
	gen.ChainID = "klingnet-testnet-local"
	gen.ChainName = "Local Testnet"
	gen.Timestamp = uint64(time.Now().Unix())

	logger.Info().Str("chain_id", gen.ChainID).Msg("Genesis config created")

	// ── Phase 2: Build nodes ─────────────────────────────────────────────

	node1, err := buildNode("node-1", gen, params)
	if err != nil {
		logger.Fatal().Err(err).Msg("build node-1")
	}
	node2, err := buildNode("node-2", gen, params)
	if err != nil {
		logger.Fatal().Err(err).Msg("build node-2")
	}

	logger.Info().
		Uint64("node1_height", node1.chain.Height()).
		Uint64("node2_height", node2.chain.Height()).
		Msg("Genesis initialized on both nodes")

	// ── Phase 3: Signal handling ─────────────────────────────────────────

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("Shutdown signal received")
		cancel()
	}()

	// ── Phase 4: Block production ─────────────────────────────────────────

	m := miner.New(1)
	blockTime := time.Duration(gen.Protocol.Consensus.BlockTime) * time.Second

	logger.Info().
		Int("blocks", numBlocks).
		Dur("interval", blockTime).
		Msg("Starting block production")

	for i := 0; i < numBlocks; i++ {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Production interrupted")
			goto verify
		default:
		}

		round := node1.chain.Height() + 1
		cand, err := node1.chain.AssembleCandidate(node1.pool, coinbaseAddr, round)
		if err != nil {
			logger.Fatal().Err(err).Msg("assemble candidate")
		}

		sealed, err := node1.chain.Propose(ctx, cand, m)
		if err != nil {
			logger.Fatal().Err(err).Msg("propose block")
		}

		if err := node1.chain.Sign(sealed, validatorKey); err != nil {
			logger.Fatal().Err(err).Msg("sign block")
		}

		if err := node1.chain.ProcessBlock(sealed, 0); err != nil {
			logger.Fatal().Err(err).Msg("process block on node-1")
		}
		node1.pool.RemoveConfirmed(sealed.Transactions)

		if err := node2.chain.ProcessBlock(sealed, 0); err != nil {
			logger.Fatal().Err(err).Msg("process block on node-2")
		}
		node2.pool.RemoveConfirmed(sealed.Transactions)

		logger.Info().
			Uint64("height", sealed.Header.Height).
			Str("hash", sealed.Hash().String()[:16]+"...").
			Int("txs", len(sealed.Transactions)).
			Msg("Block produced and replayed")

		if i < numBlocks-1 {
			select {
			case <-ctx.Done():
				goto verify
			case <-time.After(blockTime):
			}
		}
	}

verify:
	// ── Phase 5: Verification ────────────────────────────────────────────

	h1 := node1.chain.Height()
	h2 := node2.chain.Height()
	t1 := node1.chain.TipHash()
	t2 := node2.chain.TipHash()

	logger.Info().
		Uint64("node1_height", h1).
		Uint64("node2_height", h2).
		Str("node1_tip", t1.String()[:16]+"...").
		Str("node2_tip", t2.String()[:16]+"...").
		Msg("Final chain state")

	if h1 == h2 && t1 == t2 {
		logger.Info().Msg("SUCCESS: both nodes converged, chains match")
		fmt.Println()
		fmt.Printf("  Blocks produced:  %d\n", h1)
		fmt.Printf("  Chain tip:        %s\n", t1)
		fmt.Printf("  Coinbase reward:  %d base units\n", gen.Protocol.Consensus.CoinbaseReward)
		fmt.Printf("  Min fee rate:     %d base units/byte\n", gen.Protocol.Consensus.MinFeeRate)
		fmt.Printf("  Max supply:       %d base units\n", gen.Protocol.Consensus.MaxSupply)
		fmt.Println()
	} else {
		logger.Error().Msg("FAILURE: chain mismatch between nodes")
		os.Exit(1)
	}
}

// buildNode creates a fresh chain and mempool over an in-memory store,
// initialized from gen.
func buildNode(name string, gen *config.Genesis, params address.Params) (*nodeBundle, error) {
	db := storage.NewMemory()
	utxoStore := utxo.NewStore(db)
	registry := vss.NewRegistry()
	cache := address.NewCache(params)

	ch, err := chain.New(gen.ChainID, db, utxoStore, registry, cache)
	if err != nil {
		return nil, fmt.Errorf("create chain: %w", err)
	}
	ch.SetConsensusRules(gen.Protocol.Consensus)
	if err := ch.InitFromGenesis(gen); err != nil {
		return nil, fmt.Errorf("init genesis: %w", err)
	}

	pool := mempool.New(utxoStore, cache, 5000)
	pool.SetMinFeeRate(gen.Protocol.Consensus.MinFeeRate)

	return &nodeBundle{name: name, chain: ch, pool: pool}, nil
}
