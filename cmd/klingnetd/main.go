// Klingnet full node daemon.
//
// Usage:
//
//	klingnetd [--mine --stake-key=...] Run node
//	klingnetd --help                  Show help
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
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
	"github.com/rs/zerolog"
)

// addrNetwork maps a node's network type to the address package's own
// Network enum, used to pick Argon2id derivation cost.
func addrNetwork(n config.NetworkType) address.Network {
	if n == config.Testnet {
		return address.Testnet
	}
	return address.Mainnet
}

func main() {
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
			os.Exit(1)
		}
		logFile = logsDir + "/klingnet.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	genesis := config.GenesisFor(cfg.Network)

	logger.Info().
		Str("chain_id", genesis.ChainID).
		Str("network", string(cfg.Network)).
		Int("block_time", genesis.Protocol.Consensus.BlockTime).
		Msg("Starting Klingnet Chain Node")

	db, err := storage.NewBadger(cfg.ChainDataDir())
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ChainDataDir()).Msg("Failed to open database")
	}
	defer db.Close()

	utxoStore := utxo.NewStore(db)
	registry := vss.NewRegistry()
	params := address.ProtocolParams(addrNetwork(cfg.Network))
	cache := address.NewCache(params)

	ch, err := chain.New(genesis.ChainID, db, utxoStore, registry, cache)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create chain")
	}
	ch.SetConsensusRules(genesis.Protocol.Consensus)

	if ch.State().IsGenesis() {
		if err := ch.InitFromGenesis(genesis); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize from genesis")
		}
		logger.Info().Msg("Chain initialized from genesis")
	} else {
		logger.Info().
			Uint64("height", ch.Height()).
			Str("tip", ch.TipHash().String()[:16]+"...").
			Msg("Chain resumed from database")
	}

	pool := mempool.New(utxoStore, cache, 5000)
	pool.SetMinFeeRate(genesis.Protocol.Consensus.MinFeeRate)
	pool.SetCoinbaseMaturity(config.CoinbaseMaturity, ch.Height, utxoStore)

	logger.Info().
		Uint64("min_fee_rate", genesis.Protocol.Consensus.MinFeeRate).
		Msg("Mempool ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go logEvents(ctx, ch, logger)

	if flags.Mine {
		var validatorKey *crypto.PrivateKey
		if flags.StakeKey != "" {
			validatorKey, err = loadValidatorKey(flags.StakeKey)
			if err != nil {
				logger.Fatal().Err(err).Str("path", flags.StakeKey).Msg("Failed to load stake key")
			}
			defer validatorKey.Zero()
		}

		coinbaseAddr, err := resolveCoinbase(flags.Coinbase, validatorKey, params)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to resolve coinbase address")
		}

		threads := cfg.Mining.Threads
		if threads <= 0 {
			threads = 1
		}
		m := miner.New(threads)
		blockTime := time.Duration(genesis.Protocol.Consensus.BlockTime) * time.Second

		logger.Info().
			Str("coinbase", coinbaseAddr.String()).
			Dur("interval", blockTime).
			Msg("Block production enabled")

		go runMiner(ctx, ch, pool, m, validatorKey, coinbaseAddr, blockTime, logger)
	}

	logger.Info().
		Uint64("height", ch.Height()).
		Bool("mining", flags.Mine).
		Msg("Node started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	cancel()
	logger.Info().Msg("Goodbye!")
}

// runMiner assembles, seals, and applies one block per tick, signing with
// validatorKey when present. A nil validatorKey is accepted: the
// bootstrap phase before any validator has staked doesn't require a
// signature (see chain.Chain.verifySigner).
func runMiner(ctx context.Context, ch *chain.Chain, pool *mempool.Pool, m *miner.Miner,
	validatorKey *crypto.PrivateKey, coinbaseAddr types.Address, blockTime time.Duration, logger zerolog.Logger) {

	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Miner stopped")
			return
		case <-ticker.C:
			round := ch.Height() + 1
			cand, err := ch.AssembleCandidate(pool, coinbaseAddr, round)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to assemble candidate")
				continue
			}

			sealed, err := ch.Propose(ctx, cand, m)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn().Err(err).Msg("Failed to find nonce")
				continue
			}

			if validatorKey != nil {
				if err := ch.Sign(sealed, validatorKey); err != nil {
					logger.Warn().Err(err).Msg("Failed to sign block")
					continue
				}
			}

			if err := ch.ProcessBlock(sealed, uint64(time.Now().Unix())); err != nil {
				logger.Warn().Err(err).Uint64("height", round).Msg("Block rejected")
				continue
			}
			pool.RemoveConfirmed(sealed.Transactions)

			logger.Info().
				Uint64("height", sealed.Header.Height).
				Str("hash", sealed.Hash().String()[:16]+"...").
				Int("txs", len(sealed.Transactions)).
				Msg("Block produced")
		}
	}
}

// logEvents drains the chain's dashboard event stream into the logger. No
// HTTP/WebSocket layer is implemented here; an external collaborator
// would subscribe to Events() for that (spec §6).
func logEvents(ctx context.Context, ch *chain.Chain, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch.Events():
			switch ev.Type {
			case chain.EventFinalizedBlock:
				if ev.FinalizedBlock != nil {
					logger.Debug().
						Uint64("height", ev.FinalizedBlock.Header.Height).
						Msg("Finalized block event")
				}
			case chain.EventHashRateUpdated:
				if ev.HashRate != nil {
					logger.Debug().
						Float64("hashes_per_sec", ev.HashRate.HashesPerSecond).
						Msg("Hash rate event")
				}
			case chain.EventNodeInfo:
				if ev.NodeInfo != nil {
					logger.Debug().
						Uint64("height", ev.NodeInfo.Height).
						Uint64("supply", ev.NodeInfo.Supply).
						Msg("Node info event")
				}
			}
		}
	}
}

// loadValidatorKey reads a hex-encoded 32-byte private key from a file.
func loadValidatorKey(path string) (*crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	hexStr := strings.TrimSpace(string(data))
	keyBytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}

	return crypto.PrivateKeyFromBytes(keyBytes)
}

// resolveCoinbase determines the coinbase address from --coinbase flag or
// the validator key's derived wallet address.
func resolveCoinbase(coinbaseStr string, validatorKey *crypto.PrivateKey, params address.Params) (types.Address, error) {
	if coinbaseStr != "" {
		addr, err := types.ParseAddress(coinbaseStr)
		if err != nil {
			return types.Address{}, fmt.Errorf("invalid coinbase address: %w", err)
		}
		return addr, nil
	}

	if validatorKey != nil {
		pubHex := hex.EncodeToString(validatorKey.PublicKey())
		return address.Derive(pubHex, types.AddressWallet, params)
	}

	return types.Address{}, fmt.Errorf("--mine requires --coinbase or --stake-key")
}
