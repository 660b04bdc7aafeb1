package miner

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// ErrNonceSpaceExhausted is returned when a worker's partition of the
// nonce space runs out without finding a satisfying hash.
var ErrNonceSpaceExhausted = errors.New("miner: nonce space exhausted")

// Result is what the worker pool yields to the node as soon as any worker
// finds a nonce whose hash satisfies the candidate's difficulty (spec
// §4.9). Search returns the first find and cancels its remaining
// workers; later finds for the same candidate are dropped.
type Result struct {
	Nonce    uint64
	HashHex  string
	HashTime time.Duration
	IsValid  bool
}

// Miner owns a worker pool that searches nonce space for a given preimage.
type Miner struct {
	// Workers is the number of parallel search goroutines (1..16). Values
	// outside that range are clamped by Search.
	Workers int
}

// New creates a miner with the given worker count.
func New(workers int) *Miner {
	return &Miner{Workers: workers}
}

const maxWorkers = 16

func clampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxWorkers {
		return maxWorkers
	}
	return n
}

// Search hashes preimage||nonce for successive nonces until one satisfies
// difficulty, distributing disjoint strided nonce ranges across the
// worker pool (worker i searches nonce = i, i+workers, i+2*workers, ...).
// A candidate update is modeled by the caller cancelling ctx and calling
// Search again with the new preimage; the cooperative checkpoint below
// ensures workers discard in-flight work promptly rather than racing the
// new search.
func (m *Miner) Search(ctx context.Context, preimage []byte, difficulty uint64) (Result, error) {
	workers := clampWorkers(m.Workers)
	if workers == 1 {
		return searchRange(ctx, preimage, difficulty, 0, 1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan Result, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		start := uint64(worker)
		go func() {
			defer wg.Done()
			r, err := searchRange(ctx, preimage, difficulty, start, uint64(workers))
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					select {
					case errs <- err:
					default:
					}
				}
				return
			}
			select {
			case results <- r:
				cancel()
			default:
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
		close(errs)
	}()

	select {
	case r, ok := <-results:
		if ok {
			return r, nil
		}
	case <-ctx.Done():
	}

	// The pool finished (or the caller's own ctx was cancelled first):
	// drain for a result or error before reporting exhaustion.
	select {
	case r, ok := <-results:
		if ok {
			return r, nil
		}
	default:
	}
	select {
	case err := <-errs:
		return Result{}, err
	default:
	}
	return Result{}, ctx.Err()
}

// checkpointMask bounds how often a worker checks for cancellation: every
// 65536 iterations, well under 1% overhead per spec §4's suspension-point
// requirement.
const checkpointMask = 0xFFFF

// searchRange hashes preimage||nonce for nonce = start, start+stride,
// start+2*stride, ... until a satisfying hash is found, ctx is cancelled,
// or the stride would carry nonce past the uint64 range.
func searchRange(ctx context.Context, preimage []byte, difficulty, start, stride uint64) (Result, error) {
	buf := make([]byte, len(preimage)+8)
	copy(buf, preimage)

	begin := time.Now()
	count := uint64(0)
	for nonce := start; ; nonce += stride {
		if count&checkpointMask == 0 && count > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			default:
			}
		}
		count++

		putUint64LE(buf[len(preimage):], nonce)
		hash := crypto.Hash(buf)
		if MeetsDifficulty(hash, difficulty) {
			return Result{
				Nonce:    nonce,
				HashHex:  hex.EncodeToString(hash[:]),
				HashTime: time.Since(begin),
				IsValid:  true,
			}, nil
		}

		if nonce > ^uint64(0)-stride {
			return Result{}, fmt.Errorf("%w: worker offset %d stride %d", ErrNonceSpaceExhausted, start, stride)
		}
	}
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
