package vss

import (
	"math/big"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// candidate is an address's total weight in the selection draw.
type candidate struct {
	addr   types.Address
	amount uint64
}

// SelectSigner picks a validator address with probability proportional to
// its total staked amount (spec §4.8). The seed is the previous block's
// hash; round is the slot's legitimacy counter, folded into the seed so
// repeated draws against the same previous hash are independent. minStake
// excludes addresses below the protocol's validator-stake floor from the
// draw entirely (0 disables the floor). Returns the zero address if no
// candidate qualifies.
func (r *Registry) SelectSigner(seed types.Hash, round uint64, minStake uint64) types.Address {
	candidates := r.candidates(minStake)
	if len(candidates) == 0 {
		return types.Address{}
	}

	var total uint64
	for _, c := range candidates {
		total += c.amount
	}
	if total == 0 {
		return types.Address{}
	}

	point := new(big.Int).Mod(seedForRound(seed, round), new(big.Int).SetUint64(total)).Uint64()

	var cum uint64
	for _, c := range candidates {
		cum += c.amount
		if point < cum {
			return c.addr
		}
	}
	// Unreachable: cum equals total, which exceeds point by construction.
	return candidates[len(candidates)-1].addr
}

// seedForRound interprets the previous block hash as a big-endian integer
// and offsets it by round, producing the draw's sample point.
func seedForRound(prevHash types.Hash, round uint64) *big.Int {
	n := new(big.Int).SetBytes(prevHash[:])
	return n.Add(n, new(big.Int).SetUint64(round))
}

// candidates returns every staked address with total stake >= minStake,
// sorted by address string. The cumulative-sum draw walks this slice in
// order, so a stable lexicographic order is what makes the draw (and any
// tie in adjoining weights) reproducible across nodes regardless of map
// iteration order.
func (r *Registry) candidates(minStake uint64) []candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]candidate, 0, len(r.stakes))
	for addr, list := range r.stakes {
		var total uint64
		for _, s := range list {
			total += s.Amount
		}
		if total < minStake {
			continue
		}
		out = append(out, candidate{addr: addr, amount: total})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].addr.String() < out[j].addr.String()
	})
	return out
}
