// Package vss implements the Validator Selection System (spec §4.8): an
// append-only stake registry and a weighted draw that picks a PoS signer
// for each round.
package vss

import (
	"sync"

	"github.com/Klingon-tech/klingnet-chain/internal/utxo"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Stake is a single staked output backing one address's weight in the
// selection draw.
type Stake struct {
	Anchor types.Anchor
	Amount uint64
}

// Registry holds the append-only stake set: for every address, the list
// of stake anchors currently backing it. Exclusively owned by the node
// that digests blocks; readers (e.g. the miner's reward calculations)
// take a snapshot via GetAddressStakesInfo rather than touching the map
// directly.
type Registry struct {
	mu     sync.RWMutex
	stakes map[types.Address][]Stake
}

// NewRegistry creates an empty stake registry.
func NewRegistry() *Registry {
	return &Registry{stakes: make(map[types.Address][]Stake)}
}

// NewStakes appends newly minted sigOrSlash outputs to their addresses'
// stake lists, in the order they were digested. Outputs carrying any
// other rule are ignored.
func (r *Registry) NewStakes(outputs []*utxo.UTXO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range outputs {
		if u.Rule.Type != types.RuleSigOrSlash {
			continue
		}
		r.stakes[u.Address] = append(r.stakes[u.Address], Stake{Anchor: u.Anchor, Amount: u.Amount})
	}
}

// RemoveStakes removes stake entries for the given anchors, used when a
// sigOrSlash output is withdrawn or slashed. An address left with no
// remaining stakes drops out of the registry entirely.
func (r *Registry) RemoveStakes(anchors []types.Anchor) {
	if len(anchors) == 0 {
		return
	}
	remove := make(map[types.Anchor]bool, len(anchors))
	for _, a := range anchors {
		remove[a] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, list := range r.stakes {
		kept := list[:0]
		for _, s := range list {
			if !remove[s.Anchor] {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(r.stakes, addr)
		} else {
			r.stakes[addr] = kept
		}
	}
}

// Reset discards every stake, returning the registry to its initial empty
// state. Used when rebuilding chain state from genesis after a reorg.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stakes = make(map[types.Address][]Stake)
}

// GetAddressStakesInfo returns a copy of addr's current stake list, for
// diagnostics (spec §4.8).
func (r *Registry) GetAddressStakesInfo(addr types.Address) []Stake {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.stakes[addr]
	out := make([]Stake, len(list))
	copy(out, list)
	return out
}

// TotalStake returns addr's current total staked amount.
func (r *Registry) TotalStake(addr types.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total uint64
	for _, s := range r.stakes[addr] {
		total += s.Amount
	}
	return total
}
