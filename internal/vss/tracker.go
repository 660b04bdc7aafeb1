package vss

import (
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// SignerStats holds in-memory liveness statistics for one staked address.
// Resets on node restart, no persistence, and never consulted by
// SelectSigner — purely an operator-facing diagnostic alongside
// GetAddressStakesInfo.
type SignerStats struct {
	Address       types.Address
	LastSelected  uint64    // round last selected, 0 if never selected
	LastSigned    time.Time // zero if never produced a PoS signature
	SelectedCount uint64
	MissedCount   uint64 // selected but failed to sign in time
}

// Tracker records per-address selection and signing liveness.
type Tracker struct {
	mu    sync.RWMutex
	stats map[types.Address]*SignerStats
}

// NewTracker creates an empty liveness tracker.
func NewTracker() *Tracker {
	return &Tracker{stats: make(map[types.Address]*SignerStats)}
}

// RecordSelected records that addr was chosen as the signer for round.
func (t *Tracker) RecordSelected(addr types.Address, round uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.getOrCreate(addr)
	s.LastSelected = round
	s.SelectedCount++
}

// RecordSigned records that addr produced its PoS signature.
func (t *Tracker) RecordSigned(addr types.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreate(addr).LastSigned = time.Now()
}

// RecordMissed records that addr was selected but did not sign in time.
func (t *Tracker) RecordMissed(addr types.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getOrCreate(addr).MissedCount++
}

// Stats returns a copy of addr's stats, or nil if never tracked.
func (t *Tracker) Stats(addr types.Address) *SignerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.stats[addr]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (t *Tracker) getOrCreate(addr types.Address) *SignerStats {
	s, ok := t.stats[addr]
	if !ok {
		s = &SignerStats{Address: addr}
		t.stats[addr] = s
	}
	return s
}
