package utxo

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/internal/kind"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO = []byte("u/") // u/<height(8)><txIndex(4)><outputIndex(4)> -> UTXO JSON
	prefixAddr = []byte("a/") // a/<type(1)><hash(20)><anchor(16)> -> empty (index)
)

const anchorKeyLen = 16 // height(8) + txIndex(4) + outputIndex(4)

// Store implements Set backed by a storage.DB, keyed by Anchor instead of
// the teacher's txid+index Outpoint.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

func appendAnchor(buf []byte, a types.Anchor) []byte {
	buf = binary.BigEndian.AppendUint64(buf, a.Height)
	buf = binary.BigEndian.AppendUint32(buf, a.TxIndex)
	buf = binary.BigEndian.AppendUint32(buf, a.OutputIndex)
	return buf
}

func utxoKey(a types.Anchor) []byte {
	key := make([]byte, 0, len(prefixUTXO)+anchorKeyLen)
	key = append(key, prefixUTXO...)
	return appendAnchor(key, a)
}

func addrKey(addr types.Address, a types.Anchor) []byte {
	key := make([]byte, 0, len(prefixAddr)+1+types.AddressHashSize+anchorKeyLen)
	key = append(key, prefixAddr...)
	key = append(key, byte(addr.Type))
	key = append(key, addr.Hash[:]...)
	return appendAnchor(key, a)
}

func decodeAnchorSuffix(key []byte) (types.Anchor, bool) {
	if len(key) < anchorKeyLen {
		return types.Anchor{}, false
	}
	suffix := key[len(key)-anchorKeyLen:]
	return types.Anchor{
		Height:      binary.BigEndian.Uint64(suffix[0:8]),
		TxIndex:     binary.BigEndian.Uint32(suffix[8:12]),
		OutputIndex: binary.BigEndian.Uint32(suffix[12:16]),
	}, true
}

// Get retrieves a UTXO by its anchor.
func (s *Store) Get(anchor types.Anchor) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(anchor))
	if err != nil {
		return nil, fmt.Errorf("utxo get %s: %w", anchor, err)
	}
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal %s: %w", anchor, err)
	}
	return &u, nil
}

// GetOutput adapts a store lookup to the shape the validation pipeline
// wants (tx.Output, bool); see Provider for the tx.UTXOProvider wrapper.
func (s *Store) GetOutput(anchor types.Anchor) (tx.Output, bool) {
	u, err := s.Get(anchor)
	if err != nil {
		return tx.Output{}, false
	}
	return tx.Output{Amount: u.Amount, Address: u.Address, Rule: u.Rule}, true
}

// Provider adapts a Store to pkg/tx.UTXOProvider, whose Get returns
// (tx.Output, bool) — a different shape than Store.Get's own
// (*UTXO, error), so it can't be satisfied by Store directly.
type Provider struct {
	*Store
}

// Get implements tx.UTXOProvider.
func (p Provider) Get(anchor types.Anchor) (tx.Output, bool) {
	return p.Store.GetOutput(anchor)
}

// Put stores a UTXO and updates its address index entry.
func (s *Store) Put(u *UTXO) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal %s: %w", u.Anchor, err)
	}
	if err := s.db.Put(utxoKey(u.Anchor), data); err != nil {
		return fmt.Errorf("utxo put %s: %w", u.Anchor, err)
	}
	if err := s.db.Put(addrKey(u.Address, u.Anchor), []byte{}); err != nil {
		return fmt.Errorf("utxo index put %s: %w", u.Anchor, err)
	}
	return nil
}

// Delete removes a UTXO and its address index entry.
func (s *Store) Delete(anchor types.Anchor) error {
	if u, err := s.Get(anchor); err == nil {
		s.db.Delete(addrKey(u.Address, anchor))
	}
	if err := s.db.Delete(utxoKey(anchor)); err != nil {
		return fmt.Errorf("utxo delete %s: %w", anchor, err)
	}
	return nil
}

// Has checks if a UTXO exists for the given anchor.
func (s *Store) Has(anchor types.Anchor) (bool, error) {
	return s.db.Has(utxoKey(anchor))
}

// ForEach iterates over all UTXOs in the store.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		var u UTXO
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(&u)
	})
}

// ClearAll removes every UTXO and address-index entry from the store.
// Used to rebuild the set from genesis after an interrupted reorg.
func (s *Store) ClearAll() error {
	var anchors []types.Anchor
	if err := s.ForEach(func(u *UTXO) error {
		anchors = append(anchors, u.Anchor)
		return nil
	}); err != nil {
		return fmt.Errorf("clear utxo set: scan: %w", err)
	}
	for _, a := range anchors {
		if err := s.Delete(a); err != nil {
			return fmt.Errorf("clear utxo set: delete %s: %w", a, err)
		}
	}
	return nil
}

// GetByAddress returns all UTXOs belonging to the given address.
func (s *Store) GetByAddress(addr types.Address) ([]*UTXO, error) {
	prefix := make([]byte, 0, len(prefixAddr)+1+types.AddressHashSize)
	prefix = append(prefix, prefixAddr...)
	prefix = append(prefix, byte(addr.Type))
	prefix = append(prefix, addr.Hash[:]...)

	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		anchor, ok := decodeAnchorSuffix(key)
		if !ok {
			return nil
		}
		u, err := s.Get(anchor)
		if err != nil {
			return nil // spent between index scan and lookup, skip
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}

// BalanceAndSpendable returns the address's total balance, its spendable
// balance, and its spendable UTXOs (spec §4.7). sigOrSlash outputs are
// excluded from spendable until they've reached config.StakeMaturity
// confirmations at currentHeight.
func (s *Store) BalanceAndSpendable(addr types.Address, currentHeight uint64) (balance uint64, spendable uint64, spendableUTXOs []*UTXO, err error) {
	all, err := s.GetByAddress(addr)
	if err != nil {
		return 0, 0, nil, err
	}

	for _, u := range all {
		balance += u.Amount
		if u.Rule.Type == types.RuleSigOrSlash {
			if currentHeight < u.MintHeight+config.StakeMaturity {
				continue
			}
		}
		spendable += u.Amount
		spendableUTXOs = append(spendableUTXOs, u)
	}
	return balance, spendable, spendableUTXOs, nil
}

// blockUndo records what digestBlock changed, enough to revert it: the
// full contents of every spent UTXO (to restore) and the anchors of
// every minted output (to remove).
type blockUndo struct {
	spent  []*UTXO
	minted []types.Anchor
}

// DigestChainPart applies a contiguous run of blocks to the UTXO set,
// one block at a time: for each user transaction, consumed anchors are
// removed and minted outputs inserted; coinbase and PoS-reward
// transactions insert only. Returns the sigOrSlash outputs minted by any
// PoS-reward (stake) transaction, and the anchors of any sigOrSlash
// outputs spent (withdrawn or slashed), so the VSS registry can mirror
// both halves of the append/remove lifecycle in digestion order.
//
// Application is atomic across the whole call: if any block's tx spends
// an anchor the store doesn't have, every change made so far by this
// call (including earlier blocks in the same batch) is rolled back and
// kind.InconsistentDigest is returned.
func (s *Store) DigestChainPart(blocks []*block.Block) (newStakes []*UTXO, spentStakes []types.Anchor, err error) {
	var undos []blockUndo

	for _, blk := range blocks {
		blockStakes, blockSpent, undo, derr := s.digestBlock(blk)
		if derr != nil {
			for i := len(undos) - 1; i >= 0; i-- {
				s.revertBlock(undos[i])
			}
			return nil, nil, kind.Wrap(kind.InconsistentDigest, derr)
		}
		undos = append(undos, undo)
		newStakes = append(newStakes, blockStakes...)
		spentStakes = append(spentStakes, blockSpent...)
	}

	return newStakes, spentStakes, nil
}

// digestBlock applies one block's transactions to the store, spending
// inputs before minting each transaction's outputs, and records the undo
// data needed to revert it.
func (s *Store) digestBlock(blk *block.Block) (newStakes []*UTXO, spentStakes []types.Anchor, undo blockUndo, err error) {
	for txIdx, t := range blk.Transactions {
		if !t.IsSpecial() {
			for _, anchor := range t.Inputs {
				spent, err := s.Get(anchor)
				if err != nil {
					return nil, nil, undo, fmt.Errorf("block %d tx %d: missing input anchor %s", blk.Header.Height, txIdx, anchor)
				}
				if err := s.Delete(anchor); err != nil {
					return nil, nil, undo, fmt.Errorf("block %d tx %d: spend %s: %w", blk.Header.Height, txIdx, anchor, err)
				}
				undo.spent = append(undo.spent, spent)
				if spent.Rule.Type == types.RuleSigOrSlash {
					spentStakes = append(spentStakes, anchor)
				}
			}
		}

		for outIdx, out := range t.Outputs {
			anchor := types.Anchor{Height: blk.Header.Height, TxIndex: uint32(txIdx), OutputIndex: uint32(outIdx)}
			u := &UTXO{
				Anchor:     anchor,
				Amount:     out.Amount,
				Address:    out.Address,
				Rule:       out.Rule,
				MintHeight: blk.Header.Height,
			}
			if err := s.Put(u); err != nil {
				return nil, nil, undo, fmt.Errorf("block %d tx %d: mint %s: %w", blk.Header.Height, txIdx, anchor, err)
			}
			undo.minted = append(undo.minted, anchor)
			if out.Rule.Type == types.RuleSigOrSlash {
				newStakes = append(newStakes, u)
			}
		}
	}

	return newStakes, spentStakes, undo, nil
}

// revertBlock undoes digestBlock: deletes everything it minted, then
// restores everything it spent.
func (s *Store) revertBlock(undo blockUndo) {
	for _, anchor := range undo.minted {
		s.Delete(anchor)
	}
	for _, u := range undo.spent {
		s.Put(u)
	}
}
