package chain

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/kind"
)

func TestInitFromGenesis_State(t *testing.T) {
	c, _ := newTestChain(t)

	st := c.State()
	if st.Height != 0 {
		t.Errorf("height = %d, want 0", st.Height)
	}
	if st.TipHash != c.genesisHash {
		t.Errorf("tip hash does not match recorded genesis hash")
	}
	if c.Rules().InitialDifficulty != 4 {
		t.Errorf("rules not adopted from genesis protocol config")
	}
}

func TestInitFromGenesis_Twice(t *testing.T) {
	c, _ := newTestChain(t)
	if err := c.InitFromGenesis(testGenesis()); err == nil {
		t.Error("expected error re-initializing an already-genesis'd chain")
	}
}

func TestProcessBlock_ExtendsTip(t *testing.T) {
	c, minerAddr := newTestChain(t)

	for i := 0; i < 3; i++ {
		mineNext(t, c, minerAddr)
	}

	if got := c.Height(); got != 3 {
		t.Fatalf("height = %d, want 3", got)
	}
	if c.Supply() == 0 {
		t.Error("supply should have grown past genesis allocation")
	}
	tip, err := c.GetBlockByHeight(3)
	if err != nil {
		t.Fatalf("GetBlockByHeight(3): %v", err)
	}
	if tip.Hash() != c.TipHash() {
		t.Error("tip hash does not match height-3 block")
	}
}

func TestProcessBlock_RejectsKnownBlock(t *testing.T) {
	c, minerAddr := newTestChain(t)
	blk := mineNext(t, c, minerAddr)

	if err := c.ProcessBlock(blk, 0); !errors.Is(err, ErrBlockKnown) {
		t.Errorf("ProcessBlock(known) = %v, want ErrBlockKnown", err)
	}
}

func TestProcessBlock_RejectsBadPrevHash(t *testing.T) {
	c, minerAddr := newTestChain(t)

	cand, err := c.AssembleCandidate(nil, minerAddr, 1)
	if err != nil {
		t.Fatalf("AssembleCandidate: %v", err)
	}
	cand.Header.PrevHash[0] ^= 0xFF

	if err := c.ProcessBlock(cand, 0); !errors.Is(err, ErrPrevNotFound) {
		t.Errorf("ProcessBlock(bad prev hash) = %v, want ErrPrevNotFound", err)
	}
}

func TestProcessBlock_RejectsBadHeight(t *testing.T) {
	c, minerAddr := newTestChain(t)

	cand, err := c.AssembleCandidate(nil, minerAddr, 1)
	if err != nil {
		t.Fatalf("AssembleCandidate: %v", err)
	}
	cand.Header.Height = 5

	if err := c.ProcessBlock(cand, 0); !errors.Is(err, ErrBadHeight) {
		t.Errorf("ProcessBlock(bad height) = %v, want ErrBadHeight", err)
	}
}

func TestProcessBlock_RejectsTimestampBeforeParent(t *testing.T) {
	c, minerAddr := newTestChain(t)

	cand, err := c.AssembleCandidate(nil, minerAddr, 1)
	if err != nil {
		t.Fatalf("AssembleCandidate: %v", err)
	}
	cand.Header.Timestamp = c.TipTimestamp()

	if err := c.ProcessBlock(cand, 0); !errors.Is(err, ErrTimestampBeforeParent) {
		t.Errorf("ProcessBlock(stale timestamp) = %v, want ErrTimestampBeforeParent", err)
	}
}

func TestProcessBlock_RejectsBadDifficulty(t *testing.T) {
	c, minerAddr := newTestChain(t)

	blk := mineNext(t, c, minerAddr)
	_ = blk

	cand, err := c.AssembleCandidate(nil, minerAddr, 2)
	if err != nil {
		t.Fatalf("AssembleCandidate: %v", err)
	}
	cand.Header.Difficulty = cand.Header.Difficulty + 1

	if err := c.ProcessBlock(cand, 0); !errors.Is(err, kind.BadDifficulty) {
		t.Errorf("ProcessBlock(unsolved difficulty) = %v, want kind.BadDifficulty", err)
	}
}

func TestGetTransaction_FindsCoinbase(t *testing.T) {
	c, minerAddr := newTestChain(t)
	blk := mineNext(t, c, minerAddr)

	coinbaseHash := blk.Transactions[0].HashID()
	got, err := c.GetTransaction(coinbaseHash)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.HashID() != coinbaseHash {
		t.Error("returned transaction hash mismatch")
	}
}
