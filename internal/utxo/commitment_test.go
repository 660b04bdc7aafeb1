package utxo

import (
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func commitUTXO(height uint64, outIndex uint32, amount uint64, addrByte byte) *UTXO {
	return makeUTXO(height, 0, outIndex, amount, testAddr(addrByte))
}

func TestCommitment_Empty(t *testing.T) {
	store := NewStore(storage.NewMemory())

	root, err := Commitment(store)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if !root.IsZero() {
		t.Error("empty store commitment should be zero hash")
	}
}

func TestCommitment_SingleUTXO(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Put(commitUTXO(1, 0, 1000, 1))

	root, err := Commitment(store)
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if root.IsZero() {
		t.Error("single UTXO commitment should not be zero")
	}
}

func TestCommitment_Deterministic(t *testing.T) {
	makeStore := func() *Store {
		s := NewStore(storage.NewMemory())
		s.Put(commitUTXO(1, 0, 1000, 1))
		s.Put(commitUTXO(2, 1, 2000, 2))
		return s
	}

	root1, _ := Commitment(makeStore())
	root2, _ := Commitment(makeStore())
	if root1 != root2 {
		t.Error("commitment should be deterministic")
	}
}

func TestCommitment_ChangesOnModification(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Put(commitUTXO(1, 0, 1000, 1))
	root1, _ := Commitment(store)

	store.Put(commitUTXO(2, 0, 2000, 2))
	root2, _ := Commitment(store)

	if root1 == root2 {
		t.Error("commitment should change after adding UTXO")
	}
}

func TestCommitment_ChangesOnDelete(t *testing.T) {
	store := NewStore(storage.NewMemory())
	u1 := commitUTXO(1, 0, 1000, 1)
	u2 := commitUTXO(2, 0, 2000, 2)
	store.Put(u1)
	store.Put(u2)

	root1, _ := Commitment(store)
	store.Delete(u2.Anchor)
	root2, _ := Commitment(store)

	if root1 == root2 {
		t.Error("commitment should change after deleting UTXO")
	}
}

func TestCommitment_OrderIndependent(t *testing.T) {
	u1 := commitUTXO(1, 0, 1000, 1)
	u2 := commitUTXO(2, 0, 2000, 2)

	s1 := NewStore(storage.NewMemory())
	s1.Put(u1)
	s1.Put(u2)
	root1, _ := Commitment(s1)

	s2 := NewStore(storage.NewMemory())
	s2.Put(u2)
	s2.Put(u1)
	root2, _ := Commitment(s2)

	if root1 != root2 {
		t.Error("commitment should be independent of insertion order")
	}
}

func TestForEach(t *testing.T) {
	store := NewStore(storage.NewMemory())
	store.Put(commitUTXO(1, 0, 1000, 1))
	store.Put(commitUTXO(2, 0, 2000, 2))

	var count int
	var total uint64
	err := store.ForEach(func(u *UTXO) error {
		count++
		total += u.Amount
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if total != 3000 {
		t.Errorf("total = %d, want 3000", total)
	}
}

func TestHashUTXO_Deterministic(t *testing.T) {
	u := commitUTXO(1, 0, 1000, 1)
	h1 := hashUTXO(u)
	h2 := hashUTXO(u)
	if h1 != h2 {
		t.Error("hashUTXO should be deterministic")
	}
	if h1.IsZero() {
		t.Error("hashUTXO should not be zero")
	}
}

func TestHashUTXO_DifferentValues(t *testing.T) {
	u1 := &UTXO{Anchor: types.Anchor{Height: 1}, Amount: 1000}
	u2 := &UTXO{Anchor: types.Anchor{Height: 1}, Amount: 2000}
	if hashUTXO(u1) == hashUTXO(u2) {
		t.Error("different values should produce different hashes")
	}
}
